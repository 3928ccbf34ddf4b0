package domain

import "time"

// RequestStatus enumerates lifecycle states for facility requests.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "PENDING"
	RequestStatusInProgress RequestStatus = "IN_PROGRESS"
	RequestStatusResolved   RequestStatus = "RESOLVED"
	RequestStatusClosed     RequestStatus = "CLOSED"
)

// RequestStatuses lists every status in display order.
var RequestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusInProgress,
	RequestStatusResolved,
	RequestStatusClosed,
}

// Valid reports whether s is one of the enumerated statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusInProgress, RequestStatusResolved, RequestStatusClosed:
		return true
	}
	return false
}

// Severity enumerates request urgency.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is one of the enumerated severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// FacilityRequest is a maintenance ticket submitted by an employee.
// UserID and CreatedAt never change after insert.
type FacilityRequest struct {
	ID          string
	UserID      string
	Location    string
	Description string
	Severity    Severity
	Status      RequestStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Owner         *UserProfile
	Responses     []RequestResponse
	ResponseCount int
}

// RequestResponse is an administrator reply attached to a request.
type RequestResponse struct {
	ID        string
	RequestID string
	Message   string
	CreatedAt time.Time
}
