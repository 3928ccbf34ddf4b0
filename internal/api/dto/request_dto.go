package dto

import (
	"time"

	"github.com/spec-kit/facility-requests/internal/domain"
)

// CreateRequestRequest payload.
type CreateRequestRequest struct {
	Location    string  `json:"location"`
	Description string  `json:"description"`
	Severity    *string `json:"severity"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// RespondRequest payload.
type RespondRequest struct {
	Message string  `json:"message"`
	Status  *string `json:"status"`
}

// OwnerResponse is the public profile of a request owner.
type OwnerResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Department *string `json:"department"`
	JobTitle   *string `json:"job_title"`
}

// ResponseMessage is one administrator reply.
type ResponseMessage struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// RequestSummary is a list row. LatestResponse is the newest reply, if any.
type RequestSummary struct {
	ID             string               `json:"id"`
	Location       string               `json:"location"`
	Description    string               `json:"description"`
	Severity       domain.Severity      `json:"severity"`
	Status         domain.RequestStatus `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	Owner          *OwnerResponse       `json:"owner"`
	ResponseCount  int                  `json:"response_count"`
	LatestResponse *ResponseMessage     `json:"latest_response"`
}

// RequestDetailResponse provides the full request with every reply oldest first.
type RequestDetailResponse struct {
	ID          string               `json:"id"`
	Location    string               `json:"location"`
	Description string               `json:"description"`
	Severity    domain.Severity      `json:"severity"`
	Status      domain.RequestStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	Owner       *OwnerResponse       `json:"owner"`
	Responses   []ResponseMessage    `json:"responses"`
}

// RespondResponse is returned after an administrator reply.
type RespondResponse struct {
	Response ResponseMessage       `json:"response"`
	Request  RequestDetailResponse `json:"request"`
}

// StatsResponse holds per-status counts plus the total under ALL.
type StatsResponse map[string]int

// RequestSummaryFrom maps a listed request.
func RequestSummaryFrom(req *domain.FacilityRequest) RequestSummary {
	out := RequestSummary{
		ID:            req.ID,
		Location:      req.Location,
		Description:   req.Description,
		Severity:      req.Severity,
		Status:        req.Status,
		CreatedAt:     req.CreatedAt,
		UpdatedAt:     req.UpdatedAt,
		Owner:         ownerFrom(req.Owner),
		ResponseCount: req.ResponseCount,
	}
	if n := len(req.Responses); n > 0 {
		latest := ResponseMessageFrom(req.Responses[n-1])
		out.LatestResponse = &latest
	}
	return out
}

// RequestDetailFrom maps a fully loaded request.
func RequestDetailFrom(req *domain.FacilityRequest) RequestDetailResponse {
	responses := make([]ResponseMessage, 0, len(req.Responses))
	for _, r := range req.Responses {
		responses = append(responses, ResponseMessageFrom(r))
	}
	return RequestDetailResponse{
		ID:          req.ID,
		Location:    req.Location,
		Description: req.Description,
		Severity:    req.Severity,
		Status:      req.Status,
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
		Owner:       ownerFrom(req.Owner),
		Responses:   responses,
	}
}

// ResponseMessageFrom maps a stored reply.
func ResponseMessageFrom(r domain.RequestResponse) ResponseMessage {
	return ResponseMessage{ID: r.ID, RequestID: r.RequestID, Message: r.Message, CreatedAt: r.CreatedAt}
}

// StatsFrom flattens status counts and adds the ALL total.
func StatsFrom(counts map[domain.RequestStatus]int) StatsResponse {
	out := StatsResponse{"ALL": 0}
	for status, n := range counts {
		out[string(status)] = n
		out["ALL"] += n
	}
	return out
}

func ownerFrom(p *domain.UserProfile) *OwnerResponse {
	if p == nil {
		return nil
	}
	return &OwnerResponse{ID: p.ID, Name: p.Name, Email: p.Email, Department: p.Department, JobTitle: p.JobTitle}
}
