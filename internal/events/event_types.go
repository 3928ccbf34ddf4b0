package events

import (
	"time"

	"github.com/spec-kit/facility-requests/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestCreated   EventType = "request_created"
	EventRequestResponded EventType = "request_responded"
)

// Event represents a domain event emitted by services after their writes commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RequestID string      `json:"request_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RequestCreatedPayload carries the new request with its owner.
type RequestCreatedPayload struct {
	Request domain.FacilityRequest `json:"request"`
	Owner   domain.UserProfile     `json:"owner"`
}

// RequestRespondedPayload carries the updated request, its owner and the reply text.
type RequestRespondedPayload struct {
	Request  domain.FacilityRequest `json:"request"`
	Owner    domain.UserProfile     `json:"owner"`
	Response domain.RequestResponse `json:"response"`
}
