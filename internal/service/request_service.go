package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/facility-requests/internal/domain"
	"github.com/spec-kit/facility-requests/internal/events"
	"github.com/spec-kit/facility-requests/internal/observability"
	"github.com/spec-kit/facility-requests/internal/repository"
	apperrors "github.com/spec-kit/facility-requests/pkg/util"
)

const tracerName = "github.com/spec-kit/facility-requests/internal/service"

// RequestService enforces who may read and change facility requests.
type RequestService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
}

// RequestDependencies bundles collaborators for the request service.
type RequestDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// CreateRequestInput is the caller-supplied part of a new request.
type CreateRequestInput struct {
	Location    string
	Description string
	// Severity defaults to MEDIUM when nil or blank.
	Severity *string
}

// ListRequestsInput holds optional listing filters as received from the caller.
type ListRequestsInput struct {
	UserID *string
	Status *string
}

// RespondInput is an administrator reply with an optional status change.
type RespondInput struct {
	Message string
	Status  *string
}

// RespondResult carries the stored response and the request as it reads after commit.
type RespondResult struct {
	Response domain.RequestResponse
	Request  *domain.FacilityRequest
}

// NewRequestService constructs the service.
func NewRequestService(deps RequestDependencies) *RequestService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// CreateRequest files a new request owned by the caller.
func (s *RequestService) CreateRequest(ctx context.Context, caller domain.CallerIdentity, input CreateRequestInput) (_ *domain.FacilityRequest, err error) {
	ctx, span := s.startSpan(ctx, "CreateRequest", caller)
	defer func() { finishSpan(span, err) }()

	location := strings.TrimSpace(input.Location)
	description := strings.TrimSpace(input.Description)
	details := map[string]any{}
	if location == "" {
		details["location"] = "required"
	}
	if description == "" {
		details["description"] = "required"
	}
	severity := domain.SeverityMedium
	if input.Severity != nil && strings.TrimSpace(*input.Severity) != "" {
		severity = domain.Severity(strings.TrimSpace(*input.Severity))
		if !severity.Valid() {
			details["severity"] = "must be one of LOW, MEDIUM, HIGH, CRITICAL"
		}
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid request", details)
	}

	req := &domain.FacilityRequest{
		UserID:      caller.ID,
		Location:    location,
		Description: description,
		Severity:    severity,
		Status:      domain.RequestStatusPending,
	}
	if err := s.store.Requests().Create(ctx, req); err != nil {
		return nil, s.storeError("create request", err)
	}
	owner := profileOf(caller)
	req.Owner = &owner
	span.SetAttributes(attribute.String("request.id", req.ID))

	s.metrics.RecordEvent("request_created")
	s.logger.Info("request created",
		zap.String("request_id", req.ID),
		zap.String("user_id", caller.ID),
		zap.String("severity", string(req.Severity)))
	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestCreated,
		RequestID: req.ID,
		ActorID:   caller.ID,
		Payload:   events.RequestCreatedPayload{Request: *req, Owner: owner},
	})
	return req, nil
}

// ListRequests returns request summaries newest first. Non-admin callers only ever see
// their own requests whatever filter they ask for.
func (s *RequestService) ListRequests(ctx context.Context, caller domain.CallerIdentity, input ListRequestsInput) (_ []domain.FacilityRequest, err error) {
	ctx, span := s.startSpan(ctx, "ListRequests", caller)
	defer func() { finishSpan(span, err) }()

	filter, err := scopedFilter(caller, input)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Requests().List(ctx, filter)
	if err != nil {
		return nil, s.storeError("list requests", err)
	}
	span.SetAttributes(attribute.Int("result.count", len(items)))
	return items, nil
}

// Stats counts requests per status within the same scope ListRequests would return.
func (s *RequestService) Stats(ctx context.Context, caller domain.CallerIdentity, input ListRequestsInput) (_ map[domain.RequestStatus]int, err error) {
	ctx, span := s.startSpan(ctx, "Stats", caller)
	defer func() { finishSpan(span, err) }()

	filter, err := scopedFilter(caller, ListRequestsInput{UserID: input.UserID})
	if err != nil {
		return nil, err
	}
	counts, err := s.store.Requests().CountByStatus(ctx, filter)
	if err != nil {
		return nil, s.storeError("count requests", err)
	}
	for _, status := range domain.RequestStatuses {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	return counts, nil
}

// GetRequest returns the full request with every response oldest first.
func (s *RequestService) GetRequest(ctx context.Context, caller domain.CallerIdentity, requestID string) (_ *domain.FacilityRequest, err error) {
	ctx, span := s.startSpan(ctx, "GetRequest", caller, attribute.String("request.id", requestID))
	defer func() { finishSpan(span, err) }()

	req, err := s.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, s.storeError("get request", err, requestID)
	}
	if !caller.IsAdmin() && req.UserID != caller.ID {
		return nil, apperrors.NewForbidden("request belongs to another user")
	}
	if err := s.loadResponses(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// UpdateStatus sets the status of any request. Admin only.
func (s *RequestService) UpdateStatus(ctx context.Context, caller domain.CallerIdentity, requestID, status string) (_ *domain.FacilityRequest, err error) {
	ctx, span := s.startSpan(ctx, "UpdateStatus", caller, attribute.String("request.id", requestID))
	defer func() { finishSpan(span, err) }()

	if !caller.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	next, err := parseStatus(status)
	if err != nil {
		return nil, err
	}
	if err := s.store.Requests().UpdateStatus(ctx, requestID, next); err != nil {
		return nil, s.storeError("update status", err, requestID)
	}
	s.metrics.RecordEvent("request_status_updated")
	s.logger.Info("request status updated",
		zap.String("request_id", requestID),
		zap.String("status", string(next)),
		zap.String("admin_id", caller.ID))

	req, err := s.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, s.storeError("get request", err, requestID)
	}
	if err := s.loadResponses(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// RespondToRequest stores an administrator reply and the optional status change in one
// transaction, then notifies the request owner.
func (s *RequestService) RespondToRequest(ctx context.Context, caller domain.CallerIdentity, requestID string, input RespondInput) (_ *RespondResult, err error) {
	ctx, span := s.startSpan(ctx, "RespondToRequest", caller, attribute.String("request.id", requestID))
	defer func() { finishSpan(span, err) }()

	if !caller.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	message := strings.TrimSpace(input.Message)
	details := map[string]any{}
	if message == "" {
		details["message"] = "required"
	}
	var next *domain.RequestStatus
	if input.Status != nil && strings.TrimSpace(*input.Status) != "" {
		status := domain.RequestStatus(strings.TrimSpace(*input.Status))
		if !status.Valid() {
			details["status"] = "must be one of PENDING, IN_PROGRESS, RESOLVED, CLOSED"
		}
		next = &status
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid response", details)
	}

	response := domain.RequestResponse{RequestID: requestID, Message: message}
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Requests().GetByID(ctx, requestID); err != nil {
			return err
		}
		if err := tx.Responses().Create(ctx, &response); err != nil {
			return err
		}
		if next != nil {
			return tx.Requests().UpdateStatus(ctx, requestID, *next)
		}
		return tx.Requests().Touch(ctx, requestID)
	})
	if err != nil {
		return nil, s.storeError("respond to request", err, requestID)
	}

	s.metrics.RecordEvent("request_responded")
	s.logger.Info("request responded",
		zap.String("request_id", requestID),
		zap.String("response_id", response.ID),
		zap.String("admin_id", caller.ID))

	req, err := s.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, s.storeError("get request", err, requestID)
	}
	if err := s.loadResponses(ctx, req); err != nil {
		return nil, err
	}
	if req.Owner != nil {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventRequestResponded,
			RequestID: req.ID,
			ActorID:   caller.ID,
			Payload:   events.RequestRespondedPayload{Request: *req, Owner: *req.Owner, Response: response},
		})
	}
	return &RespondResult{Response: response, Request: req}, nil
}

func (s *RequestService) loadResponses(ctx context.Context, req *domain.FacilityRequest) error {
	responses, err := s.store.Responses().ListByRequest(ctx, req.ID)
	if err != nil {
		return s.storeError("list responses", err, req.ID)
	}
	req.Responses = responses
	req.ResponseCount = len(responses)
	return nil
}

// storeError maps repository failures onto the caller-facing taxonomy. Missing rows become
// NotFound and anything else is a dependency failure.
func (s *RequestService) storeError(op string, err error, requestID ...string) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		details := map[string]any{}
		if len(requestID) > 0 {
			details["id"] = requestID[0]
		}
		return apperrors.NewNotFound("request", details)
	}
	s.logger.Error("request store failure", zap.String("op", op), zap.Error(err))
	return apperrors.NewDependencyFailure("request store", err)
}

func (s *RequestService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *RequestService) startSpan(ctx context.Context, op string, caller domain.CallerIdentity, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("caller.id", caller.ID),
		attribute.String("caller.role", string(caller.Role)))
	return s.tracer.Start(ctx, "RequestService."+op, trace.WithAttributes(attrs...))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func scopedFilter(caller domain.CallerIdentity, input ListRequestsInput) (repository.RequestFilter, error) {
	var filter repository.RequestFilter
	if input.Status != nil && strings.TrimSpace(*input.Status) != "" {
		status, err := parseStatus(*input.Status)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	switch {
	case !caller.IsAdmin():
		owner := caller.ID
		filter.UserID = &owner
	case input.UserID != nil && strings.TrimSpace(*input.UserID) != "":
		owner := strings.TrimSpace(*input.UserID)
		filter.UserID = &owner
	}
	return filter, nil
}

func parseStatus(raw string) (domain.RequestStatus, error) {
	status := domain.RequestStatus(strings.TrimSpace(raw))
	if !status.Valid() {
		return "", apperrors.NewValidationError("invalid status", map[string]any{
			"status": "must be one of PENDING, IN_PROGRESS, RESOLVED, CLOSED",
		})
	}
	return status, nil
}

func profileOf(caller domain.CallerIdentity) domain.UserProfile {
	return domain.UserProfile{
		ID:         caller.ID,
		Name:       caller.Name,
		Email:      caller.Email,
		Department: caller.Department,
		JobTitle:   caller.JobTitle,
	}
}
