package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/facility-requests/internal/domain"
	"github.com/spec-kit/facility-requests/internal/events"
	"github.com/spec-kit/facility-requests/internal/observability"
)

// RequestNotifier sends the created and responded emails.
type RequestNotifier interface {
	NotifyCreated(ctx context.Context, req domain.FacilityRequest, owner domain.UserProfile) error
	NotifyResponded(ctx context.Context, req domain.FacilityRequest, owner domain.UserProfile, message string) error
}

// NotificationService turns committed request events into best-effort emails.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   RequestNotifier
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier RequestNotifier, metrics *observability.Metrics, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || n.notifier == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventRequestCreated, n.handleRequestCreated)
	n.dispatcher.Subscribe(events.EventRequestResponded, n.handleRequestResponded)
}

func (n *NotificationService) handleRequestCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RequestCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if err := n.notifier.NotifyCreated(ctx, payload.Request, payload.Owner); err != nil {
		n.metrics.RecordEvent("notification_failed")
		return fmt.Errorf("created notification: %w", err)
	}
	n.metrics.RecordEvent("notification_sent")
	n.logger.Debug("created notification sent", zap.String("request_id", event.RequestID))
	return nil
}

func (n *NotificationService) handleRequestResponded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RequestRespondedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if err := n.notifier.NotifyResponded(ctx, payload.Request, payload.Owner, payload.Response.Message); err != nil {
		n.metrics.RecordEvent("notification_failed")
		return fmt.Errorf("responded notification: %w", err)
	}
	n.metrics.RecordEvent("notification_sent")
	n.logger.Debug("responded notification sent",
		zap.String("request_id", event.RequestID),
		zap.String("to", payload.Owner.Email))
	return nil
}
