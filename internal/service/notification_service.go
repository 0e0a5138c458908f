package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/observability"
)

// NotificationService observes store events and surfaces them through
// logging and counters. Device push delivery is handled by an external
// notification pipeline; this service is the in-process audit point.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics

	subscriptions []*events.Subscription
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to store events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.subscriptions = append(n.subscriptions,
		n.dispatcher.Subscribe(events.EventRequestsChanged, n.handleRequestsChanged),
		n.dispatcher.Subscribe(events.EventRequestWriteFailed, n.handleWriteFailed),
	)
}

// Close cancels all subscriptions.
func (n *NotificationService) Close() {
	for _, sub := range n.subscriptions {
		sub.Cancel()
	}
	n.subscriptions = nil
}

func (n *NotificationService) handleRequestsChanged(ctx context.Context, event events.Event) {
	n.metrics.RecordSnapshot()
	n.logger.Debug("RequestsChanged", zap.String("event_id", event.ID))
}

func (n *NotificationService) handleWriteFailed(ctx context.Context, event events.Event) {
	n.metrics.RecordWriteFailure()
	payload, ok := event.Payload.(events.WriteFailedPayload)
	if !ok {
		n.logger.Warn("RequestWriteFailed", zap.String("event_id", event.ID))
		return
	}
	n.logger.Warn("RequestWriteFailed",
		zap.String("operation", payload.Operation),
		zap.String("request_id", payload.RequestID),
		zap.String("reason", payload.Reason))
}
