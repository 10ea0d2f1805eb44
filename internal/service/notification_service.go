package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/delivery"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/observability"
)

// NotificationService delivers the notifications carried by published events.
// Each notification is retried with linear backoff; a notification that still
// fails is logged and dropped so later events are not held back.
type NotificationService struct {
	dispatcher events.Dispatcher
	transport  delivery.Transport
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.NotificationConfig
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, transport delivery.Transport, logger *zap.Logger, metrics *observability.Metrics, cfg config.NotificationConfig) *NotificationService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &NotificationService{
		dispatcher: dispatcher,
		transport:  transport,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
		sleep:      sleepCtx,
	}
}

// RegisterHandlers subscribes to every published event type.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || n.transport == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handleEvent)
	}
}

// Inbox returns recent notifications for audience when the transport keeps one.
func (n *NotificationService) Inbox(ctx context.Context, audience domain.Audience, limit int) ([]domain.Notification, error) {
	reader, ok := n.transport.(delivery.InboxReader)
	if !ok {
		return nil, delivery.ErrInboxUnsupported
	}
	return reader.Inbox(ctx, audience, limit)
}

func (n *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	n.logger.Debug("delivering event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Int("seq", event.Seq),
		zap.Int("notifications", len(event.Notifications)))
	for _, notification := range event.Notifications {
		n.deliver(ctx, notification)
	}
	return nil
}

func (n *NotificationService) deliver(ctx context.Context, notification domain.Notification) {
	transport := n.transport.Name()
	var err error
	for attempt := 1; attempt <= n.cfg.MaxAttempts; attempt++ {
		if err = n.transport.Deliver(ctx, notification); err == nil {
			n.metrics.RecordDelivery(transport, "delivered")
			return
		}
		if attempt == n.cfg.MaxAttempts {
			break
		}
		n.metrics.RecordDelivery(transport, "retry")
		if serr := n.sleep(ctx, time.Duration(attempt)*n.cfg.RetryBackoff()); serr != nil {
			err = serr
			break
		}
	}
	n.metrics.RecordDelivery(transport, "dropped")
	n.logger.Error("notification delivery gave up",
		zap.String("notification_id", notification.ID),
		zap.String("audience", notification.Audience.Key()),
		zap.Int("attempts", n.cfg.MaxAttempts),
		zap.Error(err))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
