package delivery

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// Transport delivers one addressed notification. Implementations must
// tolerate the same notification being delivered more than once.
type Transport interface {
	Name() string
	Deliver(ctx context.Context, n domain.Notification) error
}

// InboxReader lists recently delivered notifications for an audience.
type InboxReader interface {
	Inbox(ctx context.Context, audience domain.Audience, limit int) ([]domain.Notification, error)
}

// ErrInboxUnsupported is returned by transports that keep no inbox.
var ErrInboxUnsupported = errors.New("transport keeps no inbox")

// LogTransport writes notifications to the log only.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport builds a log-only transport.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Deliver(_ context.Context, n domain.Notification) error {
	t.logger.Info("notification",
		zap.String("id", n.ID),
		zap.String("type", string(n.Type)),
		zap.String("audience", n.Audience.Key()),
		zap.String("ticket_id", n.TicketID),
		zap.Int("seq", n.Seq),
		zap.String("message", n.Message))
	return nil
}

func (t *LogTransport) Inbox(context.Context, domain.Audience, int) ([]domain.Notification, error) {
	return nil, ErrInboxUnsupported
}

// MemoryTransport keeps delivered notifications in process, keyed by audience.
type MemoryTransport struct {
	mu      sync.Mutex
	inboxes map[string][]domain.Notification
	all     []domain.Notification
}

// NewMemoryTransport builds an empty in-memory transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{inboxes: make(map[string][]domain.Notification)}
}

func (t *MemoryTransport) Name() string { return "memory" }

func (t *MemoryTransport) Deliver(_ context.Context, n domain.Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := n.Audience.Key()
	t.inboxes[key] = append(t.inboxes[key], n)
	t.all = append(t.all, n)
	return nil
}

func (t *MemoryTransport) Inbox(_ context.Context, audience domain.Audience, limit int) ([]domain.Notification, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return tail(t.inboxes[audience.Key()], limit), nil
}

// Delivered returns every notification in delivery order.
func (t *MemoryTransport) Delivered() []domain.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Notification(nil), t.all...)
}

func tail(items []domain.Notification, limit int) []domain.Notification {
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return append([]domain.Notification(nil), items...)
}
