package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/domain"
)

const (
	channelPrefix = "complaints:notify:"
	inboxPrefix   = "complaints:inbox:"
)

// RedisTransport publishes each notification on its audience channel and
// appends it to a capped per-audience inbox list for polling clients.
type RedisTransport struct {
	client    redis.UniversalClient
	inboxSize int64
	inboxTTL  time.Duration
}

// NewRedisTransport builds a transport on client.
func NewRedisTransport(client redis.UniversalClient, cfg config.NotificationConfig) *RedisTransport {
	size := int64(cfg.InboxSize)
	if size <= 0 {
		size = 100
	}
	return &RedisTransport{client: client, inboxSize: size, inboxTTL: cfg.InboxTTL()}
}

// ChannelFor returns the pub/sub channel of an audience.
func ChannelFor(a domain.Audience) string { return channelPrefix + a.Key() }

// InboxKeyFor returns the inbox list key of an audience.
func InboxKeyFor(a domain.Audience) string { return inboxPrefix + a.Key() }

func (t *RedisTransport) Name() string { return "redis" }

func (t *RedisTransport) Deliver(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", n.ID, err)
	}
	inbox := InboxKeyFor(n.Audience)
	_, err = t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, ChannelFor(n.Audience), payload)
		pipe.RPush(ctx, inbox, payload)
		pipe.LTrim(ctx, inbox, -t.inboxSize, -1)
		if t.inboxTTL > 0 {
			pipe.Expire(ctx, inbox, t.inboxTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deliver notification %s: %w", n.ID, err)
	}
	return nil
}

// Inbox returns up to limit of the newest notifications, oldest first.
func (t *RedisTransport) Inbox(ctx context.Context, audience domain.Audience, limit int) ([]domain.Notification, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := t.client.LRange(ctx, InboxKeyFor(audience), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read inbox %s: %w", audience.Key(), err)
	}
	out := make([]domain.Notification, 0, len(raw))
	for _, item := range raw {
		var n domain.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			return nil, fmt.Errorf("decode inbox entry: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}
