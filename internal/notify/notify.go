// Package notify hands registration notifications to the delivery system.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/model"
)

// DefaultChannel is the Redis channel notifications are published on.
const DefaultChannel = "registrations:notifications"

// RedisPublisher publishes notifications as JSON on a Redis pub/sub channel.
// Delivery and templating happen in whatever service subscribes.
type RedisPublisher struct {
	client  redis.Cmdable
	channel string
	timeout time.Duration
}

// NewRedisPublisher constructs a RedisPublisher. An empty channel uses DefaultChannel.
func NewRedisPublisher(client redis.Cmdable, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel, timeout: 2 * time.Second}
}

// Notify publishes n. The publish is bounded by a short timeout so a slow
// broker cannot hold up the request that triggered it.
func (p *RedisPublisher) Notify(ctx context.Context, n model.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// LogNotifier writes notifications to a logger. It is used when no broker is
// configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements service.Notifier.
func (l *LogNotifier) Notify(ctx context.Context, n model.Notification) error {
	l.logger.InfoContext(ctx, "notification",
		"kind", n.Kind, "user_id", n.UserID, "event_id", n.EventID, "registration_id", n.RegistrationID)
	return nil
}
