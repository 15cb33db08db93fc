package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduler-api/internal/models"
)

// ProgressNotifier pushes per-row outcomes to a subscriber as rows complete.
// Delivery is best-effort: implementations must never fail the batch.
type ProgressNotifier interface {
	Notify(ctx context.Context, subscriberToken string, rowIndex int, outcome models.RowOutcome)
}

// NopNotifier drops every notification. Used when no push channel is
// configured.
type NopNotifier struct{}

// Notify implements ProgressNotifier.
func (NopNotifier) Notify(context.Context, string, int, models.RowOutcome) {}

// RedisNotifier publishes outcomes on a per-subscriber Pub/Sub channel.
type RedisNotifier struct {
	client        *redis.Client
	channelPrefix string
	logger        *zap.Logger
}

// NewRedisNotifier constructs a Redis-backed notifier.
func NewRedisNotifier(client *redis.Client, channelPrefix string, logger *zap.Logger) *RedisNotifier {
	if channelPrefix == "" {
		channelPrefix = "batch:progress:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{client: client, channelPrefix: channelPrefix, logger: logger}
}

// Notify publishes the outcome as JSON. Failures are logged and swallowed.
func (n *RedisNotifier) Notify(ctx context.Context, subscriberToken string, rowIndex int, outcome models.RowOutcome) {
	if n.client == nil || subscriberToken == "" {
		return
	}
	payload, err := json.Marshal(outcome)
	if err != nil {
		n.logger.Warn("marshal progress event", zap.Int("row", rowIndex), zap.Error(err))
		return
	}
	channel := n.channelPrefix + subscriberToken
	if err := n.client.Publish(ctx, channel, payload).Err(); err != nil {
		n.logger.Warn("publish progress event", zap.String("channel", channel), zap.Int("row", rowIndex), zap.Error(err))
	}
}
