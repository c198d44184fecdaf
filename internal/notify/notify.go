// Package notify delivers processing lifecycle events to document owners.
// Delivery is fire-and-forget: a failed notification is logged and never
// fails the pipeline.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"docpipe/internal/logger"
)

// Event types crossing the pipeline boundary.
const (
	EventProcessingStarted   = "document_processing_started"
	EventProcessingCompleted = "document_processing_completed"
	EventProcessingError     = "document_processing_error"
)

// Notifier is the notification sink consumed by the batch orchestrator.
type Notifier interface {
	Notify(ctx context.Context, ownerID int64, eventType string, payload any)
}

// RedisNotifier publishes events to a per-owner channel; the gateway that
// holds the owner's websocket subscribes there.
type RedisNotifier struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisNotifier connects the notifier to Redis at addr.
func NewRedisNotifier(addr, password string) *RedisNotifier {
	return &RedisNotifier{
		rdb: redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     password,
			DialTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		}),
		log: logger.WithComponent("notify"),
	}
}

// Notify publishes one event to the owner's channel.
func (n *RedisNotifier) Notify(ctx context.Context, ownerID int64, eventType string, payload any) {
	message, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		n.log.Warn().Err(err).Str("event", eventType).Msg("Failed to encode notification")
		return
	}

	channel := fmt.Sprintf("user:%d:events", ownerID)
	if err := n.rdb.Publish(ctx, channel, message).Err(); err != nil {
		n.log.Warn().Err(err).Str("channel", channel).Str("event", eventType).Msg("Failed to publish notification")
	}
}

// Close releases the backend connection.
func (n *RedisNotifier) Close() error { return n.rdb.Close() }

// Nop discards all notifications. Used by the CLI and in tests.
type Nop struct{}

func (Nop) Notify(context.Context, int64, string, any) {}
