package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const historyTTL = 24 * time.Hour

// HistoryCache keeps each session's recent message window in Redis so a turn
// does not hit PostgreSQL just to rebuild prompt context. Misses fall back to
// the store; entries expire after a day of inactivity.
type HistoryCache struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// ErrHistoryMiss reports that no cached window exists for the session.
var ErrHistoryMiss = redis.Nil

// NewHistoryCache creates a cache over the given Redis client.
func NewHistoryCache(client *redis.Client, tracer trace.Tracer) *HistoryCache {
	if client == nil {
		panic("chat: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("medassist.internal.chat.history")
	}
	return &HistoryCache{
		redis:  client,
		tracer: tracer,
	}
}

// Save replaces the cached window for the session.
func (c *HistoryCache) Save(ctx context.Context, sessionID string, history []Message) error {
	ctx, span := c.tracer.Start(ctx, "chat.save_history")
	defer span.End()

	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: failed to marshal history: %w", err)
	}
	if err := c.redis.Set(ctx, historyKey(sessionID), data, historyTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: failed to cache history: %w", err)
	}
	return nil
}

// Load returns the cached window, or ErrHistoryMiss when none is stored.
func (c *HistoryCache) Load(ctx context.Context, sessionID string) ([]Message, error) {
	ctx, span := c.tracer.Start(ctx, "chat.load_history")
	defer span.End()

	data, err := c.redis.Get(ctx, historyKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrHistoryMiss
		}
		span.RecordError(err)
		return nil, fmt.Errorf("chat: failed to load cached history: %w", err)
	}

	var history []Message
	if err := json.Unmarshal(data, &history); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("chat: failed to decode cached history: %w", err)
	}
	return history, nil
}

// Invalidate drops the cached window, typically after a session delete.
func (c *HistoryCache) Invalidate(ctx context.Context, sessionID string) error {
	ctx, span := c.tracer.Start(ctx, "chat.invalidate_history")
	defer span.End()

	if err := c.redis.Del(ctx, historyKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: failed to invalidate history: %w", err)
	}
	return nil
}

func historyKey(sessionID string) string {
	return fmt.Sprintf("chat_history:%s", sessionID)
}
