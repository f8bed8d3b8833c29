package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper filters redelivered webhook messages. The channel guarantees
// at-least-once delivery, so each message ID is admitted exactly once within
// the TTL window.
type Deduper struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewDeduper creates a message-ID deduper.
func NewDeduper(client *redis.Client, ttl time.Duration) *Deduper {
	if client == nil {
		panic("messaging: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Deduper{redis: client, ttl: ttl}
}

// Seen records the message ID and reports whether it was already present.
func (d *Deduper) Seen(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	admitted, err := d.redis.SetNX(ctx, "seen:msg:"+messageID, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("messaging: dedupe check: %w", err)
	}
	return !admitted, nil
}
