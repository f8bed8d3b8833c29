package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/waveleads/lead-agent-platform/internal/conversation"
	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

// ConversationSource lists the conversations active during a window.
type ConversationSource interface {
	ListTouchedBetween(ctx context.Context, from, to time.Time) ([]conversation.Conversation, error)
}

// Collector periodically recomputes the current day's rollup from the
// conversation store and upserts it.
type Collector struct {
	source   ConversationSource
	store    *Store
	interval time.Duration
	logger   *logging.Logger
	now      func() time.Time
}

// NewCollector creates a rollup collector.
func NewCollector(source ConversationSource, store *Store, interval time.Duration, logger *logging.Logger) *Collector {
	if source == nil {
		panic("analytics: conversation source cannot be nil")
	}
	if store == nil {
		panic("analytics: store cannot be nil")
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Collector{
		source:   source,
		store:    store,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the collection clock (tests).
func (c *Collector) WithClock(now func() time.Time) *Collector {
	c.now = now
	return c
}

// Run collects on the configured interval until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Collect(ctx); err != nil {
				c.logger.Error("analytics collection failed", "error", err)
			}
		}
	}
}

// Collect recomputes and persists the rollup for the current UTC day.
func (c *Collector) Collect(ctx context.Context) error {
	dayStart := c.now().UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	convs, err := c.source.ListTouchedBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("analytics: failed to list conversations: %w", err)
	}

	rollup := Compute(dayStart, convs)
	if err := c.store.Upsert(ctx, rollup); err != nil {
		return err
	}

	c.logger.Debug("daily rollup updated",
		"day", dayStart.Format("2006-01-02"),
		"started", rollup.ConversationsStarted,
		"completed", rollup.ConversationsCompleted,
		"bookings", rollup.BookingsConfirmed,
	)
	return nil
}
