// Package cleanup retires conversations that went quiet before finishing the
// funnel.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/waveleads/lead-agent-platform/internal/conversation"
	"github.com/waveleads/lead-agent-platform/internal/observability/metrics"
	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

// Store is the slice of the conversation store the sweeper needs.
type Store interface {
	ListActive(ctx context.Context) ([]conversation.Conversation, error)
	Save(ctx context.Context, c *conversation.Conversation) error
}

// Sweeper marks idle conversations abandoned. Conversations that completed
// the funnel or already hold a booking are left alone; only contacts who
// stopped replying mid-funnel are retired.
type Sweeper struct {
	store    Store
	interval time.Duration
	cutoff   time.Duration
	metrics  *metrics.ConversationMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewSweeper creates an idle-conversation sweeper.
func NewSweeper(store Store, interval, cutoff time.Duration, m *metrics.ConversationMetrics, logger *logging.Logger) *Sweeper {
	if store == nil {
		panic("cleanup: store cannot be nil")
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if cutoff <= 0 {
		cutoff = 24 * time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		cutoff:   cutoff,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the sweep clock (tests).
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("cleanup sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one pass over the active conversations.
func (s *Sweeper) Sweep(ctx context.Context) error {
	deadline := s.now().UTC().Add(-s.cutoff)

	active, err := s.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("cleanup: failed to list active conversations: %w", err)
	}

	retired := 0
	for i := range active {
		conv := &active[i]
		if !shouldAbandon(conv, deadline) {
			continue
		}

		conv.Stage = conversation.StageAbandoned
		conv.Active = false
		conv.LeadScore = conversation.Score(conv)

		if err := s.store.Save(ctx, conv); err != nil {
			if errors.Is(err, conversation.ErrVersionConflict) {
				// The contact just came back; leave the conversation alone.
				continue
			}
			s.logger.Error("failed to retire conversation", "error", err, "conversation_id", conv.ID)
			continue
		}
		s.metrics.ObserveAbandoned()
		retired++
	}

	if retired > 0 {
		s.logger.Info("idle conversations retired", "count", retired)
	}
	return nil
}

// shouldAbandon reports whether the conversation is fair game for retirement:
// idle past the cutoff and not in a stage that represents a finished or
// booked lead.
func shouldAbandon(conv *conversation.Conversation, deadline time.Time) bool {
	switch conv.Stage {
	case conversation.StageCompleted, conversation.StageAbandoned, conversation.StageConfirmBooking:
		return false
	}
	return conv.LastActivity.Before(deadline)
}
