// Package reminders sends pre-meeting nudges to contacts with confirmed
// appointments.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/waveleads/lead-agent-platform/internal/conversation"
	"github.com/waveleads/lead-agent-platform/internal/observability/metrics"
	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

const hourBeforeWindow = time.Hour

// Store is the slice of the conversation store the sweeper needs.
type Store interface {
	ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]conversation.Conversation, error)
	Save(ctx context.Context, c *conversation.Conversation) error
}

// Sender delivers the reminder text.
type Sender interface {
	SendText(ctx context.Context, contactKey, text string) error
}

// Sweeper periodically scans for upcoming confirmed appointments and sends
// day-before and hour-before reminders. Each reminder kind fires at most once
// per appointment: the flag is persisted right after the send, so a crash
// between the two can at worst repeat one reminder, never skip it silently.
type Sweeper struct {
	store    Store
	sender   Sender
	interval time.Duration
	loc      *time.Location
	metrics  *metrics.ConversationMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewSweeper creates a reminder sweeper.
func NewSweeper(store Store, sender Sender, interval time.Duration, m *metrics.ConversationMetrics, logger *logging.Logger) *Sweeper {
	if store == nil {
		panic("reminders: store cannot be nil")
	}
	if sender == nil {
		panic("reminders: sender cannot be nil")
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		store:    store,
		sender:   sender,
		interval: interval,
		loc:      time.UTC,
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

// WithLocation sets the timezone that decides which calendar day counts as
// tomorrow for the day-before pass. Defaults to UTC.
func (s *Sweeper) WithLocation(loc *time.Location) *Sweeper {
	if loc != nil {
		s.loc = loc
	}
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
				s.logger.Error("reminder sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one pass over the upcoming appointments. The hour-before pass
// keys off wall-clock distance; the day-before pass keys off the calendar
// date, so a meeting booked for later today never gets a "tomorrow" nudge.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.now().UTC()

	local := now.In(s.loc)
	endOfTomorrow := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc).AddDate(0, 0, 2)

	upcoming, err := s.store.ListConfirmedBetween(ctx, now, endOfTomorrow)
	if err != nil {
		return fmt.Errorf("reminders: failed to list upcoming appointments: %w", err)
	}

	for i := range upcoming {
		conv := &upcoming[i]
		until := conv.Appointment.ScheduledAt.Sub(now)

		switch {
		case until <= hourBeforeWindow && !conv.Appointment.Reminders.HourBefore:
			s.send(ctx, conv, "hour_before", hourBeforeText(conv))
		case s.isTomorrow(now, conv.Appointment.ScheduledAt) && !conv.Appointment.Reminders.DayBefore:
			s.send(ctx, conv, "day_before", dayBeforeText(conv))
		}
	}
	return nil
}

func (s *Sweeper) isTomorrow(now, at time.Time) bool {
	y1, m1, d1 := now.In(s.loc).AddDate(0, 0, 1).Date()
	y2, m2, d2 := at.In(s.loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (s *Sweeper) send(ctx context.Context, conv *conversation.Conversation, kind, text string) {
	if err := s.sender.SendText(ctx, conv.ContactKey, text); err != nil {
		s.metrics.ObserveReminder(kind, "failed")
		s.logger.Error("failed to send reminder", "error", err, "kind", kind, "contact_key", conv.ContactKey)
		return
	}

	switch kind {
	case "day_before":
		conv.Appointment.Reminders.DayBefore = true
	case "hour_before":
		conv.Appointment.Reminders.HourBefore = true
		// A meeting inside the hour window needs no day-before anymore.
		conv.Appointment.Reminders.DayBefore = true
	}

	if err := s.store.Save(ctx, conv); err != nil {
		if errors.Is(err, conversation.ErrVersionConflict) {
			s.logger.Warn("reminder flag lost to racing writer, next sweep may resend", "kind", kind, "conversation_id", conv.ID)
		} else {
			s.logger.Error("failed to persist reminder flag", "error", err, "kind", kind, "conversation_id", conv.ID)
		}
		s.metrics.ObserveReminder(kind, "flag_unsaved")
		return
	}
	s.metrics.ObserveReminder(kind, "sent")
	s.logger.Info("reminder sent", "kind", kind, "contact_key", conv.ContactKey,
		"scheduled_at", conv.Appointment.ScheduledAt.Format(time.RFC3339))
}

func dayBeforeText(conv *conversation.Conversation) string {
	text := fmt.Sprintf("Quick reminder: your meeting is tomorrow, %s.",
		conv.Appointment.ScheduledAt.Format("Monday, Jan 2 at 3:04 PM"))
	if conv.Appointment.MeetingLink != "" {
		text += " Join here: " + conv.Appointment.MeetingLink
	}
	return text
}

func hourBeforeText(conv *conversation.Conversation) string {
	text := fmt.Sprintf("Your meeting starts at %s, in about an hour.",
		conv.Appointment.ScheduledAt.Format("3:04 PM"))
	if conv.Appointment.MeetingLink != "" {
		text += " Join here: " + conv.Appointment.MeetingLink
	}
	return text
}
