// Package booking resolves a prospect's numeric slot selection into a
// calendar event and the matching conversation state.
package booking

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/waveleads/lead-agent-platform/internal/calendar"
	"github.com/waveleads/lead-agent-platform/internal/conversation"
	"github.com/waveleads/lead-agent-platform/internal/slots"
	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

// CalendarAPI is the calendar write side.
type CalendarAPI interface {
	CreateEvent(ctx context.Context, input calendar.CreateEventInput) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// SlotSource regenerates the candidate list the prospect was numbering
// against.
type SlotSource interface {
	Generate(ctx context.Context, now time.Time) ([]slots.Slot, error)
}

// Coordinator performs the selection → event → state transition.
type Coordinator struct {
	slots    SlotSource
	calendar CalendarAPI
	tracer   trace.Tracer
	logger   *logging.Logger
	now      func() time.Time
}

// NewCoordinator creates a booking coordinator.
func NewCoordinator(slotSource SlotSource, calendarAPI CalendarAPI, logger *logging.Logger) *Coordinator {
	if slotSource == nil {
		panic("booking: slot source cannot be nil")
	}
	if calendarAPI == nil {
		panic("booking: calendar api cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{
		slots:    slotSource,
		calendar: calendarAPI,
		tracer:   otel.Tracer("booking"),
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the evaluation clock (tests).
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// Book resolves a 1-based selection against a regenerated candidate list and
// creates the calendar event, returning the reply to send and whether a
// booking happened. The conversation is mutated only on success; every
// failure path leaves it untouched and recoverable.
//
// A conversation whose appointment is already scheduled short-circuits to an
// "already booked" reply so a duplicate selection message can never create a
// second event.
func (c *Coordinator) Book(ctx context.Context, conv *conversation.Conversation, selection int) (string, bool) {
	ctx, span := c.tracer.Start(ctx, "booking.book")
	defer span.End()

	if conv.Appointment.Scheduled {
		return fmt.Sprintf(
			"You already have a meeting booked for %s. See you then!",
			conv.Appointment.ScheduledAt.Format("Monday, Jan 2 at 3:04 PM"),
		), false
	}

	offered, err := c.slots.Generate(ctx, c.now())
	if err != nil {
		c.logger.Error("failed to regenerate slot offer", "error", err, "contact_key", conv.ContactKey)
		return calendarTroubleReply, false
	}

	if selection < 1 || selection > len(offered) {
		return fmt.Sprintf(
			"That number doesn't match one of the offered times. Please reply with a number from 1 to %d.",
			len(offered),
		), false
	}

	chosen := offered[selection-1]
	event, err := c.calendar.CreateEvent(ctx, calendar.CreateEventInput{
		Start:         chosen.Start,
		End:           chosen.End,
		Summary:       "Intro call with " + displayName(conv),
		Description:   fmt.Sprintf("Lead qualification call.\nContact: %s\nRole: %s\nEmail: %s", displayName(conv), conv.Fields.Role, conv.Fields.Email),
		AttendeeName:  displayName(conv),
		AttendeeEmail: conv.Fields.Email,
	})
	if err != nil {
		c.logger.Error("calendar event creation failed", "error", err, "contact_key", conv.ContactKey)
		return calendarTroubleReply, false
	}

	conv.Appointment = conversation.Appointment{
		Scheduled:   true,
		EventID:     event.EventID,
		MeetingLink: event.MeetingLink,
		ScheduledAt: chosen.Start,
		Status:      conversation.AppointmentConfirmed,
	}
	conv.Stage = conversation.StageConfirmBooking

	reply := fmt.Sprintf("Booked! Your meeting is on %s.", chosen.Display)
	if event.MeetingLink != "" {
		reply += " Join here: " + event.MeetingLink
	}

	c.logger.Info("meeting booked",
		"contact_key", conv.ContactKey,
		"event_id", event.EventID,
		"scheduled_at", chosen.Start.Format(time.RFC3339),
	)
	return reply, true
}

// Release deletes the calendar event recorded on the conversation when the
// booking lost the save race: a concurrent turn already confirmed a different
// event, so this one must not survive as an orphan. On success the local
// appointment state is rolled back; on failure the event id is logged for
// manual cleanup and the state stays for a later retry.
func (c *Coordinator) Release(ctx context.Context, conv *conversation.Conversation) {
	eventID := conv.Appointment.EventID
	if eventID == "" {
		return
	}
	if err := c.calendar.DeleteEvent(ctx, eventID); err != nil {
		c.logger.Error("failed to delete unpersisted calendar event",
			"error", err, "event_id", eventID, "contact_key", conv.ContactKey)
		return
	}
	conv.Appointment = conversation.Appointment{}
	conv.Stage = conversation.StageOfferSlots
	c.logger.Info("released unpersisted calendar event", "event_id", eventID, "contact_key", conv.ContactKey)
}

const calendarTroubleReply = "I couldn't reach the calendar just now. Our team will follow up shortly to confirm your time, or you can try picking a slot again in a moment."

func displayName(conv *conversation.Conversation) string {
	if conv.Fields.Name != "" {
		return conv.Fields.Name
	}
	if conv.DisplayName != "" {
		return conv.DisplayName
	}
	return conv.ContactKey
}
