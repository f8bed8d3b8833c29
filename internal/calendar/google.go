// Package calendar wraps the Google Calendar API behind the operations the
// booking flow needs: busy-interval lookup, event creation, event deletion.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/waveleads/lead-agent-platform/internal/slots"
	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

// Event is the booked calendar entry returned to the coordinator.
type Event struct {
	EventID     string
	MeetingLink string
}

// CreateEventInput carries the chosen window plus contact metadata.
type CreateEventInput struct {
	Start         time.Time
	End           time.Time
	Summary       string
	Description   string
	AttendeeName  string
	AttendeeEmail string
}

// Client talks to a single Google calendar.
type Client struct {
	svc        *gcal.Service
	calendarID string
	logger     *logging.Logger
}

var _ slots.BusyLister = (*Client)(nil)

// NewClient builds a calendar client. Credentials come through the standard
// Google option chain (API key, service-account JSON, ADC).
func NewClient(ctx context.Context, calendarID string, logger *logging.Logger, opts ...option.ClientOption) (*Client, error) {
	if calendarID == "" {
		return nil, errors.New("calendar: calendar id is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to create service: %w", err)
	}
	return &Client{svc: svc, calendarID: calendarID, logger: logger}, nil
}

// ListBusy queries the free/busy state of the calendar for [from, to).
func (c *Client) ListBusy(ctx context.Context, from, to time.Time) ([]slots.BusyInterval, error) {
	resp, err := c.svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: c.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: freebusy query failed: %w", err)
	}

	entry, ok := resp.Calendars[c.calendarID]
	if !ok {
		return nil, nil
	}

	busy := make([]slots.BusyInterval, 0, len(entry.Busy))
	for _, period := range entry.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			c.logger.Warn("calendar returned unparseable busy start", "value", period.Start)
			continue
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			c.logger.Warn("calendar returned unparseable busy end", "value", period.End)
			continue
		}
		busy = append(busy, slots.BusyInterval{Start: start, End: end})
	}
	return busy, nil
}

// CreateEvent inserts the meeting with a Meet conference attached.
func (c *Client) CreateEvent(ctx context.Context, input CreateEventInput) (*Event, error) {
	if input.Start.IsZero() || !input.End.After(input.Start) {
		return nil, errors.New("calendar: invalid event window")
	}

	event := &gcal.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Start:       &gcal.EventDateTime{DateTime: input.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: input.End.Format(time.RFC3339)},
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             uuid.NewString(),
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}
	if input.AttendeeEmail != "" {
		event.Attendees = []*gcal.EventAttendee{{
			Email:       input.AttendeeEmail,
			DisplayName: input.AttendeeName,
		}}
	}

	created, err := c.svc.Events.Insert(c.calendarID, event).
		ConferenceDataVersion(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: event insert failed: %w", err)
	}

	link := created.HangoutLink
	if link == "" {
		link = created.HtmlLink
	}
	return &Event{EventID: created.Id, MeetingLink: link}, nil
}

// DeleteEvent removes a previously created event.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("calendar: event id is required")
	}
	if err := c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: event delete failed: %w", err)
	}
	return nil
}
