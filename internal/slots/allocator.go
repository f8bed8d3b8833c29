// Package slots computes candidate meeting windows inside business hours and
// filters them against the calendar's busy intervals.
package slots

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

// MaxOffered caps how many candidate slots are put in front of a prospect.
const MaxOffered = 6

// Slot is a candidate meeting window.
type Slot struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Display string    `json:"display"`
}

// BusyInterval is an occupied window on the calendar.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// BusyLister is the calendar read side consumed by the allocator.
type BusyLister interface {
	ListBusy(ctx context.Context, from, to time.Time) ([]BusyInterval, error)
}

// Config controls window generation.
type Config struct {
	BusinessStartHour int
	BusinessEndHour   int
	Duration          time.Duration
	Buffer            time.Duration
	HorizonDays       int
	Location          *time.Location
}

func (c Config) withDefaults() Config {
	if c.BusinessStartHour <= 0 {
		c.BusinessStartHour = 9
	}
	if c.BusinessEndHour <= c.BusinessStartHour {
		c.BusinessEndHour = 18
	}
	if c.Duration <= 0 {
		c.Duration = 30 * time.Minute
	}
	if c.Buffer < 0 {
		c.Buffer = 0
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 7
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// Allocator generates candidate slots against a busy-interval source.
type Allocator struct {
	cfg      Config
	calendar BusyLister
	logger   *logging.Logger
}

// NewAllocator creates a slot allocator.
func NewAllocator(cfg Config, calendar BusyLister, logger *logging.Logger) *Allocator {
	if calendar == nil {
		panic("slots: busy lister cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Allocator{cfg: cfg.withDefaults(), calendar: calendar, logger: logger}
}

// Generate enumerates the next candidate windows: weekdays only, inside
// business hours, stepped by duration+buffer, strictly in the future, and not
// overlapping any busy interval. The result is chronological and holds at
// most MaxOffered entries.
//
// The same inputs produce the same list, which is what lets a later numeric
// reply be resolved against a regenerated copy of the offer.
func (a *Allocator) Generate(ctx context.Context, now time.Time) ([]Slot, error) {
	cfg := a.cfg
	now = now.In(cfg.Location)

	horizonEnd := startOfDay(now, cfg.Location).AddDate(0, 0, cfg.HorizonDays+1)
	busy, err := a.calendar.ListBusy(ctx, now, horizonEnd)
	if err != nil {
		return nil, fmt.Errorf("slots: failed to list busy intervals: %w", err)
	}

	step := cfg.Duration + cfg.Buffer
	var result []Slot

	for dayOffset := 0; dayOffset <= cfg.HorizonDays && len(result) < MaxOffered; dayOffset++ {
		day := startOfDay(now, cfg.Location).AddDate(0, 0, dayOffset)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		open := day.Add(time.Duration(cfg.BusinessStartHour) * time.Hour)
		close := day.Add(time.Duration(cfg.BusinessEndHour) * time.Hour)

		for start := open; !start.Add(cfg.Duration).After(close) && len(result) < MaxOffered; start = start.Add(step) {
			end := start.Add(cfg.Duration)
			if !start.After(now) {
				continue
			}
			if overlapsAny(start, end, busy) {
				continue
			}
			result = append(result, Slot{
				Start:   start,
				End:     end,
				Display: formatSlot(start),
			})
		}
	}

	return result, nil
}

// ParseSelection interprets a reply consisting of a bare positive integer as
// a 1-based index into the offered list. Anything else is not a selection.
func ParseSelection(text string) (int, bool) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "."))
	n, err := strconv.Atoi(trimmed)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// FormatOffer renders the numbered slot list appended to an outbound reply.
func FormatOffer(offered []Slot) string {
	var sb strings.Builder
	sb.WriteString("Here are the next available times:\n")
	for i, slot := range offered {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, slot.Display)
	}
	sb.WriteString("Reply with the number of the time that works for you.")
	return sb.String()
}

func overlapsAny(start, end time.Time, busy []BusyInterval) bool {
	for _, b := range busy {
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func formatSlot(start time.Time) string {
	return start.Format("Monday, Jan 2 at 3:04 PM")
}
