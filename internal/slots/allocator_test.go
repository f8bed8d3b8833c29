package slots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCalendar struct {
	busy []BusyInterval
	err  error

	from, to time.Time
}

func (s *stubCalendar) ListBusy(_ context.Context, from, to time.Time) ([]BusyInterval, error) {
	s.from, s.to = from, to
	return s.busy, s.err
}

func testConfig() Config {
	return Config{
		BusinessStartHour: 9,
		BusinessEndHour:   18,
		Duration:          30 * time.Minute,
		Buffer:            15 * time.Minute,
		HorizonDays:       7,
		Location:          time.UTC,
	}
}

// Monday, March 9 2026.
var monday = time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

func TestGenerateCapsAndChronology(t *testing.T) {
	alloc := NewAllocator(testConfig(), &stubCalendar{}, nil)

	offered, err := alloc.Generate(context.Background(), monday)
	require.NoError(t, err)
	require.Len(t, offered, MaxOffered)

	for i := 0; i < len(offered)-1; i++ {
		assert.True(t, offered[i].Start.Before(offered[i+1].Start))
	}

	// First window opens at 09:00, stepped by duration+buffer.
	assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), offered[0].Start)
	assert.Equal(t, time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC), offered[0].End)
	assert.Equal(t, time.Date(2026, 3, 9, 9, 45, 0, 0, time.UTC), offered[1].Start)
	assert.Equal(t, "Monday, Mar 9 at 9:00 AM", offered[0].Display)
}

func TestGenerateStrictlyFuture(t *testing.T) {
	alloc := NewAllocator(testConfig(), &stubCalendar{}, nil)

	// 10:30 on Monday: the 9:00, 9:45 and 10:30 starts are gone.
	offered, err := alloc.Generate(context.Background(), monday.Add(2*time.Hour+30*time.Minute))
	require.NoError(t, err)
	require.NotEmpty(t, offered)
	assert.Equal(t, time.Date(2026, 3, 9, 11, 15, 0, 0, time.UTC), offered[0].Start)
}

func TestGenerateSkipsWeekends(t *testing.T) {
	// Friday 17:00: only one slot left on Friday, the rest jump to Monday.
	friday := time.Date(2026, 3, 13, 17, 0, 0, 0, time.UTC)
	alloc := NewAllocator(testConfig(), &stubCalendar{}, nil)

	offered, err := alloc.Generate(context.Background(), friday)
	require.NoError(t, err)
	require.NotEmpty(t, offered)

	for _, slot := range offered {
		wd := slot.Start.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
	}
	assert.Equal(t, time.Date(2026, 3, 13, 17, 15, 0, 0, time.UTC), offered[0].Start)
	assert.Equal(t, time.Monday, offered[1].Start.Weekday())
}

func TestGenerateFiltersBusyOverlaps(t *testing.T) {
	busy := []BusyInterval{
		// Covers the 9:00-9:30 window.
		{Start: time.Date(2026, 3, 9, 9, 15, 0, 0, time.UTC), End: time.Date(2026, 3, 9, 9, 20, 0, 0, time.UTC)},
		// Touching boundaries are not overlaps.
		{Start: time.Date(2026, 3, 9, 10, 15, 0, 0, time.UTC), End: time.Date(2026, 3, 9, 10, 30, 0, 0, time.UTC)},
	}
	alloc := NewAllocator(testConfig(), &stubCalendar{busy: busy}, nil)

	offered, err := alloc.Generate(context.Background(), monday)
	require.NoError(t, err)
	require.NotEmpty(t, offered)
	assert.Equal(t, time.Date(2026, 3, 9, 9, 45, 0, 0, time.UTC), offered[0].Start)
	assert.Equal(t, time.Date(2026, 3, 9, 10, 30, 0, 0, time.UTC), offered[1].Start)
}

func TestGenerateDeterministic(t *testing.T) {
	alloc := NewAllocator(testConfig(), &stubCalendar{}, nil)

	a, err := alloc.Generate(context.Background(), monday)
	require.NoError(t, err)
	b, err := alloc.Generate(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateCalendarError(t *testing.T) {
	alloc := NewAllocator(testConfig(), &stubCalendar{err: errors.New("quota exceeded")}, nil)
	_, err := alloc.Generate(context.Background(), monday)
	assert.Error(t, err)
}

func TestGenerateQueriesWholeHorizon(t *testing.T) {
	cal := &stubCalendar{}
	alloc := NewAllocator(testConfig(), cal, nil)

	_, err := alloc.Generate(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, monday, cal.from)
	assert.Equal(t, time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC), cal.to)
}

func TestParseSelection(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		ok   bool
	}{
		{"2", 2, true},
		{" 3 ", 3, true},
		{"1.", 1, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"the second one", 0, false},
		{"2pm", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		n, ok := ParseSelection(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.n, n, "input %q", tc.in)
	}
}

func TestFormatOffer(t *testing.T) {
	offered := []Slot{
		{Display: "Monday, Mar 9 at 9:00 AM"},
		{Display: "Monday, Mar 9 at 9:45 AM"},
	}
	text := FormatOffer(offered)
	assert.Contains(t, text, "1. Monday, Mar 9 at 9:00 AM")
	assert.Contains(t, text, "2. Monday, Mar 9 at 9:45 AM")
	assert.Contains(t, text, "Reply with the number")
}
