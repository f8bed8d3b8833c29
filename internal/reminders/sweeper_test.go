package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveleads/lead-agent-platform/internal/conversation"
)

type fakeStore struct {
	upcoming []conversation.Conversation
	listErr  error
	saveErr  error
	saved    []conversation.Conversation
}

func (f *fakeStore) ListConfirmedBetween(_ context.Context, _, _ time.Time) ([]conversation.Conversation, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.upcoming, nil
}

func (f *fakeStore) Save(_ context.Context, c *conversation.Conversation) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, *c)
	return nil
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) SendText(_ context.Context, contactKey, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, contactKey+": "+text)
	return nil
}

func bookedConversation(contactKey string, at time.Time) conversation.Conversation {
	c := conversation.NewConversation(contactKey, "", at.Add(-48*time.Hour))
	c.Stage = conversation.StageCompleted
	c.Appointment = conversation.Appointment{
		Scheduled:   true,
		EventID:     "evt-" + contactKey,
		MeetingLink: "https://meet.example.com/" + contactKey,
		ScheduledAt: at,
		Status:      conversation.AppointmentConfirmed,
	}
	return *c
}

func TestSweepSendsDayBefore(t *testing.T) {
	now := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)
	store := &fakeStore{upcoming: []conversation.Conversation{
		bookedConversation("5511999990000", now.Add(20*time.Hour)),
	}}
	sender := &fakeSender{}

	sweeper := NewSweeper(store, sender, time.Minute, nil, nil).WithClock(func() time.Time { return now })
	require.NoError(t, sweeper.Sweep(context.Background()))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "5511999990000")
	assert.Contains(t, sender.sent[0], "tomorrow")
	assert.Contains(t, sender.sent[0], "https://meet.example.com/5511999990000")

	require.Len(t, store.saved, 1)
	assert.True(t, store.saved[0].Appointment.Reminders.DayBefore)
	assert.False(t, store.saved[0].Appointment.Reminders.HourBefore)
}

func TestSweepHourBeforeSetsBothFlags(t *testing.T) {
	now := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)
	store := &fakeStore{upcoming: []conversation.Conversation{
		bookedConversation("5511999990000", now.Add(40*time.Minute)),
	}}
	sender := &fakeSender{}

	sweeper := NewSweeper(store, sender, time.Minute, nil, nil).WithClock(func() time.Time { return now })
	require.NoError(t, sweeper.Sweep(context.Background()))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "in about an hour")

	require.Len(t, store.saved, 1)
	assert.True(t, store.saved[0].Appointment.Reminders.HourBefore)
	assert.True(t, store.saved[0].Appointment.Reminders.DayBefore)
}

func TestSweepSameDayBookingGetsNoDayBefore(t *testing.T) {
	// Booked this morning for 5 PM today: "your meeting is tomorrow" would
	// be wrong, and the hour-before pass covers it closer to the start.
	now := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{upcoming: []conversation.Conversation{
		bookedConversation("5511999990000", now.Add(8*time.Hour)),
	}}
	sender := &fakeSender{}

	sweeper := NewSweeper(store, sender, time.Minute, nil, nil).WithClock(func() time.Time { return now })
	require.NoError(t, sweeper.Sweep(context.Background()))

	assert.Empty(t, sender.sent)
	assert.Empty(t, store.saved)
}

func TestSweepDayBeforeUsesConfiguredTimezone(t *testing.T) {
	sp, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	// 22:00 on Mar 9 in São Paulo. The 02:30 UTC meeting is still the same
	// local day; the 18:00 UTC one falls on the next local day.
	now := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	sameLocalDay := bookedConversation("a", time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC))
	nextLocalDay := bookedConversation("b", time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC))

	store := &fakeStore{upcoming: []conversation.Conversation{sameLocalDay, nextLocalDay}}
	sender := &fakeSender{}

	sweeper := NewSweeper(store, sender, time.Minute, nil, nil).
		WithClock(func() time.Time { return now }).
		WithLocation(sp)
	require.NoError(t, sweeper.Sweep(context.Background()))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "b: ")
	assert.Contains(t, sender.sent[0], "tomorrow")
}

func TestSweepSkipsAlreadyReminded(t *testing.T) {
	now := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)

	dayDone := bookedConversation("a", now.Add(20*time.Hour))
	dayDone.Appointment.Reminders.DayBefore = true

	hourDone := bookedConversation("b", now.Add(30*time.Minute))
	hourDone.Appointment.Reminders = conversation.ReminderFlags{DayBefore: true, HourBefore: true}

	store := &fakeStore{upcoming: []conversation.Conversation{dayDone, hourDone}}
	sender := &fakeSender{}

	sweeper := NewSweeper(store, sender, time.Minute, nil, nil).WithClock(func() time.Time { return now })
	require.NoError(t, sweeper.Sweep(context.Background()))

	assert.Empty(t, sender.sent)
	assert.Empty(t, store.saved)
}

func TestSweepSendFailureLeavesFlagUnset(t *testing.T) {
	now := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)
	store := &fakeStore{upcoming: []conversation.Conversation{
		bookedConversation("a", now.Add(20*time.Hour)),
	}}
	sender := &fakeSender{err: errors.New("channel down")}

	sweeper := NewSweeper(store, sender, time.Minute, nil, nil).WithClock(func() time.Time { return now })
	require.NoError(t, sweeper.Sweep(context.Background()))

	assert.Empty(t, store.saved)
}

func TestSweepToleratesVersionConflict(t *testing.T) {
	now := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)
	store := &fakeStore{
		upcoming: []conversation.Conversation{bookedConversation("a", now.Add(20*time.Hour))},
		saveErr:  conversation.ErrVersionConflict,
	}
	sender := &fakeSender{}

	sweeper := NewSweeper(store, sender, time.Minute, nil, nil).WithClock(func() time.Time { return now })
	require.NoError(t, sweeper.Sweep(context.Background()))
	require.Len(t, sender.sent, 1)
}

func TestSweepListError(t *testing.T) {
	store := &fakeStore{listErr: errors.New("table offline")}
	sweeper := NewSweeper(store, &fakeSender{}, time.Minute, nil, nil)
	assert.Error(t, sweeper.Sweep(context.Background()))
}
