package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/waveleads/lead-agent-platform/internal/conversation"
)

func convAt(started time.Time, stage conversation.Stage, score int) conversation.Conversation {
	c := conversation.NewConversation("551199999"+string(stage[0]), "", started)
	c.Stage = stage
	c.LeadScore = score
	return *c
}

func TestComputeEmptyDay(t *testing.T) {
	r := Compute(time.Date(2026, 3, 9, 10, 30, 0, 0, time.UTC), nil)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), r.Day)
	assert.Zero(t, r.ConversationsStarted)
	assert.Zero(t, r.AvgLeadScore)
}

func TestComputeCountsByDayWindow(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	startedToday := convAt(day.Add(9*time.Hour), conversation.StageCollectRole, 30)
	startedYesterday := convAt(day.Add(-5*time.Hour), conversation.StageCompleted, 90)
	abandoned := convAt(day.Add(11*time.Hour), conversation.StageAbandoned, 10)

	r := Compute(day, []conversation.Conversation{startedToday, startedYesterday, abandoned})

	assert.Equal(t, 2, r.ConversationsStarted)
	assert.Equal(t, map[string]int{
		"COLLECT_ROLE": 1, "COMPLETED": 1, "ABANDONED": 1,
	}, r.StageCounts)
	assert.Equal(t, 1, r.ConversationsCompleted)
	assert.Equal(t, 1, r.ConversationsAbandoned)
	assert.InDelta(t, (30.0+90.0+10.0)/3.0, r.AvgLeadScore, 1e-9)
}

func TestComputeMessageCountsRespectDayBounds(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	c := convAt(day.Add(-20*time.Hour), conversation.StageCollectEmail, 40)
	c.AppendInbound("yesterday", day.Add(-2*time.Hour), nil)
	c.AppendInbound("today", day.Add(10*time.Hour), nil)
	c.AppendOutbound("today reply", day.Add(10*time.Hour+time.Minute))
	c.AppendInbound("tomorrow", day.Add(25*time.Hour), nil)

	r := Compute(day, []conversation.Conversation{c})

	assert.Equal(t, 1, r.MessagesIn)
	assert.Equal(t, 1, r.MessagesOut)
	assert.Zero(t, r.ConversationsStarted)
}

func TestComputeBookingsConfirmed(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	booked := convAt(day.Add(time.Hour), conversation.StageCompleted, 90)
	booked.Appointment = conversation.Appointment{
		Scheduled:   true,
		ScheduledAt: day.Add(48 * time.Hour),
		Status:      conversation.AppointmentConfirmed,
	}

	cancelled := convAt(day.Add(2*time.Hour), conversation.StageCompleted, 75)
	cancelled.Appointment = conversation.Appointment{
		Scheduled:   true,
		ScheduledAt: day.Add(48 * time.Hour),
		Status:      conversation.AppointmentCancelled,
	}

	booked.Forwarding.Sent = true

	r := Compute(day, []conversation.Conversation{booked, cancelled})
	assert.Equal(t, 1, r.BookingsConfirmed)
	assert.Equal(t, 1, r.LeadsForwarded)
}

func TestComputeIsDeterministic(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	convs := []conversation.Conversation{
		convAt(day.Add(time.Hour), conversation.StageCollectName, 5),
		convAt(day.Add(2*time.Hour), conversation.StageCompleted, 90),
	}
	assert.Equal(t, Compute(day, convs), Compute(day, convs))
}
