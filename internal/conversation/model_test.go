package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageChain(t *testing.T) {
	order := []Stage{
		StageInitial, StageCollectName, StageCollectRole, StageCollectEmail,
		StageOfferSlots, StageConfirmBooking, StageCompleted,
	}
	for i := 0; i < len(order)-1; i++ {
		next, ok := order[i].Next()
		require.True(t, ok, "stage %s should have a successor", order[i])
		assert.Equal(t, order[i+1], next)
	}

	_, ok := StageCompleted.Next()
	assert.False(t, ok)
	_, ok = StageAbandoned.Next()
	assert.False(t, ok)
}

func TestStageTerminal(t *testing.T) {
	assert.True(t, StageCompleted.Terminal())
	assert.True(t, StageAbandoned.Terminal())
	assert.False(t, StageOfferSlots.Terminal())
	assert.False(t, StageInitial.Terminal())
}

func TestStageValid(t *testing.T) {
	assert.True(t, StageCollectEmail.Valid())
	assert.True(t, StageAbandoned.Valid())
	assert.False(t, Stage("PENDING_REVIEW").Valid())
}

func TestNewConversation(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	c := NewConversation("5511999990000", "Maria", now)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "5511999990000", c.ContactKey)
	assert.Equal(t, "Maria", c.DisplayName)
	assert.Equal(t, StageInitial, c.Stage)
	assert.True(t, c.Active)
	assert.Equal(t, now, c.StartedAt)
	assert.Equal(t, now, c.LastActivity)
	assert.Empty(t, c.Messages)
	assert.False(t, c.Appointment.Scheduled)
}

func TestAppendTracksActivityAndCounts(t *testing.T) {
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	c := NewConversation("5511999990000", "", start)

	c.AppendInbound("hi", start.Add(time.Minute), &Annotation{Intent: IntentGreeting, Confidence: 0.9})
	c.AppendOutbound("hello!", start.Add(2*time.Minute))
	c.AppendInbound("Maria", start.Add(3*time.Minute), nil)

	assert.Equal(t, 2, c.InboundCount())
	assert.Len(t, c.Messages, 3)
	assert.Equal(t, start.Add(3*time.Minute), c.LastActivity)
	require.NotNil(t, c.Messages[0].Annotation)
	assert.Equal(t, IntentGreeting, c.Messages[0].Annotation.Intent)
	assert.Equal(t, DirectionOut, c.Messages[1].Direction)
}

func TestAppendNeverRewindsActivity(t *testing.T) {
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	c := NewConversation("5511999990000", "", start)

	// An out-of-order delivery must not move the clock backwards.
	c.AppendInbound("late", start.Add(-time.Hour), nil)
	assert.Equal(t, start, c.LastActivity)
}
