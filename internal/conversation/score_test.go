package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScoreNewConversation(t *testing.T) {
	c := NewConversation("5511999990000", "", time.Now())
	assert.Equal(t, 0, Score(c))
}

func TestScoreFirstGreeting(t *testing.T) {
	// A bare "Olá" that moved the funnel to name collection scores only the
	// stage point: the opening message itself earns nothing.
	c := NewConversation("5511999990000", "", time.Now())
	c.AppendInbound("Olá", time.Now(), nil)
	c.Stage = StageCollectName

	assert.Equal(t, 1, Score(c))
}

func TestScoreRepliesAfterOpening(t *testing.T) {
	c := NewConversation("5511999990000", "", time.Now())
	for i := 0; i < 4; i++ {
		c.AppendInbound("msg", time.Now(), nil)
	}
	c.Stage = StageCollectRole

	// 3 replies * 2 + stage 3.
	assert.Equal(t, 9, Score(c))
}

func TestScoreReplyEngagementCap(t *testing.T) {
	c := NewConversation("5511999990000", "", time.Now())
	for i := 0; i < 30; i++ {
		c.AppendInbound("msg", time.Now(), nil)
	}

	assert.Equal(t, 20, Score(c))
}

func TestScoreFieldContributions(t *testing.T) {
	c := NewConversation("5511999990000", "", time.Now())
	c.Fields.Name = "Maria"
	assert.Equal(t, 20, Score(c))

	c.Fields.Role = "CTO"
	assert.Equal(t, 35, Score(c))

	c.Fields.Email = "maria@example.com"
	assert.Equal(t, 50, Score(c))
}

func TestScoreScheduledAppointment(t *testing.T) {
	c := NewConversation("5511999990000", "", time.Now())
	c.Appointment.Scheduled = true
	assert.Equal(t, 15, Score(c))
}

func TestScoreFullFunnel(t *testing.T) {
	c := NewConversation("5511999990000", "Maria", time.Now())
	c.Fields = Fields{Name: "Maria", Role: "CTO", Email: "maria@example.com"}
	c.Stage = StageCompleted
	c.Appointment.Scheduled = true
	for i := 0; i < 6; i++ {
		c.AppendInbound("msg", time.Now(), nil)
	}

	// 50 fields + 10 replies + 15 stage + 15 appointment = 90.
	assert.Equal(t, 90, Score(c))
}

func TestScoreClampedToHundred(t *testing.T) {
	c := NewConversation("5511999990000", "", time.Now())
	c.Fields = Fields{Name: "Maria", Role: "CTO", Email: "maria@example.com"}
	c.Stage = StageCompleted
	c.Appointment.Scheduled = true
	for i := 0; i < 40; i++ {
		c.AppendInbound("msg", time.Now(), nil)
	}

	// 50 + 20 + 15 + 15 = 100 exactly; nothing may push past it.
	assert.Equal(t, 100, Score(c))
}

func TestScoreAbandonedKeepsEarnedPoints(t *testing.T) {
	c := NewConversation("5511999990000", "", time.Now())
	c.Fields.Name = "Maria"
	c.AppendInbound("Olá", time.Now(), nil)
	c.AppendInbound("Maria", time.Now(), nil)
	c.Stage = StageAbandoned

	// Fields and engagement survive; the stage contributes nothing.
	assert.Equal(t, 22, Score(c))
}

func TestScoreNil(t *testing.T) {
	assert.Equal(t, 0, Score(nil))
}
