package conversation

const (
	scoreName        = 20
	scoreRole        = 15
	scoreEmail       = 15
	scorePerReply    = 2
	scoreReplyCap    = 20
	scoreStageCap    = 15
	scoreAppointment = 15
)

var stageScore = map[Stage]int{
	StageInitial:        0,
	StageCollectName:    1,
	StageCollectRole:    3,
	StageCollectEmail:   6,
	StageOfferSlots:     9,
	StageConfirmBooking: 12,
	StageCompleted:      15,
	StageAbandoned:      0,
}

// Score recomputes the lead score from the conversation's current state. It is
// a pure function of the record, so replays and recoveries converge on the
// same value.
func Score(c *Conversation) int {
	if c == nil {
		return 0
	}

	total := 0
	if c.Fields.Name != "" {
		total += scoreName
	}
	if c.Fields.Role != "" {
		total += scoreRole
	}
	if c.Fields.Email != "" {
		total += scoreEmail
	}

	// The opening message carries no signal; only replies after it count.
	replies := c.InboundCount() - 1
	if replies > 0 {
		engagement := replies * scorePerReply
		if engagement > scoreReplyCap {
			engagement = scoreReplyCap
		}
		total += engagement
	}

	stage := stageScore[c.Stage]
	if stage > scoreStageCap {
		stage = scoreStageCap
	}
	total += stage

	if c.Appointment.Scheduled {
		total += scoreAppointment
	}

	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	return total
}
