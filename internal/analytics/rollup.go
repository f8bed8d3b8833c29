// Package analytics aggregates conversation activity into daily rollups
// persisted to Postgres.
package analytics

import (
	"time"

	"github.com/waveleads/lead-agent-platform/internal/conversation"
)

// Rollup is one day's aggregate of funnel activity.
type Rollup struct {
	Day                    time.Time      `json:"day"`
	ConversationsStarted   int            `json:"conversationsStarted"`
	ConversationsCompleted int            `json:"conversationsCompleted"`
	ConversationsAbandoned int            `json:"conversationsAbandoned"`
	MessagesIn             int            `json:"messagesIn"`
	MessagesOut            int            `json:"messagesOut"`
	BookingsConfirmed      int            `json:"bookingsConfirmed"`
	LeadsForwarded         int            `json:"leadsForwarded"`
	AvgLeadScore           float64        `json:"avgLeadScore"`
	StageCounts            map[string]int `json:"stageCounts"`
}

// Compute recomputes the rollup for one UTC day from the conversations
// touched during it. It is a pure function of its inputs, so repeated runs
// over the same data converge on the same row.
func Compute(day time.Time, convs []conversation.Conversation) Rollup {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	r := Rollup{Day: dayStart, StageCounts: map[string]int{}}
	scoreTotal := 0

	for i := range convs {
		c := &convs[i]

		if !c.StartedAt.Before(dayStart) && c.StartedAt.Before(dayEnd) {
			r.ConversationsStarted++
		}
		r.StageCounts[string(c.Stage)]++
		if c.Stage == conversation.StageCompleted {
			r.ConversationsCompleted++
		}
		if c.Stage == conversation.StageAbandoned {
			r.ConversationsAbandoned++
		}
		if c.Appointment.Scheduled &&
			!c.Appointment.ScheduledAt.IsZero() &&
			c.Appointment.Status == conversation.AppointmentConfirmed {
			r.BookingsConfirmed++
		}
		if c.Forwarding.Sent {
			r.LeadsForwarded++
		}
		scoreTotal += c.LeadScore

		for _, m := range c.Messages {
			if m.Timestamp.Before(dayStart) || !m.Timestamp.Before(dayEnd) {
				continue
			}
			switch m.Direction {
			case conversation.DirectionIn:
				r.MessagesIn++
			case conversation.DirectionOut:
				r.MessagesOut++
			}
		}
	}

	if len(convs) > 0 {
		r.AvgLeadScore = float64(scoreTotal) / float64(len(convs))
	}
	return r
}
