package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Stage identifies a contact's position in the qualification funnel. Stages
// form a strict forward chain; the engine never advances more than one step
// per inbound message.
type Stage string

const (
	StageInitial        Stage = "INITIAL"
	StageCollectName    Stage = "COLLECT_NAME"
	StageCollectRole    Stage = "COLLECT_ROLE"
	StageCollectEmail   Stage = "COLLECT_EMAIL"
	StageOfferSlots     Stage = "OFFER_SLOTS"
	StageConfirmBooking Stage = "CONFIRM_BOOKING"
	StageCompleted      Stage = "COMPLETED"

	// StageAbandoned is only reached by the idle sweep, never by a turn.
	StageAbandoned Stage = "ABANDONED"
)

var stageOrder = []Stage{
	StageInitial,
	StageCollectName,
	StageCollectRole,
	StageCollectEmail,
	StageOfferSlots,
	StageConfirmBooking,
	StageCompleted,
}

func stageIndex(s Stage) int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known stage, including ABANDONED.
func (s Stage) Valid() bool {
	return s == StageAbandoned || stageIndex(s) >= 0
}

// Terminal reports whether the funnel ends here.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageAbandoned
}

// Next returns the immediate successor stage, when one exists.
func (s Stage) Next() (Stage, bool) {
	idx := stageIndex(s)
	if idx < 0 || idx == len(stageOrder)-1 {
		return s, false
	}
	return stageOrder[idx+1], true
}

// Direction marks who authored a logged message.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Annotation records what the oracle made of an inbound message.
type Annotation struct {
	Intent     Intent  `dynamodbav:"intent" json:"intent"`
	Confidence float64 `dynamodbav:"confidence" json:"confidence"`
}

// Message is one entry in the conversation log.
type Message struct {
	Direction  Direction   `dynamodbav:"direction" json:"direction"`
	Text       string      `dynamodbav:"text" json:"text"`
	Timestamp  time.Time   `dynamodbav:"timestamp" json:"timestamp"`
	Annotation *Annotation `dynamodbav:"annotation,omitempty" json:"annotation,omitempty"`
}

// AppointmentStatus is the lifecycle of a booked meeting.
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "PENDING"
	AppointmentConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
)

// ReminderFlags record which reminders have already gone out. Flags only ever
// flip false to true, so a crashed sweep can at worst skip, never double-send
// after the flag is persisted.
type ReminderFlags struct {
	DayBefore  bool `dynamodbav:"dayBefore" json:"dayBefore"`
	HourBefore bool `dynamodbav:"hourBefore" json:"hourBefore"`
}

// Appointment holds the booked meeting, if any.
type Appointment struct {
	Scheduled   bool              `dynamodbav:"scheduled" json:"scheduled"`
	EventID     string            `dynamodbav:"eventId,omitempty" json:"eventId,omitempty"`
	MeetingLink string            `dynamodbav:"meetingLink,omitempty" json:"meetingLink,omitempty"`
	ScheduledAt time.Time         `dynamodbav:"scheduledAt,omitempty" json:"scheduledAt,omitempty"`
	Status      AppointmentStatus `dynamodbav:"status,omitempty" json:"status,omitempty"`
	Reminders   ReminderFlags     `dynamodbav:"reminders" json:"reminders"`
}

// Fields are the qualification answers collected from the contact.
type Fields struct {
	Name  string `dynamodbav:"name,omitempty" json:"name,omitempty"`
	Role  string `dynamodbav:"role,omitempty" json:"role,omitempty"`
	Email string `dynamodbav:"email,omitempty" json:"email,omitempty"`
}

// Forwarding tracks delivery of the conversation to the automation webhook.
type Forwarding struct {
	Sent       bool      `dynamodbav:"sent" json:"sent"`
	LastSentAt time.Time `dynamodbav:"lastSentAt,omitempty" json:"lastSentAt,omitempty"`
}

// Conversation is the aggregate persisted per contact dialogue. Version backs
// optimistic concurrency in the store.
type Conversation struct {
	ID           string      `dynamodbav:"id" json:"id"`
	ContactKey   string      `dynamodbav:"contactKey" json:"contactKey"`
	DisplayName  string      `dynamodbav:"displayName,omitempty" json:"displayName,omitempty"`
	Stage        Stage       `dynamodbav:"stage" json:"stage"`
	Fields       Fields      `dynamodbav:"fields" json:"fields"`
	LeadScore    int         `dynamodbav:"leadScore" json:"leadScore"`
	Appointment  Appointment `dynamodbav:"appointment" json:"appointment"`
	Messages     []Message   `dynamodbav:"messages" json:"messages"`
	Active       bool        `dynamodbav:"active" json:"active"`
	StartedAt    time.Time   `dynamodbav:"startedAt" json:"startedAt"`
	LastActivity time.Time   `dynamodbav:"lastActivity" json:"lastActivity"`
	Forwarding   Forwarding  `dynamodbav:"forwarding" json:"forwarding"`
	Version      int64       `dynamodbav:"version" json:"version"`
}

// NewConversation starts a fresh dialogue for a contact.
func NewConversation(contactKey, displayName string, now time.Time) *Conversation {
	now = now.UTC()
	return &Conversation{
		ID:           uuid.NewString(),
		ContactKey:   contactKey,
		DisplayName:  displayName,
		Stage:        StageInitial,
		Active:       true,
		StartedAt:    now,
		LastActivity: now,
	}
}

// AppendInbound logs a contact message and refreshes the activity clock.
func (c *Conversation) AppendInbound(text string, at time.Time, annotation *Annotation) {
	at = at.UTC()
	c.Messages = append(c.Messages, Message{
		Direction:  DirectionIn,
		Text:       text,
		Timestamp:  at,
		Annotation: annotation,
	})
	if at.After(c.LastActivity) {
		c.LastActivity = at
	}
}

// AppendOutbound logs an agent reply and refreshes the activity clock.
func (c *Conversation) AppendOutbound(text string, at time.Time) {
	at = at.UTC()
	c.Messages = append(c.Messages, Message{
		Direction: DirectionOut,
		Text:      text,
		Timestamp: at,
	})
	if at.After(c.LastActivity) {
		c.LastActivity = at
	}
}

// InboundCount returns how many contact messages are logged.
func (c *Conversation) InboundCount() int {
	n := 0
	for _, m := range c.Messages {
		if m.Direction == DirectionIn {
			n++
		}
	}
	return n
}
