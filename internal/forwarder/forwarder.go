// Package forwarder delivers qualified leads to the downstream automation
// webhook.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/waveleads/lead-agent-platform/internal/conversation"
	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

// SchemaVersion tags the payload shape so downstream consumers can evolve
// independently.
const SchemaVersion = "lead.v1"

// Payload is the normalized lead pushed to the automation webhook.
type Payload struct {
	Schema         string              `json:"schema"`
	ConversationID string              `json:"conversation_id"`
	ContactKey     string              `json:"contact_key"`
	Name           string              `json:"name,omitempty"`
	Role           string              `json:"role,omitempty"`
	Email          string              `json:"email,omitempty"`
	LeadScore      int                 `json:"lead_score"`
	Stage          string              `json:"stage"`
	Appointment    *PayloadAppointment `json:"appointment,omitempty"`
	MessageCount   int                 `json:"message_count"`
	StartedAt      time.Time           `json:"started_at"`
	LastActivity   time.Time           `json:"last_activity"`
}

// PayloadAppointment carries the booked meeting, when one exists.
type PayloadAppointment struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	MeetingLink string    `json:"meeting_link,omitempty"`
	EventID     string    `json:"event_id,omitempty"`
	Status      string    `json:"status"`
}

// Forwarder POSTs lead payloads to a configured webhook URL.
type Forwarder struct {
	url        string
	httpClient *http.Client
	logger     *logging.Logger
}

// New creates a forwarder. An empty URL yields a disabled forwarder whose
// Forward is an error: callers should skip wiring it instead.
func New(url string, timeout time.Duration, logger *logging.Logger) *Forwarder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Forwarder{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SetHTTPClient overrides the HTTP client (tests).
func (f *Forwarder) SetHTTPClient(client *http.Client) {
	if client != nil {
		f.httpClient = client
	}
}

// Forward pushes the conversation's lead payload to the webhook.
func (f *Forwarder) Forward(ctx context.Context, c *conversation.Conversation) error {
	if f.url == "" {
		return fmt.Errorf("forwarder: no webhook URL configured")
	}

	body, err := json.Marshal(BuildPayload(c))
	if err != nil {
		return fmt.Errorf("forwarder: failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("forwarder: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("forwarder: webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("forwarder: webhook returned status %d", resp.StatusCode)
	}

	f.logger.Info("lead forwarded", "conversation_id", c.ID, "lead_score", c.LeadScore)
	return nil
}

// BuildPayload normalizes a conversation into the webhook payload.
func BuildPayload(c *conversation.Conversation) Payload {
	p := Payload{
		Schema:         SchemaVersion,
		ConversationID: c.ID,
		ContactKey:     c.ContactKey,
		Name:           c.Fields.Name,
		Role:           c.Fields.Role,
		Email:          c.Fields.Email,
		LeadScore:      c.LeadScore,
		Stage:          string(c.Stage),
		MessageCount:   len(c.Messages),
		StartedAt:      c.StartedAt,
		LastActivity:   c.LastActivity,
	}
	if c.Appointment.Scheduled {
		p.Appointment = &PayloadAppointment{
			ScheduledAt: c.Appointment.ScheduledAt,
			MeetingLink: c.Appointment.MeetingLink,
			EventID:     c.Appointment.EventID,
			Status:      string(c.Appointment.Status),
		}
	}
	return p
}
