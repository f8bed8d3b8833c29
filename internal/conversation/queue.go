package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/waveleads/lead-agent-platform/internal/messaging"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type queuePayload struct {
	ID         string    `json:"id"`
	ContactKey string    `json:"contact_key"`
	Name       string    `json:"name,omitempty"`
	Text       string    `json:"text"`
	MessageID  string    `json:"message_id"`
	Timestamp  time.Time `json:"timestamp"`
}

func encodeInbound(msg messaging.Inbound) (string, error) {
	body, err := json.Marshal(queuePayload{
		ID:         uuid.NewString(),
		ContactKey: msg.ContactKey,
		Name:       msg.DisplayName,
		Text:       msg.Text,
		MessageID:  msg.MessageID,
		Timestamp:  msg.Timestamp,
	})
	if err != nil {
		return "", fmt.Errorf("conversation: failed to encode payload: %w", err)
	}
	return string(body), nil
}

func decodeInbound(body string) (messaging.Inbound, error) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return messaging.Inbound{}, fmt.Errorf("conversation: failed to decode payload: %w", err)
	}
	return messaging.Inbound{
		ContactKey:  payload.ContactKey,
		DisplayName: payload.Name,
		Text:        payload.Text,
		MessageID:   payload.MessageID,
		Timestamp:   payload.Timestamp,
	}, nil
}
