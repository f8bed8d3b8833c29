package forwarder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveleads/lead-agent-platform/internal/conversation"
	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

func qualifiedConversation() *conversation.Conversation {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	c := conversation.NewConversation("5511999990000", "Maria", now)
	c.Fields.Name = "Maria Souza"
	c.Fields.Role = "Head of Growth"
	c.Fields.Email = "maria@acme.com"
	c.Stage = conversation.StageCompleted
	c.LeadScore = 90
	c.AppendInbound("oi", now, nil)
	c.AppendOutbound("Qual seu nome?", now.Add(time.Second))
	return c
}

func TestForwardPostsPayload(t *testing.T) {
	var got Payload
	var gotContentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	conv := qualifiedConversation()
	f := New(srv.URL, time.Second, logging.Default())
	require.NoError(t, f.Forward(context.Background(), conv))

	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, SchemaVersion, got.Schema)
	assert.Equal(t, conv.ID, got.ConversationID)
	assert.Equal(t, "5511999990000", got.ContactKey)
	assert.Equal(t, "Maria Souza", got.Name)
	assert.Equal(t, 90, got.LeadScore)
	assert.Equal(t, "COMPLETED", got.Stage)
	assert.Equal(t, 2, got.MessageCount)
	assert.Nil(t, got.Appointment)
}

func TestForwardIncludesAppointment(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	when := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	conv := qualifiedConversation()
	conv.Appointment = conversation.Appointment{
		Scheduled:   true,
		EventID:     "evt-42",
		MeetingLink: "https://meet.example.com/abc",
		ScheduledAt: when,
		Status:      conversation.AppointmentConfirmed,
	}

	f := New(srv.URL, time.Second, nil)
	require.NoError(t, f.Forward(context.Background(), conv))

	require.NotNil(t, got.Appointment)
	assert.Equal(t, "evt-42", got.Appointment.EventID)
	assert.Equal(t, "https://meet.example.com/abc", got.Appointment.MeetingLink)
	assert.True(t, when.Equal(got.Appointment.ScheduledAt))
	assert.Equal(t, "CONFIRMED", got.Appointment.Status)
}

func TestForwardRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := New(srv.URL, time.Second, nil)
	err := f.Forward(context.Background(), qualifiedConversation())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestForwardWithoutURL(t *testing.T) {
	f := New("", time.Second, nil)
	assert.Error(t, f.Forward(context.Background(), qualifiedConversation()))
}
