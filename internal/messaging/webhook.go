package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/waveleads/lead-agent-platform/internal/observability/metrics"
	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

// Dispatcher accepts inbound work after the webhook has been acknowledged.
type Dispatcher interface {
	Enqueue(ctx context.Context, msg Inbound) error
}

// WebhookHandler handles channel verification and inbound message intake.
// The POST path acknowledges immediately and hands work to the dispatcher so
// a slow oracle or calendar call can never stall the channel into a retry
// storm.
type WebhookHandler struct {
	verifyToken string
	dispatcher  Dispatcher
	deduper     *Deduper
	metrics     *metrics.MessagingMetrics
	logger      *logging.Logger
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(verifyToken string, dispatcher Dispatcher, deduper *Deduper, m *metrics.MessagingMetrics, logger *logging.Logger) *WebhookHandler {
	if dispatcher == nil {
		panic("messaging: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		verifyToken: verifyToken,
		dispatcher:  dispatcher,
		deduper:     deduper,
		metrics:     m,
		logger:      logger,
	}
}

// HandleVerification answers the subscription challenge from the channel.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}

	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleInbound handles POST webhook events (incoming messages).
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveWebhookLatency("message", time.Since(start).Seconds()) }()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// Acknowledge before doing any work; the channel redelivers on timeouts.
	w.WriteHeader(http.StatusOK)

	for _, msg := range ParseWebhookEvent(event) {
		h.admit(r.Context(), msg)
	}
}

func (h *WebhookHandler) admit(ctx context.Context, msg Inbound) {
	if h.deduper != nil {
		seen, err := h.deduper.Seen(ctx, msg.MessageID)
		if err != nil {
			h.logger.Warn("dedupe check failed, admitting message", "error", err, "message_id", msg.MessageID)
		} else if seen {
			h.metrics.ObserveInbound("message", "duplicate")
			return
		}
	}

	if err := h.dispatcher.Enqueue(ctx, msg); err != nil {
		h.metrics.ObserveInbound("message", "enqueue_failed")
		h.logger.Error("failed to enqueue inbound message", "error", err, "contact_key", msg.ContactKey)
		return
	}
	h.metrics.ObserveInbound("message", "accepted")
}

// ParseWebhookEvent extracts normalized inbound messages from a webhook event.
func ParseWebhookEvent(event webhookEvent) []Inbound {
	var messages []Inbound

	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}

			names := make(map[string]string, len(change.Value.Contacts))
			for _, contact := range change.Value.Contacts {
				names[contact.WAID] = contact.Profile.Name
			}

			for _, m := range change.Value.Messages {
				if m.Type != "text" || m.Text == nil {
					continue
				}
				messages = append(messages, Inbound{
					ContactKey:  m.From,
					DisplayName: names[m.From],
					Text:        m.Text.Body,
					MessageID:   m.ID,
					Timestamp:   parseEpoch(m.Timestamp),
				})
			}
		}
	}
	return messages
}

func parseEpoch(raw string) time.Time {
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
