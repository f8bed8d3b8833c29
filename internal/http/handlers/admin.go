// Package handlers contains the admin HTTP surface: read access to
// conversations and rollups, a slot preview, and a manual forward trigger.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/waveleads/lead-agent-platform/internal/analytics"
	"github.com/waveleads/lead-agent-platform/internal/conversation"
	"github.com/waveleads/lead-agent-platform/internal/forwarder"
	"github.com/waveleads/lead-agent-platform/internal/slots"
	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

// ConversationStore is the read/write slice of the store the admin API uses.
type ConversationStore interface {
	Get(ctx context.Context, id string) (*conversation.Conversation, error)
	ListRecent(ctx context.Context, limit int32) ([]conversation.Conversation, error)
	Save(ctx context.Context, c *conversation.Conversation) error
}

// SlotPreviewer regenerates the current slot offer.
type SlotPreviewer interface {
	Generate(ctx context.Context, now time.Time) ([]slots.Slot, error)
}

// LeadForwarder pushes one conversation to the automation webhook.
type LeadForwarder interface {
	Forward(ctx context.Context, c *conversation.Conversation) error
}

// AdminHandler serves the operator endpoints.
type AdminHandler struct {
	store     ConversationStore
	analytics *analytics.Store
	slots     SlotPreviewer
	forwarder LeadForwarder
	logger    *logging.Logger
}

// NewAdminHandler creates the admin handler. Analytics, slots and forwarder
// are optional; their endpoints return 503 when unwired.
func NewAdminHandler(store ConversationStore, analyticsStore *analytics.Store, previewer SlotPreviewer, fwd LeadForwarder, logger *logging.Logger) *AdminHandler {
	if store == nil {
		panic("handlers: conversation store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{
		store:     store,
		analytics: analyticsStore,
		slots:     previewer,
		forwarder: fwd,
		logger:    logger,
	}
}

// ListConversations returns the most recent conversations.
func (h *AdminHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	limit := int32(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = int32(n)
		}
	}

	convs, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list conversations", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// GetConversation returns one conversation with its full message log.
func (h *AdminHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			respondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to fetch conversation", "error", err, "conversation_id", id)
		respondError(w, http.StatusInternalServerError, "failed to fetch conversation")
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

// GetAnalytics returns recent daily rollups.
func (h *AdminHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		respondError(w, http.StatusServiceUnavailable, "analytics not configured")
		return
	}

	limit := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 365 {
			limit = n
		}
	}

	rollups, err := h.analytics.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list rollups", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list analytics")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"days": rollups})
}

// PreviewSlots returns the slot list a prospect would be offered right now.
func (h *AdminHandler) PreviewSlots(w http.ResponseWriter, r *http.Request) {
	if h.slots == nil {
		respondError(w, http.StatusServiceUnavailable, "slots not configured")
		return
	}

	offered, err := h.slots.Generate(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("failed to generate slot preview", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to generate slots")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"slots": offered})
}

// TestForward re-sends one conversation to the automation webhook.
func (h *AdminHandler) TestForward(w http.ResponseWriter, r *http.Request) {
	if h.forwarder == nil {
		respondError(w, http.StatusServiceUnavailable, "forwarder not configured")
		return
	}

	id := chi.URLParam(r, "id")
	conv, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			respondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to fetch conversation")
		return
	}

	if err := h.forwarder.Forward(r.Context(), conv); err != nil {
		h.logger.Error("manual forward failed", "error", err, "conversation_id", id)
		respondError(w, http.StatusBadGateway, "forward failed")
		return
	}

	conv.Forwarding.Sent = true
	conv.Forwarding.LastSentAt = time.Now().UTC()
	if err := h.store.Save(r.Context(), conv); err != nil {
		h.logger.Warn("failed to persist forwarding flag", "error", err, "conversation_id", id)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"forwarded": true,
		"payload":   forwarder.BuildPayload(conv),
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
