package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/waveleads/lead-agent-platform/internal/messaging"
	"github.com/waveleads/lead-agent-platform/internal/observability/metrics"
	"github.com/waveleads/lead-agent-platform/internal/slots"
	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

// Booker turns a numeric slot selection into a confirmed appointment on the
// conversation, returning the reply to send and whether a booking happened.
// Release undoes an event whose conversation save lost a version race.
type Booker interface {
	Book(ctx context.Context, c *Conversation, selection int) (reply string, booked bool)
	Release(ctx context.Context, c *Conversation)
}

// SlotSource produces the candidate meeting times to offer.
type SlotSource interface {
	Generate(ctx context.Context, now time.Time) ([]slots.Slot, error)
}

// Sender delivers outbound replies to a contact.
type Sender interface {
	SendText(ctx context.Context, contactKey, text string) error
}

// LeadForwarder pushes a finished lead to the automation webhook.
type LeadForwarder interface {
	Forward(ctx context.Context, c *Conversation) error
}

const noAvailabilityReply = "I don't see any open times in the next few days. Our team will reach out directly to find a time that works."

// Engine drives one conversation turn per inbound message: oracle decision,
// field capture, stage progression, slot offers, booking, scoring, and the
// outbound reply.
type Engine struct {
	store     *Store
	lock      *ContactLock
	oracle    DecisionOracle
	slots     SlotSource
	booker    Booker
	sender    Sender
	forwarder LeadForwarder
	metrics   *metrics.ConversationMetrics
	tracer    trace.Tracer
	logger    *logging.Logger
	now       func() time.Time
}

// EngineConfig wires the engine's collaborators. Store, Oracle and Sender are
// required; the rest degrade gracefully when nil.
type EngineConfig struct {
	Store     *Store
	Lock      *ContactLock
	Oracle    DecisionOracle
	Slots     SlotSource
	Booker    Booker
	Sender    Sender
	Forwarder LeadForwarder
	Metrics   *metrics.ConversationMetrics
	Logger    *logging.Logger
}

// NewEngine creates the dialogue engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Store == nil {
		panic("conversation: store cannot be nil")
	}
	if cfg.Oracle == nil {
		panic("conversation: oracle cannot be nil")
	}
	if cfg.Sender == nil {
		panic("conversation: sender cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Engine{
		store:     cfg.Store,
		lock:      cfg.Lock,
		oracle:    cfg.Oracle,
		slots:     cfg.Slots,
		booker:    cfg.Booker,
		sender:    cfg.Sender,
		forwarder: cfg.Forwarder,
		metrics:   cfg.Metrics,
		tracer:    otel.Tracer("conversation.engine"),
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// WithClock overrides the engine clock (tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// HandleInbound processes one inbound message end to end. The per-contact
// lease serializes concurrent deliveries from the same contact; the version
// guard on save is what actually protects the record, so a failed lease
// acquisition degrades to optimistic retries instead of dropping the message.
func (e *Engine) HandleInbound(ctx context.Context, msg messaging.Inbound) error {
	ctx, span := e.tracer.Start(ctx, "engine.handle_inbound",
		trace.WithAttributes(attribute.String("contact_key", msg.ContactKey)))
	defer span.End()

	if msg.ContactKey == "" {
		return errors.New("conversation: inbound message missing contact key")
	}

	if e.lock != nil {
		release, ok, err := e.lock.AcquireWait(ctx, msg.ContactKey, 5*time.Second)
		if err != nil {
			e.logger.Warn("contact lease unavailable, relying on version guard", "error", err, "contact_key", msg.ContactKey)
		} else if ok {
			defer release()
		}
	}

	err := e.processTurn(ctx, msg)
	if errors.Is(err, ErrVersionConflict) {
		// A racing writer won; reload and replay the turn once.
		e.metrics.ObserveVersionConflict()
		e.logger.Warn("version conflict, replaying turn", "contact_key", msg.ContactKey)
		err = e.processTurn(ctx, msg)
	}

	if err != nil {
		e.metrics.ObserveTurn("error")
		return err
	}
	e.metrics.ObserveTurn("ok")
	return nil
}

func (e *Engine) processTurn(ctx context.Context, msg messaging.Inbound) error {
	now := e.now().UTC()

	conv, err := e.store.FindActive(ctx, msg.ContactKey)
	switch {
	case errors.Is(err, ErrNotFound):
		conv = NewConversation(msg.ContactKey, msg.DisplayName, now)
		if err := e.store.Create(ctx, conv); err != nil {
			return fmt.Errorf("conversation: create: %w", err)
		}
	case err != nil:
		return fmt.Errorf("conversation: load: %w", err)
	}

	if conv.DisplayName == "" && msg.DisplayName != "" {
		conv.DisplayName = msg.DisplayName
	}

	stageBefore := conv.Stage
	decision := e.decide(ctx, conv, msg.Text)

	conv.AppendInbound(msg.Text, msg.Timestamp, &Annotation{
		Intent:     decision.Intent,
		Confidence: decision.Confidence,
	})
	applyFields(conv, decision.ExtractedFields)
	conv.Stage = decision.NextStage

	reply := decision.ReplyText
	bookedNow := false

	selection, hasSelection := selectionFrom(decision, msg.Text)
	if e.booker != nil && stageBefore == StageOfferSlots && (decision.RequestsBooking || hasSelection) {
		bookingReply, booked := e.booker.Book(ctx, conv, selection)
		reply = bookingReply
		bookedNow = booked
		if booked {
			e.metrics.ObserveBooking("booked")
		} else {
			// The offer stays open until a booking actually lands, no matter
			// what stage the oracle proposed; the next selection must still
			// reach the coordinator.
			conv.Stage = stageBefore
			e.metrics.ObserveBooking("retry")
		}
	} else if e.slots != nil && conv.Stage == StageOfferSlots && decision.NeedsSlotOffer && !conv.Appointment.Scheduled {
		reply = e.appendSlotOffer(ctx, reply, now)
	}

	if reply == "" {
		reply = FallbackReply
	}

	conv.LeadScore = Score(conv)
	if conv.Stage != stageBefore {
		e.metrics.ObserveStageTransition(string(stageBefore), string(conv.Stage))
	}

	// Persist the turn before replying so a crash mid-send loses the reply,
	// never the state.
	if err := e.store.Save(ctx, conv); err != nil {
		if bookedNow && errors.Is(err, ErrVersionConflict) {
			// A racing turn confirmed the record first; this turn's calendar
			// event must not survive as an orphan.
			e.booker.Release(ctx, conv)
		}
		return err
	}

	if err := e.sender.SendText(ctx, conv.ContactKey, reply); err != nil {
		e.logger.Error("failed to send reply", "error", err, "contact_key", conv.ContactKey)
		return fmt.Errorf("conversation: send reply: %w", err)
	}

	conv.AppendOutbound(reply, e.now().UTC())
	if err := e.store.Save(ctx, conv); err != nil && !errors.Is(err, ErrVersionConflict) {
		e.logger.Error("failed to persist outbound message", "error", err, "contact_key", conv.ContactKey)
	}

	if (bookedNow || conv.Stage == StageCompleted) && !conv.Forwarding.Sent {
		e.forward(ctx, conv)
	}
	return nil
}

// decide calls the oracle and substitutes the static fallback on any failure,
// so the contact always receives a reply.
func (e *Engine) decide(ctx context.Context, conv *Conversation, text string) Decision {
	start := e.now()
	decision, err := e.oracle.Decide(ctx, DecisionRequest{
		Stage:       conv.Stage,
		Fields:      conv.Fields,
		DisplayName: conv.DisplayName,
		Text:        text,
		History:     conv.Messages,
	})
	elapsed := e.now().Sub(start).Seconds()
	if err != nil {
		e.metrics.ObserveOracle("error", elapsed)
		e.metrics.ObserveFallback()
		e.logger.Warn("oracle unavailable, using fallback decision", "error", err, "contact_key", conv.ContactKey, "stage", conv.Stage)
		return FallbackDecision(conv.Stage)
	}
	e.metrics.ObserveOracle("ok", elapsed)
	return decision
}

func (e *Engine) appendSlotOffer(ctx context.Context, reply string, now time.Time) string {
	offered, err := e.slots.Generate(ctx, now)
	if err != nil {
		e.logger.Error("failed to generate slot offer", "error", err)
		return reply + "\n\n" + noAvailabilityReply
	}
	if len(offered) == 0 {
		return reply + "\n\n" + noAvailabilityReply
	}
	if reply == "" {
		return slots.FormatOffer(offered)
	}
	return reply + "\n\n" + slots.FormatOffer(offered)
}

func (e *Engine) forward(ctx context.Context, conv *Conversation) {
	if e.forwarder == nil {
		return
	}
	if err := e.forwarder.Forward(ctx, conv); err != nil {
		// Forwarding is best effort; the lead stays queryable either way.
		e.metrics.ObserveForward("failed")
		e.logger.Error("automation forward failed", "error", err, "conversation_id", conv.ID)
		return
	}
	e.metrics.ObserveForward("delivered")
	conv.Forwarding = Forwarding{Sent: true, LastSentAt: e.now().UTC()}
	if err := e.store.Save(ctx, conv); err != nil {
		e.logger.Warn("failed to persist forwarding flag", "error", err, "conversation_id", conv.ID)
	}
}

func applyFields(conv *Conversation, extracted map[string]string) {
	for key, value := range extracted {
		switch key {
		case "name":
			conv.Fields.Name = value
		case "role":
			conv.Fields.Role = value
		case "email":
			conv.Fields.Email = value
		}
	}
}

// selectionFrom resolves the prospect's slot pick, preferring the oracle's
// extraction and falling back to a bare number in the raw text.
func selectionFrom(decision Decision, text string) (int, bool) {
	if raw, ok := decision.ExtractedFields["slot_selection"]; ok {
		if n, ok := slots.ParseSelection(raw); ok {
			return n, true
		}
	}
	return slots.ParseSelection(text)
}
