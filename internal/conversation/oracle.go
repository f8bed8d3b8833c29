package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

// Intent is the closed tag set the oracle may answer with. Anything outside
// it is coerced to IntentOther.
type Intent string

const (
	IntentGreeting      Intent = "greeting"
	IntentProvidingInfo Intent = "providing_info"
	IntentConfirming    Intent = "confirming"
	IntentQuestion      Intent = "question"
	IntentScheduling    Intent = "scheduling"
	IntentSelectingSlot Intent = "selecting_slot"
	IntentOther         Intent = "other"
	IntentError         Intent = "error"
)

// Decision is the validated outcome of one oracle call. The engine trusts
// nothing beyond this struct: raw completions are parsed, unknown values
// coerced, and stage skips clamped before a Decision is returned.
type Decision struct {
	Intent          Intent            `json:"intent"`
	ExtractedFields map[string]string `json:"extractedFields"`
	ReplyText       string            `json:"replyText"`
	NextStage       Stage             `json:"nextStage"`
	Confidence      float64           `json:"confidence"`
	NeedsSlotOffer  bool              `json:"needsSlotOffer"`
	RequestsBooking bool              `json:"requestsBooking"`
}

// DecisionRequest carries the conversation context for one oracle call.
type DecisionRequest struct {
	Stage       Stage
	Fields      Fields
	DisplayName string
	Text        string
	History     []Message
}

// DecisionOracle turns an inbound message into a Decision. Implementations
// return an error on transport failure or an unusable completion; callers
// substitute FallbackDecision and carry on.
type DecisionOracle interface {
	Decide(ctx context.Context, req DecisionRequest) (Decision, error)
}

// FallbackReply is the generic apology sent when the oracle is unavailable.
const FallbackReply = "Sorry, I had trouble processing that. Could you say it again?"

// FallbackDecision is the substitute applied on any oracle failure: the
// conversation stays in place and the contact still receives a reply.
func FallbackDecision(current Stage) Decision {
	return Decision{
		Intent:          IntentError,
		ExtractedFields: map[string]string{},
		ReplyText:       FallbackReply,
		NextStage:       current,
		Confidence:      0,
	}
}

// LLMOracle implements DecisionOracle on top of an LLMClient chain.
type LLMOracle struct {
	llm     LLMClient
	model   string
	timeout time.Duration
	tracer  trace.Tracer
	logger  *logging.Logger
}

// NewLLMOracle builds the production oracle.
func NewLLMOracle(llm LLMClient, model string, timeout time.Duration, logger *logging.Logger) *LLMOracle {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMOracle{
		llm:     llm,
		model:   model,
		timeout: timeout,
		tracer:  otel.Tracer("conversation.oracle"),
		logger:  logger,
	}
}

// Decide calls the language model with the stage-specific prompt contract and
// validates its completion into a Decision.
func (o *LLMOracle) Decide(ctx context.Context, req DecisionRequest) (Decision, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	ctx, span := o.tracer.Start(ctx, "oracle.decide",
		trace.WithAttributes(attribute.String("stage", string(req.Stage))))
	defer span.End()

	resp, err := o.llm.Complete(ctx, buildDecisionRequest(o.model, req))
	if err != nil {
		return Decision{}, fmt.Errorf("conversation: oracle completion: %w", err)
	}

	decision, err := parseDecision(resp.Text, req.Stage)
	if err != nil {
		o.logger.Warn("oracle returned unusable completion", "error", err, "stage", req.Stage)
		return Decision{}, err
	}
	return decision, nil
}

// decisionPayload mirrors the JSON contract given to the model.
type decisionPayload struct {
	Intent          string            `json:"intent"`
	ExtractedFields map[string]string `json:"extracted_fields"`
	ReplyText       string            `json:"reply_text"`
	NextStage       string            `json:"next_stage"`
	Confidence      float64           `json:"confidence"`
	NeedsSlotOffer  bool              `json:"needs_slot_offer"`
	RequestsBooking bool              `json:"requests_booking"`
}

func parseDecision(raw string, current Stage) (Decision, error) {
	text := sanitizeOracleJSON(raw)
	if text == "" {
		return Decision{}, errors.New("conversation: oracle empty response")
	}

	var payload decisionPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return Decision{}, fmt.Errorf("conversation: oracle malformed json: %w", err)
	}
	return normalizeDecision(payload, current), nil
}

// normalizeDecision coerces the untrusted payload into the contract: unknown
// intents become "other", stage skips collapse to the current stage, absence
// markers drop out of the field map, and confidence is clamped to [0,1].
func normalizeDecision(payload decisionPayload, current Stage) Decision {
	d := Decision{
		Intent:          normalizeIntent(payload.Intent),
		ExtractedFields: map[string]string{},
		ReplyText:       strings.TrimSpace(payload.ReplyText),
		NextStage:       current,
		Confidence:      payload.Confidence,
		NeedsSlotOffer:  payload.NeedsSlotOffer,
		RequestsBooking: payload.RequestsBooking,
	}

	proposed := Stage(strings.ToUpper(strings.TrimSpace(payload.NextStage)))
	if next, ok := current.Next(); ok && proposed == next {
		d.NextStage = next
	}

	for key, value := range payload.ExtractedFields {
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || isAbsenceMarker(value) {
			continue
		}
		d.ExtractedFields[key] = value
	}

	if d.Confidence < 0 {
		d.Confidence = 0
	}
	if d.Confidence > 1 {
		d.Confidence = 1
	}
	return d
}

func normalizeIntent(raw string) Intent {
	intent := Intent(strings.ToLower(strings.TrimSpace(raw)))
	switch intent {
	case IntentGreeting, IntentProvidingInfo, IntentConfirming, IntentQuestion,
		IntentScheduling, IntentSelectingSlot, IntentOther, IntentError:
		return intent
	default:
		return IntentOther
	}
}

// isAbsenceMarker reports whether the oracle signalled "no value" for a field.
func isAbsenceMarker(value string) bool {
	switch strings.ToLower(value) {
	case "", "null", "none", "n/a", "unknown", "not provided", "não informado", "nao informado":
		return true
	}
	return false
}

func sanitizeOracleJSON(raw string) string {
	text := stripCodeFence(raw)
	text = extractJSONObject(text)
	return strings.TrimSpace(text)
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func extractJSONObject(text string) string {
	if strings.HasPrefix(text, "{") {
		return text
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
