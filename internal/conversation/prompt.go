package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
)

const decisionSystemPrompt = `You are a lead-qualification assistant chatting with a prospect over a messaging channel. Your job on every turn is to interpret the prospect's message for the current funnel stage and answer with a single JSON object, nothing else:

{
  "intent": one of "greeting", "providing_info", "confirming", "question", "scheduling", "selecting_slot", "other",
  "extracted_fields": object mapping any of "name", "role", "email", "slot_selection" to the value found in the message, or "null" when absent,
  "reply_text": the next message to send, written in the prospect's language, short and friendly,
  "next_stage": the stage to move to; either the current stage or its immediate successor, never further,
  "confidence": number between 0 and 1,
  "needs_slot_offer": true when the prospect should now be shown available meeting times,
  "requests_booking": true when the prospect picked a time or clearly asked to book
}

Only extract values the prospect actually stated. Never invent data. Do not wrap the JSON in markdown fences.`

var stageObjectives = map[Stage]string{
	StageInitial:        "Greet the prospect, explain you will ask a few quick questions, and move to collecting their name.",
	StageCollectName:    "Capture the prospect's name into extracted_fields.name. Once you have it, advance.",
	StageCollectRole:    "Capture what the prospect does / their role into extracted_fields.role. Once you have it, advance.",
	StageCollectEmail:   "Capture the prospect's email into extracted_fields.email. Once you have a valid address, advance and set needs_slot_offer.",
	StageOfferSlots:     "The prospect is choosing from a numbered list of meeting times. A bare number or a phrase like 'the second one' means extracted_fields.slot_selection. Set requests_booking when they picked.",
	StageConfirmBooking: "The meeting is booked. Confirm details, answer final questions, and advance when the prospect acknowledges.",
	StageCompleted:      "Qualification is done. Thank the prospect and close politely.",
}

// buildDecisionRequest assembles the stage-specific prompt contract for one
// oracle call.
func buildDecisionRequest(model string, req DecisionRequest) LLMRequest {
	known, _ := json.Marshal(map[string]string{
		"name":  req.Fields.Name,
		"role":  req.Fields.Role,
		"email": req.Fields.Email,
	})

	next, hasNext := req.Stage.Next()
	stageLine := fmt.Sprintf("Current stage: %s.", req.Stage)
	if hasNext {
		stageLine += fmt.Sprintf(" The only legal next_stage values are %q and %q.", req.Stage, next)
	} else {
		stageLine += fmt.Sprintf(" The only legal next_stage value is %q.", req.Stage)
	}

	system := []string{
		decisionSystemPrompt,
		stageLine,
		"Stage objective: " + stageObjectives[req.Stage],
		"Known fields so far: " + string(known),
	}
	if req.DisplayName != "" {
		system = append(system, "The messaging profile name of the prospect is "+req.DisplayName+".")
	}

	messages := historyMessages(req.History, 10)
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: req.Text})

	return LLMRequest{
		Model:       model,
		System:      system,
		Messages:    messages,
		MaxTokens:   512,
		Temperature: 0.2,
	}
}

// historyMessages converts the tail of the message log into chat turns.
func historyMessages(log []Message, limit int) []ChatMessage {
	if len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]ChatMessage, 0, len(log))
	for _, m := range log {
		content := strings.TrimSpace(m.Text)
		if content == "" {
			continue
		}
		role := ChatRoleUser
		if m.Direction == DirectionOut {
			role = ChatRoleAssistant
		}
		out = append(out, ChatMessage{Role: role, Content: content})
	}
	return out
}
