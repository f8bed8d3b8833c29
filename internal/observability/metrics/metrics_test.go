package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNilReceiversAreSafe(t *testing.T) {
	var mm *MessagingMetrics
	assert.NotPanics(t, func() {
		mm.ObserveInbound("message", "accepted")
		mm.ObserveOutbound("sent")
		mm.ObserveWebhookLatency("message", 0.5)
	})

	var cm *ConversationMetrics
	assert.NotPanics(t, func() {
		cm.ObserveTurn("ok")
		cm.ObserveStageTransition("INITIAL", "COLLECT_NAME")
		cm.ObserveOracle("ok", 1.2)
		cm.ObserveFallback()
		cm.ObserveVersionConflict()
		cm.ObserveBooking("booked")
		cm.ObserveReminder("day_before", "sent")
		cm.ObserveAbandoned()
		cm.ObserveForward("delivered")
	})
}

func TestRegistersOnCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	mm := NewMessagingMetrics(reg)
	cm := NewConversationMetrics(reg)

	mm.ObserveInbound("message", "accepted")
	cm.ObserveTurn("ok")

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
