package metrics

import "github.com/prometheus/client_golang/prometheus"

// MessagingMetrics exposes counters/histograms for messaging flows.
type MessagingMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadagent",
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound channel webhooks",
		}, []string{"event_type", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadagent",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound channel sends",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadagent",
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of channel webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *MessagingMetrics) ObserveInbound(eventType, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(eventType, status).Inc()
}

func (m *MessagingMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *MessagingMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}

// ConversationMetrics tracks the dialogue engine and the oracle behind it.
type ConversationMetrics struct {
	turnsTotal       *prometheus.CounterVec
	stageTransitions *prometheus.CounterVec
	oracleLatency    *prometheus.HistogramVec
	oracleFallbacks  prometheus.Counter
	versionConflicts prometheus.Counter
	bookingsTotal    *prometheus.CounterVec
	remindersTotal   *prometheus.CounterVec
	abandonedTotal   prometheus.Counter
	forwardsTotal    *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadagent",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total inbound turns processed by the dialogue engine",
		}, []string{"status"}),
		stageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadagent",
			Subsystem: "conversation",
			Name:      "stage_transitions_total",
			Help:      "Stage transitions by source and destination stage",
		}, []string{"from", "to"}),
		oracleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadagent",
			Subsystem: "conversation",
			Name:      "oracle_latency_seconds",
			Help:      "Latency of oracle decisions",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"outcome"}),
		oracleFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadagent",
			Subsystem: "conversation",
			Name:      "oracle_fallbacks_total",
			Help:      "Turns answered with the static fallback reply",
		}),
		versionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadagent",
			Subsystem: "conversation",
			Name:      "version_conflicts_total",
			Help:      "Optimistic concurrency conflicts on conversation saves",
		}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadagent",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadagent",
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Reminders sent by kind",
		}, []string{"kind", "status"}),
		abandonedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadagent",
			Subsystem: "conversation",
			Name:      "abandoned_total",
			Help:      "Conversations marked abandoned by the idle sweeper",
		}),
		forwardsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadagent",
			Subsystem: "forwarder",
			Name:      "deliveries_total",
			Help:      "Automation webhook deliveries by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.turnsTotal, m.stageTransitions, m.oracleLatency, m.oracleFallbacks,
		m.versionConflicts, m.bookingsTotal, m.remindersTotal, m.abandonedTotal,
		m.forwardsTotal,
	)
	return m
}

func (m *ConversationMetrics) ObserveTurn(status string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(status).Inc()
}

func (m *ConversationMetrics) ObserveStageTransition(from, to string) {
	if m == nil {
		return
	}
	m.stageTransitions.WithLabelValues(from, to).Inc()
}

func (m *ConversationMetrics) ObserveOracle(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.oracleLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *ConversationMetrics) ObserveFallback() {
	if m == nil {
		return
	}
	m.oracleFallbacks.Inc()
}

func (m *ConversationMetrics) ObserveVersionConflict() {
	if m == nil {
		return
	}
	m.versionConflicts.Inc()
}

func (m *ConversationMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *ConversationMetrics) ObserveReminder(kind, status string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(kind, status).Inc()
}

func (m *ConversationMetrics) ObserveAbandoned() {
	if m == nil {
		return
	}
	m.abandonedTotal.Inc()
}

func (m *ConversationMetrics) ObserveForward(status string) {
	if m == nil {
		return
	}
	m.forwardsTotal.WithLabelValues(status).Inc()
}
