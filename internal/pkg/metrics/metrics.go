// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "multiagent"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"method", "endpoint"},
	)

	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Completion gateway calls by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Time until the gateway returned headers",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	DispatchDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "decisions_total",
			Help:      "Dispatch decisions by source (dispatch, fallback, mention, error)",
		},
		[]string{"source"},
	)

	AgentResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "agent_responses_total",
			Help:      "Finished agent responses by outcome",
		},
		[]string{"mode", "outcome"},
	)

	ConversationSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "conversation_saves_total",
			Help:      "Conversation persistence attempts by outcome",
		},
		[]string{"outcome"},
	)

	ActiveDiscussions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "active_discussions",
			Help:      "Discussions currently registered in this process",
		},
	)
)

// RecordHTTPRequest records one finished HTTP request.
func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordGatewayCall records one gateway call.
func RecordGatewayCall(mode, outcome string, duration time.Duration) {
	GatewayRequestsTotal.WithLabelValues(mode, outcome).Inc()
	GatewayDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordDispatch records where a turn's responders came from.
func RecordDispatch(source string) {
	DispatchDecisionsTotal.WithLabelValues(source).Inc()
}

// RecordAgentResponse records the outcome of one agent bubble.
func RecordAgentResponse(mode, outcome string) {
	AgentResponsesTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordConversationSave records a save outcome.
func RecordConversationSave(outcome string) {
	ConversationSavesTotal.WithLabelValues(outcome).Inc()
}
