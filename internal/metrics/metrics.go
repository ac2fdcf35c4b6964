package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_runs_started_total",
			Help: "Total number of outreach runs started",
		},
		[]string{"mode"},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_runs_completed_total",
			Help: "Total number of outreach runs finished, by terminal status",
		},
		[]string{"mode", "status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outreach_run_duration_seconds",
			Help:    "End to end run duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"mode"},
	)

	// Agent metrics
	GenerationCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_generation_calls_total",
			Help: "Generation agent calls by persona and outcome",
		},
		[]string{"persona", "status"},
	)

	GenerationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outreach_generation_latency_seconds",
			Help:    "Generation agent call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"persona"},
	)

	SelectionMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_selection_mismatch_total",
			Help: "Selections whose answer matched no candidate and fell back to the first",
		},
	)

	TokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_tokens_total",
			Help: "Model tokens consumed, by role and direction",
		},
		[]string{"role", "direction"},
	)

	LLMCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_llm_cost_usd_total",
			Help: "Estimated model spend in USD, by role and model",
		},
		[]string{"role", "model"},
	)

	PricingFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_pricing_fallback_total",
			Help: "Cost estimates that used the default price",
		},
		[]string{"reason"},
	)

	// Delivery metrics
	DeliveryStages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_delivery_stage_total",
			Help: "Delivery pipeline stage outcomes",
		},
		[]string{"stage", "status"},
	)

	// Inbound metrics
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_webhook_events_total",
			Help: "Inbound webhook events by outcome; the HTTP answer is always an acknowledgement",
		},
		[]string{"outcome"},
	)

	CampaignRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_campaign_requests_total",
			Help: "Manual campaign API requests by HTTP status",
		},
		[]string{"status"},
	)
)

// RecordRun records a finished run.
func RecordRun(mode, status string, durationSeconds float64) {
	RunsCompleted.WithLabelValues(mode, status).Inc()
	RunDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordGeneration records one generation call.
func RecordGeneration(persona string, success bool, durationSeconds float64) {
	status := "success"
	if !success {
		status = "failure"
	}
	GenerationCalls.WithLabelValues(persona, status).Inc()
	GenerationLatency.WithLabelValues(persona).Observe(durationSeconds)
}

// RecordTokens adds token usage for a role.
func RecordTokens(role string, input, output int) {
	if input > 0 {
		TokensUsed.WithLabelValues(role, "input").Add(float64(input))
	}
	if output > 0 {
		TokensUsed.WithLabelValues(role, "output").Add(float64(output))
	}
}

// RecordDeliveryStage records the outcome of one delivery stage.
func RecordDeliveryStage(stage, status string) {
	DeliveryStages.WithLabelValues(stage, status).Inc()
}
