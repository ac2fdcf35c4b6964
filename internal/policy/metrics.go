package policy

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	policyEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_policy_evaluations_total",
			Help: "Total number of delivery policy evaluations",
		},
		[]string{"mode", "allow", "would_allow"},
	)

	policyEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outreach_policy_evaluation_duration_seconds",
			Help:    "Time spent evaluating delivery policies",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"mode"},
	)

	policyErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_policy_errors_total",
			Help: "Total number of delivery policy evaluation errors",
		},
		[]string{"mode"},
	)
)

func recordEvaluation(d Decision, took time.Duration) {
	policyEvaluations.WithLabelValues(string(d.Mode), strconv.FormatBool(d.Allow), strconv.FormatBool(d.WouldAllow)).Inc()
	policyEvaluationDuration.WithLabelValues(string(d.Mode)).Observe(took.Seconds())
}

func recordError(mode Mode) {
	policyErrors.WithLabelValues(string(mode)).Inc()
}
