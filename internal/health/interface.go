package health

import (
	"context"
	"time"
)

// CheckStatus represents the health status of a component
type CheckStatus string

const (
	StatusHealthy   CheckStatus = "healthy"
	StatusDegraded  CheckStatus = "degraded"
	StatusUnhealthy CheckStatus = "unhealthy"
	StatusUnknown   CheckStatus = "unknown"
)

// CheckResult represents the result of a health check
type CheckResult struct {
	Status    CheckStatus   `json:"status"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Details   interface{}   `json:"details,omitempty"`
	Latency   time.Duration `json:"latency"`
	Timestamp time.Time     `json:"timestamp"`
	Critical  bool          `json:"critical"`
}

// Checker is one health probe.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
	// IsCritical reports whether a failure of this checker makes the
	// process unready.
	IsCritical() bool
	Timeout() time.Duration
}

// OverallHealth represents the overall system health
type OverallHealth struct {
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Degraded bool        `json:"degraded"`
	Ready    bool        `json:"ready"`
	Live     bool        `json:"live"`
}

// DetailedHealth contains per-component results
type DetailedHealth struct {
	Overall    OverallHealth          `json:"overall"`
	Components map[string]CheckResult `json:"components"`
	Summary    HealthSummary          `json:"summary"`
	Timestamp  time.Time              `json:"timestamp"`
}

// HealthSummary counts components by status
type HealthSummary struct {
	Total       int `json:"total"`
	Healthy     int `json:"healthy"`
	Degraded    int `json:"degraded"`
	Unhealthy   int `json:"unhealthy"`
	Critical    int `json:"critical"`
	NonCritical int `json:"non_critical"`
}
