package health

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/jcjurado/outreach/internal/circuitbreaker"
)

// TemporalHealth is the part of client.Client the Temporal checker uses.
type TemporalHealth interface {
	CheckHealth(ctx context.Context, request *client.CheckHealthRequest) (*client.CheckHealthResponse, error)
}

// TemporalChecker probes the Temporal frontend. Runs cannot start without it,
// so it is always critical.
type TemporalChecker struct {
	client  TemporalHealth
	timeout time.Duration
}

// NewTemporalChecker creates a Temporal health checker
func NewTemporalChecker(c TemporalHealth) *TemporalChecker {
	return &TemporalChecker{client: c, timeout: 5 * time.Second}
}

func (t *TemporalChecker) Name() string           { return "temporal" }
func (t *TemporalChecker) IsCritical() bool       { return true }
func (t *TemporalChecker) Timeout() time.Duration { return t.timeout }

func (t *TemporalChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if _, err := t.client.CheckHealth(ctx, &client.CheckHealthRequest{}); err != nil {
		return CheckResult{
			Status:    StatusUnhealthy,
			Message:   "Temporal frontend unreachable",
			Error:     err.Error(),
			Latency:   time.Since(start),
			Timestamp: time.Now(),
		}
	}
	return CheckResult{
		Status:    StatusHealthy,
		Message:   "Temporal frontend reachable",
		Latency:   time.Since(start),
		Timestamp: time.Now(),
	}
}

// Pinger is satisfied by the Redis dedupe store and the Postgres run store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports a dependency reachable through Ping. A reply slower
// than slowAfter is reported degraded.
type PingChecker struct {
	name      string
	pinger    Pinger
	critical  bool
	timeout   time.Duration
	slowAfter time.Duration
}

// NewPingChecker creates a checker for a pingable dependency.
func NewPingChecker(name string, p Pinger, critical bool) *PingChecker {
	return &PingChecker{
		name:      name,
		pinger:    p,
		critical:  critical,
		timeout:   3 * time.Second,
		slowAfter: time.Second,
	}
}

func (p *PingChecker) Name() string           { return p.name }
func (p *PingChecker) IsCritical() bool       { return p.critical }
func (p *PingChecker) Timeout() time.Duration { return p.timeout }

func (p *PingChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	err := p.pinger.Ping(ctx)
	latency := time.Since(start)
	switch {
	case err != nil:
		return CheckResult{
			Status:    StatusUnhealthy,
			Message:   fmt.Sprintf("%s ping failed", p.name),
			Error:     err.Error(),
			Latency:   latency,
			Timestamp: time.Now(),
		}
	case latency > p.slowAfter:
		return CheckResult{
			Status:    StatusDegraded,
			Message:   fmt.Sprintf("%s responding slowly", p.name),
			Latency:   latency,
			Timestamp: time.Now(),
		}
	}
	return CheckResult{
		Status:    StatusHealthy,
		Message:   fmt.Sprintf("%s reachable", p.name),
		Latency:   latency,
		Timestamp: time.Now(),
	}
}

// BreakerSource lists breaker states keyed by service:name.
type BreakerSource interface {
	Snapshot() map[string]circuitbreaker.State
}

// BreakerChecker reports open circuit breakers in front of the model service
// and the mail provider. An open breaker degrades the process; runs keep
// failing fast until it half-opens.
type BreakerChecker struct {
	source BreakerSource
}

// NewBreakerChecker creates a breaker checker. A nil source uses the process
// wide collector.
func NewBreakerChecker(source BreakerSource) *BreakerChecker {
	if source == nil {
		source = circuitbreaker.GlobalMetricsCollector
	}
	return &BreakerChecker{source: source}
}

func (b *BreakerChecker) Name() string           { return "circuit_breakers" }
func (b *BreakerChecker) IsCritical() bool       { return false }
func (b *BreakerChecker) Timeout() time.Duration { return time.Second }

func (b *BreakerChecker) Check(context.Context) CheckResult {
	states := b.source.Snapshot()
	details := make(map[string]string, len(states))
	var open []string
	for key, state := range states {
		details[key] = state.String()
		if state == circuitbreaker.StateOpen {
			open = append(open, key)
		}
	}
	if len(open) > 0 {
		sort.Strings(open)
		return CheckResult{
			Status:    StatusDegraded,
			Message:   fmt.Sprintf("%d circuit breaker(s) open: %v", len(open), open),
			Details:   details,
			Timestamp: time.Now(),
		}
	}
	return CheckResult{
		Status:    StatusHealthy,
		Message:   fmt.Sprintf("%d circuit breaker(s) closed", len(states)),
		Details:   details,
		Timestamp: time.Now(),
	}
}

// CustomHealthChecker allows for custom health check logic
type CustomHealthChecker struct {
	name     string
	critical bool
	timeout  time.Duration
	checkFn  func(ctx context.Context) CheckResult
}

// NewCustomHealthChecker creates a custom health checker
func NewCustomHealthChecker(name string, critical bool, timeout time.Duration, checkFn func(ctx context.Context) CheckResult) *CustomHealthChecker {
	return &CustomHealthChecker{
		name:     name,
		critical: critical,
		timeout:  timeout,
		checkFn:  checkFn,
	}
}

func (c *CustomHealthChecker) Name() string           { return c.name }
func (c *CustomHealthChecker) IsCritical() bool       { return c.critical }
func (c *CustomHealthChecker) Timeout() time.Duration { return c.timeout }

func (c *CustomHealthChecker) Check(ctx context.Context) CheckResult {
	return c.checkFn(ctx)
}
