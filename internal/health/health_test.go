package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/jcjurado/outreach/internal/circuitbreaker"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type temporalFunc func(ctx context.Context) error

func (f temporalFunc) CheckHealth(ctx context.Context, _ *client.CheckHealthRequest) (*client.CheckHealthResponse, error) {
	if err := f(ctx); err != nil {
		return nil, err
	}
	return &client.CheckHealthResponse{}, nil
}

type breakerMap map[string]circuitbreaker.State

func (b breakerMap) Snapshot() map[string]circuitbreaker.State { return b }

func static(name string, critical bool, status CheckStatus) Checker {
	return NewCustomHealthChecker(name, critical, time.Second, func(context.Context) CheckResult {
		return CheckResult{Status: status}
	})
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		checkers []Checker
		status   CheckStatus
		ready    bool
	}{
		{"none registered", nil, StatusHealthy, true},
		{"all healthy", []Checker{static("temporal", true, StatusHealthy), static("redis", false, StatusHealthy)}, StatusHealthy, true},
		{"critical failing", []Checker{static("temporal", true, StatusUnhealthy), static("redis", false, StatusHealthy)}, StatusUnhealthy, false},
		{"non-critical failing", []Checker{static("temporal", true, StatusHealthy), static("redis", false, StatusUnhealthy)}, StatusDegraded, true},
		{"degraded", []Checker{static("temporal", true, StatusHealthy), static("circuit_breakers", false, StatusDegraded)}, StatusDegraded, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(time.Minute, zap.NewNop())
			for _, c := range tt.checkers {
				require.NoError(t, m.RegisterChecker(c))
			}
			detailed := m.GetDetailedHealth(context.Background())
			assert.Equal(t, tt.status, detailed.Overall.Status)
			assert.Equal(t, tt.ready, detailed.Overall.Ready)
			assert.True(t, detailed.Overall.Live)
			assert.Len(t, detailed.Components, len(tt.checkers))
		})
	}
}

func TestRegisterChecker(t *testing.T) {
	m := NewManager(0, nil)
	require.NoError(t, m.RegisterChecker(static("redis", false, StatusHealthy)))
	assert.Error(t, m.RegisterChecker(static("redis", false, StatusHealthy)))
	assert.Error(t, m.RegisterChecker(static("", false, StatusHealthy)))

	m.GetDetailedHealth(context.Background())
	assert.Contains(t, m.GetLastResults(), "redis")

	require.NoError(t, m.UnregisterChecker("redis"))
	assert.Error(t, m.UnregisterChecker("redis"))
	assert.Empty(t, m.GetLastResults())
}

func TestCheckTimeoutApplied(t *testing.T) {
	m := NewManager(time.Minute, zap.NewNop())
	slow := NewCustomHealthChecker("slow", true, 20*time.Millisecond, func(ctx context.Context) CheckResult {
		<-ctx.Done()
		return CheckResult{Status: StatusUnhealthy, Error: ctx.Err().Error()}
	})
	require.NoError(t, m.RegisterChecker(slow))

	detailed := m.GetDetailedHealth(context.Background())
	assert.Equal(t, StatusUnhealthy, detailed.Components["slow"].Status)
	assert.True(t, detailed.Components["slow"].Critical)
	assert.False(t, detailed.Overall.Ready)
}

func TestTemporalChecker(t *testing.T) {
	ok := NewTemporalChecker(temporalFunc(func(context.Context) error { return nil }))
	assert.Equal(t, StatusHealthy, ok.Check(context.Background()).Status)
	assert.True(t, ok.IsCritical())

	down := NewTemporalChecker(temporalFunc(func(context.Context) error { return errors.New("connection refused") }))
	res := down.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Contains(t, res.Error, "connection refused")
}

func TestPingChecker(t *testing.T) {
	healthy := NewPingChecker("redis", pingFunc(func(context.Context) error { return nil }), false)
	assert.Equal(t, StatusHealthy, healthy.Check(context.Background()).Status)
	assert.Equal(t, "redis", healthy.Name())
	assert.False(t, healthy.IsCritical())

	failing := NewPingChecker("postgres", pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }), true)
	res := failing.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.True(t, failing.IsCritical())

	slow := NewPingChecker("postgres", pingFunc(func(context.Context) error {
		time.Sleep(15 * time.Millisecond)
		return nil
	}), true)
	slow.slowAfter = 5 * time.Millisecond
	assert.Equal(t, StatusDegraded, slow.Check(context.Background()).Status)
}

func TestBreakerChecker(t *testing.T) {
	closed := NewBreakerChecker(breakerMap{"llm:model-service": circuitbreaker.StateClosed})
	assert.Equal(t, StatusHealthy, closed.Check(context.Background()).Status)

	open := NewBreakerChecker(breakerMap{
		"llm:model-service": circuitbreaker.StateClosed,
		"mail:sendgrid":     circuitbreaker.StateOpen,
	})
	res := open.Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Contains(t, res.Message, "mail:sendgrid")
	assert.Equal(t, "open", res.Details.(map[string]string)["mail:sendgrid"])
	assert.False(t, open.IsCritical())
}

func TestHTTPEndpoints(t *testing.T) {
	m := NewManager(time.Minute, zap.NewNop())
	require.NoError(t, m.RegisterChecker(static("temporal", true, StatusUnhealthy)))
	require.NoError(t, m.RegisterChecker(static("redis", false, StatusHealthy)))

	mux := http.NewServeMux()
	NewHTTPHandler(m, zap.NewNop()).RegisterRoutes(mux)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusServiceUnavailable, get("/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get("/health/ready").Code)
	assert.Equal(t, http.StatusOK, get("/health/live").Code)

	rec := get("/health/detailed")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var detailed DetailedHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detailed))
	assert.Equal(t, 2, detailed.Summary.Total)
	assert.Equal(t, 1, detailed.Summary.Unhealthy)
	assert.Equal(t, StatusUnhealthy, detailed.Components["temporal"].Status)

	cached := get("/health/detailed?cached=true")
	assert.Equal(t, http.StatusServiceUnavailable, cached.Code)

	post := httptest.NewRecorder()
	mux.ServeHTTP(post, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, post.Code)
}

func TestStartStop(t *testing.T) {
	m := NewManager(10*time.Millisecond, zap.NewNop())
	require.NoError(t, m.RegisterChecker(static("redis", false, StatusHealthy)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	assert.Error(t, m.Start(ctx))

	assert.Eventually(t, func() bool {
		_, ok := m.GetLastResults()["redis"]
		return ok
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())
}
