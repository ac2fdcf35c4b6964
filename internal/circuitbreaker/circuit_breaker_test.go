package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(t *testing.T, cfg Config) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker("test", cfg, zaptest.NewLogger(t))
	cb.now = clock.now
	cb.resetGeneration(clock.now())
	return cb, clock
}

func TestCircuitBreakerStates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 3
	cfg.SuccessThreshold = 2
	cfg.MaxRequests = 5
	cfg.Timeout = 100 * time.Millisecond
	cfg.Interval = 0
	cb, clock := newTestBreaker(t, cfg)
	ctx := context.Background()
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed, got %s", cb.State())
	}

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("expected wrapped call error, got %v", err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitBreakerOpen) || called {
		t.Fatalf("open breaker should reject without calling, err=%v called=%v", err, called)
	}
	if !IsRejection(err) {
		t.Fatal("expected IsRejection to report breaker rejection")
	}

	clock.advance(150 * time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open after timeout, got %s", cb.State())
	}

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Fatalf("expected probe success, got %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after probes, got %s", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cfg.Timeout = time.Second
	cb, clock := newTestBreaker(t, cfg)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errors.New("x") })
	clock.advance(2 * time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.State())
	}
	_ = cb.Execute(ctx, func() error { return errors.New("still down") })
	if cb.State() != StateOpen {
		t.Fatalf("expected reopen, got %s", cb.State())
	}
}

func TestCircuitBreakerMaxRequests(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cfg.MaxRequests = 1
	cfg.SuccessThreshold = 5
	cfg.Timeout = time.Second
	cb, clock := newTestBreaker(t, cfg)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errors.New("x") })
	clock.advance(2 * time.Second)

	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("first probe should pass, got %v", err)
	}
	if err := cb.Execute(ctx, func() error { return nil }); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("expected ErrTooManyRequests, got %v", err)
	}
}

func TestCircuitBreakerIgnoresCallerCancellation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cb, _ := newTestBreaker(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := cb.Execute(ctx, func() error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("cancellation must not trip breaker, got %s", cb.State())
	}
}

func TestSettingsToConfigDefaults(t *testing.T) {
	c := Settings{FailureThreshold: 7}.ToConfig()
	if c.FailureThreshold != 7 {
		t.Fatalf("expected override, got %d", c.FailureThreshold)
	}
	if c.MaxRequests != DefaultConfig().MaxRequests {
		t.Fatalf("expected default max requests, got %d", c.MaxRequests)
	}
}

func TestHTTPWrapperCountsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.FailureThreshold = 2
	hw := NewHTTPWrapper(srv.Client(), "llm", "test-http", cfg, zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := hw.Do(req)
		if err != nil {
			t.Fatalf("5xx should be returned as a response, got %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadGateway {
			t.Fatalf("unexpected status %d", resp.StatusCode)
		}
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	if _, err := hw.Do(req); !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if got := GlobalMetricsCollector.Snapshot()["test-http:llm"]; got != StateOpen {
		t.Fatalf("expected snapshot open, got %s", got)
	}
}
