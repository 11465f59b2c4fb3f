package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/resilience"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestRunAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{"all up", map[string]Check{
			"db": PingCheck(pingFunc(func(context.Context) error { return nil })),
		}, StatusUp},
		{"index pending", map[string]Check{
			"db":    PingCheck(pingFunc(func(context.Context) error { return nil })),
			"index": IndexCheck("vol4", func() (int, bool) { return 0, false }),
		}, StatusDegraded},
		{"db down", map[string]Check{
			"db":    PingCheck(pingFunc(func(context.Context) error { return errors.New("refused") })),
			"index": IndexCheck("vol4", func() (int, bool) { return 0, false }),
		}, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			if got := c.Run(context.Background()).Status; got != tt.want {
				t.Errorf("status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBreakerCheck(t *testing.T) {
	cb := resilience.NewCircuitBreaker("store", resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	check := BreakerCheck(cb)
	if got := check(context.Background()).Status; got != StatusUp {
		t.Fatalf("closed breaker = %s", got)
	}
	cb.Execute(func() error { return errors.New("boom") })
	if got := check(context.Background()).Status; got != StatusDown {
		t.Errorf("open breaker = %s, want down", got)
	}
}

func TestReadyHandlerServesDegradedAsReady(t *testing.T) {
	c := NewChecker()
	c.Register("index", IndexCheck("vol4", func() (int, bool) { return 0, false }))
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("degraded readiness = %d, want 200", rec.Code)
	}

	c.Register("db", PingCheck(pingFunc(func(context.Context) error { return errors.New("down") })))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("down readiness = %d, want 503", rec.Code)
	}
}
