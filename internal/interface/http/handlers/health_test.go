package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ledger/student-service/pkg/circuitbreaker"
)

type breakerStub circuitbreaker.State

func (b breakerStub) BreakerState() circuitbreaker.State { return circuitbreaker.State(b) }

func ok(context.Context) error { return nil }

func TestCompositeHealthChecker(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(c *CompositeHealthChecker)
		healthy  bool
		degraded bool
		message  string
	}{
		{
			name:    "no checks",
			setup:   func(*CompositeHealthChecker) {},
			healthy: true,
			message: "No health checks registered",
		},
		{
			name: "all pass",
			setup: func(c *CompositeHealthChecker) {
				c.AddCheck("database", ok)
				c.AddOptionalCheck("billing", NewBreakerCheck(breakerStub(circuitbreaker.StateClosed)))
			},
			healthy: true,
			message: "All checks passed",
		},
		{
			name: "optional failure degrades",
			setup: func(c *CompositeHealthChecker) {
				c.AddCheck("database", ok)
				c.AddOptionalCheck("library", NewBreakerCheck(breakerStub(circuitbreaker.StateOpen)))
			},
			healthy:  true,
			degraded: true,
			message:  "Failed checks: library",
		},
		{
			name: "critical failure",
			setup: func(c *CompositeHealthChecker) {
				c.AddCheck("database", func(context.Context) error { return errors.New("connection refused") })
				c.AddOptionalCheck("cache", func(context.Context) error { return errors.New("timeout") })
			},
			healthy:  false,
			degraded: true,
			message:  "Failed checks: cache, database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCompositeHealthChecker("1.2.3")
			tt.setup(c)

			status := c.Check(context.Background())
			assert.Equal(t, tt.healthy, status.Healthy)
			assert.Equal(t, tt.degraded, status.Degraded)
			assert.Equal(t, tt.message, status.Message)
			assert.Equal(t, "1.2.3", status.Version)
		})
	}
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	c := NewCompositeHealthChecker("")
	c.SetTimeout(20 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())
	require.Contains(t, status.Checks, "slow")
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Checks["slow"].Message, "deadline exceeded")
}
