package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// S6 — Circuit breaker cycle: failure_threshold=5, timeout=1000ms,
// success_threshold=2. Five consecutive failures -> open; immediate check
// -> denied; after timeout -> half-open probe allowed; two successes ->
// closed; one failure in half-open -> open again.
func TestScenarioS6CircuitBreakerCycle(t *testing.T) {
	cur := time.Unix(0, 0)
	clock := func() time.Time { return cur }
	b := newCircuitBreaker(5, 2, 1, 1000*time.Millisecond, clock)

	for i := 0; i < 5; i++ {
		require.True(t, b.admit())
		b.record(false)
	}
	require.Equal(t, Open, b.currentState())
	require.False(t, b.admit())

	cur = cur.Add(1000 * time.Millisecond)
	require.True(t, b.admit(), "half-open probe should be allowed once timeout elapses")
	require.Equal(t, HalfOpen, b.currentState())

	b.record(true)
	require.True(t, b.admit())
	b.record(true)
	require.Equal(t, Closed, b.currentState())

	for i := 0; i < 5; i++ {
		require.True(t, b.admit())
		b.record(false)
	}
	require.Equal(t, Open, b.currentState())

	cur = cur.Add(1000 * time.Millisecond)
	require.True(t, b.admit())
	require.Equal(t, HalfOpen, b.currentState())
	b.record(false)
	require.Equal(t, Open, b.currentState())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cur := time.Unix(0, 0)
	clock := func() time.Time { return cur }
	b := newCircuitBreaker(1, 2, 1, 100*time.Millisecond, clock)

	require.True(t, b.admit())
	b.record(false)
	require.Equal(t, Open, b.currentState())

	cur = cur.Add(100 * time.Millisecond)
	require.True(t, b.admit())
	b.record(false)
	require.Equal(t, Open, b.currentState())
}

func TestHalfOpenLimitsConcurrentProbes(t *testing.T) {
	cur := time.Unix(0, 0)
	clock := func() time.Time { return cur }
	b := newCircuitBreaker(1, 1, 1, 0, clock)

	require.True(t, b.admit())
	b.record(false)
	require.True(t, b.admit()) // timeout is 0, immediately half-open
	require.False(t, b.admit(), "only max_half_open probes may be in flight")
}
