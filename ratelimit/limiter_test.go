package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/agentsync/config"
)

func TestLimiterChecksAreIndependentPerResource(t *testing.T) {
	cfg := config.DefaultRateLimit()
	cfg.BurstSize = 1
	cfg.RequestsPerSecond = 0.0001
	l := New(cfg, nil, nil)

	ok, _, err := l.Check("gossip", "c1")
	require.True(t, ok)
	require.NoError(t, err)

	ok, _, err = l.Check("gossip", "c1")
	require.False(t, ok)
	require.Error(t, err)

	ok, _, err = l.Check("backend", "c1")
	require.True(t, ok, "a different resource must not be throttled by gossip's bucket")
	require.NoError(t, err)
}

func TestLimiterRecordUpdatesBreaker(t *testing.T) {
	cfg := config.DefaultRateLimit()
	cfg.FailureThreshold = 1
	l := New(cfg, nil, nil)

	ok, _, err := l.Check("backend", "c1")
	require.True(t, ok)
	require.NoError(t, err)
	l.Record("backend", false)

	require.Equal(t, Open, l.StatsFor("backend").BreakerState)
}
