package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/agentsync/obs"
)

func TestLoadRuntimeAppliesRecognizedVars(t *testing.T) {
	environ := []string{
		"AGENTSYNC_GOSSIP_FANOUT=7",
		"AGENTSYNC_LOG_LEVEL=debug",
		"PATH=/usr/bin",
	}
	rt, err := LoadRuntime(environ, obs.NewNoOpLogger())
	require.NoError(t, err)
	require.Equal(t, 7, rt.Gossip.Fanout)
	require.Equal(t, "debug", rt.LogLevel)
}

func TestLoadRuntimeWarnsOnUnrecognizedVar(t *testing.T) {
	environ := []string{"AGENTSYNC_NOT_A_REAL_KNOB=1"}
	mem := obs.NewMemoryLogger()
	rt, err := LoadRuntime(environ, mem)
	require.NoError(t, err)
	require.Equal(t, DefaultRuntime().Gossip, rt.Gossip)
	require.Len(t, mem.Records, 1)
	require.Equal(t, "warn", mem.Records[0].Level)
}

func TestGossipValidate(t *testing.T) {
	g := DefaultGossip()
	require.NoError(t, g.Validate())

	g.Fanout = 0
	require.ErrorIs(t, g.Validate(), ErrInvalidFanout)
}

func TestRateLimitDefaultsMatchScenarioS6(t *testing.T) {
	r := DefaultRateLimit()
	require.NoError(t, r.Validate())
	require.Equal(t, 5, r.FailureThreshold)
	require.Equal(t, 2, r.SuccessThreshold)
}
