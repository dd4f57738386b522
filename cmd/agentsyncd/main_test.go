package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFirstNonEmptyPrefersEarliestSet(t *testing.T) {
	require.Equal(t, "a", firstNonEmpty("a", "b"))
	require.Equal(t, "b", firstNonEmpty("", "b"))
	require.Equal(t, "", firstNonEmpty("", ""))
}

func TestRootCmdRequiresAgentAndReplicaID(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	require.Error(t, err)
}

func TestRootCmdFlagDefaults(t *testing.T) {
	cmd := rootCmd()
	listenAddr, err := cmd.Flags().GetString("listen-addr")
	require.NoError(t, err)
	require.Equal(t, ":7946", listenAddr)

	backend, err := cmd.Flags().GetString("backend")
	require.NoError(t, err)
	require.Equal(t, "memory", backend)
}
