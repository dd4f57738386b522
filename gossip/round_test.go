package gossip

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/agentsync/config"
)

func TestRunRoundNoActivePeersIsNonFatal(t *testing.T) {
	cb := Callbacks{
		GetLocalData: func(context.Context) (LocalData, error) { return LocalData{}, nil },
	}
	e := New("solo", config.DefaultGossip(), &memoryTransport{network: newMemoryNetwork()}, cb, nil, nil, nil)
	err := e.RunRound(context.Background())
	require.ErrorIs(t, err, ErrNoActivePeers)
}

type failingTransport struct{}

func (failingTransport) Send(context.Context, Peer, []byte) error {
	return errPeerUnknown
}

func TestSendFailureMarksPeerSuspectAndIncrementsFailureCount(t *testing.T) {
	cb := Callbacks{
		GetLocalData: func(context.Context) (LocalData, error) { return LocalData{}, nil },
	}
	cfg := config.DefaultGossip()
	cfg.Fanout = 1
	e := New("r1", cfg, failingTransport{}, cb, nil, nil, nil)
	e.AddPeer(Peer{ID: "p1"})

	require.NoError(t, e.RunRound(context.Background()))

	p, ok := e.peers.get("p1")
	require.True(t, ok)
	require.Equal(t, StateSuspect, p.State)
	require.Equal(t, 1, p.FailureCount)
}

func TestMembershipMessageAddsPeer(t *testing.T) {
	network := newMemoryNetwork()
	cb := Callbacks{
		GetLocalData: func(context.Context) (LocalData, error) { return LocalData{}, nil },
	}
	e := New("r1", config.DefaultGossip(), &memoryTransport{network: network}, cb, nil, nil, nil)

	msg, err := e.newMessage(TypeMembership, membershipPayload{Peer: Peer{ID: "new-peer"}}, 1)
	require.NoError(t, err)
	encoded, err := Encode(msg)
	require.NoError(t, err)

	require.NoError(t, e.Receive(context.Background(), encoded))

	_, ok := e.peers.get("new-peer")
	require.True(t, ok)
}

func TestEstimatePropagationTime(t *testing.T) {
	require.Equal(t, int64(300), EstimatePropagationTime(3, 16, 100))
}
