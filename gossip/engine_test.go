package gossip

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/agentsync/config"
)

// memoryNetwork routes Transport.Send calls directly into the target
// engine's Receive, simulating an in-process cluster for tests.
type memoryNetwork struct {
	mu      sync.Mutex
	engines map[string]*Engine
}

func newMemoryNetwork() *memoryNetwork {
	return &memoryNetwork{engines: map[string]*Engine{}}
}

func (n *memoryNetwork) register(id string, e *Engine) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.engines[id] = e
}

type memoryTransport struct {
	network *memoryNetwork
}

func (t *memoryTransport) Send(ctx context.Context, peer Peer, data []byte) error {
	t.network.mu.Lock()
	eng := t.network.engines[peer.ID]
	t.network.mu.Unlock()
	if eng == nil {
		return errPeerUnknown
	}
	return eng.Receive(ctx, data)
}

var errPeerUnknown = &peerUnknownError{}

type peerUnknownError struct{}

func (*peerUnknownError) Error() string { return "gossip: unknown peer in memory network" }

// replicaState is the minimal "agent state" a test replica merges gossip
// payloads into: a set of received event ids.
type replicaState struct {
	mu  sync.Mutex
	ids map[string]bool
}

func newReplicaState(seed ...string) *replicaState {
	r := &replicaState{ids: map[string]bool{}}
	for _, s := range seed {
		r.ids[s] = true
	}
	return r
}

func (r *replicaState) merge(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.ids[id] = true
	}
}

func (r *replicaState) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	return out
}

func (r *replicaState) has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids[id]
}

func buildCluster(t *testing.T, n, fanout int) ([]*Engine, []*replicaState) {
	t.Helper()
	network := newMemoryNetwork()
	engines := make([]*Engine, n)
	states := make([]*replicaState, n)

	for i := 0; i < n; i++ {
		id := replicaName(i)
		states[i] = newReplicaState()
		state := states[i]
		cfg := config.DefaultGossip()
		cfg.Fanout = fanout
		cfg.Seed = int64(i + 1)
		cb := Callbacks{
			GetLocalData: func(ctx context.Context) (LocalData, error) {
				return LocalData{IDs: state.list()}, nil
			},
			OnReceive: func(ctx context.Context, msg Message) error {
				var payload LocalData
				if err := json.Unmarshal(msg.Payload, &payload); err != nil {
					return err
				}
				state.merge(payload.IDs)
				return nil
			},
		}
		engines[i] = New(id, cfg, &memoryTransport{network: network}, cb, nil, nil, nil)
	}
	for i := 0; i < n; i++ {
		network.register(replicaName(i), engines[i])
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			engines[i].AddPeer(Peer{ID: replicaName(j)})
		}
	}
	return engines, states
}

func replicaName(i int) string {
	return "replica-" + string(rune('a'+i))
}

// TestGossipConvergence16Replicas is scenario S4: 16 replicas, fanout=3,
// no anti-entropy. Replica 0 publishes a single event; it must reach
// every replica within a generous round bound (the spec's expectation is
// convergence within ⌈log_3 16⌉ = 3 rounds in ≥95% of trials).
func TestGossipConvergence16Replicas(t *testing.T) {
	const n = 16
	const fanout = 3
	engines, states := buildCluster(t, n, fanout)

	states[0].merge([]string{"evt-1"})

	ctx := context.Background()
	const roundBound = 10
	converged := false
	for round := 0; round < roundBound; round++ {
		for _, e := range engines {
			_ = e.RunRound(ctx)
		}
		all := true
		for _, s := range states {
			if !s.has("evt-1") {
				all = false
				break
			}
		}
		if all {
			converged = true
			break
		}
	}
	require.True(t, converged, "all replicas should converge within %d rounds", roundBound)
}

func TestTTLForMatchesFormula(t *testing.T) {
	require.Equal(t, uint8(2), ttlFor(0))
	require.Equal(t, uint8(4), ttlFor(3))
	require.EqualValues(t, 6, ttlFor(15))
}

func TestRoundsToReachFormula(t *testing.T) {
	require.Equal(t, 3, RoundsToReach(3, 16))
	require.Equal(t, 0, RoundsToReach(3, 1))
}

func TestMessageEncodeDecodeRoundTrip(t *testing.T) {
	msg := Message{
		MessageID:   "m1",
		Type:        TypePush,
		SenderID:    "r1",
		TimestampMs: 1000,
		Round:       1,
		TTL:         3,
		Payload:     json.RawMessage(`{"a":1}`),
	}
	encoded, err := Encode(msg)
	require.NoError(t, err)
	require.True(t, encoded[len(encoded)-1] == '\n')

	decoded, ok, err := Decode(encoded)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, msg.MessageID, decoded.MessageID)
	require.Equal(t, msg.TTL, decoded.TTL)
}

func TestDecodeUnknownTypeDropsWithoutError(t *testing.T) {
	raw := []byte(`{"message_id":"m1","type":"not_a_real_type","sender_id":"r1","timestamp_ms":1,"round":1,"ttl":3,"payload":{}}`)
	_, ok, err := Decode(raw)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReceiveDropsDuplicateMessage(t *testing.T) {
	network := newMemoryNetwork()
	var received int
	cb := Callbacks{
		GetLocalData: func(context.Context) (LocalData, error) { return LocalData{}, nil },
		OnReceive: func(context.Context, Message) error {
			received++
			return nil
		},
	}
	cfg := config.DefaultGossip()
	e := New("r1", cfg, &memoryTransport{network: network}, cb, nil, nil, nil)

	msg, err := e.newMessage(TypePush, LocalData{IDs: []string{"x"}}, 3)
	require.NoError(t, err)
	encoded, err := Encode(msg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, e.Receive(ctx, encoded))
	require.NoError(t, e.Receive(ctx, encoded))
	require.Equal(t, 1, received)
}

func TestReceiveDropsExpiredTTL(t *testing.T) {
	network := newMemoryNetwork()
	var received int
	cb := Callbacks{
		GetLocalData: func(context.Context) (LocalData, error) { return LocalData{}, nil },
		OnReceive: func(context.Context, Message) error {
			received++
			return nil
		},
	}
	cfg := config.DefaultGossip()
	e := New("r1", cfg, &memoryTransport{network: network}, cb, nil, nil, nil)

	msg, err := e.newMessage(TypePush, LocalData{}, 0)
	require.NoError(t, err)
	encoded, err := Encode(msg)
	require.NoError(t, err)

	require.NoError(t, e.Receive(context.Background(), encoded))
	require.Equal(t, 0, received)
}

func TestAntiEntropyRespondsWithMissingEvents(t *testing.T) {
	network := newMemoryNetwork()

	responderState := newReplicaState("evt-1", "evt-2")
	responderCB := Callbacks{
		GetLocalData: func(context.Context) (LocalData, error) {
			return LocalData{IDs: responderState.list()}, nil
		},
		OnMissing: func(ctx context.Context, ids []string) ([]json.RawMessage, error) {
			out := make([]json.RawMessage, 0, len(ids))
			for _, id := range ids {
				b, _ := json.Marshal(id)
				out = append(out, b)
			}
			return out, nil
		},
	}
	responder := New("responder", config.DefaultGossip(), &memoryTransport{network: network}, responderCB, nil, nil, nil)
	network.register("responder", responder)

	initiatorState := newReplicaState()
	var pushed []json.RawMessage
	initiatorCB := Callbacks{
		GetLocalData: func(context.Context) (LocalData, error) {
			return LocalData{IDs: initiatorState.list()}, nil
		},
		OnReceive: func(ctx context.Context, msg Message) error {
			var payload LocalData
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return err
			}
			pushed = append(pushed, payload.Events...)
			return nil
		},
	}
	initiator := New("initiator", config.DefaultGossip(), &memoryTransport{network: network}, initiatorCB, nil, nil, nil)
	network.register("initiator", initiator)

	initiator.AddPeer(Peer{ID: "responder"})
	responder.AddPeer(Peer{ID: "initiator"})

	require.NoError(t, initiator.RunAntiEntropy(context.Background()))
	require.Len(t, pushed, 2)
}
