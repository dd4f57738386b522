package coordinator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/agentsync/agent"
	"github.com/luxfi/agentsync/config"
	"github.com/luxfi/agentsync/gossip"
	"github.com/luxfi/agentsync/memstore"
	"github.com/luxfi/agentsync/ratelimit"
)

// nullTransport never delivers anything; used where a test drives a
// single coordinator and never expects an actual gossip round to reach a
// peer.
type nullTransport struct{}

func (nullTransport) Send(ctx context.Context, peer gossip.Peer, data []byte) error { return nil }

func newTestCoordinator(t *testing.T, replicaID string) *Coordinator {
	t.Helper()
	st := agent.Create("agent-1", "Test Agent", replicaID, 1_000)
	eng := gossip.New(replicaID, config.DefaultGossip(), nullTransport{}, gossip.Callbacks{}, nil, nil, nil)
	cfg := config.Sync{
		OutboundRetentionMs: 3_600_000,
		MaxQueuePrePromote:  1_000,
	}
	c := New(st, eng, nil, memstore.NewInMemoryBackend(), cfg, nil, nil)
	eng.SetCallbacks(c.Callbacks())
	return c
}

func TestUpdateSkillEnqueuesOutboundEvent(t *testing.T) {
	c := newTestCoordinator(t, "replica-a")
	require.NoError(t, c.UpdateSkill("go", 0.5, 1_000))
	require.Len(t, c.outbound, 1)
	require.Equal(t, 0.5, c.State().Skills["go"].Proficiency)
}

func TestOnReceiveMergesAndTrimsDominatedOutbound(t *testing.T) {
	a := newTestCoordinator(t, "replica-a")
	b := newTestCoordinator(t, "replica-b")

	require.NoError(t, a.UpdateSkill("go", 0.4, 1_000))
	require.Len(t, a.outbound, 1)

	// simulate replica-b receiving replica-a's local data as a gossip message
	ctx := context.Background()
	data, err := a.getLocalData(ctx)
	require.NoError(t, err)
	payload, err := json.Marshal(data)
	require.NoError(t, err)

	msg := gossip.Message{SenderID: "replica-a", Payload: payload}
	require.NoError(t, b.onReceive(ctx, msg))
	require.Equal(t, 0.4, b.State().Skills["go"].Proficiency)

	// now replica-a receives its own event echoed back with a dominating
	// clock snapshot (as if replica-b's ack reflected it); the queued
	// event should be trimmed.
	require.NoError(t, a.onReceive(ctx, msg))
	require.Empty(t, a.outbound)
}

func TestReconcileSkillProficiencyCommitsSupermajority(t *testing.T) {
	c := newTestCoordinator(t, "replica-a")
	value, err := c.ReconcileSkillProficiency("go", []float64{0.7, 0.7, 0.7, 0.7, 0.7, 0.7, 0.9})
	require.NoError(t, err)
	require.Equal(t, 0.7, value)
	require.Equal(t, 0.7, c.State().Skills["go"].Proficiency)
}

func TestReconcileSkillProficiencyRequiresObservations(t *testing.T) {
	c := newTestCoordinator(t, "replica-a")
	_, err := c.ReconcileSkillProficiency("go", nil)
	require.Error(t, err)
}

func TestPromoteStoresAgedEpisodes(t *testing.T) {
	c := newTestCoordinator(t, "replica-a")
	backend := memstore.NewInMemoryBackend()
	require.NoError(t, backend.Initialize(context.Background()))
	c.backend = backend
	c.limiter = ratelimit.New(config.RateLimit{
		RequestsPerSecond: 100,
		BurstSize:         100,
		WindowLimit:       1_000,
		WindowSize:        1_000_000_000,
		FailureThreshold:  5,
		SuccessThreshold:  1,
		MaxHalfOpen:       1,
		BreakerTimeout:    1_000_000_000,
	}, nil, nil)

	_, err := c.AddEpisode(agent.EpisodeInput{
		ID:         "ep-1",
		Content:    "did a thing",
		Timestamp:  1_000,
		Importance: 0.9, // important regardless of age
	})
	require.NoError(t, err)

	require.NoError(t, c.Promote(context.Background()))
	require.True(t, c.promoted["ep-1"])
}

func TestPromoteSkipsAlreadyPromotedEpisode(t *testing.T) {
	c := newTestCoordinator(t, "replica-a")
	require.NoError(t, c.backend.Initialize(context.Background()))
	_, err := c.AddEpisode(agent.EpisodeInput{ID: "ep-1", Content: "x", Timestamp: 1_000, Importance: 0.9})
	require.NoError(t, err)
	require.NoError(t, c.Promote(context.Background()))
	require.True(t, c.promoted["ep-1"])

	// Promote again: backend must not be asked to store ep-1 a second time.
	countingBackend := &countingStoreBackend{Backend: memstore.NullBackend{}}
	c.backend = countingBackend
	require.NoError(t, c.Promote(context.Background()))
	require.Equal(t, 0, countingBackend.calls)
}

type countingStoreBackend struct {
	memstore.Backend
	calls int
}

func (b *countingStoreBackend) StoreBatch(ctx context.Context, entries []memstore.Entry) ([]memstore.BatchResult, error) {
	b.calls++
	return nil, nil
}

func TestSnapshotSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := newTestCoordinator(t, "replica-a")
	require.NoError(t, c.UpdateSkill("go", 0.6, 1_000))
	_, err := c.AddEpisode(agent.EpisodeInput{ID: "ep-1", Content: "hello", Timestamp: 1_000, Importance: 0.1})
	require.NoError(t, err)

	require.NoError(t, c.SaveSnapshot(dir))

	restored := newTestCoordinator(t, "replica-a")
	require.NoError(t, restored.LoadSnapshot(dir, false))
	require.Equal(t, c.State().Skills["go"].Proficiency, restored.State().Skills["go"].Proficiency)
	require.Len(t, restored.outbound, len(c.outbound))
}

func TestLoadSnapshotMissingFileIsNotError(t *testing.T) {
	c := newTestCoordinator(t, "replica-a")
	require.NoError(t, c.LoadSnapshot(t.TempDir(), false))
}

func TestLoadSnapshotCorruptAbortsWithoutRecoverFlag(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agentsync.snapshot.json"), []byte("{not json"), 0o644))

	c := newTestCoordinator(t, "replica-a")
	err := c.LoadSnapshot(dir, false)
	require.Error(t, err)
}

func TestLoadSnapshotCorruptRecoversFromScratchWhenAllowed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agentsync.snapshot.json"), []byte("{not json"), 0o644))

	c := newTestCoordinator(t, "replica-a")
	require.NoError(t, c.LoadSnapshot(dir, true))
}

func TestRegisterAndUnregisterPeer(t *testing.T) {
	c := newTestCoordinator(t, "replica-a")
	c.RegisterPeer(gossip.Peer{ID: "peer-1", Endpoint: "mem://peer-1"})
	require.True(t, c.knownPeers["peer-1"])
	c.UnregisterPeer("peer-1")
	require.False(t, c.knownPeers["peer-1"])
}
