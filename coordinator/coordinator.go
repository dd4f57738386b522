// Package coordinator implements the sync coordinator (spec C9): the
// component that binds agent state (C3) to the gossip engine (C5), the
// rate limiter / circuit breaker (C7), and the long-term backend (C8),
// orchestrating local-first writes, offline queueing, and reconciliation
// on reconnect.
package coordinator

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luxfi/agentsync/agent"
	"github.com/luxfi/agentsync/agentsyncerr"
	"github.com/luxfi/agentsync/byzantine"
	"github.com/luxfi/agentsync/clock"
	"github.com/luxfi/agentsync/config"
	"github.com/luxfi/agentsync/gossip"
	"github.com/luxfi/agentsync/internal/retry"
	"github.com/luxfi/agentsync/memstore"
	"github.com/luxfi/agentsync/obs"
	"github.com/luxfi/agentsync/ratelimit"
)

const component = "coordinator"

const resourceBackendWrite = "backend_write"

// outboundEvent is one not-yet-fully-propagated local write. Delta is a
// full state snapshot rather than a field-level diff: because CRDT merge
// is commutative, idempotent, and monotone, broadcasting whole state is
// always safe to merge redundantly, and it lets the coordinator recover
// from any gap without tracking per-field deltas (spec §4.9's "delta" is
// implemented as whole-state here; see DESIGN.md).
type outboundEvent struct {
	EventID       string            `json:"event_id"`
	ClockSnapshot map[string]uint64 `json:"causal_clock"`
	Delta         agent.Wire        `json:"delta"`
	CreatedAtMs   int64             `json:"created_at_ms"`
}

// Coordinator is the sole owner of the local agent state (spec §5's
// shared-resource policy): every mutation and merge is serialized through
// its mutex.
type Coordinator struct {
	mu    sync.Mutex
	state agent.State

	outbound []outboundEvent
	promoted map[string]bool // episode id -> already promoted to backend

	knownPeers map[string]bool

	engine  *gossip.Engine
	limiter *ratelimit.Limiter
	backend memstore.Backend

	cfg config.Sync
	log obs.Logger
	met *obs.Metrics
	now func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Coordinator around an already-constructed gossip engine,
// rate limiter, and backend. The caller is responsible for installing
// this Coordinator's Callbacks() (getLocalData, onReceive, onMissing) on
// the engine with SetCallbacks before starting either.
func New(initial agent.State, engine *gossip.Engine, limiter *ratelimit.Limiter, backend memstore.Backend, cfg config.Sync, metrics *obs.Metrics, log obs.Logger) *Coordinator {
	if log == nil {
		log = obs.NewNoOpLogger()
	}
	if metrics == nil {
		metrics = obs.NewNoOpMetrics()
	}
	if backend == nil {
		backend = memstore.NullBackend{}
	}
	return &Coordinator{
		state:      initial,
		promoted:   map[string]bool{},
		knownPeers: map[string]bool{},
		engine:     engine,
		limiter:    limiter,
		backend:    backend,
		cfg:        cfg,
		log:        log,
		met:        metrics,
		now:        time.Now,
	}
}

// Callbacks returns the gossip.Callbacks wiring this coordinator's
// methods into the engine, without the engine ever importing package
// agent (spec §9's cyclic-reference resolution).
func (c *Coordinator) Callbacks() gossip.Callbacks {
	return gossip.Callbacks{
		GetLocalData: c.getLocalData,
		OnReceive:    c.onReceive,
		OnMissing:    c.onMissing,
	}
}

// State returns a copy of the current agent state.
func (c *Coordinator) State() agent.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RegisterPeer adds a gossip peer and records its id in knownPeers. The
// outbound queue is not trimmed per peer: an event is dropped as soon as
// any single inbound merge carries a clock that dominates it.
func (c *Coordinator) RegisterPeer(p gossip.Peer) {
	c.mu.Lock()
	c.knownPeers[p.ID] = true
	c.mu.Unlock()
	c.engine.AddPeer(p)
}

// UnregisterPeer removes a peer from both the gossip engine and
// knownPeers.
func (c *Coordinator) UnregisterPeer(id string) {
	c.mu.Lock()
	delete(c.knownPeers, id)
	c.mu.Unlock()
	c.engine.RemovePeer(id)
}

func (c *Coordinator) nowMs() int64 { return c.now().UnixMilli() }

// enqueueLocked snapshots the current state into a fresh outbound event.
// Caller must hold c.mu.
func (c *Coordinator) enqueueLocked() {
	ev := outboundEvent{
		EventID:       uuid.NewString(),
		ClockSnapshot: map[string]uint64(c.state.VectorClock.Clone()),
		Delta:         c.state.ToWire(),
		CreatedAtMs:   c.nowMs(),
	}
	c.outbound = append(c.outbound, ev)
	c.met.OutboundQueueDepth.Set(float64(len(c.outbound)))
}

// UpdateSkill applies a skill update locally; it always succeeds (spec
// §4.9 step 1) and enqueues the resulting state for propagation.
func (c *Coordinator) UpdateSkill(name string, proficiency float64, lastUsedMs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := c.state.UpdateSkill(name, proficiency, lastUsedMs)
	if err != nil {
		return err
	}
	c.state = next
	c.enqueueLocked()
	return nil
}

// RecordSkillUse applies a skill-use mutation locally.
func (c *Coordinator) RecordSkillUse(name string, nowMs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := c.state.RecordSkillUse(name, nowMs)
	if err != nil {
		return err
	}
	c.state = next
	c.enqueueLocked()
	return nil
}

// AddEpisode applies a new episodic memory locally and returns its id.
func (c *Coordinator) AddEpisode(in agent.EpisodeInput) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, id, err := c.state.AddEpisode(in)
	if err != nil {
		return "", err
	}
	c.state = next
	c.enqueueLocked()
	return id, nil
}

// ForgetEpisode tombstones an episode locally.
func (c *Coordinator) ForgetEpisode(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := c.state.ForgetEpisode(id)
	if err != nil {
		return err
	}
	c.state = next
	c.enqueueLocked()
	return nil
}

// SetIdentity applies an identity change locally.
func (c *Coordinator) SetIdentity(identity agent.IdentityRecord, nowMs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := c.state.SetIdentity(identity, nowMs)
	if err != nil {
		return err
	}
	c.state = next
	c.enqueueLocked()
	return nil
}

// ReconcileSkillProficiency commits a canonical proficiency value from
// multiple replicas' observations via supermajority, falling back to the
// median when no value reaches supermajority (spec §4.6/§4.9).
func (c *Coordinator) ReconcileSkillProficiency(name string, observations []float64) (float64, error) {
	if len(observations) == 0 {
		return 0, agentsyncerr.New(component, agentsyncerr.InvariantViolation, "", "no observations to reconcile", nil)
	}
	eq := func(a, b float64) bool { return a == b }
	value, _ := byzantine.Commit(observations, eq)
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := c.state.UpdateSkill(name, value, c.nowMs())
	if err != nil {
		return 0, err
	}
	c.state = next
	c.enqueueLocked()
	return value, nil
}

// getLocalData is the gossip.Callbacks.GetLocalData implementation: it
// hands the engine every currently-queued outbound event, encoded as an
// opaque JSON envelope the engine never inspects.
func (c *Coordinator) getLocalData(context.Context) (gossip.LocalData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.outbound))
	events := make([]json.RawMessage, 0, len(c.outbound))
	for _, ev := range c.outbound {
		raw, err := json.Marshal(ev)
		if err != nil {
			return gossip.LocalData{}, agentsyncerr.New(component, agentsyncerr.ParseError, "", "marshal outbound event", err)
		}
		ids = append(ids, ev.EventID)
		events = append(events, raw)
	}
	return gossip.LocalData{IDs: ids, Events: events}, nil
}

// onReceive is the gossip.Callbacks.OnReceive implementation: it merges
// every event's delta into local state and, per spec §4.9 step 5, trims
// any outbound event whose clock is dominated by the merged delta.
func (c *Coordinator) onReceive(ctx context.Context, msg gossip.Message) error {
	var payload gossip.LocalData
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return agentsyncerr.New(component, agentsyncerr.ParseError, "", "decode gossip payload", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, raw := range payload.Events {
		var ev outboundEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return agentsyncerr.New(component, agentsyncerr.ParseError, "", "decode outbound event", err)
		}
		remote := agent.FromWire(ev.Delta, msg.SenderID)
		if remote.AgentID != c.state.AgentID {
			continue // gossip payload for a different agent; ignore rather than fail the round
		}
		merged, err := c.state.Merge(remote)
		if err != nil {
			return err
		}
		c.state = merged
		c.trimDominatedLocked(clock.Clock(ev.ClockSnapshot))
	}
	return nil
}

// trimDominatedLocked removes every queued outbound event whose clock
// snapshot is dominated by (before or equal to) incoming. Caller must
// hold c.mu.
func (c *Coordinator) trimDominatedLocked(incoming clock.Clock) {
	kept := c.outbound[:0]
	for _, ev := range c.outbound {
		snap := clock.Clock(ev.ClockSnapshot)
		order := snap.Compare(incoming)
		if order == clock.Before || order == clock.Equal {
			continue // already reflected by this merge; drop from the queue
		}
		kept = append(kept, ev)
	}
	c.outbound = kept
	c.met.OutboundQueueDepth.Set(float64(len(c.outbound)))
}

// onMissing is the gossip.Callbacks.OnMissing implementation for
// anti-entropy: it returns the raw envelopes for any requested ids still
// present in the outbound queue. Ids already trimmed or promoted are
// silently skipped — anti-entropy is best-effort, not all-or-nothing.
func (c *Coordinator) onMissing(ctx context.Context, ids []string) ([]json.RawMessage, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]json.RawMessage, 0, len(ids))
	for _, ev := range c.outbound {
		if !want[ev.EventID] {
			continue
		}
		raw, err := json.Marshal(ev)
		if err != nil {
			return nil, agentsyncerr.New(component, agentsyncerr.ParseError, "", "marshal outbound event", err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// Promote pushes aged or queue-pressured episodes to the long-term
// backend, admitted through the rate limiter (spec §4.9 step 4). Backend
// failures never block local writes; they only delay promotion.
func (c *Coordinator) Promote(ctx context.Context) error {
	c.mu.Lock()
	agentID := c.state.AgentID
	episodes := c.state.Episodes.Value()
	queueDepth := len(c.outbound)
	c.mu.Unlock()

	sort.Slice(episodes, func(i, j int) bool { return episodes[i].ID < episodes[j].ID })

	nowMs := c.nowMs()
	pressured := queueDepth > c.cfg.MaxQueuePrePromote
	var batch []memstore.Entry
	var ids []string
	for _, rec := range episodes {
		c.mu.Lock()
		already := c.promoted[rec.ID]
		c.mu.Unlock()
		if already {
			continue
		}
		aged := nowMs-rec.TimestampMs > c.cfg.OutboundRetentionMs
		important := rec.Importance >= 0.8
		if !aged && !important && !pressured {
			continue
		}
		batch = append(batch, memstore.Entry{
			Content:    rec.Content,
			Importance: rec.Importance,
			Timestamp:  rec.TimestampMs,
			Source:     memstore.SourceBeadPromotion,
			AgentID:    agentID,
			Tags:       rec.Tags.Value().List(),
		})
		ids = append(ids, rec.ID)
	}
	if len(batch) == 0 {
		return nil
	}

	if c.limiter != nil {
		admitted, _, err := c.limiter.Check(resourceBackendWrite, agentID)
		if !admitted {
			c.log.Warn("backend promotion denied by rate limiter", obs.Err(err))
			return nil
		}
	}

	var results []memstore.BatchResult
	err := retry.Do(ctx, c.cfg.Backoff, c.cfg.MaxStoreRetries, func() error {
		var storeErr error
		results, storeErr = c.backend.StoreBatch(ctx, batch)
		return storeErr
	})
	if c.limiter != nil {
		c.limiter.Record(resourceBackendWrite, err == nil)
	}
	if err != nil {
		c.met.BackendPromotions.WithLabelValues("failure").Inc()
		c.log.Warn("backend promotion failed", obs.Err(err))
		return nil
	}

	c.mu.Lock()
	for i, res := range results {
		if res.Err != nil {
			c.met.BackendPromotions.WithLabelValues("failure").Inc()
			continue
		}
		c.promoted[ids[i]] = true
		c.met.BackendPromotions.WithLabelValues("success").Inc()
	}
	c.mu.Unlock()
	return nil
}
