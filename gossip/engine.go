// Package gossip implements the epidemic gossip engine (spec C5): peer
// selection, push/pull/push-pull rounds, TTL-bounded forwarding,
// seen-set dedup, and Merkle-digest anti-entropy. It never imports the
// agent-state package; the sync coordinator injects callbacks so the two
// components can each own the other's data without a cyclic dependency
// (spec §9).
package gossip

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/agentsync/agentsyncerr"
	"github.com/luxfi/agentsync/config"
	"github.com/luxfi/agentsync/internal/merkle"
	"github.com/luxfi/agentsync/internal/retry"
	"github.com/luxfi/agentsync/internal/sampler"
	iset "github.com/luxfi/agentsync/internal/set"
	"github.com/luxfi/agentsync/obs"
	"github.com/luxfi/agentsync/ratelimit"
)

const component = "gossip"

// resource is the rate-limiter resource name every gossip send and
// anti-entropy RPC is admitted under (spec §4.7).
const resource = "gossip_send"

// Transport delivers an encoded message to a peer. Implementations carry
// their own connect/request timeouts (spec §5).
type Transport interface {
	Send(ctx context.Context, peer Peer, data []byte) error
}

// LocalData is what the injected GetLocalData callback returns: the
// events to gossip and the full id list anti-entropy compares against.
type LocalData struct {
	Events []json.RawMessage `json:"events"`
	IDs    []string          `json:"ids"`
}

// Callbacks decouples the engine from the agent-state type (spec §9's
// "cyclic references" resolution). GetLocalData and OnReceive are
// required; OnMissing may be nil, in which case anti-entropy responses
// are skipped.
type Callbacks struct {
	GetLocalData func(ctx context.Context) (LocalData, error)
	OnReceive    func(ctx context.Context, msg Message) error
	// OnMissing returns the serialized events for the given ids, for an
	// anti-entropy responder to send back to the initiator.
	OnMissing func(ctx context.Context, ids []string) ([]json.RawMessage, error)
}

// Engine is the gossip round driver. Zero value is not usable; construct
// with New.
type Engine struct {
	replicaID string
	cfg       config.Gossip
	transport Transport
	callbacks Callbacks
	limiter   *ratelimit.Limiter
	metrics   *obs.Metrics
	log       obs.Logger

	peers  *table
	seen   *seenTable
	round  uint64 // atomic
	source sampler.Source

	now func() time.Time

	selectMu sync.Mutex
}

// New builds an Engine. metrics and log may be nil to fall back to
// no-op instrumentation; limiter may be nil to skip admission control
// entirely (e.g. in tests).
func New(replicaID string, cfg config.Gossip, transport Transport, callbacks Callbacks, limiter *ratelimit.Limiter, metrics *obs.Metrics, log obs.Logger) *Engine {
	if metrics == nil {
		metrics = obs.NewNoOpMetrics()
	}
	if log == nil {
		log = obs.NewNoOpLogger()
	}
	var source sampler.Source
	if cfg.CryptographicSelection {
		source = sampler.NewCryptoSource()
	} else {
		source = sampler.NewSeededSource(cfg.Seed)
	}
	return &Engine{
		replicaID: replicaID,
		cfg:       cfg,
		transport: transport,
		callbacks: callbacks,
		limiter:   limiter,
		metrics:   metrics,
		log:       log,
		peers:     newTable(),
		seen:      newSeenTable(cfg.MessageExpiryMs),
		source:    source,
		now:       time.Now,
	}
}

// SetCallbacks installs the callbacks the engine dispatches into. It
// exists to break the coordinator/engine construction cycle (spec §9):
// build the engine first with zero-value Callbacks, construct the
// coordinator around it, then call SetCallbacks with the coordinator's
// own Callbacks() before starting either. Not safe to call concurrently
// with RunRound or Receive.
func (e *Engine) SetCallbacks(cb Callbacks) {
	e.callbacks = cb
}

// AddPeer registers or replaces a peer. The zero State is StateActive, so
// a Peer built without an explicit state starts active.
func (e *Engine) AddPeer(p Peer) {
	e.peers.upsert(p)
}

// RemovePeer drops a peer from the table entirely.
func (e *Engine) RemovePeer(id string) { e.peers.remove(id) }

// SetUtilization records a peer's current load, consumed by weighted
// selection.
func (e *Engine) SetUtilization(id string, utilization float64) {
	e.peers.setUtilization(id, utilization)
}

// Peers returns a snapshot of every known peer, for diagnostics.
func (e *Engine) Peers() []Peer { return e.peers.snapshot() }

func (e *Engine) nowMs() int64 { return e.now().UnixMilli() }

// ttlFor computes ⌈log2(peerCount+1)⌉+2, spec §4.5's round TTL.
func ttlFor(peerCount int) uint8 {
	if peerCount < 0 {
		peerCount = 0
	}
	v := math.Ceil(math.Log2(float64(peerCount+1))) + 2
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// selectPeers picks up to count active peers, tie-broken by insertion
// order (spec §4.5). Selection draws from a secure source when
// cryptographic_selection is configured, otherwise a seeded PRNG. When
// any candidate carries a nonzero utilization, selection is the
// load-balanced weighted roulette draw; otherwise it is a plain uniform
// draw.
func (e *Engine) selectPeers(count int, excluding iset.Set[string]) []Peer {
	e.selectMu.Lock()
	defer e.selectMu.Unlock()

	active := e.peers.active()
	candidates := active[:0:0]
	weighted := false
	for _, p := range active {
		if excluding != nil && excluding.Contains(p.ID) {
			continue
		}
		candidates = append(candidates, p)
		if p.Utilization != 0 {
			weighted = true
		}
	}
	if count > len(candidates) {
		count = len(candidates)
	}
	if count <= 0 {
		return nil
	}

	var idxs []int
	var ok bool
	if weighted {
		weights := make([]uint64, len(candidates))
		for i, p := range candidates {
			weights[i] = uint64(sampler.Weight(p.Utilization, e.cfg.LoadFactor) * 1000)
		}
		w := sampler.NewWeighted(e.source)
		if err := w.Initialize(weights); err != nil {
			weighted = false
		} else {
			idxs, ok = w.Sample(count)
		}
	}
	if !weighted {
		u := sampler.NewUniform(e.source)
		if err := u.Initialize(len(candidates)); err != nil {
			return nil
		}
		idxs, ok = u.Sample(count)
	}
	if !ok {
		return nil
	}
	out := make([]Peer, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, candidates[i])
	}
	return out
}

// newMessage builds an envelope with a fresh id, the engine's clock, and
// a one-member seen_by set.
func (e *Engine) newMessage(typ Type, payload interface{}, ttl uint8) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, agentsyncerr.New(component, agentsyncerr.ParseError, "", "marshal gossip payload", err)
	}
	seenBy := iset.Of(e.replicaID)
	return Message{
		MessageID:   newMessageID(),
		Type:        typ,
		SenderID:    e.replicaID,
		TimestampMs: e.nowMs(),
		Round:       atomic.LoadUint64(&e.round),
		TTL:         ttl,
		Payload:     raw,
		SeenBy:      seenBy,
	}, nil
}

// ErrNoActivePeers is non-fatal: the caller should skip the round.
var ErrNoActivePeers = agentsyncerr.New(component, agentsyncerr.Transient, "", "no active peers available for this round", nil)

// RunRound executes one push-pull round (spec §4.5 round structure).
func (e *Engine) RunRound(ctx context.Context) error {
	start := e.now()
	atomic.AddUint64(&e.round, 1)

	targets := e.selectPeers(e.cfg.Fanout, nil)
	if len(targets) == 0 {
		return ErrNoActivePeers
	}

	local, err := e.callbacks.GetLocalData(ctx)
	if err != nil {
		return err
	}

	ttl := ttlFor(len(e.peers.active()))
	msg, err := e.newMessage(TypePushPull, local, ttl)
	if err != nil {
		return err
	}

	for _, peer := range targets {
		if ctx.Err() != nil {
			return agentsyncerr.New(component, agentsyncerr.Cancelled, "", "round cancelled", ctx.Err())
		}
		e.sendTo(ctx, peer, msg)
	}

	e.seen.sweep(e.nowMs())
	e.metrics.GossipRoundDuration.Observe(e.now().Sub(start).Seconds())
	return nil
}

// sendTo admits the send through the rate limiter (if configured), then
// delivers it via the transport, retrying a locally-recoverable failure
// (Transient, Timeout, RateLimited) with exponential backoff up to
// cfg.MaxRetries attempts (spec §7's propagation policy), and updates
// peer state and metrics on the final outcome.
func (e *Engine) sendTo(ctx context.Context, peer Peer, msg Message) {
	if e.limiter != nil {
		admitted, _, err := e.limiter.Check(resource, peer.ID)
		if !admitted {
			e.log.Warn("gossip send denied by rate limiter", obs.String("peer", peer.ID), obs.Err(err))
			return
		}
	}

	encoded, err := Encode(msg)
	if err != nil {
		e.log.Error("failed to encode gossip message", obs.Err(err))
		return
	}

	sendErr := retry.Do(ctx, e.cfg.Backoff, e.cfg.MaxRetries, func() error {
		return e.transport.Send(ctx, peer, encoded)
	})
	if e.limiter != nil {
		e.limiter.Record(resource, sendErr == nil)
	}
	if sendErr != nil {
		e.peers.markFailure(peer.ID, e.cfg.MaxRetries)
		e.metrics.GossipMessagesDropped.WithLabelValues("send_failed").Inc()
		e.log.Warn("gossip send failed", obs.String("peer", peer.ID), obs.Err(sendErr))
		return
	}
	e.peers.markSuccess(peer.ID, e.nowMs())
	e.metrics.GossipMessagesSent.Inc()
}

func (e *Engine) expired(timestampMs int64) bool {
	return e.nowMs()-timestampMs > e.cfg.MessageExpiryMs
}

// Receive ingests a raw wire-format line (spec §6's ingress point).
// Malformed bytes yield a ParseError, never a panic; an unrecognized
// message type is counted and dropped without error.
func (e *Engine) Receive(ctx context.Context, raw []byte) error {
	msg, ok, err := Decode(raw)
	if err != nil {
		return agentsyncerr.New(component, agentsyncerr.ParseError, "", "decode gossip message", err)
	}
	if !ok {
		e.metrics.GossipMessagesDropped.WithLabelValues("unknown_type").Inc()
		return nil
	}

	if e.seen.contains(msg.MessageID) {
		e.metrics.GossipMessagesDropped.WithLabelValues("duplicate").Inc()
		return nil
	}
	if msg.TTL == 0 {
		e.metrics.GossipMessagesDropped.WithLabelValues("ttl_expired").Inc()
		return nil
	}
	if e.expired(msg.TimestampMs) {
		e.metrics.GossipMessagesDropped.WithLabelValues("message_expired").Inc()
		return nil
	}

	e.seen.insert(msg.MessageID, e.nowMs())
	msg.SeenBy.Add(e.replicaID)
	e.metrics.GossipMessagesReceived.Inc()

	switch msg.Type {
	case TypeMembership:
		return e.handleMembership(msg)
	case TypeAntiEntropy:
		return e.handleAntiEntropy(ctx, msg)
	default:
		if e.callbacks.OnReceive != nil {
			if err := e.callbacks.OnReceive(ctx, msg); err != nil {
				return err
			}
		}
		if msg.TTL > 1 {
			e.forward(ctx, msg)
		}
		return nil
	}
}

// forward relays msg, minus one hop of TTL, to up to fanout active peers
// not already recorded in seen_by (spec §4.5's receive path).
func (e *Engine) forward(ctx context.Context, msg Message) {
	targets := e.selectPeers(e.cfg.Fanout, msg.SeenBy)
	if len(targets) == 0 {
		return
	}
	next := msg
	next.TTL = msg.TTL - 1
	for _, peer := range targets {
		e.sendTo(ctx, peer, next)
	}
}

type membershipPayload struct {
	Peer Peer `json:"peer"`
}

// handleMembership applies a peer-table update carried in a membership
// message. The engine owns the peer table directly; this never touches
// the injected callbacks.
func (e *Engine) handleMembership(msg Message) error {
	var payload membershipPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return agentsyncerr.New(component, agentsyncerr.ParseError, "", "decode membership payload", err)
	}
	if payload.Peer.ID != "" && payload.Peer.ID != e.replicaID {
		e.peers.upsert(payload.Peer)
	}
	return nil
}

type antiEntropyPayload struct {
	MerkleRoot string   `json:"merkle_root"`
	IDs        []string `json:"ids"`
}

// RunAntiEntropy picks one peer and sends it {merkle_root, ids} computed
// over the sorted local id list (spec §4.5). Anti-entropy guarantees
// eventual delivery even when every direct push is dropped.
func (e *Engine) RunAntiEntropy(ctx context.Context) error {
	targets := e.selectPeers(1, nil)
	if len(targets) == 0 {
		return ErrNoActivePeers
	}

	local, err := e.callbacks.GetLocalData(ctx)
	if err != nil {
		return err
	}

	root := merkle.Root(local.IDs)
	payload := antiEntropyPayload{MerkleRoot: hex.EncodeToString(root[:]), IDs: local.IDs}
	msg, err := e.newMessage(TypeAntiEntropy, payload, 1)
	if err != nil {
		return err
	}
	e.sendTo(ctx, targets[0], msg)
	return nil
}

// handleAntiEntropy responds to an inbound anti-entropy probe: it diffs
// the sender's id list against the local one and, if OnMissing is wired,
// sends the sender's missing events back as a push.
func (e *Engine) handleAntiEntropy(ctx context.Context, msg Message) error {
	var payload antiEntropyPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return agentsyncerr.New(component, agentsyncerr.ParseError, "", "decode anti-entropy payload", err)
	}
	if e.callbacks.OnMissing == nil {
		return nil
	}
	local, err := e.callbacks.GetLocalData(ctx)
	if err != nil {
		return err
	}
	missingFromSender := merkle.Missing(payload.IDs, local.IDs)
	if len(missingFromSender) == 0 {
		return nil
	}
	events, err := e.callbacks.OnMissing(ctx, missingFromSender)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	peer, ok := e.peers.get(msg.SenderID)
	if !ok {
		return nil
	}
	reply, err := e.newMessage(TypePush, LocalData{Events: events}, 1)
	if err != nil {
		return err
	}
	e.sendTo(ctx, peer, reply)
	return nil
}
