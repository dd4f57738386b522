package gossip

import (
	"sort"
	"sync"
)

// State is a peer's position in the per-peer failure state machine (spec
// §4.5): active on success, suspect after one failure, failed at the
// configured retry ceiling.
type State int

const (
	StateActive State = iota
	StateSuspect
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateSuspect:
		return "suspect"
	default:
		return "failed"
	}
}

// Peer is one gossip target. Utilization feeds the load-balanced
// selection weight; it is the caller's responsibility to keep it current
// via SetUtilization.
type Peer struct {
	ID           string
	Endpoint     string
	State        State
	FailureCount int
	Utilization  float64
	LastSeenMs   int64
}

// table is the engine's private mutable peer set. Exclusive writer: the
// gossip engine; readers may snapshot (spec §5's shared-resource policy).
type table struct {
	mu    sync.RWMutex
	order []string // insertion order, for selection tie-breaking
	peers map[string]*Peer
}

func newTable() *table {
	return &table{peers: map[string]*Peer{}}
}

func (t *table) upsert(p Peer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.peers[p.ID]; !ok {
		t.order = append(t.order, p.ID)
	}
	cp := p
	t.peers[p.ID] = &cp
}

func (t *table) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, id)
	for i, o := range t.order {
		if o == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *table) get(id string) (Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[id]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// active returns active peers in insertion order, the tie-break spec
// §4.5 names for selection.
func (t *table) active() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Peer, 0, len(t.order))
	for _, id := range t.order {
		if p := t.peers[id]; p.State == StateActive {
			out = append(out, *p)
		}
	}
	return out
}

func (t *table) setUtilization(id string, utilization float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[id]; ok {
		p.Utilization = utilization
	}
}

// markSuccess transitions a peer back to active and resets its failure
// streak.
func (t *table) markSuccess(id string, nowMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[id]; ok {
		p.State = StateActive
		p.FailureCount = 0
		p.LastSeenMs = nowMs
	}
}

// markFailure bumps the failure count and moves the peer to suspect on
// the first failure, failed once maxRetries is reached.
func (t *table) markFailure(id string, maxRetries int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[id]
	if !ok {
		return
	}
	p.FailureCount++
	if p.FailureCount >= maxRetries {
		p.State = StateFailed
	} else {
		p.State = StateSuspect
	}
}

// snapshot returns every known peer, sorted by id, for diagnostics.
func (t *table) snapshot() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
