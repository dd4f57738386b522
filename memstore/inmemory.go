package memstore

import (
	"context"
	"strconv"
	"strings"
	"sync"
)

// InMemoryBackend is a concrete full implementation of Backend, used in
// tests and for small single-node deployments (spec §4 expansion note).
type InMemoryBackend struct {
	mu        sync.RWMutex
	connected bool
	entries   map[string]Entry
	nextID    int64
}

// NewInMemoryBackend returns an uninitialized in-memory backend.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{entries: map[string]Entry{}}
}

func (b *InMemoryBackend) Initialize(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return nil
}

func (b *InMemoryBackend) Capabilities() Capabilities {
	return Capabilities{SupportsSkillLearning: true}
}

func (b *InMemoryBackend) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

func (b *InMemoryBackend) Store(_ context.Context, entry Entry) (Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return Entry{}, notConnected()
	}
	b.nextID++
	entry.ID = strconv.FormatInt(b.nextID, 10)
	b.entries[entry.ID] = entry
	return entry, nil
}

func (b *InMemoryBackend) Retrieve(_ context.Context, id string) (*Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.connected {
		return nil, notConnected()
	}
	e, ok := b.entries[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// Search ranks entries by a trivial substring-match score; no ordering
// within equal scores is guaranteed (spec §4.8).
func (b *InMemoryBackend) Search(_ context.Context, query string, opts SearchOptions) ([]Scored, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.connected {
		return nil, notConnected()
	}
	var out []Scored
	q := strings.ToLower(query)
	for _, e := range b.entries {
		if opts.AgentID != "" && e.AgentID != opts.AgentID {
			continue
		}
		score := matchScore(strings.ToLower(e.Content), q)
		if score < opts.MinScore {
			continue
		}
		out = append(out, Scored{Entry: e, Score: score})
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func matchScore(content, query string) float64 {
	if query == "" {
		return 1
	}
	if strings.Contains(content, query) {
		return 1
	}
	return 0
}

func (b *InMemoryBackend) Update(_ context.Context, id string, partial Entry) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return false, notConnected()
	}
	existing, ok := b.entries[id]
	if !ok {
		return false, nil
	}
	existing = mergePartial(existing, partial)
	b.entries[id] = existing
	return true, nil
}

func mergePartial(existing, partial Entry) Entry {
	if partial.Content != "" {
		existing.Content = partial.Content
	}
	if partial.Embedding != nil {
		existing.Embedding = partial.Embedding
	}
	if partial.Importance != 0 {
		existing.Importance = partial.Importance
	}
	if partial.Tags != nil {
		existing.Tags = partial.Tags
	}
	if partial.Metadata != nil {
		existing.Metadata = partial.Metadata
	}
	return existing
}

// Delete is best-effort idempotent: deleting a missing id still reports
// success, matching spec §4.8/§9.
func (b *InMemoryBackend) Delete(_ context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return false, notConnected()
	}
	delete(b.entries, id)
	return true, nil
}

func (b *InMemoryBackend) StoreBatch(ctx context.Context, entries []Entry) ([]BatchResult, error) {
	out := make([]BatchResult, 0, len(entries))
	for _, e := range entries {
		stored, err := b.Store(ctx, e)
		out = append(out, BatchResult{Entry: stored, Err: err})
	}
	return out, nil
}
