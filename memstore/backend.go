// Package memstore implements the pluggable long-term memory backend
// registry (spec C8): the integration seam for Zep/Mem0/Letta/native
// stores, plus an in-process backend used for tests and small
// deployments.
package memstore

import (
	"context"

	"github.com/luxfi/agentsync/agentsyncerr"
)

const component = "memstore"

// Source identifies why an entry was written.
type Source string

const (
	SourceBeadPromotion Source = "bead_promotion"
	SourceDirectStore   Source = "direct_store"
	SourceSkillLearning Source = "skill_learning"
	SourceFactExtraction Source = "fact_extraction"
)

// Entry is one long-term memory record (spec §3).
type Entry struct {
	ID         string            `json:"id,omitempty"`
	Content    string            `json:"content"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Importance float64           `json:"importance"`
	Timestamp  int64             `json:"timestamp_ms"`
	Source     Source            `json:"source"`
	UserID     string            `json:"user_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	AgentID    string            `json:"agent_id,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SearchOptions bounds a search call.
type SearchOptions struct {
	Limit     int
	MinScore  float64
	AgentID   string
}

// Scored pairs an entry with its search relevance score.
type Scored struct {
	Entry Entry
	Score float64
}

// Capabilities lets the coordinator gate features without probing.
type Capabilities struct {
	SupportsGraph         bool
	SupportsBlocks        bool
	SupportsFacts         bool
	SupportsEntities      bool
	SupportsSkillLearning bool
	SupportsReranking     bool
}

// Backend is the integration seam every long-term memory store implements
// (spec C8). Delete is best-effort idempotent (spec §9 open question):
// callers must not assume a deleted id becomes un-retrievable on every
// backend.
type Backend interface {
	Initialize(ctx context.Context) error
	Capabilities() Capabilities
	IsConnected() bool

	Store(ctx context.Context, entry Entry) (Entry, error)
	Retrieve(ctx context.Context, id string) (*Entry, error)
	Search(ctx context.Context, query string, opts SearchOptions) ([]Scored, error)
	Update(ctx context.Context, id string, partial Entry) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	StoreBatch(ctx context.Context, entries []Entry) ([]BatchResult, error)
}

// BatchResult reports the outcome of one entry within StoreBatch, since
// all-or-nothing is not required (spec §4.8).
type BatchResult struct {
	Entry Entry
	Err   error
}

// NotConnected is the error Backend operations return when the backend
// has never been initialized or has lost connectivity, without requiring
// an I/O round trip to report it.
func notConnected() error {
	return agentsyncerr.New(component, agentsyncerr.NotConnected, "", "backend is not connected", nil)
}

func notSupported(op string) error {
	return agentsyncerr.New(component, agentsyncerr.NotSupported, "", "operation not supported: "+op, nil)
}
