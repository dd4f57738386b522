package agent

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"github.com/luxfi/agentsync/crdt"
)

// EpisodeRecord is one episodic memory. Tags are themselves a G-Set so
// concurrent taggers never lose each other's tags.
type EpisodeRecord struct {
	ID          string        `json:"id"`
	Content     string        `json:"content"`
	Context     string        `json:"context"`
	Outcome     string        `json:"outcome"`
	TimestampMs int64         `json:"timestamp_ms"`
	Importance  float64       `json:"importance"`
	Tags        crdt.GSet[string] `json:"-"`
}

// MarshalJSON projects Tags to a sorted string slice so canonical
// serialization of an episode is deterministic across replicas.
func (e EpisodeRecord) MarshalJSON() ([]byte, error) {
	type alias EpisodeRecord
	tags := e.Tags.Value().List()
	sort.Strings(tags)
	return json.Marshal(struct {
		alias
		Tags []string `json:"tags"`
	}{alias: alias(e), Tags: tags})
}

// Episodes is an OR-Set over episode ids with content carried alongside.
// Go's comparable constraint on crdt.ORSet rules out a struct containing a
// map-backed GSet as the set element type directly, so membership is
// tracked by id (a plain comparable string) and content is carried in a
// side map that unions on merge — equivalent add-wins behavior to spec
// C3's "OR-Set of episode records" without needing episode structs to be
// comparable.
type Episodes struct {
	ids     crdt.ORSet[string]
	content map[string]EpisodeRecord
}

func newEpisodes() Episodes {
	return Episodes{ids: crdt.NewORSet[string](), content: map[string]EpisodeRecord{}}
}

func (e Episodes) clone() Episodes {
	content := make(map[string]EpisodeRecord, len(e.content))
	for k, v := range e.content {
		content[k] = v
	}
	return Episodes{ids: e.ids, content: content}
}

// Add records rec (assigning an id if unset) under a fresh OR-Set tag
// attributed to replica, and returns the updated Episodes plus the id.
func (e Episodes) Add(rec EpisodeRecord, replica string, tagCounter uint64) (Episodes, string) {
	out := e.clone()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	out.ids = out.ids.Add(rec.ID, crdt.NewReplicaTag(replica, tagCounter))
	out.content[rec.ID] = rec
	return out, rec.ID
}

// Forget tombstones every tag this replica has observed for id.
func (e Episodes) Forget(id string) Episodes {
	out := e.clone()
	out.ids = out.ids.RemoveElement(id)
	return out
}

// Contains reports whether id is currently present (not forgotten).
func (e Episodes) Contains(id string) bool {
	return e.ids.Contains(id)
}

// Get returns the content for id if it is currently present.
func (e Episodes) Get(id string) (EpisodeRecord, bool) {
	if !e.Contains(id) {
		return EpisodeRecord{}, false
	}
	rec, ok := e.content[id]
	return rec, ok
}

// Value returns every currently-present episode record.
func (e Episodes) Value() []EpisodeRecord {
	ids := e.ids.Value()
	out := make([]EpisodeRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := e.content[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// Merge unions the id OR-Set and the content map. Content is immutable
// once created (spec C3 invariant on the fields that feed the id), so a
// conflicting entry for the same id keeps the existing side's value.
func (e Episodes) Merge(other Episodes) Episodes {
	out := e.clone()
	out.ids = out.ids.Merge(other.ids)
	for id, rec := range other.content {
		if _, ok := out.content[id]; !ok {
			out.content[id] = rec
		}
	}
	return out
}
