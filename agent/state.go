// Package agent implements the agent-state composite (spec C3): the
// skill accumulator, episodic memory, and identity register built on top
// of package clock and package crdt.
package agent

import (
	"sort"

	"github.com/luxfi/agentsync/agentcrypto"
	"github.com/luxfi/agentsync/agentsyncerr"
	"github.com/luxfi/agentsync/clock"
	"github.com/luxfi/agentsync/crdt"
)

func sortEpisodesByID(episodes []EpisodeRecord) {
	sort.Slice(episodes, func(i, j int) bool { return episodes[i].ID < episodes[j].ID })
}

const component = "agent"

// IdentityRecord is the small struct carried by the identity LWW-Register.
type IdentityRecord struct {
	DisplayName string   `json:"display_name"`
	Designation string   `json:"designation"`
	Values      []string `json:"values"`
}

// State is one replica's view of an agent: immutable identity fields plus
// the mutable CRDT-backed skill/episode/identity state and the replica's
// vector clock. Every mutator returns a new State; the sync coordinator is
// the sole owner of any mutable slot holding one.
type State struct {
	AgentID   string `json:"agent_id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
	ReplicaID string `json:"replica_id"`

	Skills      Skills                        `json:"skills"`
	Episodes    Episodes                      `json:"-"`
	Identity    crdt.LWWRegister[IdentityRecord] `json:"-"`
	VectorClock clock.Clock                   `json:"vector_clock"`

	episodeTagCounter uint64
}

// Create returns a fresh agent state. agentID and createdAtMs are
// immutable from this point on — they are part of the fingerprint.
// replicaID identifies this particular replica for vector-clock purposes.
func Create(agentID, name, replicaID string, createdAtMs int64) State {
	return State{
		AgentID:     agentID,
		Name:        name,
		CreatedAt:   createdAtMs,
		ReplicaID:   replicaID,
		Skills:      newSkills(),
		Episodes:    newEpisodes(),
		Identity:    crdt.NewLWWRegister[IdentityRecord](),
		VectorClock: clock.Zero(),
	}
}

func (s State) bump() (clock.Clock, error) {
	return s.VectorClock.Increment(s.ReplicaID)
}

// UpdateSkill sets (or field-wise merges into) a skill's proficiency and
// last-used time.
func (s State) UpdateSkill(name string, proficiency float64, lastUsedMs int64) (State, error) {
	next := s
	rec := SkillRecord{Proficiency: proficiency, LastUsed: lastUsedMs}
	if cur, ok := s.Skills[name]; ok {
		rec = cur.Merge(rec)
	}
	next.Skills = s.Skills.clone()
	next.Skills[name] = rec
	vc, err := s.bump()
	if err != nil {
		return State{}, err
	}
	next.VectorClock = vc
	return next, nil
}

// RecordSkillUse increments a skill's usage count and advances its
// last-used time to nowMs. Using an unknown skill creates it at zero
// proficiency.
func (s State) RecordSkillUse(name string, nowMs int64) (State, error) {
	next := s
	next.Skills = s.Skills.clone()
	rec := next.Skills[name]
	rec.UsageCount++
	rec.LastUsed = maxInt64(rec.LastUsed, nowMs)
	next.Skills[name] = rec
	vc, err := s.bump()
	if err != nil {
		return State{}, err
	}
	next.VectorClock = vc
	return next, nil
}

// EpisodeInput is the caller-supplied content for a new episode; ID is
// assigned by AddEpisode if left empty.
type EpisodeInput struct {
	ID         string
	Content    string
	Context    string
	Outcome    string
	Timestamp  int64
	Importance float64
	Tags       []string
}

// AddEpisode appends a new episodic memory and returns the updated state
// and the assigned episode id.
func (s State) AddEpisode(in EpisodeInput) (State, string, error) {
	next := s
	tags := crdt.NewGSet[string]().Add(in.Tags...)
	rec := EpisodeRecord{
		ID:          in.ID,
		Content:     in.Content,
		Context:     in.Context,
		Outcome:     in.Outcome,
		TimestampMs: in.Timestamp,
		Importance:  in.Importance,
		Tags:        tags,
	}
	next.episodeTagCounter = s.episodeTagCounter + 1
	episodes, id := s.Episodes.Add(rec, s.ReplicaID, next.episodeTagCounter)
	next.Episodes = episodes
	vc, err := s.bump()
	if err != nil {
		return State{}, "", err
	}
	next.VectorClock = vc
	return next, id, nil
}

// ForgetEpisode tombstones the episode id for this replica.
func (s State) ForgetEpisode(id string) (State, error) {
	next := s
	next.Episodes = s.Episodes.Forget(id)
	vc, err := s.bump()
	if err != nil {
		return State{}, err
	}
	next.VectorClock = vc
	return next, nil
}

// SetIdentity replaces the identity record, attributed to this replica at
// nowMs.
func (s State) SetIdentity(identity IdentityRecord, nowMs int64) (State, error) {
	next := s
	next.Identity = s.Identity.Set(identity, nowMs, s.ReplicaID)
	vc, err := s.bump()
	if err != nil {
		return State{}, err
	}
	next.VectorClock = vc
	return next, nil
}

// Merge combines this state with another replica's observation of the
// same agent. It is an InvariantViolation to merge states with differing
// AgentID.
func (s State) Merge(other State) (State, error) {
	if s.AgentID != other.AgentID {
		return State{}, agentsyncerr.New(component, agentsyncerr.InvariantViolation, "", "cannot merge agent states with differing agent_id", nil)
	}
	out := s
	out.Skills = s.Skills.Merge(other.Skills)
	out.Episodes = s.Episodes.Merge(other.Episodes)
	out.Identity = s.Identity.Merge(other.Identity)
	out.VectorClock = s.VectorClock.Merge(other.VectorClock)
	return out, nil
}

// Fingerprint returns the stable hex(sha384(agent_id:name:created_at))
// identity, independent of any later skill/episode/identity mutation.
func (s State) Fingerprint() string {
	return agentcrypto.Fingerprint(s.AgentID, s.Name, s.CreatedAt)
}

// snapshot is the fully JSON-able projection of a State used for hashing
// (persisted snapshots use Wire instead); State itself carries unexported/non-marshalable fields
// (the episode tag counter, the OR-Set's internal tag bookkeeping) that
// canonical serialization must see through rather than silently drop.
type snapshot struct {
	AgentID     string          `json:"agent_id"`
	Name        string          `json:"name"`
	CreatedAt   int64           `json:"created_at"`
	ReplicaID   string          `json:"replica_id"`
	Skills      Skills          `json:"skills"`
	Episodes    []EpisodeRecord `json:"episodes"`
	Identity    IdentityRecord  `json:"identity"`
	VectorClock map[string]uint64 `json:"vector_clock"`
}

func (s State) snapshot() snapshot {
	episodes := s.Episodes.Value()
	sortEpisodesByID(episodes)
	return snapshot{
		AgentID:     s.AgentID,
		Name:        s.Name,
		CreatedAt:   s.CreatedAt,
		ReplicaID:   s.ReplicaID,
		Skills:      s.Skills,
		Episodes:    episodes,
		Identity:    s.Identity.Value,
		VectorClock: map[string]uint64(s.VectorClock),
	}
}

// StateHash returns blake3(canonical_serialize(state)), suitable for
// Merkle-tree anti-entropy digests and content-addressed snapshots.
func (s State) StateHash() ([agentcrypto.BLAKE3Size]byte, error) {
	return agentcrypto.StateHash(s.snapshot())
}

// Wire is the exported cross-replica projection of a State, transferred
// as a gossip payload. Unlike snapshot, it carries the full identity
// LWW-Register triple (value, timestamp, writer id) so a receiving
// replica can reconstruct a register that still merges correctly; it
// omits only bookkeeping with no meaning outside the replica that
// created it (the OR-Set's internal tags, the episode tag counter).
type Wire struct {
	AgentID           string            `json:"agent_id"`
	Name              string            `json:"name"`
	CreatedAt         int64             `json:"created_at"`
	Skills            Skills            `json:"skills"`
	Episodes          []EpisodeRecord   `json:"episodes"`
	IdentityValue     IdentityRecord    `json:"identity_value"`
	IdentityTimestamp int64             `json:"identity_timestamp"`
	IdentityWriterID  string            `json:"identity_writer_id"`
	IdentitySet       bool              `json:"identity_set"`
	VectorClock       map[string]uint64 `json:"vector_clock"`
}

// ToWire projects s for transmission.
func (s State) ToWire() Wire {
	episodes := s.Episodes.Value()
	sortEpisodesByID(episodes)
	return Wire{
		AgentID:           s.AgentID,
		Name:              s.Name,
		CreatedAt:         s.CreatedAt,
		Skills:            s.Skills,
		Episodes:          episodes,
		IdentityValue:     s.Identity.Value,
		IdentityTimestamp: s.Identity.Timestamp,
		IdentityWriterID:  s.Identity.WriterID,
		IdentitySet:       s.Identity.IsSet(),
		VectorClock:       map[string]uint64(s.VectorClock),
	}
}

// FromWire reconstructs a mergeable State from a peer's Wire projection.
// tagSource namespaces the fresh OR-Set tags minted for the episode list;
// callers should pass a value stable per sender (its replica id) so tags
// from distinct senders never collide. The result is never merged with
// itself as a standalone agent — it exists only to be passed to Merge.
func FromWire(w Wire, tagSource string) State {
	episodes := newEpisodes()
	for i, rec := range w.Episodes {
		episodes, _ = episodes.Add(rec, tagSource, uint64(i)+1)
	}
	return State{
		AgentID:     w.AgentID,
		Name:        w.Name,
		CreatedAt:   w.CreatedAt,
		ReplicaID:   tagSource,
		Skills:      w.Skills.clone(),
		Episodes:    episodes,
		Identity:    crdt.FromParts(w.IdentityValue, w.IdentityTimestamp, w.IdentityWriterID, w.IdentitySet),
		VectorClock: clock.Clock(w.VectorClock),
	}
}

// CanonicalBytes implements agentcrypto.Hashable so State can be embedded
// directly in other canonical-serialized structures (e.g. gossip payloads).
func (s State) CanonicalBytes() []byte {
	b, err := agentcrypto.CanonicalSerialize(s.snapshot())
	if err != nil {
		// snapshot() only contains JSON-primitive-shaped fields, so
		// serialization cannot fail; a non-nil err here would be a bug.
		return nil
	}
	return b
}
