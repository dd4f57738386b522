package crdt

import (
	"fmt"

	"github.com/google/uuid"

	iset "github.com/luxfi/agentsync/internal/set"
)

// Tag uniquely identifies one add operation. The generator must be
// globally unique: spec C2 allows either a 128-bit random value or a
// (replica, monotonic counter) pair; NewTag and NewReplicaTag cover both.
type Tag string

// NewTag returns a random 128-bit tag (backed by a UUIDv4).
func NewTag() Tag {
	return Tag(uuid.NewString())
}

// NewReplicaTag returns a tag derived from a replica id and a monotonic
// per-replica counter, for callers that want reproducible tags in tests.
func NewReplicaTag(replica string, counter uint64) Tag {
	return Tag(fmt.Sprintf("%s#%d", replica, counter))
}

// ORSet is an observed-remove (add-wins) set: each add carries a unique
// tag; remove tombstones exactly the tags observed at the remover.
// Concurrent add vs remove resolves to add-wins (spec C2, scenario S2).
type ORSet[T comparable] struct {
	tagsOf     map[T]iset.Set[Tag]
	tombstoned iset.Set[Tag]
}

// NewORSet returns an empty OR-Set.
func NewORSet[T comparable]() ORSet[T] {
	return ORSet[T]{tagsOf: map[T]iset.Set[Tag]{}, tombstoned: iset.New[Tag](0)}
}

func (s ORSet[T]) clone() ORSet[T] {
	tagsOf := make(map[T]iset.Set[Tag], len(s.tagsOf))
	for elt, tags := range s.tagsOf {
		tagsOf[elt] = tags.Clone()
	}
	return ORSet[T]{tagsOf: tagsOf, tombstoned: s.tombstoned.Clone()}
}

// Add returns a new set with elt added under tag. tag must be unique
// across every add this replica has ever issued.
func (s ORSet[T]) Add(elt T, tag Tag) ORSet[T] {
	out := s.clone()
	tags, ok := out.tagsOf[elt]
	if !ok {
		tags = iset.New[Tag](1)
	}
	tags.Add(tag)
	out.tagsOf[elt] = tags
	return out
}

// ObservedTags returns the tags currently live for elt, for a caller that
// is about to issue a Remove and needs to record what it observed.
func (s ORSet[T]) ObservedTags(elt T) []Tag {
	tags, ok := s.tagsOf[elt]
	if !ok {
		return nil
	}
	live := make([]Tag, 0, tags.Len())
	for _, t := range tags.List() {
		if !s.tombstoned.Contains(t) {
			live = append(live, t)
		}
	}
	return live
}

// Remove tombstones exactly the given observed tags. Any tag added
// concurrently at another replica (and thus not in observedTags) survives,
// giving add-wins semantics.
func (s ORSet[T]) Remove(observedTags ...Tag) ORSet[T] {
	out := s.clone()
	out.tombstoned.Add(observedTags...)
	return out
}

// RemoveElement is a convenience that removes every tag currently observed
// for elt at this replica.
func (s ORSet[T]) RemoveElement(elt T) ORSet[T] {
	return s.Remove(s.ObservedTags(elt)...)
}

// Contains reports whether elt has at least one live (non-tombstoned) tag.
func (s ORSet[T]) Contains(elt T) bool {
	return len(s.ObservedTags(elt)) > 0
}

// Value returns the currently present elements.
func (s ORSet[T]) Value() []T {
	out := make([]T, 0, len(s.tagsOf))
	for elt := range s.tagsOf {
		if s.Contains(elt) {
			out = append(out, elt)
		}
	}
	return out
}

// Merge unions the tag sets per element and the tombstone sets.
func (s ORSet[T]) Merge(other ORSet[T]) ORSet[T] {
	out := s.clone()
	for elt, tags := range other.tagsOf {
		cur, ok := out.tagsOf[elt]
		if !ok {
			cur = iset.New[Tag](tags.Len())
		}
		cur.Union(tags)
		out.tagsOf[elt] = cur
	}
	out.tombstoned.Union(other.tombstoned)
	return out
}
