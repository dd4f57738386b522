package crdt

import (
	iset "github.com/luxfi/agentsync/internal/set"
)

// TwoPSet is a two-phase set: an element is present iff it has been added
// and never removed. Once removed it can never be re-added (spec C2).
type TwoPSet[T comparable] struct {
	added   iset.Set[T]
	removed iset.Set[T]
}

// NewTwoPSet returns an empty 2P-Set.
func NewTwoPSet[T comparable]() TwoPSet[T] {
	return TwoPSet[T]{added: iset.New[T](0), removed: iset.New[T](0)}
}

// Add returns a new set with elt added. If elt was already removed, the
// add is recorded but Contains still reports false — tombstones are final.
func (s TwoPSet[T]) Add(elt T) TwoPSet[T] {
	added := s.added.Clone()
	added.Add(elt)
	return TwoPSet[T]{added: added, removed: s.removed.Clone()}
}

// Remove returns a new set with elt tombstoned.
func (s TwoPSet[T]) Remove(elt T) TwoPSet[T] {
	removed := s.removed.Clone()
	removed.Add(elt)
	return TwoPSet[T]{added: s.added.Clone(), removed: removed}
}

// Contains reports whether elt is present: added and not removed.
func (s TwoPSet[T]) Contains(elt T) bool {
	return s.added.Contains(elt) && !s.removed.Contains(elt)
}

// Value returns the currently present elements.
func (s TwoPSet[T]) Value() iset.Set[T] {
	out := iset.New[T](s.added.Len())
	for _, e := range s.added.List() {
		if !s.removed.Contains(e) {
			out.Add(e)
		}
	}
	return out
}

// Merge returns the union of both add-sets and both remove-sets.
func (s TwoPSet[T]) Merge(other TwoPSet[T]) TwoPSet[T] {
	added := s.added.Clone()
	added.Union(other.added)
	removed := s.removed.Clone()
	removed.Union(other.removed)
	return TwoPSet[T]{added: added, removed: removed}
}
