package crdt

import (
	"fmt"
	"sort"

	iset "github.com/luxfi/agentsync/internal/set"
)

// GSet is a grow-only set of T: elements only ever accumulate.
type GSet[T comparable] struct {
	elements iset.Set[T]
}

// NewGSet returns an empty G-Set.
func NewGSet[T comparable]() GSet[T] {
	return GSet[T]{elements: iset.New[T](0)}
}

// Add returns a new set with elts added.
func (s GSet[T]) Add(elts ...T) GSet[T] {
	out := s.elements.Clone()
	out.Add(elts...)
	return GSet[T]{elements: out}
}

// Contains reports whether elt is present.
func (s GSet[T]) Contains(elt T) bool {
	return s.elements.Contains(elt)
}

// Value returns the set of present elements.
func (s GSet[T]) Value() iset.Set[T] {
	return s.elements.Clone()
}

// Len returns the number of elements.
func (s GSet[T]) Len() int { return s.elements.Len() }

// Merge returns the union of s and other.
func (s GSet[T]) Merge(other GSet[T]) GSet[T] {
	out := s.elements.Clone()
	out.Union(other.elements)
	return GSet[T]{elements: out}
}

// CanonicalBytes implements agentcrypto.Hashable. Elements are ordered by
// their fmt string form, which is stable for the string-typed sets this
// primitive is used for (episode tags).
func (s GSet[T]) CanonicalBytes() []byte {
	strs := make([]string, 0, s.elements.Len())
	for _, e := range s.elements.List() {
		strs = append(strs, fmt.Sprintf("%v", e))
	}
	sort.Strings(strs)
	buf := []byte{'['}
	for i, v := range strs {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendJSONString(buf, v)
	}
	return append(buf, ']')
}
