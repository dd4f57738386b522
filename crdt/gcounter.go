// Package crdt implements the state-based CRDT primitives of spec C2.
// Every mutator returns a new value; merge is a pure function over two
// values. This keeps aliasing out of the contract — the sync coordinator
// is the sole owner of any mutable slot holding one of these values.
package crdt

import (
	"sort"
)

const component = "crdt"

// GCounter is a grow-only counter: a mapping replica -> count, whose value
// is the sum of all entries. Merge is pointwise max.
type GCounter map[string]uint64

// NewGCounter returns an empty G-Counter.
func NewGCounter() GCounter { return GCounter{} }

func (g GCounter) clone() GCounter {
	out := make(GCounter, len(g))
	for k, v := range g {
		out[k] = v
	}
	return out
}

// Increment returns a new counter with replica's entry increased by delta.
func (g GCounter) Increment(replica string, delta uint64) GCounter {
	out := g.clone()
	out[replica] += delta
	return out
}

// Value returns the sum of all replica entries.
func (g GCounter) Value() uint64 {
	var total uint64
	for _, v := range g {
		total += v
	}
	return total
}

// Merge returns the pointwise maximum of g and other.
func (g GCounter) Merge(other GCounter) GCounter {
	out := g.clone()
	for k, v := range other {
		if v > out[k] {
			out[k] = v
		}
	}
	return out
}

// CanonicalBytes implements agentcrypto.Hashable.
func (g GCounter) CanonicalBytes() []byte {
	return canonicalUint64Map(g)
}

func canonicalUint64Map(m map[string]uint64) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf := make([]byte, 0, 64)
	buf = append(buf, '{')
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendJSONString(buf, k)
		buf = append(buf, ':')
		buf = appendUint64(buf, m[k])
	}
	buf = append(buf, '}')
	return buf
}

func appendJSONString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for _, r := range s {
		switch r {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		default:
			buf = append(buf, string(r)...)
		}
	}
	return append(buf, '"')
}

func appendUint64(buf []byte, v uint64) []byte {
	return append(buf, []byte(itoa(v))...)
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var digits [20]byte
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	return string(digits[i:])
}
