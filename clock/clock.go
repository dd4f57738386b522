// Package clock implements the vector-clock causality primitive (spec C1):
// a per-replica logical time used to detect happens-before and concurrent
// relationships across agent-state replicas.
package clock

import (
	"math"
	"sort"

	"github.com/luxfi/agentsync/agentsyncerr"
)

const component = "clock"

// Order is the result of comparing two vector clocks.
type Order int

const (
	Equal Order = iota
	Before
	After
	Concurrent
)

func (o Order) String() string {
	switch o {
	case Equal:
		return "equal"
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "concurrent"
	}
}

// Clock is a mapping from replica id to a monotonically non-decreasing
// counter. A missing key is equivalent to that key mapped to 0.
type Clock map[string]uint64

// Zero returns an empty clock.
func Zero() Clock { return Clock{} }

// Singleton returns a clock with a single replica's counter set to n.
func Singleton(replica string, n uint64) Clock {
	return Clock{replica: n}
}

// Get returns the counter for replica, or 0 if absent.
func (c Clock) Get(replica string) uint64 {
	return c[replica]
}

// Clone returns an independent copy, so a Clock can be handed out by value
// without aliasing the owner's map.
func (c Clock) Clone() Clock {
	out := make(Clock, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Increment returns a new clock with replica's counter incremented by one.
// It never mutates the receiver.
func (c Clock) Increment(replica string) (Clock, error) {
	cur := c[replica]
	if cur == math.MaxUint64 {
		return nil, agentsyncerr.New(component, agentsyncerr.OverflowError, "", "vector clock counter overflow for replica "+replica, nil)
	}
	out := c.Clone()
	out[replica] = cur + 1
	return out, nil
}

// Merge returns the pointwise maximum of c and other.
func (c Clock) Merge(other Clock) Clock {
	out := c.Clone()
	for k, v := range other {
		if v > out[k] {
			out[k] = v
		}
	}
	return out
}

// Sum returns the sum of all counters, ignoring replica identity — a cheap
// total-order-breaking tiebreaker, not a substitute for Compare.
func (c Clock) Sum() uint64 {
	var total uint64
	for _, v := range c {
		total += v
	}
	return total
}

// Equal reports structural equality, treating absent keys as zero.
func (c Clock) Equal(other Clock) bool {
	return c.Compare(other) == Equal
}

// Compare returns the happens-before relationship of c to other.
func (c Clock) Compare(other Clock) Order {
	leNotEq := false // c has some entry strictly less than other
	geNotEq := false // c has some entry strictly greater than other

	keys := make(map[string]struct{}, len(c)+len(other))
	for k := range c {
		keys[k] = struct{}{}
	}
	for k := range other {
		keys[k] = struct{}{}
	}
	for k := range keys {
		a, b := c[k], other[k]
		switch {
		case a < b:
			leNotEq = true
		case a > b:
			geNotEq = true
		}
	}

	switch {
	case !leNotEq && !geNotEq:
		return Equal
	case leNotEq && !geNotEq:
		return Before
	case !leNotEq && geNotEq:
		return After
	default:
		return Concurrent
	}
}

// Replicas returns the sorted list of replica ids with a non-zero entry,
// for deterministic iteration in canonical serialization.
func (c Clock) Replicas() []string {
	out := make([]string, 0, len(c))
	for k, v := range c {
		if v != 0 {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
