// Package sampler provides the peer-selection primitives the gossip engine
// uses: uniform sampling without replacement for plain fanout, and weighted
// roulette-wheel sampling for load-balanced selection.
package sampler

import "errors"

var (
	ErrOutOfRange         = errors.New("sampler: weight out of range")
	ErrInsufficientWeight = errors.New("sampler: insufficient total weight for requested sample size")
)

// Sampler draws a sample of up to size distinct indices.
type Sampler interface {
	// Sample returns indices and true on success, or (nil, false) if size
	// exceeds what can be drawn without replacement.
	Sample(size int) ([]int, bool)
}

// Weighted is a Sampler initialized from a weight per index.
type Weighted interface {
	Sampler
	Initialize(weights []uint64) error
}

// Uniform is a Sampler initialized from a population count.
type Uniform interface {
	Sampler
	Initialize(count int) error
}

// Source is a source of pseudo-random uint64s.
type Source interface {
	Uint64() uint64
}
