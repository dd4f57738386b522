package sampler

import "math"

// weighted implements a weighted-without-replacement roulette-wheel draw,
// adapted from the teacher's utils/sampler weightedWithoutReplacement: each
// draw samples a point in [0, totalWeight), locates the bucket it falls in
// via cumulative weight, and rejects duplicate indices so each peer is
// selected at most once per round.
type weighted struct {
	weights     []uint64
	totalWeight uint64
	source      Source
}

// NewWeighted returns a Weighted sampler drawing from source.
func NewWeighted(source Source) Weighted {
	return &weighted{source: source}
}

func (w *weighted) Initialize(weights []uint64) error {
	w.weights = make([]uint64, len(weights))
	copy(w.weights, weights)

	w.totalWeight = 0
	for _, wt := range weights {
		if wt > math.MaxUint64-w.totalWeight {
			return ErrOutOfRange
		}
		w.totalWeight += wt
	}
	return nil
}

func (w *weighted) Sample(size int) ([]int, bool) {
	if size < 0 {
		return nil, false
	}
	if size == 0 {
		return []int{}, true
	}
	nonZero := 0
	for _, wt := range w.weights {
		if wt > 0 {
			nonZero++
		}
	}
	if w.totalWeight == 0 || size > nonZero {
		return nil, false
	}

	indices := make([]int, 0, size)
	used := make(map[int]bool, size)
	for len(indices) < size {
		draw := w.source.Uint64() % w.totalWeight
		idx := w.locate(draw)
		if used[idx] || w.weights[idx] == 0 {
			continue
		}
		used[idx] = true
		indices = append(indices, idx)
	}
	return indices, true
}

// locate returns the index whose cumulative-weight bucket contains draw.
func (w *weighted) locate(draw uint64) int {
	var cum uint64
	for i, wt := range w.weights {
		cum += wt
		if draw < cum {
			return i
		}
	}
	return len(w.weights) - 1
}

// Weight computes the load-balanced selection weight spec §4.5 defines:
// max(0.01, 1-utilization) boosted by (1 + loadFactor*(1-utilization)).
func Weight(utilization, loadFactor float64) float64 {
	base := 1 - utilization
	if base < 0.01 {
		base = 0.01
	}
	return base * (1 + loadFactor*(1-utilization))
}
