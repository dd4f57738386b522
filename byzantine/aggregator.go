// Package byzantine implements the Byzantine-resistant aggregator (spec
// C6): median and trimmed-mean statistics and 2f+1 supermajority voting,
// used to commit a canonical value derived from multiple replicas'
// observations of the same scalar.
package byzantine

import (
	"math"
	"sort"
)

// Median returns the exact median of values. For an even count, the lower
// of the two middle values is returned (a stable tie-break, spec §4.6).
// Median panics on an empty slice; callers must check len(values) > 0.
func Median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1]
}

// TrimmedMean drops floor(frac*n) observations from each end of the sorted
// sample and means the remainder.
func TrimmedMean(values []float64, frac float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	trim := int(frac * float64(n))
	if 2*trim >= n {
		// Degenerate configuration: trim everything. Fall back to the
		// full-sample mean rather than dividing by zero.
		trim = 0
	}
	kept := sorted[trim : n-trim]
	var sum float64
	for _, v := range kept {
		sum += v
	}
	return sum / float64(len(kept))
}

// Supermajority returns the value that at least ceil(2n/3)+1 observations
// consider equal under eq, or (zero, false) if no value meets that bar.
func Supermajority[T any](values []T, eq func(a, b T) bool) (T, bool) {
	var zero T
	n := len(values)
	if n == 0 {
		return zero, false
	}
	threshold := (2*n+2)/3 + 1

	counted := make([]bool, n)
	for i := 0; i < n; i++ {
		if counted[i] {
			continue
		}
		count := 1
		for j := i + 1; j < n; j++ {
			if !counted[j] && eq(values[i], values[j]) {
				count++
				counted[j] = true
			}
		}
		if count >= threshold {
			return values[i], true
		}
	}
	return zero, false
}

// Anomaly is a single observation flagged for being far from the sample
// mean, reported to observability but never silently dropped (spec §4.6).
type Anomaly struct {
	Index int
	Value float64
	Z     float64
}

// Anomalies returns every observation whose |z-score| exceeds threshold,
// provided the sample has at least minSamples observations (default
// threshold 2.0, default minSamples 10 per spec §4.6).
func Anomalies(values []float64, threshold float64, minSamples int) []Anomaly {
	if len(values) < minSamples {
		return nil
	}
	mean := meanOf(values)
	sd := stddevOf(values, mean)
	if sd == 0 {
		return nil
	}
	var out []Anomaly
	for i, v := range values {
		z := (v - mean) / sd
		if math.Abs(z) > threshold {
			out = append(out, Anomaly{Index: i, Value: v, Z: z})
		}
	}
	return out
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddevOf(values []float64, mean float64) float64 {
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// Commit derives the canonical value for a set of replica observations:
// supermajority if one exists, falling back to the median otherwise (spec
// §4.6 "Use").
func Commit(values []float64, eq func(a, b float64) bool) (value float64, viaSupermajority bool) {
	if v, ok := Supermajority(values, eq); ok {
		return v, true
	}
	return Median(values), false
}
