package gossip

import "math"

// RoundsToReach returns the expected number of gossip rounds for an update
// to reach all of n active peers under fanout f: ⌈log_f(n)⌉, per spec
// §4.5's convergence guarantee. n <= 1 never needs a round.
func RoundsToReach(fanout, n int) int {
	if n <= 1 || fanout <= 1 {
		if n <= 1 {
			return 0
		}
		return n - 1
	}
	rounds := math.Ceil(math.Log(float64(n)) / math.Log(float64(fanout)))
	return int(rounds)
}

// EstimatePropagationTime returns RoundsToReach(fanout, n) * intervalMs, the
// estimator spec §4.5 requires alongside RoundsToReach.
func EstimatePropagationTime(fanout, n int, intervalMs int64) int64 {
	return int64(RoundsToReach(fanout, n)) * intervalMs
}
