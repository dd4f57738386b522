// Package merkle computes the Merkle root that anti-entropy probes carry
// alongside the sender's full id list.
package merkle

import (
	"sort"

	"github.com/luxfi/agentsync/agentcrypto"
)

// Root returns the Merkle root over the sorted, deduplicated ids. An empty
// input yields the hash of the empty string, so two empty sets always
// agree without a special case at the call site.
func Root(ids []string) [agentcrypto.BLAKE3Size]byte {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	sorted = dedup(sorted)

	if len(sorted) == 0 {
		return agentcrypto.BLAKE3([]byte{})
	}

	level := make([][agentcrypto.BLAKE3Size]byte, len(sorted))
	for i, id := range sorted {
		level[i] = agentcrypto.BLAKE3([]byte(id))
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][agentcrypto.BLAKE3Size]byte, len(level)/2)
		for i := 0; i < len(next); i++ {
			buf := make([]byte, 0, agentcrypto.BLAKE3Size*2)
			buf = append(buf, level[2*i][:]...)
			buf = append(buf, level[2*i+1][:]...)
			next[i] = agentcrypto.BLAKE3(buf)
		}
		level = next
	}
	return level[0]
}

func dedup(sorted []string) []string {
	out := sorted[:0]
	var last string
	first := true
	for _, v := range sorted {
		if first || v != last {
			out = append(out, v)
			last = v
			first = false
		}
	}
	return out
}

// Missing returns the ids present in theirs but absent from mine, the set
// an anti-entropy responder sends back to the initiator.
func Missing(mine, theirs []string) []string {
	have := make(map[string]struct{}, len(mine))
	for _, id := range mine {
		have[id] = struct{}{}
	}
	var out []string
	for _, id := range theirs {
		if _, ok := have[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
