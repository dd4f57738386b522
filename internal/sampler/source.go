package sampler

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
)

// seededSource wraps math/rand for deterministic, replayable selection —
// used when an engine is configured with a fixed seed for tests or
// benchmarks (spec §9 open question: both deterministic and cryptographic
// selection are supported, switchable by configuration).
type seededSource struct {
	r *mrand.Rand
}

// NewSeededSource returns a deterministic Source. The same seed always
// produces the same draw sequence.
func NewSeededSource(seed int64) Source {
	return &seededSource{r: mrand.New(mrand.NewSource(seed))}
}

func (s *seededSource) Uint64() uint64 { return s.r.Uint64() }

// cryptoSource draws from crypto/rand, for the cryptographic_selection
// configuration path where peer choice must not be predictable by an
// observer of prior draws.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by a CSPRNG.
func NewCryptoSource() Source { return cryptoSource{} }

func (cryptoSource) Uint64() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand.Read on a supported platform does not fail; if it
		// ever does, fall back to a fresh math/rand draw rather than
		// returning a zero that would bias selection.
		return mrand.Uint64()
	}
	return binary.BigEndian.Uint64(b[:])
}
