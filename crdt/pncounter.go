package crdt

// PNCounter is a counter supporting both increment and decrement, built
// from two G-Counters: value = P - N.
type PNCounter struct {
	P GCounter
	N GCounter
}

// NewPNCounter returns an empty PN-Counter.
func NewPNCounter() PNCounter {
	return PNCounter{P: NewGCounter(), N: NewGCounter()}
}

// Increment returns a new counter with replica's positive entry increased.
func (c PNCounter) Increment(replica string, delta uint64) PNCounter {
	return PNCounter{P: c.P.Increment(replica, delta), N: c.N}
}

// Decrement returns a new counter with replica's negative entry increased.
func (c PNCounter) Decrement(replica string, delta uint64) PNCounter {
	return PNCounter{P: c.P, N: c.N.Increment(replica, delta)}
}

// Value returns P.Value() - N.Value() as a signed integer.
func (c PNCounter) Value() int64 {
	return int64(c.P.Value()) - int64(c.N.Value())
}

// Merge merges both underlying counters independently.
func (c PNCounter) Merge(other PNCounter) PNCounter {
	return PNCounter{P: c.P.Merge(other.P), N: c.N.Merge(other.N)}
}

// CanonicalBytes implements agentcrypto.Hashable.
func (c PNCounter) CanonicalBytes() []byte {
	buf := append([]byte(`{"n":`), c.N.CanonicalBytes()...)
	buf = append(buf, []byte(`,"p":`)...)
	buf = append(buf, c.P.CanonicalBytes()...)
	return append(buf, '}')
}
