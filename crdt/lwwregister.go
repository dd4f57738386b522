package crdt

// LWWRegister is a last-writer-wins register: a (value, timestamp,
// writer-id) triple. Merge keeps the triple with the later timestamp;
// ties are broken by the lexicographically greater writer id (spec C2,
// scenario S3).
type LWWRegister[T any] struct {
	Value     T
	Timestamp int64
	WriterID  string
	set       bool
}

// NewLWWRegister returns an unset register; its zero Value is never
// observed unless Set has been called at least once (directly, or via
// Merge with a set register).
func NewLWWRegister[T any]() LWWRegister[T] {
	return LWWRegister[T]{}
}

// Set returns a new register holding value at timestamp, attributed to
// writerID.
func (r LWWRegister[T]) Set(value T, timestamp int64, writerID string) LWWRegister[T] {
	return LWWRegister[T]{Value: value, Timestamp: timestamp, WriterID: writerID, set: true}
}

// IsSet reports whether the register has ever been written.
func (r LWWRegister[T]) IsSet() bool { return r.set }

// FromParts reconstructs a register from its exported triple, for callers
// that serialize Value/Timestamp/WriterID/IsSet independently (e.g. a
// wire-format projection) and need to rebuild a mergeable register.
func FromParts[T any](value T, timestamp int64, writerID string, isSet bool) LWWRegister[T] {
	if !isSet {
		return LWWRegister[T]{}
	}
	return LWWRegister[T]{Value: value, Timestamp: timestamp, WriterID: writerID, set: true}
}

// wins reports whether candidate should replace current under the
// later-timestamp, higher-writer-id-breaks-ties rule.
func wins(curTS, candTS int64, curWriter, candWriter string, curSet, candSet bool) bool {
	if !candSet {
		return false
	}
	if !curSet {
		return true
	}
	if candTS != curTS {
		return candTS > curTS
	}
	return candWriter > curWriter
}

// Merge returns whichever of r, other wins under the LWW rule.
func (r LWWRegister[T]) Merge(other LWWRegister[T]) LWWRegister[T] {
	if wins(r.Timestamp, other.Timestamp, r.WriterID, other.WriterID, r.set, other.set) {
		return other
	}
	return r
}
