package gossip

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"github.com/luxfi/agentsync/agentcrypto"
	iset "github.com/luxfi/agentsync/internal/set"
)

// Type is the gossip message discriminant. The original carries an
// untyped payload; this is a tagged sum over the six variants spec §3
// fixes, with a single dispatch point in Engine.Receive.
type Type string

const (
	TypePush        Type = "push"
	TypePull        Type = "pull"
	TypePushPull    Type = "push_pull"
	TypeAntiEntropy Type = "anti_entropy"
	TypeHeartbeat   Type = "heartbeat"
	TypeMembership  Type = "membership"
)

func (t Type) known() bool {
	switch t {
	case TypePush, TypePull, TypePushPull, TypeAntiEntropy, TypeHeartbeat, TypeMembership:
		return true
	default:
		return false
	}
}

// HexBytes round-trips through JSON as lowercase hex, matching spec §6's
// "byte strings use lowercase hex" wire convention (encoding/json's
// default base64 for []byte does not).
type HexBytes []byte

func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

func (h *HexBytes) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// Message is the gossip wire envelope (spec §3). MessageID is unique per
// message; TTL strictly decreases on forward; SeenBy only ever grows.
type Message struct {
	MessageID   string           `json:"message_id"`
	Type        Type             `json:"type"`
	SenderID    string           `json:"sender_id"`
	TimestampMs int64            `json:"timestamp_ms"`
	Round       uint64           `json:"round"`
	TTL         uint8            `json:"ttl"`
	Payload     json.RawMessage  `json:"payload"`
	SeenBy      iset.Set[string] `json:"seen_by"`
	Signature   HexBytes         `json:"signature,omitempty"`
}

// CanonicalBytes implements agentcrypto.Hashable so a message's wire bytes
// are the canonical serialization of its envelope, independent of struct
// field order.
func (m Message) CanonicalBytes() []byte {
	seenBy := m.SeenBy.List()
	sort.Strings(seenBy)
	canon, err := agentcrypto.CanonicalSerialize(map[string]interface{}{
		"message_id":   m.MessageID,
		"type":         string(m.Type),
		"sender_id":    m.SenderID,
		"timestamp_ms": m.TimestampMs,
		"round":        m.Round,
		"ttl":          m.TTL,
		"payload":      m.Payload,
		"seen_by":      seenBy,
		"signature":    m.Signature,
	})
	if err != nil {
		// CanonicalSerialize only fails on a non-JSON-able value; every
		// field above is a JSON primitive, HexBytes, or already-marshaled
		// payload, all of which implement json.Marshaler or are primitives.
		panic(err)
	}
	return canon
}

// Encode produces the wire form: canonical JSON followed by a newline
// (spec §6).
func Encode(m Message) ([]byte, error) {
	canon, err := agentcrypto.CanonicalSerialize(m)
	if err != nil {
		return nil, err
	}
	return append(canon, '\n'), nil
}

// Decode parses a wire-format line. ok is false (with a nil error) when
// the message's type discriminant is unrecognized: per spec §6 that case
// must be counted and dropped, not treated as a parse failure.
func Decode(raw []byte) (Message, bool, error) {
	raw = bytes.TrimRight(raw, "\n")
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, false, err
	}
	if !m.Type.known() {
		return Message{}, false, nil
	}
	if m.SeenBy == nil {
		m.SeenBy = iset.Of[string]()
	}
	return m, true, nil
}

func newMessageID() string {
	return uuid.NewString()
}
