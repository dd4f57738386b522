// Package agentcrypto implements the crypto core (spec C4): content
// hashing, canonical serialization, Ed25519 signing, and the agent
// fingerprint derivation. Canonical serialization is the only
// serialization permitted as input to hashing anywhere in this module.
package agentcrypto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/luxfi/agentsync/agentsyncerr"
)

const component = "agentcrypto"

// Hashable is implemented by any value that can produce its own canonical
// byte representation directly, bypassing the generic JSON walk. CRDT
// primitives implement this so merges never need reflection.
type Hashable interface {
	CanonicalBytes() []byte
}

// CanonicalSerialize produces deterministic JSON: object keys in
// lexicographic order, no insignificant whitespace, numbers in the
// shortest round-trip form Go's encoding/json already produces, arrays in
// declaration order. It is the sole permitted input to hashing (spec §4.4).
func CanonicalSerialize(v interface{}) ([]byte, error) {
	if h, ok := v.(Hashable); ok {
		return h.CanonicalBytes(), nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, agentsyncerr.New(component, agentsyncerr.ParseError, "", "marshal for canonicalization", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, agentsyncerr.New(component, agentsyncerr.ParseError, "", "decode for canonicalization", err)
	}

	var buf bytes.Buffer
	if err := encodeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(string(val))
	case string:
		return encodeString(buf, val)
	case []interface{}:
		buf.WriteByte('[')
		for i, elt := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, elt); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return agentsyncerr.New(component, agentsyncerr.ParseError, "", fmt.Sprintf("unsupported canonical type %T", v), nil)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return agentsyncerr.New(component, agentsyncerr.ParseError, "", "marshal string for canonicalization", err)
	}
	buf.Write(b)
	return nil
}
