package agentcrypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/luxfi/agentsync/agentsyncerr"
)

// SHA384Size and BLAKE3Size are the digest lengths spec §4.4 fixes.
const (
	SHA384Size = 48
	BLAKE3Size = 32
)

// SHA384 returns the SHA-384 digest of data. Deterministic and byte-exact
// across replicas by construction (stdlib implementation).
func SHA384(data []byte) [SHA384Size]byte {
	return sha512.Sum384(data)
}

// BLAKE3 returns the 32-byte BLAKE3 digest of data.
func BLAKE3(data []byte) [BLAKE3Size]byte {
	var out [BLAKE3Size]byte
	sum := blake3.Sum256(data)
	copy(out[:], sum[:])
	return out
}

// Fingerprint derives an agent's stable identity: hex(sha384("agentID:name:createdAt")).
// The triple is fixed-order per spec §9's open-question resolution; a
// full-object fingerprint is an unspecified extension and not implemented.
func Fingerprint(agentID, name string, createdAtMs int64) string {
	input := fmt.Sprintf("%s:%s:%d", agentID, name, createdAtMs)
	digest := SHA384([]byte(input))
	return hex.EncodeToString(digest[:])
}

// StateHash returns blake3(canonical_serialize(state)).
func StateHash(state interface{}) ([BLAKE3Size]byte, error) {
	canon, err := CanonicalSerialize(state)
	if err != nil {
		return [BLAKE3Size]byte{}, err
	}
	return BLAKE3(canon), nil
}

// KeyPair is an Ed25519 identity. SecretKey must never be logged.
type KeyPair struct {
	PublicKey ed25519.PublicKey
	SecretKey ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh Ed25519 identity.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, agentsyncerr.New(component, agentsyncerr.MalformedKey, "", "generate ed25519 keypair", err)
	}
	return KeyPair{PublicKey: pub, SecretKey: priv}, nil
}

// Sign signs message with secretKey.
func Sign(secretKey ed25519.PrivateKey, message []byte) ([]byte, error) {
	if len(secretKey) != ed25519.PrivateKeySize {
		return nil, agentsyncerr.New(component, agentsyncerr.MalformedKey, "", "secret key has wrong size", nil)
	}
	return ed25519.Sign(secretKey, message), nil
}

// Verify checks signature over message under publicKey. It never panics or
// returns an error on mismatch — callers get a plain boolean, per spec §4.4.
// ed25519.Verify already runs in constant time with respect to the message
// and signature contents.
func Verify(publicKey ed25519.PublicKey, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(publicKey, message, signature)
}
