package agentcrypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalSerializeSortsKeys(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2, "c": 3}
	out, err := CanonicalSerialize(a)
	require.NoError(t, err)
	require.Equal(t, `{"a":2,"b":1,"c":3}`, string(out))
}

func TestCanonicalSerializeDeterministic(t *testing.T) {
	type s struct {
		Z string `json:"z"`
		A string `json:"a"`
	}
	a, err := CanonicalSerialize(s{Z: "1", A: "2"})
	require.NoError(t, err)
	b, err := CanonicalSerialize(s{Z: "1", A: "2"})
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, `{"a":"2","z":"1"}`, string(a))
}

func TestFingerprintStable(t *testing.T) {
	f1 := Fingerprint("agent-1", "scout", 1000)
	f2 := Fingerprint("agent-1", "scout", 1000)
	require.Equal(t, f1, f2)
	require.Len(t, f1, SHA384Size*2)

	f3 := Fingerprint("agent-1", "scout", 1001)
	require.NotEqual(t, f1, f3)
}

func TestStateHashDeterministic(t *testing.T) {
	state := map[string]interface{}{"skill": "go", "proficiency": 0.9}
	h1, err := StateHash(state)
	require.NoError(t, err)
	h2, err := StateHash(state)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("agent state delta")
	sig, err := Sign(kp.SecretKey, msg)
	require.NoError(t, err)
	require.True(t, Verify(kp.PublicKey, msg, sig))
}

func TestVerifyNeverErrorsOnMismatch(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	other, err := GenerateKeyPair()
	require.NoError(t, err)

	sig, err := Sign(kp.SecretKey, []byte("hello"))
	require.NoError(t, err)

	require.False(t, Verify(other.PublicKey, []byte("hello"), sig))
	require.False(t, Verify(kp.PublicKey, []byte("tampered"), sig))
	require.False(t, Verify(kp.PublicKey, []byte("hello"), []byte("not a signature")))
}
