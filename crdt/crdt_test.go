package crdt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// S1 — G-Counter: replica A increments 3 times on "a", replica B once on
// "b"; merge in either order yields 4.
func TestGCounterScenarioS1(t *testing.T) {
	a := NewGCounter().Increment("a", 1).Increment("a", 1).Increment("a", 1)
	b := NewGCounter().Increment("b", 1)

	require.Equal(t, uint64(4), a.Merge(b).Value())
	require.Equal(t, uint64(4), b.Merge(a).Value())
}

func TestGCounterLaws(t *testing.T) {
	a := NewGCounter().Increment("r1", 3)
	b := NewGCounter().Increment("r2", 5)
	c := NewGCounter().Increment("r3", 7)

	require.Equal(t, a.Merge(b).Value(), b.Merge(a).Value())
	require.Equal(t, a.Merge(b).Merge(c).Value(), a.Merge(b.Merge(c)).Value())
	require.Equal(t, a.Value(), a.Merge(a).Value())
}

func TestPNCounter(t *testing.T) {
	a := NewPNCounter().Increment("r1", 10).Decrement("r1", 3)
	require.Equal(t, int64(7), a.Value())

	b := NewPNCounter().Increment("r2", 2)
	merged := a.Merge(b)
	require.Equal(t, int64(9), merged.Value())
	require.Equal(t, merged.Value(), b.Merge(a).Value())
}

func TestGSetLaws(t *testing.T) {
	a := NewGSet[string]().Add("x", "y")
	b := NewGSet[string]().Add("y", "z")

	require.True(t, a.Merge(b).Contains("x"))
	require.True(t, a.Merge(b).Contains("z"))
	require.Equal(t, a.Merge(b).Len(), b.Merge(a).Len())
	require.Equal(t, a.Len(), a.Merge(a).Len())
}

func TestTwoPSetCannotReAddAfterRemove(t *testing.T) {
	s := NewTwoPSet[string]().Add("x")
	require.True(t, s.Contains("x"))

	s = s.Remove("x")
	require.False(t, s.Contains("x"))

	s = s.Add("x")
	require.False(t, s.Contains("x"), "2P-Set must not allow re-adding a removed element")
}

// S3 — LWW-Register: concurrent ("a", ts=100, W1) and ("b", ts=100, W2);
// W2 > W1 lexicographically, so "b" wins.
func TestLWWRegisterScenarioS3(t *testing.T) {
	a := NewLWWRegister[string]().Set("a", 100, "W1")
	b := NewLWWRegister[string]().Set("b", 100, "W2")

	merged := a.Merge(b)
	require.Equal(t, "b", merged.Value)

	require.Equal(t, a.Merge(b).Value, b.Merge(a).Value)
}

func TestLWWRegisterLaterTimestampWins(t *testing.T) {
	a := NewLWWRegister[int]().Set(1, 10, "W1")
	b := NewLWWRegister[int]().Set(2, 20, "W1")
	require.Equal(t, 2, a.Merge(b).Value)
	require.Equal(t, 2, b.Merge(a).Value)
}

func TestLWWElementSet(t *testing.T) {
	s := NewLWWElementSet[string]().Add("x", 10)
	require.True(t, s.Contains("x"))

	s = s.Remove("x", 20)
	require.False(t, s.Contains("x"))

	s = s.Add("x", 20) // tie with remove -> add wins
	require.True(t, s.Contains("x"))
}

func TestLWWElementSetMergeCommutative(t *testing.T) {
	a := NewLWWElementSet[string]().Add("x", 5).Remove("y", 3)
	b := NewLWWElementSet[string]().Add("y", 10).Remove("x", 1)

	require.ElementsMatch(t, a.Merge(b).Value(), b.Merge(a).Value())
}

// S2 — OR-Set add-wins: A adds "x" (T1); B, observing T1, removes "x";
// concurrently C adds "x" with a new tag T2. After merge, "x" is present.
func TestORSetScenarioS2(t *testing.T) {
	replicaA := NewORSet[string]()
	t1 := NewReplicaTag("A", 1)
	replicaA = replicaA.Add("x", t1)

	// B observes A's state (has tag T1) then removes "x".
	replicaB := replicaA
	replicaB = replicaB.Remove(replicaB.ObservedTags("x")...)
	require.False(t, replicaB.Contains("x"))

	// C, concurrently, adds "x" under a fresh tag without having observed
	// anything from A or B.
	replicaC := NewORSet[string]()
	t2 := NewReplicaTag("C", 1)
	replicaC = replicaC.Add("x", t2)

	merged := replicaA.Merge(replicaB).Merge(replicaC)
	require.True(t, merged.Contains("x"), "OR-Set must resolve concurrent add vs remove as add-wins")
}

func TestORSetLaws(t *testing.T) {
	a := NewORSet[string]().Add("x", NewReplicaTag("A", 1))
	b := NewORSet[string]().Add("y", NewReplicaTag("B", 1))
	c := NewORSet[string]().Add("z", NewReplicaTag("C", 1))

	require.ElementsMatch(t, a.Merge(b).Value(), b.Merge(a).Value())
	lhs := a.Merge(b).Merge(c)
	rhs := a.Merge(b.Merge(c))
	require.ElementsMatch(t, lhs.Value(), rhs.Value())
	require.ElementsMatch(t, a.Value(), a.Merge(a).Value())
}

func TestORSetRemoveThenConcurrentAddAfterObserving(t *testing.T) {
	a := NewORSet[string]().Add("x", NewReplicaTag("A", 1))
	removed := a.RemoveElement("x")
	require.False(t, removed.Contains("x"))

	reAdded := removed.Add("x", NewReplicaTag("A", 2))
	require.True(t, reAdded.Contains("x"), "a fresh tag after remove must make the element live again")
}
