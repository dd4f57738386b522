package gossip

import "testing"

func TestPeerStateMachine(t *testing.T) {
	tb := newTable()
	tb.upsert(Peer{ID: "p1"})

	p, ok := tb.get("p1")
	if !ok || p.State != StateActive {
		t.Fatalf("new peer should start active, got %v", p.State)
	}

	tb.markFailure("p1", 3)
	p, _ = tb.get("p1")
	if p.State != StateSuspect || p.FailureCount != 1 {
		t.Fatalf("first failure should move to suspect, got state=%v count=%d", p.State, p.FailureCount)
	}

	tb.markFailure("p1", 3)
	tb.markFailure("p1", 3)
	p, _ = tb.get("p1")
	if p.State != StateFailed {
		t.Fatalf("reaching max retries should move to failed, got %v", p.State)
	}

	tb.markSuccess("p1", 100)
	p, _ = tb.get("p1")
	if p.State != StateActive || p.FailureCount != 0 {
		t.Fatalf("success should reset to active, got state=%v count=%d", p.State, p.FailureCount)
	}
}

func TestTableActiveExcludesNonActive(t *testing.T) {
	tb := newTable()
	tb.upsert(Peer{ID: "p1"})
	tb.upsert(Peer{ID: "p2"})
	tb.markFailure("p2", 1)

	active := tb.active()
	if len(active) != 1 || active[0].ID != "p1" {
		t.Fatalf("expected only p1 active, got %v", active)
	}
}

func TestTableRemove(t *testing.T) {
	tb := newTable()
	tb.upsert(Peer{ID: "p1"})
	tb.remove("p1")
	if _, ok := tb.get("p1"); ok {
		t.Fatalf("removed peer should not be found")
	}
	if len(tb.active()) != 0 {
		t.Fatalf("removed peer should not appear in active list")
	}
}
