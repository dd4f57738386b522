package gossip

import "testing"

func TestSeenTableDedupAndSweep(t *testing.T) {
	s := newSeenTable(1000)
	if s.contains("m1") {
		t.Fatalf("fresh table should not contain anything")
	}
	s.insert("m1", 0)
	if !s.contains("m1") {
		t.Fatalf("inserted id should be contained")
	}

	removed := s.sweep(500)
	if removed != 0 {
		t.Fatalf("entry within expiry should not be swept, got %d removed", removed)
	}

	removed = s.sweep(2000)
	if removed != 1 {
		t.Fatalf("entry past expiry should be swept, got %d removed", removed)
	}
	if s.contains("m1") {
		t.Fatalf("swept entry should no longer be contained")
	}
}
