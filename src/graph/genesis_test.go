package graph

import (
	"testing"
	"time"
)

func TestGenesisShape(t *testing.T) {
	g := NewGenesis(1000)

	if !IsGenesis(g) {
		t.Fatal("NewGenesis should produce a genesis-shaped event")
	}
	if g.Header.Timestamp != 1000 {
		t.Fatalf("genesis timestamp should be 1000, not %d", g.Header.Timestamp)
	}
	if len(g.Header.ParentIDs()) != 0 {
		t.Fatal("genesis should have no parents")
	}

	// Same window, same event, same ID on every node.
	if g.ID() != NewGenesis(1000).ID() {
		t.Fatal("genesis derivation should be deterministic")
	}
	if g.ID() == NewGenesis(2000).ID() {
		t.Fatal("different windows should produce different genesis events")
	}
}

func TestCurrentGenesisTimestamp(t *testing.T) {
	anchor := uint64(1000000)
	rotation := time.Hour
	period := uint64(rotation / time.Millisecond)

	testCases := []struct {
		now      uint64
		expected uint64
	}{
		{anchor, anchor},
		{anchor + 1, anchor},
		{anchor + period - 1, anchor},
		{anchor + period, anchor + period},
		{anchor + period + 1, anchor + period},
		{anchor + 10*period + 42, anchor + 10*period},
	}

	for _, tc := range testCases {
		if got := CurrentGenesisTimestamp(anchor, rotation, tc.now); got != tc.expected {
			t.Fatalf("CurrentGenesisTimestamp(now=%d) should be %d, not %d",
				tc.now, tc.expected, got)
		}
	}

	// Rotation disabled: always the anchor.
	if got := CurrentGenesisTimestamp(anchor, 0, anchor+123456789); got != anchor {
		t.Fatalf("with rotation disabled the window start should be the anchor, not %d", got)
	}
}

func TestNextRotationTimestamp(t *testing.T) {
	anchor := uint64(1000000)
	rotation := time.Hour
	period := uint64(rotation / time.Millisecond)

	if got := NextRotationTimestamp(anchor, rotation, anchor); got != anchor+period {
		t.Fatalf("next boundary should be %d, not %d", anchor+period, got)
	}
	if got := NextRotationTimestamp(anchor, rotation, anchor+period+1); got != anchor+2*period {
		t.Fatalf("next boundary should be %d, not %d", anchor+2*period, got)
	}
	if got := NextRotationTimestamp(anchor, 0, anchor); got != 0 {
		t.Fatalf("disabled rotation should have no next boundary, got %d", got)
	}
}
