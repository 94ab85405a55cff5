package graph

import (
	"reflect"
	"testing"
)

func TestTipsSelect(t *testing.T) {
	tips := NewTips()

	tips.Add(0, EventID{1})
	tips.Add(2, EventID{2})
	tips.Add(5, EventID{3})

	ids, deepest := tips.Select(NumEventParents)

	if deepest != 5 {
		t.Fatalf("deepest layer should be 5, not %d", deepest)
	}
	if len(ids) != NumEventParents {
		t.Fatalf("Select should pad to %d slots, got %d", NumEventParents, len(ids))
	}

	// Deepest first.
	if ids[0] != (EventID{3}) {
		t.Fatalf("first selected tip should be the deepest, got %v", ids[0])
	}
	if ids[1] != (EventID{2}) || ids[2] != (EventID{1}) {
		t.Fatalf("tips should be selected deepest first, got %v", ids[:3])
	}
	for _, id := range ids[3:] {
		if !id.IsNull() {
			t.Fatal("unused slots should hold NullID")
		}
	}
}

func TestTipsSelectTruncates(t *testing.T) {
	tips := NewTips()
	for i := byte(0); i < 10; i++ {
		tips.Add(uint64(i), EventID{i + 1})
	}

	ids, deepest := tips.Select(NumEventParents)

	if deepest != 9 {
		t.Fatalf("deepest layer should be 9, not %d", deepest)
	}
	if len(ids) != NumEventParents {
		t.Fatalf("Select should cap at %d slots, got %d", NumEventParents, len(ids))
	}
	for _, id := range ids {
		if id.IsNull() {
			t.Fatal("no slot should be null when enough tips exist")
		}
	}
}

func TestTipsRemoveBelow(t *testing.T) {
	tips := NewTips()

	tips.Add(0, EventID{1})
	tips.Add(2, EventID{1})
	tips.Add(2, EventID{2})
	tips.Add(4, EventID{1})

	// The bound is exclusive: the entry at layer 4 survives, both shallower
	// entries of {1} go.
	tips.RemoveBelow(4, EventID{1})

	expected := map[uint64][]EventID{
		2: {{2}},
		4: {{1}},
	}
	if got := tips.Map(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("tips should be %v, not %v", expected, got)
	}

	if tips.Count() != 2 {
		t.Fatalf("Count should be 2, not %d", tips.Count())
	}
}

func TestTipsRemoveBelowDropsEmptyBuckets(t *testing.T) {
	tips := NewTips()
	tips.Add(0, EventID{1})
	tips.Add(1, EventID{2})

	tips.RemoveBelow(1, EventID{1})

	if _, ok := tips.Map()[0]; ok {
		t.Fatal("emptied bucket should be dropped from the index")
	}
	if tips.Count() != 1 {
		t.Fatalf("Count should be 1, not %d", tips.Count())
	}
}

func TestTipsReset(t *testing.T) {
	tips := NewTips()
	for i := byte(0); i < 5; i++ {
		tips.Add(uint64(i), EventID{i + 1})
	}

	tips.Reset(0, EventID{42})

	expected := map[uint64][]EventID{0: {{42}}}
	if got := tips.Map(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("tips after Reset should be %v, not %v", expected, got)
	}
}
