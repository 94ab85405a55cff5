package graph

import (
	"bytes"
	"sort"

	"github.com/google/btree"
)

type tipBucket struct {
	layer uint64
	ids   map[EventID]struct{}
}

func lessTipBucket(a, b *tipBucket) bool {
	return a.layer < b.layer
}

// Tips is the unreferenced-tip index: a layer-ordered collection of the event
// IDs that currently have no children. It is the append frontier used to pick
// parents for new events and to drive sync. Tips is not safe for concurrent
// use; the Graph guards it with its own lock.
type Tips struct {
	buckets *btree.BTreeG[*tipBucket]
}

// NewTips ...
func NewTips() *Tips {
	return &Tips{
		buckets: btree.NewG[*tipBucket](8, lessTipBucket),
	}
}

// Add inserts an ID into its layer's bucket.
func (t *Tips) Add(layer uint64, id EventID) {
	bucket, ok := t.buckets.Get(&tipBucket{layer: layer})
	if !ok {
		bucket = &tipBucket{layer: layer, ids: map[EventID]struct{}{}}
		t.buckets.ReplaceOrInsert(bucket)
	}
	bucket.ids[id] = struct{}{}
}

// RemoveBelow removes the ID from every bucket at a layer strictly shallower
// than limit. All shallower layers are scanned, not just one, because an
// event may legally reference a tip much older than its own layer. Buckets
// left empty are dropped from the index.
func (t *Tips) RemoveBelow(limit uint64, id EventID) {
	emptied := []*tipBucket{}

	t.buckets.AscendLessThan(&tipBucket{layer: limit}, func(bucket *tipBucket) bool {
		if _, ok := bucket.ids[id]; ok {
			delete(bucket.ids, id)
			if len(bucket.ids) == 0 {
				emptied = append(emptied, bucket)
			}
		}
		return true
	})

	for _, bucket := range emptied {
		t.buckets.Delete(bucket)
	}
}

// Select returns up to n tip IDs, deepest layers first, padded with NullID
// when fewer tips than slots exist. It also returns the deepest layer that
// holds a tip. Deeper tips are favored because they represent more recent
// history.
func (t *Tips) Select(n int) ([]EventID, uint64) {
	ids := []EventID{}
	deepest := uint64(0)
	first := true

	t.buckets.Descend(func(bucket *tipBucket) bool {
		if first {
			deepest = bucket.layer
			first = false
		}
		for id := range bucket.ids {
			if len(ids) == n {
				return false
			}
			ids = append(ids, id)
		}
		return len(ids) < n
	})

	for len(ids) < n {
		ids = append(ids, NullID)
	}

	return ids, deepest
}

// Count returns the total number of tips across all layers.
func (t *Tips) Count() int {
	count := 0
	t.buckets.Ascend(func(bucket *tipBucket) bool {
		count += len(bucket.ids)
		return true
	})
	return count
}

// Map returns a copy of the index as a layer-keyed map with the IDs of each
// layer sorted. It is the shape carried by tip-report messages and compared
// in the tip-index invariant tests.
func (t *Tips) Map() map[uint64][]EventID {
	res := map[uint64][]EventID{}
	t.buckets.Ascend(func(bucket *tipBucket) bool {
		ids := make([]EventID, 0, len(bucket.ids))
		for id := range bucket.ids {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			return bytes.Compare(ids[i][:], ids[j][:]) < 0
		})
		res[bucket.layer] = ids
		return true
	})
	return res
}

// Reset replaces the whole index with a single entry. Used when the graph is
// pruned back to a fresh genesis.
func (t *Tips) Reset(layer uint64, id EventID) {
	t.buckets.Clear(false)
	t.Add(layer, id)
}

// ComputeTips rebuilds the unreferenced-tip index from scratch by scanning
// the whole store: collect every stored ID, discard the ones referenced as a
// parent, and bucket the survivors by their own layer. This O(n) pass runs
// only at store construction; afterwards the index is maintained
// incrementally by the insertion engine.
func ComputeTips(tree Tree) (*Tips, error) {
	layers := map[EventID]uint64{}
	referenced := map[EventID]struct{}{}

	err := tree.Iterate(func(key, value []byte) error {
		event := new(Event)
		if err := event.Unmarshal(value); err != nil {
			return err
		}
		layers[event.ID()] = event.Header.Layer
		for _, p := range event.Header.ParentIDs() {
			referenced[p] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tips := NewTips()
	for id, layer := range layers {
		if _, ok := referenced[id]; !ok {
			tips.Add(layer, id)
		}
	}
	return tips, nil
}
