package graph

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/strandnet/strand/src/common"
)

func testTree(t *testing.T, tree Tree) {
	key := []byte("key")
	value := []byte("value")

	if _, err := tree.Get(key); !common.IsStore(err, common.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}
	if ok, err := tree.Contains(key); err != nil || ok {
		t.Fatalf("Contains on a missing key should be (false, nil), got (%v, %v)", ok, err)
	}

	batch := NewBatch()
	batch.Put(key, value)
	batch.Put([]byte("other"), []byte("other value"))
	if err := tree.Apply(batch); err != nil {
		t.Fatal(err)
	}

	got, err := tree.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("Get should return %s, not %s", value, got)
	}
	if ok, _ := tree.Contains(key); !ok {
		t.Fatal("Contains should find the committed key")
	}

	count := 0
	err = tree.Iterate(func(k, v []byte) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("Iterate should visit 2 pairs, not %d", count)
	}

	// Deletes and puts commit together.
	batch = NewBatch()
	batch.Delete(key)
	batch.Put([]byte("third"), []byte("third value"))
	if err := tree.Apply(batch); err != nil {
		t.Fatal(err)
	}

	if ok, _ := tree.Contains(key); ok {
		t.Fatal("deleted key should be gone")
	}
	if ok, _ := tree.Contains([]byte("third")); !ok {
		t.Fatal("put from the same batch should be committed")
	}

	// Operations on the same key apply in staging order: the later one wins.
	batch = NewBatch()
	batch.Delete([]byte("third"))
	batch.Put([]byte("third"), []byte("rewritten"))
	if err := tree.Apply(batch); err != nil {
		t.Fatal(err)
	}
	got, err = tree.Get([]byte("third"))
	if err != nil {
		t.Fatalf("a put after a delete of the same key should leave it present: %v", err)
	}
	if !bytes.Equal(got, []byte("rewritten")) {
		t.Fatalf("Get should return the rewritten value, not %s", got)
	}

	batch = NewBatch()
	batch.Put([]byte("fourth"), []byte("fourth value"))
	batch.Delete([]byte("fourth"))
	if err := tree.Apply(batch); err != nil {
		t.Fatal(err)
	}
	if ok, _ := tree.Contains([]byte("fourth")); ok {
		t.Fatal("a delete after a put of the same key should leave it absent")
	}
}

func TestInmemTree(t *testing.T) {
	testTree(t, NewInmemTree())
}

func TestBadgerTree(t *testing.T) {
	tree, err := NewBadgerTree("events", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()

	testTree(t, tree)
}

func TestBadgerTreeNamespacing(t *testing.T) {
	dir := t.TempDir()

	a, err := NewBadgerTree("a", dir)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	batch := NewBatch()
	batch.Put([]byte("key"), []byte("value"))
	if err := a.Apply(batch); err != nil {
		t.Fatal(err)
	}

	// Same database handle rules out a second Open; a differently named tree
	// over the same db object is what namespacing protects.
	b := &BadgerTree{db: a.db, name: []byte("b/"), path: dir}
	if ok, _ := b.Contains([]byte("key")); ok {
		t.Fatal("trees with different names should not see each other's keys")
	}
	count := 0
	b.Iterate(func(k, v []byte) error {
		count++
		return nil
	})
	if count != 0 {
		t.Fatalf("iteration should be scoped to the tree prefix, visited %d", count)
	}
}

func TestBadgerTreePersistence(t *testing.T) {
	dir := t.TempDir()
	anchor := NowMillis()

	tree, err := NewBadgerTree("events", dir)
	if err != nil {
		t.Fatal(err)
	}

	g1 := newTestGraph(t, tree, anchor)
	a := insertOne(t, g1, []byte("a"))
	tips := g1.Tips()

	if err := tree.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopen the same directory: the graph must come back with the same
	// genesis, events, and frontier.
	tree2, err := NewBadgerTree("events", dir)
	if err != nil {
		t.Fatal(err)
	}
	defer tree2.Close()

	g2 := newTestGraph(t, tree2, anchor)

	if ok, _ := g2.Contains(a.ID()); !ok {
		t.Fatal("events should survive a restart")
	}
	if g2.Genesis().ID() != g1.Genesis().ID() {
		t.Fatal("genesis should survive a restart")
	}

	if got := g2.Tips(); !reflect.DeepEqual(got, tips) {
		t.Fatalf("tips after restart should be %v, not %v", tips, got)
	}
}
