package peers

import (
	"reflect"
	"testing"
)

func TestJSONPeerSet(t *testing.T) {
	dir := t.TempDir()

	store := NewJSONPeerSet(dir)

	// No file yet: no peers, no error.
	peers, err := store.Peers()
	if err != nil {
		t.Fatal(err)
	}
	if len(peers) != 0 {
		t.Fatalf("expected no peers, got %d", len(peers))
	}

	expected := []*Peer{
		NewPeer("127.0.0.1:1337", "alice"),
		NewPeer("127.0.0.1:1338", "bob"),
	}
	if err := store.Write(expected); err != nil {
		t.Fatal(err)
	}

	peers, err = store.Peers()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(peers, expected) {
		t.Fatalf("peers should be %v, not %v", expected, peers)
	}
}

func TestMerge(t *testing.T) {
	merged := Merge("127.0.0.1:1337",
		[]string{"127.0.0.1:1338", "127.0.0.1:1339"},
		[]string{"127.0.0.1:1339", "127.0.0.1:1337", "127.0.0.1:1340"},
	)

	expected := []string{"127.0.0.1:1338", "127.0.0.1:1339", "127.0.0.1:1340"}
	if !reflect.DeepEqual(merged, expected) {
		t.Fatalf("merged peers should be %v, not %v", expected, merged)
	}
}
