package node

import (
	"testing"
	"time"

	"github.com/strandnet/strand/src/common"
	"github.com/strandnet/strand/src/graph"
)

func TestRotatorDisabled(t *testing.T) {
	logger := common.NewTestEntry(t, "rotator")

	g, err := graph.NewGraph(graph.NewInmemTree(), graph.NowMillis(), 0, 100, logger)
	if err != nil {
		t.Fatal(err)
	}

	rotator := NewRotator(g, logger)

	done := make(chan struct{})
	go func() {
		rotator.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately when rotation is disabled")
	}
}

func TestRotatorPrunes(t *testing.T) {
	logger := common.NewTestEntry(t, "rotator")

	anchor := graph.NowMillis()
	rotation := 100 * time.Millisecond

	g, err := graph.NewGraph(graph.NewInmemTree(), anchor, rotation, 100, logger)
	if err != nil {
		t.Fatal(err)
	}

	event := graph.NewEvent(g, []byte("doomed"))
	if _, err := g.Insert([]*graph.Event{event}); err != nil {
		t.Fatal(err)
	}

	genesisBefore := g.Genesis().ID()

	rotator := NewRotator(g, logger)
	go rotator.Run()
	defer rotator.Shutdown()

	deadline := time.Now().Add(2 * time.Second)
	for g.Genesis().ID() == genesisBefore {
		if time.Now().After(deadline) {
			t.Fatal("rotator should have pruned by now")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if ok, _ := g.Contains(event.ID()); ok {
		t.Fatal("pre-rotation events should be pruned")
	}

	// The fresh genesis sits on a deterministic boundary of the schedule.
	period := uint64(rotation / time.Millisecond)
	ts := g.Genesis().Header.Timestamp
	if (ts-anchor)%period != 0 {
		t.Fatalf("new genesis timestamp %d should sit on a boundary of the %dms schedule from %d",
			ts, period, anchor)
	}
}
