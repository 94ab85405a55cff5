package node

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/strandnet/strand/src/graph"
)

// Rotator is the background task that periodically replaces the entire graph
// with a fresh genesis event, bounding history growth. The rotation boundary
// is a deterministic function of wall-clock time, so every node prunes to the
// same genesis without coordination. The Rotator is the only writer of prune
// operations; it holds a plain handle on the Graph and is never owned by it.
type Rotator struct {
	graph    *graph.Graph
	anchor   uint64
	rotation time.Duration

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	logger *logrus.Entry
}

// NewRotator ...
func NewRotator(g *graph.Graph, logger *logrus.Entry) *Rotator {
	return &Rotator{
		graph:      g,
		anchor:     g.Anchor(),
		rotation:   g.Rotation(),
		shutdownCh: make(chan struct{}),
		logger:     logger,
	}
}

// Run sleeps until the next rotation boundary, prunes, and goes back to
// sleep, forever. The cancellation signal is checked at the sleep point; an
// in-progress prune is never interrupted. Run returns immediately when
// rotation is disabled.
func (r *Rotator) Run() {
	if r.rotation <= 0 {
		r.logger.Debug("Rotation disabled")
		return
	}

	for {
		now := graph.NowMillis()
		next := graph.NextRotationTimestamp(r.anchor, r.rotation, now)

		wait := time.Duration(0)
		if next > now {
			wait = time.Duration(next-now) * time.Millisecond
		}

		r.logger.WithFields(logrus.Fields{
			"next_rotation": next,
			"wait":          wait.String(),
		}).Debug("Sleeping until next rotation")

		select {
		case <-time.After(wait):
			r.graph.Prune(graph.NewGenesis(next))
		case <-r.shutdownCh:
			return
		}
	}
}

// Shutdown stops the rotation loop cooperatively.
func (r *Rotator) Shutdown() {
	r.shutdownOnce.Do(func() {
		close(r.shutdownCh)
	})
}
