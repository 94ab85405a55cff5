package graph

import (
	"sort"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
)

// Graph is the insertion engine and the owning context of everything layered
// on top of the durable store: the unreferenced-tip index, the broadcast
// bookkeeping, the current-genesis pointer, and the committed-event
// publisher. A single Graph is shared by handle between the public API and
// the background rotation task.
//
// Insert and Prune both take the three locks in the same fixed order
// (tips, broadcasted, genesis), so insertions and prunes are strictly
// serialized relative to each other.
type Graph struct {
	tree  Tree
	cache *lru.Cache //EventID => *Event

	anchor   uint64 //rotation schedule anchor (ms)
	rotation time.Duration

	tips     *Tips
	tipsLock sync.RWMutex

	broadcasted     map[EventID]struct{}
	broadcastedLock sync.RWMutex

	genesis     *Event
	genesisLock sync.RWMutex

	subscribers     []chan *Event
	subscribersLock sync.RWMutex

	logger *logrus.Entry
}

// NewGraph builds a Graph over the given Tree. The store is scanned once: if
// it is empty the genesis event for the current rotation window is written;
// if its resident genesis does not match the freshly computed one (e.g. a
// long-offline node restarting past a rotation boundary) the whole store is
// pruned; otherwise the unreferenced-tip index is recomputed from the scan.
func NewGraph(tree Tree, anchor uint64, rotation time.Duration, cacheSize int, logger *logrus.Entry) (*Graph, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		tree:        tree,
		cache:       cache,
		anchor:      anchor,
		rotation:    rotation,
		tips:        NewTips(),
		broadcasted: map[EventID]struct{}{},
		logger:      logger,
	}

	resident, count, err := scanGenesis(tree)
	if err != nil {
		return nil, err
	}

	genesis := NewGenesis(CurrentGenesisTimestamp(anchor, rotation, NowMillis()))

	switch {
	case count == 0:
		raw, err := genesis.Marshal()
		if err != nil {
			return nil, err
		}
		id := genesis.ID()
		batch := NewBatch()
		batch.Put(id[:], raw)
		if err := tree.Apply(batch); err != nil {
			return nil, err
		}
		g.genesis = genesis
		g.tips.Reset(0, id)
		g.cache.Add(id, genesis)
		g.logger.WithField("genesis", genesis.Hex()).Debug("Created fresh graph")

	case resident == nil || resident.ID() != genesis.ID():
		g.logger.WithField("genesis", genesis.Hex()).Debug("Resident genesis is stale; pruning")
		g.Prune(genesis)

	default:
		tips, err := ComputeTips(tree)
		if err != nil {
			return nil, err
		}
		g.genesis = resident
		g.tips = tips
		g.logger.WithFields(logrus.Fields{
			"genesis": resident.Hex(),
			"events":  count,
			"tips":    tips.Count(),
		}).Debug("Loaded graph from existing store")
	}

	return g, nil
}

// scanGenesis walks the store looking for the resident genesis event.
func scanGenesis(tree Tree) (*Event, int, error) {
	var resident *Event
	count := 0

	err := tree.Iterate(func(key, value []byte) error {
		event := new(Event)
		if err := event.Unmarshal(value); err != nil {
			return err
		}
		count++
		if IsGenesis(event) {
			resident = event
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return resident, count, nil
}

// Insert validates and commits a batch of events as a single atomic unit. It
// returns the IDs in input order on success. On the first invalid event the
// whole batch is rejected with an EventError and nothing is mutated. Events
// within the batch may reference each other: validation consults a
// copy-on-write overlay before the durable store.
//
// Re-submitting an event whose ID is already in the store is a no-op for that
// event, not an error; IDs are deterministic content hashes, so re-insertion
// of an identical header is idempotent.
func (g *Graph) Insert(events []*Event) ([]EventID, error) {
	if len(events) == 0 {
		return []EventID{}, nil
	}

	ids, committed, err := g.insert(events)
	if err != nil {
		return nil, err
	}

	// Publishing happens after the locks are released; a slow subscriber must
	// not be able to wedge callers of NeedsBroadcast or the next Insert.
	// Within a batch the commit order is preserved; across batches no global
	// notification order is guaranteed.
	g.publish(committed)

	return ids, nil
}

func (g *Graph) insert(events []*Event) ([]EventID, []*Event, error) {
	g.tipsLock.Lock()
	defer g.tipsLock.Unlock()
	g.broadcastedLock.Lock()
	defer g.broadcastedLock.Unlock()
	g.genesisLock.Lock()
	defer g.genesisLock.Unlock()

	genesisTimestamp := g.genesis.Header.Timestamp

	o := newOverlay(g)
	ids := make([]EventID, 0, len(events))
	committed := make([]*Event, 0, len(events))

	for _, event := range events {
		id := event.ID()

		known, err := o.contains(id)
		if err != nil {
			return nil, nil, err
		}
		if known {
			ids = append(ids, id)
			continue
		}

		if err := event.Validate(o, genesisTimestamp, g.rotation); err != nil {
			return nil, nil, err
		}

		o.stage(event)
		ids = append(ids, id)
		committed = append(committed, event)
	}

	batch, err := o.batch()
	if err != nil {
		return nil, nil, err
	}

	if batch.Len() > 0 {
		// A failed commit would leave the in-memory indices out of sync with
		// the store with no safe way to reconcile.
		if err := g.tree.Apply(batch); err != nil {
			g.logger.WithError(err).Fatal("Atomic store commit failed")
		}
	}

	for _, event := range committed {
		for _, parent := range event.Header.ParentIDs() {
			g.tips.RemoveBelow(event.Header.Layer, parent)
			// Whoever handed us this event already has its parents, so we no
			// longer need to be asked for them.
			g.broadcasted[parent] = struct{}{}
		}
		g.tips.Add(event.Header.Layer, event.ID())
		g.cache.Add(event.ID(), event)
	}

	return ids, committed, nil
}

// Prune atomically replaces the entire graph with a fresh genesis event: the
// store is cleared, the tip index is reset to the genesis alone, and the
// broadcast bookkeeping is emptied. This is the only bulk-delete operation in
// the system. A store failure here is unrecoverable.
func (g *Graph) Prune(genesis *Event) {
	g.tipsLock.Lock()
	defer g.tipsLock.Unlock()
	g.broadcastedLock.Lock()
	defer g.broadcastedLock.Unlock()
	g.genesisLock.Lock()
	defer g.genesisLock.Unlock()

	batch := NewBatch()
	err := g.tree.Iterate(func(key, value []byte) error {
		batch.Delete(append([]byte{}, key...))
		return nil
	})
	if err != nil {
		g.logger.WithError(err).Fatal("Prune scan failed")
	}

	raw, err := genesis.Marshal()
	if err != nil {
		g.logger.WithError(err).Fatal("Cannot marshal genesis event")
	}
	id := genesis.ID()
	batch.Put(id[:], raw)

	if err := g.tree.Apply(batch); err != nil {
		g.logger.WithError(err).Fatal("Prune commit failed")
	}

	g.cache.Purge()
	g.cache.Add(id, genesis)
	g.tips.Reset(0, id)
	g.broadcasted = map[EventID]struct{}{}
	g.genesis = genesis

	g.logger.WithField("genesis", genesis.Hex()).Info("Pruned graph")
}

// getEvent is the internal point lookup, read-through the decode cache.
func (g *Graph) getEvent(id EventID) (*Event, error) {
	if cached, ok := g.cache.Get(id); ok {
		return cached.(*Event), nil
	}

	raw, err := g.tree.Get(id[:])
	if err != nil {
		return nil, err
	}

	event := new(Event)
	if err := event.Unmarshal(raw); err != nil {
		return nil, err
	}
	g.cache.Add(id, event)

	return event, nil
}

func (g *Graph) contains(id EventID) (bool, error) {
	if g.cache.Contains(id) {
		return true, nil
	}
	return g.tree.Contains(id[:])
}

// Get returns a committed event by ID, or a common.StoreErr with code
// KeyNotFound.
func (g *Graph) Get(id EventID) (*Event, error) {
	return g.getEvent(id)
}

// Contains reports whether an event is committed.
func (g *Graph) Contains(id EventID) (bool, error) {
	return g.contains(id)
}

// SelectParents returns the parent array and layer for a new event built on
// the current frontier: up to NumEventParents of the deepest unreferenced
// tips, the remaining slots null, with the layer one past the deepest tip.
func (g *Graph) SelectParents() ([NumEventParents]EventID, uint64) {
	g.tipsLock.RLock()
	defer g.tipsLock.RUnlock()

	ids, deepest := g.tips.Select(NumEventParents)

	var parents [NumEventParents]EventID
	copy(parents[:], ids)

	return parents, deepest + 1
}

// Tips returns a copy of the unreferenced-tip index.
func (g *Graph) Tips() map[uint64][]EventID {
	g.tipsLock.RLock()
	defer g.tipsLock.RUnlock()
	return g.tips.Map()
}

// Genesis returns the current genesis event.
func (g *Graph) Genesis() *Event {
	g.genesisLock.RLock()
	defer g.genesisLock.RUnlock()
	return g.genesis
}

// GenesisTimestamp returns the current genesis event's timestamp.
func (g *Graph) GenesisTimestamp() uint64 {
	return g.Genesis().Header.Timestamp
}

// Rotation returns the rotation period; 0 when rotation is disabled.
func (g *Graph) Rotation() time.Duration {
	return g.rotation
}

// Anchor returns the rotation schedule anchor.
func (g *Graph) Anchor() uint64 {
	return g.anchor
}

// NeedsBroadcast reports whether an event has not yet been sent out or
// implicitly confirmed. The networking layer consults this before honoring a
// send-event request and marks the ID once it has gone out.
func (g *Graph) NeedsBroadcast(id EventID) bool {
	g.broadcastedLock.RLock()
	defer g.broadcastedLock.RUnlock()
	_, ok := g.broadcasted[id]
	return !ok
}

// MarkBroadcasted records that the events have been sent out.
func (g *Graph) MarkBroadcasted(ids ...EventID) {
	g.broadcastedLock.Lock()
	defer g.broadcastedLock.Unlock()
	for _, id := range ids {
		g.broadcasted[id] = struct{}{}
	}
}

// BroadcastedCount returns the size of the broadcast bookkeeping set.
func (g *Graph) BroadcastedCount() int {
	g.broadcastedLock.RLock()
	defer g.broadcastedLock.RUnlock()
	return len(g.broadcasted)
}

// Subscribe registers a new subscriber for committed events. Every committed
// event is delivered to every subscriber, in commit order within a batch.
// Subscribers should drain their channel promptly; a full channel stalls the
// inserting caller at the publish step, after the graph's locks are released,
// so readers and other writers keep making progress.
func (g *Graph) Subscribe(buffer int) <-chan *Event {
	g.subscribersLock.Lock()
	defer g.subscribersLock.Unlock()

	ch := make(chan *Event, buffer)
	g.subscribers = append(g.subscribers, ch)
	return ch
}

func (g *Graph) publish(events []*Event) {
	g.subscribersLock.RLock()
	defer g.subscribersLock.RUnlock()

	for _, event := range events {
		for _, ch := range g.subscribers {
			ch <- event
		}
	}
}

// EventsMissingFrom returns the events a remote peer is likely missing, given
// the unreferenced tips it reported: every stored event at or above the
// peer's shallowest tip layer that is not among the reported tips, ordered by
// layer so parents arrive before children, capped at limit (0 means no cap).
func (g *Graph) EventsMissingFrom(remote map[uint64][]EventID, limit int) ([]*Event, error) {
	known := map[EventID]struct{}{}
	floor := uint64(0)
	first := true
	for layer, ids := range remote {
		if first || layer < floor {
			floor = layer
			first = false
		}
		for _, id := range ids {
			known[id] = struct{}{}
		}
	}

	missing := []*Event{}
	err := g.tree.Iterate(func(key, value []byte) error {
		event := new(Event)
		if err := event.Unmarshal(value); err != nil {
			return err
		}
		if event.Header.Layer < floor {
			return nil
		}
		if _, ok := known[event.ID()]; ok {
			return nil
		}
		missing = append(missing, event)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(missing, func(i, j int) bool {
		return missing[i].Header.Layer < missing[j].Header.Layer
	})

	if limit > 0 && len(missing) > limit {
		missing = missing[:limit]
	}

	return missing, nil
}

// Stats returns diagnostic counters for the HTTP service.
func (g *Graph) Stats() map[string]string {
	count := 0
	if err := g.tree.Iterate(func(key, value []byte) error {
		count++
		return nil
	}); err != nil {
		g.logger.WithError(err).Error("Stats scan failed")
	}

	g.tipsLock.RLock()
	tips := g.tips.Count()
	g.tipsLock.RUnlock()

	return map[string]string{
		"events":            strconv.Itoa(count),
		"tips":              strconv.Itoa(tips),
		"broadcasted":       strconv.Itoa(g.BroadcastedCount()),
		"genesis":           g.Genesis().Hex(),
		"genesis_timestamp": strconv.FormatUint(g.GenesisTimestamp(), 10),
	}
}
