package graph

// lookup resolves point queries during validation. It is implemented by the
// Graph itself (durable store only) and by overlay (store plus the staged
// writes of an in-flight batch).
type lookup interface {
	getEvent(id EventID) (*Event, error)
}

// overlay is a copy-on-write staging layer atop the durable store. Events
// validated earlier in a batch are visible to later events of the same batch
// through the overlay before anything is durable.
type overlay struct {
	graph  *Graph
	staged map[EventID]*Event
	order  []EventID
}

func newOverlay(g *Graph) *overlay {
	return &overlay{
		graph:  g,
		staged: map[EventID]*Event{},
	}
}

func (o *overlay) getEvent(id EventID) (*Event, error) {
	if event, ok := o.staged[id]; ok {
		return event, nil
	}
	return o.graph.getEvent(id)
}

func (o *overlay) contains(id EventID) (bool, error) {
	if _, ok := o.staged[id]; ok {
		return true, nil
	}
	return o.graph.contains(id)
}

func (o *overlay) stage(event *Event) {
	id := event.ID()
	o.staged[id] = event
	o.order = append(o.order, id)
}

// batch aggregates the staged writes, in staging order, into a single Batch
// ready for atomic application to the durable store.
func (o *overlay) batch() (*Batch, error) {
	batch := NewBatch()
	for _, id := range o.order {
		raw, err := o.staged[id].Marshal()
		if err != nil {
			return nil, err
		}
		key := id
		batch.Put(key[:], raw)
	}
	return batch, nil
}
