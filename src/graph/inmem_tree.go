package graph

import (
	"sync"

	cm "github.com/strandnet/strand/src/common"
)

// InmemTree is a Tree backed by a plain map. It is used in tests and in
// store-less deployments where durability across restarts is not required.
type InmemTree struct {
	sync.RWMutex
	items map[string][]byte
}

// NewInmemTree ...
func NewInmemTree() *InmemTree {
	return &InmemTree{
		items: make(map[string][]byte),
	}
}

// Get implements the Tree interface.
func (t *InmemTree) Get(key []byte) ([]byte, error) {
	t.RLock()
	defer t.RUnlock()

	value, ok := t.items[string(key)]
	if !ok {
		return nil, cm.NewStoreErr("Tree", cm.KeyNotFound, cm.EncodeToString(key))
	}
	return value, nil
}

// Contains implements the Tree interface.
func (t *InmemTree) Contains(key []byte) (bool, error) {
	t.RLock()
	defer t.RUnlock()

	_, ok := t.items[string(key)]
	return ok, nil
}

// Apply implements the Tree interface. The map is mutated under an exclusive
// lock so readers never observe a half-applied batch.
func (t *InmemTree) Apply(batch *Batch) error {
	t.Lock()
	defer t.Unlock()

	for _, op := range batch.ops {
		if op.delete {
			delete(t.items, string(op.key))
			continue
		}
		t.items[string(op.key)] = op.value
	}
	return nil
}

// Iterate implements the Tree interface.
func (t *InmemTree) Iterate(fn func(key, value []byte) error) error {
	t.RLock()
	defer t.RUnlock()

	for key, value := range t.items {
		if err := fn([]byte(key), value); err != nil {
			return err
		}
	}
	return nil
}

// Close implements the Tree interface.
func (t *InmemTree) Close() error {
	return nil
}
