package graph

// Tree is the narrow contract the graph requires from its durable key-value
// backend: point lookups, full iteration, and atomic all-or-nothing batch
// application. Once Apply returns, the batch is durable and visible to
// subsequent reads; partial application must never be observable.
type Tree interface {
	// Get returns the value stored under key, or a common.StoreErr with code
	// KeyNotFound.
	Get(key []byte) ([]byte, error)
	// Contains reports whether key is present.
	Contains(key []byte) (bool, error)
	// Apply atomically applies all of the batch's puts and deletes.
	Apply(batch *Batch) error
	// Iterate calls fn for every (key, value) pair. Returning an error from fn
	// stops the iteration and propagates the error.
	Iterate(fn func(key, value []byte) error) error
	// Close closes the underlying database.
	Close() error
}

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

// Batch accumulates puts and deletes to be applied atomically to a Tree.
// Operations are applied in staging order, so a later operation on a key
// overrides an earlier one; Prune relies on this when it deletes the old
// genesis and writes the new one in the same batch.
type Batch struct {
	ops []batchOp
}

// NewBatch ...
func NewBatch() *Batch {
	return &Batch{}
}

// Put stages an insertion.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: key, value: value})
}

// Delete stages a removal.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: key, delete: true})
}

// Len returns the total number of staged operations.
func (b *Batch) Len() int {
	return len(b.ops)
}
