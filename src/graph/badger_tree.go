package graph

import (
	"github.com/dgraph-io/badger"
	cm "github.com/strandnet/strand/src/common"
)

// BadgerTree is a Tree backed by a Badger database. All keys are prefixed
// with the tree name, so several trees can share one database directory.
type BadgerTree struct {
	db   *badger.DB
	name []byte
	path string
}

// NewBadgerTree opens (or creates) the database at path and returns a handle
// on the named tree within it.
func NewBadgerTree(name string, path string) (*BadgerTree, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	opts.Logger = nil

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerTree{
		db:   handle,
		name: append([]byte(name), '/'),
		path: path,
	}, nil
}

func (t *BadgerTree) treeKey(key []byte) []byte {
	return append(append([]byte{}, t.name...), key...)
}

// Get implements the Tree interface.
func (t *BadgerTree) Get(key []byte) ([]byte, error) {
	var value []byte
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(t.treeKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, cm.NewStoreErr("Tree", cm.KeyNotFound, cm.EncodeToString(key))
		}
		return nil, err
	}

	return value, nil
}

// Contains implements the Tree interface.
func (t *BadgerTree) Contains(key []byte) (bool, error) {
	err := t.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(t.treeKey(key))
		return err
	})

	if err != nil {
		if err == badger.ErrKeyNotFound {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// Apply implements the Tree interface. The whole batch is applied in a single
// Badger transaction, so it commits atomically or not at all.
func (t *BadgerTree) Apply(batch *Batch) error {
	tx := t.db.NewTransaction(true)
	defer tx.Discard()

	// Staging order matters: within a transaction a later operation on a key
	// overrides an earlier one.
	for _, op := range batch.ops {
		if op.delete {
			if err := tx.Delete(t.treeKey(op.key)); err != nil {
				return err
			}
			continue
		}
		if err := tx.Set(t.treeKey(op.key), op.value); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Iterate implements the Tree interface.
func (t *BadgerTree) Iterate(fn func(key, value []byte) error) error {
	return t.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(t.name); it.ValidForPrefix(t.name); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)[len(t.name):]
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, value); err != nil {
				return err
			}
		}

		return nil
	})
}

// Close implements the Tree interface.
func (t *BadgerTree) Close() error {
	return t.db.Close()
}

// StorePath returns the filepath of the underlying database.
func (t *BadgerTree) StorePath() string {
	return t.path
}
