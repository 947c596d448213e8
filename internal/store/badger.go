package store

import (
	"log"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerKV is the default KV backend, a badger database on disk (or in
// memory for tests).
type BadgerKV struct {
	db *badger.DB
}

// OpenBadger opens a badger-backed KV at the given directory. An empty path
// opens an in-memory database.
func OpenBadger(path string) (*BadgerKV, error) {
	opts := badger.DefaultOptions(path)
	opts = opts.WithLogger(nil) // badger's own logger is too chatty
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	log.Printf("[Store] Badger opened path=%q in_memory=%v", path, path == "")
	return &BadgerKV{db: db}, nil
}

// Get returns the value for key and whether it was found.
func (b *BadgerKV) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set writes the value for key.
func (b *BadgerKV) Set(key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Close closes the underlying database.
func (b *BadgerKV) Close() error {
	return b.db.Close()
}
