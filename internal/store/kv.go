package store

import "fmt"

// KV is the synchronous key-value persistence used by the Store. Values are
// opaque JSON blobs; the Store keeps the whole conversation collection under
// a single key.
type KV interface {
	// Get returns the value for key and whether it was found.
	Get(key string) ([]byte, bool, error)
	// Set writes the value for key, replacing any previous value.
	Set(key string, value []byte) error
	Close() error
}

// OpenKV opens a KV backend by name. Supported backends are "badger"
// (directory path) and "sqlite" (file path).
func OpenKV(backend, path string) (KV, error) {
	switch backend {
	case "badger":
		return OpenBadger(path)
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
