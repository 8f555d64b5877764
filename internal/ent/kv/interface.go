package kv

// KeyVal is a key-value store used as a per-run cache of row fingerprints
// to contribution identities. It is reset at the start of every run.
type KeyVal interface {
	// Open opens a key-value store.
	Open() error

	// Close closes a key-value store.
	Close() error

	// GetValue returns a value for a given key, nil when absent.
	GetValue(key []byte) ([]byte, error)

	// SetValue sets a key-value pair.
	SetValue(key, val []byte) error
}
