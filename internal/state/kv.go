// Package state holds the on-disk hand-off between sequential hook
// invocations: the pending-suggestion state written at prompt time and
// consumed by the reconciler, and the last-known configuration digest.
//
// Everything goes through the KV interface so the file backend can be
// replaced by the embedded database without touching callers.
package state

import "errors"

// ErrNotFound is returned by KV.Read when the key holds no value.
var ErrNotFound = errors.New("state: key not found")

// Well-known keys.
const (
	KeySuggestions = "skill-suggestions"
	KeyConfigHash  = "last-known-config-hash"
	KeyStatus      = "status"
)

// KV is a small key-value store. Values are whole documents;
// every write replaces the previous value.
type KV interface {
	Read(key string) ([]byte, error)
	Write(key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	Close() error
}
