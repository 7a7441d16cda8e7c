// Package statestore persists a monitor's serialized trust state (the
// bytes produced by (*ctclient.Monitor).AsBytes) across restarts, behind a
// pluggable storage backend.
package statestore

import "context"

// Backend is a strongly consistent key/value store for opaque state blobs.
// Implementations are expected to retry transient errors internally and
// only return an error once they're confident the operation cannot
// succeed.
type Backend interface {
	// Put persists data under key, replacing any prior value. Put must be
	// durable by the time it returns.
	Put(ctx context.Context, key string, data []byte) error

	// Get fetches the value stored under key. It returns ErrNotFound if no
	// value has ever been stored under that key.
	Get(ctx context.Context, key string) ([]byte, error)
}

// ErrNotFound is returned by Backend.Get when key has never been written.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "statestore: key not found" }
