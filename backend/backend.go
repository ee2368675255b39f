// Package backend defines the storage abstraction used by liverepo.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no
// prepended/appended metadata, no re-encoding, no mutation).
//
// Important: the keyspaces "doc:" and "idx:" are owned by liverepo. External
// code MUST NOT write values under these prefixes. Foreign writes may be
// treated as corruption by strict wire-format validation.
package backend

import (
	"context"
	"errors"
)

// ErrWatchClosed is delivered implicitly by closing a watch channel; it is
// returned by Watch itself when the backend is already shut down.
var ErrWatchClosed = errors.New("backend: watcher closed")

// EventKind discriminates watch events.
type EventKind uint8

const (
	EventPut EventKind = iota + 1
	EventDelete
)

// Event is one change to a watched key. Value holds the stored bytes for
// EventPut and is nil for EventDelete.
type Event struct {
	Kind  EventKind
	Value []byte
}

// Backend is a minimal byte store. Must be safe for concurrent use.
type Backend interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. Returns ok=false when the store rejected the write
	// under pressure.
	Set(ctx context.Context, key string, value []byte) (ok bool, err error)

	// Delete removes a key (best-effort).
	Delete(ctx context.Context, key string) error

	// Exists reports whether key currently holds a value.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// Watcher is implemented by backends that can stream changes to a key.
// The returned channel delivers events in write order and is closed when ctx
// ends or the backend shuts down. Backends without watch support simply do
// not implement Watcher; repositories then fall back to one-shot reads.
type Watcher interface {
	Watch(ctx context.Context, key string) (<-chan Event, error)
}
