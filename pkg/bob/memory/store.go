// Package memory provides conversation persistence keyed by thread ID.
//
// A Store holds the full serialized conversation state for each thread.
// Two implementations are provided: an in-memory store for tests and
// single-process use, and a SQLite-backed store for durability across
// restarts. State payloads are opaque JSON; callers own serialization.
package memory

import "context"

// Store persists conversation state per thread.
type Store interface {
	// Get returns the stored state for threadID. The second return is
	// false when the thread has no stored state.
	Get(ctx context.Context, threadID string) ([]byte, bool, error)

	// Put stores state for threadID, replacing any previous value.
	Put(ctx context.Context, threadID string, state []byte) error

	// Delete removes the stored state for threadID. Deleting a missing
	// thread is not an error.
	Delete(ctx context.Context, threadID string) error

	// List returns all thread IDs with stored state.
	List(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
