// Package genstore tracks per-key snapshot generations.
//
// A snapshot frame records the generation current when it was written.
// Invalidating a key bumps its generation, so every older frame for that key
// is rejected (and deleted) on the next load, wherever it lives.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// Use Local (default) for in-process gens, or Redis when several processes
// share one snapshot backend.
type GenStore interface {
	// Current returns the current generation; missing => 0.
	Current(ctx context.Context, key string) (uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, key string) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
