// Package store provides the GreetingRepo interface for per-user welcome tracking.
package store

import "context"

// GreetingRepo tracks which users have already received the welcome sequence.
//
// Entries are never evicted: memory grows with the number of distinct users for the lifetime
// of the backing store.
type GreetingRepo interface {
	// HasGreeted reports whether userID was already greeted.
	HasGreeted(ctx context.Context, userID string) (bool, error)

	// MarkGreeted records userID as greeted. Marking twice is harmless.
	MarkGreeted(ctx context.Context, userID string) error

	// GreetIfNeeded atomically marks userID as greeted and returns true only for the single
	// caller that performed the ungreeted -> greeted transition.
	GreetIfNeeded(ctx context.Context, userID string) (bool, error)

	// Count returns the number of greeted users.
	Count(ctx context.Context) (int, error)
}
