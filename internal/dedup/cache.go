package dedup

import "context"

// Set is a named set of strings in a Cache.
type Set interface {
	// AddIfAbsent adds member and reports whether it was newly added.
	// It must be atomic with respect to every other caller of the same set.
	AddIfAbsent(ctx context.Context, member string) (bool, error)

	// Contains reports whether member is in the set.
	Contains(ctx context.Context, member string) (bool, error)

	// Remove deletes member. Removing an absent member is not an error.
	Remove(ctx context.Context, member string) error

	// Pop removes and returns up to n arbitrary members.
	Pop(ctx context.Context, n int) ([]string, error)

	// Len returns the number of members.
	Len(ctx context.Context) (int64, error)
}

// Cache is a set-membership store shared by all workers of a crawl.
type Cache interface {
	// Set returns the set with the given name. Sets are created lazily.
	Set(name string) Set

	// Ping checks that the cache is reachable.
	Ping(ctx context.Context) error

	// Close releases the cache's resources.
	Close() error
}
