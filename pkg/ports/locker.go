package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// It lets the session manager hold a lease on the console so that two hosts wired
// to the same controller never drive it at the same time.
type DistributedLocker interface {
	// Lock attempts to acquire a distributed lock for the given key.
	// It blocks until the lock is acquired or the context is canceled.
	// The lock is kept alive until the returned UnlockFunc is called.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
