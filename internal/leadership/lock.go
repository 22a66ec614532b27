package leadership

import (
	"context"
	"time"
)

// LockResult is the outcome of an asynchronous lock attempt. On success Err
// is nil and Term is the fencing term granted for this acquisition.
type LockResult struct {
	Term uint64
	Err  error
}

// Lock is a named, leased, exclusive lock held on behalf of one contestant.
//
// A Lock value is a handle: it remembers whether it currently holds the lease
// and under which term. Terms increase every time any handle acquires the
// same path, so a larger term always identifies a later leader.
type Lock interface {
	// Path returns the name of the locked resource.
	Path() string

	// LockAsync starts acquiring the lock with a lease of ttl. The returned
	// channel receives exactly one result, once the lock is held or the
	// attempt failed. Cancelling ctx abandons the attempt.
	LockAsync(ctx context.Context, ttl time.Duration) <-chan LockResult

	// ExtendExpiration renews a held lease for another ttl. It reports false
	// when the lease was already lost or the backend could not be reached.
	ExtendExpiration(ctx context.Context, ttl time.Duration) bool

	// Unlock releases the lease if this handle still holds it. Unlocking a
	// lock that is not held is a no-op.
	Unlock(ctx context.Context) error

	// IsLocked reports whether this handle believes it holds the lease.
	IsLocked() bool

	// Term returns the term of the most recent successful acquisition.
	Term() uint64
}

// LockService creates lock handles. Implementations must be safe for
// concurrent use.
type LockService interface {
	Create(path string) Lock
}

// resolve delivers a single result on a fresh buffered channel.
func resolve(ch chan LockResult, term uint64, err error) {
	ch <- LockResult{Term: term, Err: err}
	close(ch)
}
