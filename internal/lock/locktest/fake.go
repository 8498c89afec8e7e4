// Package locktest provides an in-process fake of lock.Locker for tests
// exercising the retry loop and the orchestrators without a live Redis.
package locktest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lease struct {
	token    string
	expireAt time.Time
}

// Fake is a goroutine-safe in-memory lock.Locker. TTL expiry is evaluated
// lazily on Acquire/Release, the same externally-observable behavior a
// real Redis TTL gives callers.
type Fake struct {
	mu     sync.Mutex
	leases map[string]lease

	// AcquireDelay, if set, is applied inside Acquire before checking
	// state, used by tests that need to simulate a slow holder racing a
	// second acquirer.
	AcquireDelay time.Duration
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{leases: make(map[string]lease)}
}

func (f *Fake) Acquire(ctx context.Context, resource string, ttl time.Duration) (string, bool, error) {
	if f.AcquireDelay > 0 {
		select {
		case <-time.After(f.AcquireDelay):
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	if l, held := f.leases[resource]; held && now.Before(l.expireAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	f.leases[resource] = lease{token: token, expireAt: now.Add(ttl)}
	return token, true, nil
}

func (f *Fake) Release(_ context.Context, resource string, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, held := f.leases[resource]
	if !held {
		return nil
	}
	if l.token != token {
		return nil // not the owner: no-op
	}
	delete(f.leases, resource)
	return nil
}

// Held reports whether resource currently has a non-expired lease, for
// test assertions.
func (f *Fake) Held(resource string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leases[resource]
	return ok && time.Now().Before(l.expireAt)
}
