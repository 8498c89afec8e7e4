// Package lock implements the single-endpoint lease mutex and its bounded
// retry wrapper.
//
// The lease is advisory only: the atomic decrement in package stock is the
// real defense against oversell. The lease exists to keep well-behaved
// holders from stepping on each other and to bound the liveness damage of
// a crashed holder via TTL expiry.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gomodule/redigo/redis"

	myLogger "github.com/pcristin/stockguard/internal/logger"
	"github.com/pcristin/stockguard/internal/svcerr"
)

// Locker is the capability RetryAcquire and the orchestrators depend on.
type Locker interface {
	Acquire(ctx context.Context, resource string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, resource string, token string) error
}

func lockKey(resource string) string {
	return "lock:" + resource
}

// Redis is the redigo-backed implementation of Locker.
type Redis struct {
	pool *redis.Pool
}

// NewRedis wraps an existing connection pool.
func NewRedis(pool *redis.Pool) *Redis {
	return &Redis{pool: pool}
}

// Acquire generates a fresh 128-bit token via google/uuid and attempts a
// conditional SET with TTL and only-if-absent semantics.
func (r *Redis) Acquire(ctx context.Context, resource string, ttl time.Duration) (string, bool, error) {
	logger := myLogger.FromContext(ctx, "lock")
	token := uuid.NewString()

	conn := r.pool.Get()
	defer conn.Close()

	reply, err := redis.String(conn.Do("SET", lockKey(resource), token, "NX", "EX", int(ttl.Seconds())))
	if err == redis.ErrNil {
		logger.Debug("lock acquire | contended", "resource", resource)
		return "", false, nil
	}
	if err != nil {
		logger.Error("lock acquire | failed", "resource", resource, "error", err)
		return "", false, err
	}
	if reply != "OK" {
		return "", false, nil
	}
	logger.Debug("lock acquire | acquired", "resource", resource, "token", token)
	return token, true, nil
}

// Release performs the owner-verified delete. A non-matching token
// (including one for a lease that already expired and was re-acquired by
// someone else) is a no-op, never an error.
func (r *Redis) Release(ctx context.Context, resource string, token string) error {
	logger := myLogger.FromContext(ctx, "lock")
	conn := r.pool.Get()
	defer conn.Close()

	deleted, err := redis.Int(conn.Do("EVAL", releaseScript, 1, lockKey(resource), token))
	if err != nil {
		logger.Error("lock release | failed", "resource", resource, "error", err)
		return err
	}
	logger.Debug("lock release | completed", "resource", resource, "owned", deleted == 1)
	return nil
}

// RetryAcquire is a bounded re-attempt of Acquire with a fixed delay
// between attempts. It respects ctx cancellation and the caller's deadline
// so retries never run unbounded.
func RetryAcquire(ctx context.Context, l Locker, resource string, ttl time.Duration, attempts int, delay time.Duration) (string, error) {
	logger := myLogger.FromContext(ctx, "lock_retry")

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		token, ok, err := l.Acquire(ctx, resource, ttl)
		if err != nil {
			lastErr = err
		} else if ok {
			return token, nil
		}

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		}
	}

	logger.Warn("lock retry | exhausted", "resource", resource, "attempts", attempts)
	if lastErr != nil {
		return "", svcerr.Wrap(svcerr.KindLockAcquisitionFailure, "lock acquisition exhausted", lastErr)
	}
	return "", svcerr.LockAcquisitionFailure(resource)
}
