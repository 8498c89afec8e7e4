// Package guard unifies the single-endpoint and quorum stock-protection
// paths behind one interface, so the purchase and product-creation sagas
// are written once regardless of deployment topology.
package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/pcristin/stockguard/internal/lock"
	"github.com/pcristin/stockguard/internal/quorum"
	"github.com/pcristin/stockguard/internal/stock"
	"github.com/pcristin/stockguard/internal/svcerr"
)

// StockGuard is what the orchestrators depend on to safely mutate a product's hot
// counter, independent of whether the counter lives on one Redis endpoint
// or is quorum-replicated across N.
type StockGuard interface {
	// Decrement acquires whatever lock/lease the implementation needs,
	// performs the atomic conditional decrement, and releases the
	// lock/lease before returning.
	Decrement(ctx context.Context, productID int64, quantity int64) (stock.Result, error)
	Increment(ctx context.Context, productID int64, quantity int64) (int64, error)
	Read(ctx context.Context, productID int64) (int64, bool, error)
}

// Seeder is the narrower capability product creation needs to initialize a counter.
type Seeder interface {
	Seed(ctx context.Context, productID int64, quantity int64) (bool, error)
}

func resourceFor(productID int64) string {
	return fmt.Sprintf("stock:%d", productID)
}

// SingleNode implements StockGuard over one Redis endpoint: the bounded
// retry wraps the lease acquire, the stock store does the actual mutation.
type SingleNode struct {
	Store         stock.Store
	Locker        lock.Locker
	LockTimeout   time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

func NewSingleNode(store stock.Store, locker lock.Locker, lockTimeout time.Duration, retryAttempts int, retryDelay time.Duration) *SingleNode {
	return &SingleNode{
		Store:         store,
		Locker:        locker,
		LockTimeout:   lockTimeout,
		RetryAttempts: retryAttempts,
		RetryDelay:    retryDelay,
	}
}

func (g *SingleNode) Decrement(ctx context.Context, productID int64, quantity int64) (stock.Result, error) {
	resource := resourceFor(productID)
	token, err := lock.RetryAcquire(ctx, g.Locker, resource, g.LockTimeout, g.RetryAttempts, g.RetryDelay)
	if err != nil {
		return stock.Result{}, err
	}
	defer g.Locker.Release(context.Background(), resource, token) //nolint:errcheck

	return g.Store.TryDecrement(ctx, productID, quantity)
}

func (g *SingleNode) Increment(ctx context.Context, productID int64, quantity int64) (int64, error) {
	return g.Store.Increment(ctx, productID, quantity)
}

func (g *SingleNode) Read(ctx context.Context, productID int64) (int64, bool, error) {
	return g.Store.Read(ctx, productID)
}

// Seed satisfies Seeder directly via the wrapped Store.
func (g *SingleNode) Seed(ctx context.Context, productID int64, quantity int64) (bool, error) {
	return g.Store.Seed(ctx, productID, quantity)
}

// NameLocker exposes the wrapped locker for the product-creation name lock, which
// guards a different resource than the stock counter.
func (g *SingleNode) NameLocker() lock.Locker {
	return g.Locker
}

// Quorum implements StockGuard over N independent Redis endpoints via a
// Redlock-variant quorum lock/counter, where acquire and decrement are
// necessarily coupled (the lease carries the elapsed-time budget the
// end-of-critical-section check needs).
type Quorum struct {
	Lock        *quorum.Lock
	LockTimeout time.Duration
}

func NewQuorum(qlock *quorum.Lock, lockTimeout time.Duration) *Quorum {
	return &Quorum{Lock: qlock, LockTimeout: lockTimeout}
}

func (g *Quorum) Decrement(ctx context.Context, productID int64, quantity int64) (stock.Result, error) {
	resource := resourceFor(productID)
	lease, ok, err := g.Lock.Acquire(ctx, resource, g.LockTimeout)
	if err != nil {
		return stock.Result{}, svcerr.Wrap(svcerr.KindLockAcquisitionFailure, "quorum lock acquisition failed", err)
	}
	if !ok {
		return stock.Result{}, svcerr.LockAcquisitionFailure(resource)
	}
	defer g.Lock.Release(context.Background(), resource, lease.Token)

	result, err := g.Lock.Decrement(ctx, lease, productID, quantity)
	if err != nil {
		return stock.Result{}, svcerr.Wrap(svcerr.KindLockAcquisitionFailure, "quorum decrement did not reach quorum", err)
	}
	return result, nil
}

func (g *Quorum) Increment(ctx context.Context, productID int64, quantity int64) (int64, error) {
	return g.Lock.Increment(ctx, productID, quantity)
}

func (g *Quorum) Read(ctx context.Context, productID int64) (int64, bool, error) {
	return g.Lock.Read(ctx, productID)
}

// Seed satisfies Seeder directly via the wrapped quorum Lock.
func (g *Quorum) Seed(ctx context.Context, productID int64, quantity int64) (bool, error) {
	return g.Lock.Seed(ctx, productID, quantity)
}

// NameLocker adapts the quorum lock's Lease-based Acquire/Release to the
// plain lock.Locker shape product creation needs for its name lock.
func (g *Quorum) NameLocker() lock.Locker {
	return quorumLocker{lock: g.Lock}
}

type quorumLocker struct {
	lock *quorum.Lock
}

func (q quorumLocker) Acquire(ctx context.Context, resource string, ttl time.Duration) (string, bool, error) {
	lease, ok, err := q.lock.Acquire(ctx, resource, ttl)
	if err != nil || !ok {
		return "", ok, err
	}
	return lease.Token, true, nil
}

func (q quorumLocker) Release(ctx context.Context, resource string, token string) error {
	q.lock.Release(ctx, resource, token)
	return nil
}
