// Package stock implements the hot per-product stock counter.
//
// StockCounter lives at key stock:{product_id} in Redis. Every mutating
// operation is a single server-side step (a Lua script for seed and
// conditional decrement, a plain INCRBY for increment) so no other
// decrement or increment can interleave between the read and the write,
// even when the caller's advisory lease (package lock/quorum) has silently
// expired.
package stock

import (
	"context"
	"fmt"

	"github.com/gomodule/redigo/redis"

	myLogger "github.com/pcristin/stockguard/internal/logger"
)

// Store is the capability the orchestrators depend on. A *Redis value below and the
// in-memory fake in stocktest both implement it.
type Store interface {
	Seed(ctx context.Context, productID int64, quantity int64) (seeded bool, err error)
	Read(ctx context.Context, productID int64) (value int64, present bool, err error)
	TryDecrement(ctx context.Context, productID int64, quantity int64) (Result, error)
	Increment(ctx context.Context, productID int64, quantity int64) (newValue int64, err error)
}

// Outcome tags the result of TryDecrement.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeInsufficient
	OutcomeMissing
)

// Result is the outcome of a conditional decrement attempt.
type Result struct {
	Outcome   Outcome
	Remaining int64 // valid only when Outcome == OutcomeOK
}

func key(productID int64) string {
	return fmt.Sprintf("stock:%d", productID)
}

// Redis is the redigo-backed implementation of Store.
type Redis struct {
	pool *redis.Pool
}

// NewRedis wraps an existing connection pool. The pool is owned by the
// caller (cmd/server wiring); Redis never closes it.
func NewRedis(pool *redis.Pool) *Redis {
	return &Redis{pool: pool}
}

// Seed sets the counter iff absent (SETNX semantics). Idempotent across
// retries: a second Seed call for the same product is a no-op and reports
// seeded=false, never an error.
func (s *Redis) Seed(ctx context.Context, productID int64, quantity int64) (bool, error) {
	logger := myLogger.FromContext(ctx, "stock")
	conn := s.pool.Get()
	defer conn.Close()

	set, err := redis.Int(conn.Do("EVAL", seedScript, 1, key(productID), quantity))
	if err != nil {
		logger.Error("stock seed | script failed", "product_id", productID, "error", err)
		return false, err
	}
	seeded := set == 1
	logger.Debug("stock seed | completed", "product_id", productID, "quantity", quantity, "seeded", seeded)
	return seeded, nil
}

// Read returns the current counter value, or present=false if absent.
func (s *Redis) Read(ctx context.Context, productID int64) (int64, bool, error) {
	logger := myLogger.FromContext(ctx, "stock")
	conn := s.pool.Get()
	defer conn.Close()

	value, err := redis.Int64(conn.Do("GET", key(productID)))
	if err == redis.ErrNil {
		return 0, false, nil
	}
	if err != nil {
		logger.Error("stock read | failed", "product_id", productID, "error", err)
		return 0, false, err
	}
	return value, true, nil
}

// TryDecrement executes the atomic conditional decrement server-side.
func (s *Redis) TryDecrement(ctx context.Context, productID int64, quantity int64) (Result, error) {
	logger := myLogger.FromContext(ctx, "stock")
	conn := s.pool.Get()
	defer conn.Close()

	reply, err := redis.Int64(conn.Do("EVAL", decreaseScript, 1, key(productID), quantity))
	if err != nil {
		logger.Error("stock decrement | script failed", "product_id", productID, "error", err)
		return Result{}, err
	}

	switch {
	case reply == -2:
		return Result{Outcome: OutcomeMissing}, nil
	case reply == -1:
		return Result{Outcome: OutcomeInsufficient}, nil
	default:
		logger.Debug("stock decrement | ok", "product_id", productID, "quantity", quantity, "remaining", reply)
		return Result{Outcome: OutcomeOK, Remaining: reply}, nil
	}
}

// Increment unconditionally adds quantity back to the counter. Used by the
// purchase saga's compensation path and nowhere else. Increment, never
// overwrite, so concurrent progress made by other purchases is preserved.
func (s *Redis) Increment(ctx context.Context, productID int64, quantity int64) (int64, error) {
	logger := myLogger.FromContext(ctx, "stock")
	conn := s.pool.Get()
	defer conn.Close()

	newValue, err := redis.Int64(conn.Do("INCRBY", key(productID), quantity))
	if err != nil {
		logger.Error("stock increment | failed", "product_id", productID, "error", err)
		return 0, err
	}
	logger.Info("stock increment | completed", "product_id", productID, "quantity", quantity, "new_value", newValue)
	return newValue, nil
}
