// Package stocktest provides an in-process fake of stock.Store for tests
// that exercise the orchestrators without a live Redis. It implements the same
// capability interface, serialized by a mutex the way a single-threaded
// Lua script would be on a real endpoint.
package stocktest

import (
	"context"
	"sync"

	"github.com/pcristin/stockguard/internal/stock"
)

// Fake is a goroutine-safe in-memory stock.Store.
type Fake struct {
	mu       sync.Mutex
	counters map[int64]int64
	present  map[int64]bool
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		counters: make(map[int64]int64),
		present:  make(map[int64]bool),
	}
}

func (f *Fake) Seed(_ context.Context, productID int64, quantity int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.present[productID] {
		return false, nil
	}
	f.counters[productID] = quantity
	f.present[productID] = true
	return true, nil
}

func (f *Fake) Read(_ context.Context, productID int64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.present[productID] {
		return 0, false, nil
	}
	return f.counters[productID], true, nil
}

func (f *Fake) TryDecrement(_ context.Context, productID int64, quantity int64) (stock.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.present[productID] {
		return stock.Result{Outcome: stock.OutcomeMissing}, nil
	}
	current := f.counters[productID]
	if current < quantity {
		return stock.Result{Outcome: stock.OutcomeInsufficient}, nil
	}
	f.counters[productID] = current - quantity
	return stock.Result{Outcome: stock.OutcomeOK, Remaining: f.counters[productID]}, nil
}

func (f *Fake) Increment(_ context.Context, productID int64, quantity int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[productID] += quantity
	f.present[productID] = true
	return f.counters[productID], nil
}

// MustRead is a test helper for terse assertions: it returns the counter
// value, or 0 if the counter is absent.
func (f *Fake) MustRead(productID int64) int64 {
	v, _, _ := f.Read(context.Background(), productID)
	return v
}
