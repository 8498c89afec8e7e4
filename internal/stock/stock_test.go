package stock_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcristin/stockguard/internal/stock"
	"github.com/pcristin/stockguard/internal/stock/stocktest"
)

// These tests run against stocktest.Fake, which implements the same
// stock.Store contract the Redis-backed implementation does. They verify
// the core stock invariants at the Store boundary: idempotent seeding,
// never-below-zero decrements, and unconditional compensation increments.

func TestSeed_IdempotentAcrossRetries(t *testing.T) {
	f := stocktest.New()
	ctx := context.Background()

	seeded, err := f.Seed(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = f.Seed(ctx, 1, 999) // different quantity, must not overwrite
	require.NoError(t, err)
	assert.False(t, seeded)

	v, present, err := f.Read(ctx, 1)
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, int64(10), v) // counter equals the first seed's value
}

func TestTryDecrement_MissingVsInsufficient(t *testing.T) {
	f := stocktest.New()
	ctx := context.Background()

	result, err := f.TryDecrement(ctx, 42, 1)
	require.NoError(t, err)
	assert.Equal(t, stock.OutcomeMissing, result.Outcome)

	_, err = f.Seed(ctx, 42, 3)
	require.NoError(t, err)

	result, err = f.TryDecrement(ctx, 42, 5)
	require.NoError(t, err)
	assert.Equal(t, stock.OutcomeInsufficient, result.Outcome)

	result, err = f.TryDecrement(ctx, 42, 3)
	require.NoError(t, err)
	assert.Equal(t, stock.OutcomeOK, result.Outcome)
	assert.Equal(t, int64(0), result.Remaining)
}

func TestTryDecrement_NeverGoesNegative(t *testing.T) {
	f := stocktest.New()
	ctx := context.Background()
	_, err := f.Seed(ctx, 1, 5)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var okCount int32
	var mu sync.Mutex
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.TryDecrement(ctx, 1, 1)
			require.NoError(t, err)
			if result.Outcome == stock.OutcomeOK {
				mu.Lock()
				okCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 5, okCount) // exactly the seeded amount commits
	v, _, err := f.Read(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestIncrement_RestoresCounter(t *testing.T) {
	f := stocktest.New()
	ctx := context.Background()
	_, err := f.Seed(ctx, 1, 10)
	require.NoError(t, err)

	result, err := f.TryDecrement(ctx, 1, 4)
	require.NoError(t, err)
	require.Equal(t, stock.OutcomeOK, result.Outcome)

	newValue, err := f.Increment(ctx, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(10), newValue)
}
