package quorum

import (
	"testing"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
)

// These exercise the quorum arithmetic and the plurality read-resolution
// policy without needing a live Redis endpoint. The connection-fan-out
// paths (Acquire/Decrement/Read) are integration-shaped and are the one
// concern in this package that genuinely needs a live
// Redis wire protocol to exercise honestly.

func newLockWithN(n int) *Lock {
	pools := make([]*redis.Pool, n)
	return &Lock{pools: pools}
}

func TestQuorum_FloorNOver2Plus1(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{1, 1},
		{2, 2},
		{3, 2},
		{4, 3},
		{5, 3},
		{6, 4},
	}
	for _, c := range cases {
		l := newLockWithN(c.n)
		assert.Equal(t, c.want, l.quorum(), "n=%d", c.n)
	}
}

func TestPlurality_MostFrequentValueWins(t *testing.T) {
	assert.Equal(t, int64(9), plurality([]int64{9, 9, 8}))
	assert.Equal(t, int64(5), plurality([]int64{5}))
}

func TestPlurality_TieBreaksByFirstOccurrence(t *testing.T) {
	// Two values tied 1-1: the read-resolution policy says "the value
	// occurring most frequently among responders" without mandating a
	// tiebreak rule; this implementation is deterministic (first occurrence
	// wins) rather than
	// arbitrary map-iteration order.
	assert.Equal(t, int64(7), plurality([]int64{7, 3}))
}

func TestCountTrue(t *testing.T) {
	assert.Equal(t, 0, countTrue(nil))
	assert.Equal(t, 2, countTrue([]bool{true, false, true}))
}
