// Package quorum implements a Redlock-variant distributed lock used
// when a single Redis endpoint is an unacceptable single point of failure.
//
// N independent, non-replicating Redis endpoints each hold an independent
// copy of the lease and the stock counter. Agreement requires a majority
// (N/2 + 1) of endpoints; there is no cross-endpoint transaction, so the hot
// counter can transiently drift between endpoints under partial failure.
// No reconciliation runs: Read reports ok=false when fewer than a quorum of
// endpoints respond, and otherwise returns the plurality value among the
// responders without reporting whether they disagreed.
package quorum

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gomodule/redigo/redis"

	myLogger "github.com/pcristin/stockguard/internal/logger"
	"github.com/pcristin/stockguard/internal/stock"
)

// Lease is the token returned by a successful quorum Acquire, carrying
// enough bookkeeping for the end-of-critical-section clock-drift check
// Decrement performs before declaring a write committed.
type Lease struct {
	Resource   string
	Token      string
	AcquiredAt time.Time
	TTL        time.Duration
}

// Lock is the quorum lock/counter primitive over N endpoints.
type Lock struct {
	pools            []*redis.Pool
	clockDriftBudget time.Duration
}

// New wraps N connection pools, one per independent Redis endpoint.
// clockDriftBudget is subtracted from TTL when deciding whether a decrement
// is still safely within the lease's lifetime at commit time.
func New(pools []*redis.Pool, clockDriftBudget time.Duration) *Lock {
	return &Lock{pools: pools, clockDriftBudget: clockDriftBudget}
}

func (l *Lock) quorum() int {
	return len(l.pools)/2 + 1
}

func stockKey(productID int64) string {
	return fmt.Sprintf("stock:%d", productID)
}

func lockKey(resource string) string {
	return "lock:" + resource
}

// Acquire issues a conditional-set with TTL in parallel across every
// endpoint and declares success iff a quorum agreed within a wall-clock
// budget comfortably inside the TTL. On quorum failure, it releases
// whichever endpoints did succeed before reporting failure.
func (l *Lock) Acquire(ctx context.Context, resource string, ttl time.Duration) (Lease, bool, error) {
	logger := myLogger.FromContext(ctx, "quorum_lock")
	token := uuid.NewString()
	start := time.Now()

	acquired := l.fanOutBool(ctx, func(conn redis.Conn) bool {
		reply, err := redis.String(conn.Do("SET", lockKey(resource), token, "NX", "EX", int(ttl.Seconds())))
		return err == nil && reply == "OK"
	})

	elapsed := time.Since(start)
	successCount := countTrue(acquired)
	need := l.quorum()

	if successCount < need || elapsed >= ttl-l.clockDriftBudget {
		logger.Warn("quorum acquire | failed",
			"resource", resource, "successes", successCount, "need", need, "elapsed", elapsed)
		l.releaseWhereTrue(context.Background(), resource, token, acquired)
		return Lease{}, false, nil
	}

	logger.Debug("quorum acquire | acquired", "resource", resource, "successes", successCount, "elapsed", elapsed)
	return Lease{Resource: resource, Token: token, AcquiredAt: start, TTL: ttl}, true, nil
}

// Release issues an owner-verified delete on every endpoint, swallowing
// per-endpoint errors. Best-effort: never reports failure to the caller.
func (l *Lock) Release(ctx context.Context, resource string, token string) {
	mask := make([]bool, len(l.pools))
	for i := range mask {
		mask[i] = true
	}
	l.releaseWhereTrue(ctx, resource, token, mask)
}

func (l *Lock) releaseWhereTrue(ctx context.Context, resource, token string, where []bool) {
	logger := myLogger.FromContext(ctx, "quorum_lock")
	var wg sync.WaitGroup
	for i, pool := range l.pools {
		if !where[i] {
			continue
		}
		wg.Add(1)
		go func(pool *redis.Pool) {
			defer wg.Done()
			conn := pool.Get()
			defer conn.Close()
			if _, err := conn.Do("EVAL", releaseScript, 1, lockKey(resource), token); err != nil {
				logger.Debug("quorum release | endpoint failed", "error", err)
			}
		}(pool)
	}
	wg.Wait()
}

// Seed initializes the counter on every endpoint via set-if-absent. It
// reports seeded=false only when a quorum of endpoints answered that the
// counter already exists; too few responders is an error, not an
// already-present answer, so callers never mistake a connectivity failure
// for a duplicate counter.
func (l *Lock) Seed(ctx context.Context, productID int64, quantity int64) (bool, error) {
	type reply struct {
		responded bool
		set       bool
	}
	replies := make([]reply, len(l.pools))

	var wg sync.WaitGroup
	for i, pool := range l.pools {
		wg.Add(1)
		go func(i int, pool *redis.Pool) {
			defer wg.Done()
			conn := pool.Get()
			defer conn.Close()
			r, err := conn.Do("SET", stockKey(productID), quantity, "NX")
			if err != nil {
				return
			}
			replies[i] = reply{responded: true, set: r != nil}
		}(i, pool)
	}
	wg.Wait()

	var responders, set int
	for _, r := range replies {
		if r.responded {
			responders++
			if r.set {
				set++
			}
		}
	}

	need := l.quorum()
	if responders < need {
		return false, fmt.Errorf("quorum seed for product %d: %d of %d endpoints responded, need %d",
			productID, responders, len(l.pools), need)
	}
	return set >= need, nil
}

// Read polls every endpoint, ignoring timeouts, and returns the plurality
// value among responders when at least a quorum responded. Otherwise it
// returns ok=false.
func (l *Lock) Read(ctx context.Context, productID int64) (int64, bool, error) {
	var mu sync.Mutex
	values := make([]int64, 0, len(l.pools))

	var wg sync.WaitGroup
	for _, pool := range l.pools {
		wg.Add(1)
		go func(pool *redis.Pool) {
			defer wg.Done()
			conn := pool.Get()
			defer conn.Close()
			v, err := redis.Int64(conn.Do("GET", stockKey(productID)))
			if err != nil {
				return
			}
			mu.Lock()
			values = append(values, v)
			mu.Unlock()
		}(pool)
	}
	wg.Wait()

	if len(values) < l.quorum() {
		return 0, false, nil
	}
	return plurality(values), true, nil
}

// Decrement executes the atomic conditional decrement on every endpoint
// and declares the write committed iff a quorum of endpoints succeeded,
// re-checking that the lease is still within its clock-drift-adjusted TTL
// both before starting and after the fan-out completes. On quorum failure
// it compensates with an unconditional increment on every endpoint that had
// decremented, then reports failure.
func (l *Lock) Decrement(ctx context.Context, lease Lease, productID int64, quantity int64) (stock.Result, error) {
	logger := myLogger.FromContext(ctx, "quorum_lock")

	if time.Since(lease.AcquiredAt) >= lease.TTL-l.clockDriftBudget {
		logger.Warn("quorum decrement | lease stale at start, refusing", "resource", lease.Resource)
		return stock.Result{}, fmt.Errorf("quorum lease for %s stale before decrement: acquired %s ago, ttl %s, clock-drift budget %s",
			lease.Resource, time.Since(lease.AcquiredAt), lease.TTL, l.clockDriftBudget)
	}

	type reply struct {
		ok        bool
		remaining int64
		missing   bool
		low       bool
	}
	replies := make([]reply, len(l.pools))

	var wg sync.WaitGroup
	for i, pool := range l.pools {
		wg.Add(1)
		go func(i int, pool *redis.Pool) {
			defer wg.Done()
			conn := pool.Get()
			defer conn.Close()
			r, err := redis.Int64(conn.Do("EVAL", decreaseScript, 1, stockKey(productID), quantity))
			if err != nil {
				return
			}
			switch {
			case r == -2:
				replies[i] = reply{missing: true}
			case r == -1:
				replies[i] = reply{low: true}
			default:
				replies[i] = reply{ok: true, remaining: r}
			}
		}(i, pool)
	}
	wg.Wait()

	var successes, missing, low int
	var remainders []int64
	for _, r := range replies {
		switch {
		case r.ok:
			successes++
			remainders = append(remainders, r.remaining)
		case r.missing:
			missing++
		case r.low:
			low++
		}
	}

	need := l.quorum()
	elapsedOK := time.Since(lease.AcquiredAt) < lease.TTL-l.clockDriftBudget

	if successes >= need && elapsedOK {
		logger.Debug("quorum decrement | committed", "product_id", productID, "successes", successes)
		return stock.Result{Outcome: stock.OutcomeOK, Remaining: plurality(remainders)}, nil
	}

	// Not committed: compensate every endpoint that did decrement, to
	// restore the counters we just perturbed.
	if successes > 0 {
		where := make([]bool, len(replies))
		for i, r := range replies {
			where[i] = r.ok
		}
		l.incrementWhere(context.Background(), productID, quantity, where)
	}

	switch {
	case missing >= need:
		return stock.Result{Outcome: stock.OutcomeMissing}, nil
	case low >= need:
		return stock.Result{Outcome: stock.OutcomeInsufficient}, nil
	default:
		// Neither stock state nor connectivity reached quorum agreement:
		// report as a lock/quorum failure, not a stock-state answer.
		return stock.Result{}, fmt.Errorf("quorum not reached: successes=%d missing=%d low=%d need=%d", successes, missing, low, need)
	}
}

// incrementWhere restores quantity on the subset of endpoints marked true,
// used to compensate a partial decrement that failed to reach quorum.
func (l *Lock) incrementWhere(ctx context.Context, productID int64, quantity int64, where []bool) {
	logger := myLogger.FromContext(ctx, "quorum_lock")
	var wg sync.WaitGroup
	for i, pool := range l.pools {
		if !where[i] {
			continue
		}
		wg.Add(1)
		go func(pool *redis.Pool) {
			defer wg.Done()
			conn := pool.Get()
			defer conn.Close()
			if _, err := conn.Do("INCRBY", stockKey(productID), quantity); err != nil {
				logger.Debug("quorum compensate | endpoint failed", "error", err)
			}
		}(pool)
	}
	wg.Wait()
}

// Increment unconditionally restores quantity on every endpoint. Used as
// the purchase saga's compensation path; Decrement's own rollback uses
// incrementWhere on just the endpoints that had decremented.
func (l *Lock) Increment(ctx context.Context, productID int64, quantity int64) (int64, error) {
	logger := myLogger.FromContext(ctx, "quorum_lock")
	var mu sync.Mutex
	var values []int64

	var wg sync.WaitGroup
	for _, pool := range l.pools {
		wg.Add(1)
		go func(pool *redis.Pool) {
			defer wg.Done()
			conn := pool.Get()
			defer conn.Close()
			v, err := redis.Int64(conn.Do("INCRBY", stockKey(productID), quantity))
			if err != nil {
				logger.Debug("quorum increment | endpoint failed", "error", err)
				return
			}
			mu.Lock()
			values = append(values, v)
			mu.Unlock()
		}(pool)
	}
	wg.Wait()

	if len(values) == 0 {
		return 0, fmt.Errorf("quorum increment: no endpoint responded")
	}
	return plurality(values), nil
}

func (l *Lock) fanOutBool(ctx context.Context, fn func(conn redis.Conn) bool) []bool {
	_ = ctx
	results := make([]bool, len(l.pools))
	var wg sync.WaitGroup
	for i, pool := range l.pools {
		wg.Add(1)
		go func(i int, pool *redis.Pool) {
			defer wg.Done()
			conn := pool.Get()
			defer conn.Close()
			results[i] = fn(conn)
		}(i, pool)
	}
	wg.Wait()
	return results
}

func countTrue(values []bool) int {
	n := 0
	for _, v := range values {
		if v {
			n++
		}
	}
	return n
}

// plurality returns the most frequently occurring value among responders,
// breaking ties by first occurrence order.
func plurality(values []int64) int64 {
	counts := make(map[int64]int)
	order := make([]int64, 0, len(values))
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	best := order[0]
	for _, v := range order {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best
}
