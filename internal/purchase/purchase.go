// Package purchase implements the top-level purchase saga: product
// lookup, guarded stock decrement, ledger write + mirror update, and
// compensation on relational failure.
package purchase

import (
	"context"

	myLogger "github.com/pcristin/stockguard/internal/logger"
	"github.com/pcristin/stockguard/internal/registry"
	"github.com/pcristin/stockguard/internal/stock"
	"github.com/pcristin/stockguard/internal/svcerr"
)

// StockGuard is the capability this saga depends on, satisfied by both
// guard.SingleNode and guard.Quorum, so the saga is written once
// regardless of deployment topology.
type StockGuard interface {
	Read(ctx context.Context, productID int64) (int64, bool, error)
	Decrement(ctx context.Context, productID int64, quantity int64) (stock.Result, error)
	Increment(ctx context.Context, productID int64, quantity int64) (int64, error)
}

// Request is the saga's input: buyer id, product id, quantity > 0.
type Request struct {
	BuyerID   int64
	ProductID int64
	Quantity  int64
}

// Orchestrator runs the purchase saga against a Registry and a StockGuard
// (single-node or quorum, via package guard).
type Orchestrator struct {
	Registry *registry.Registry
	Guard    StockGuard
}

func New(reg *registry.Registry, g StockGuard) *Orchestrator {
	return &Orchestrator{Registry: reg, Guard: g}
}

// Purchase runs the full state machine:
// INIT, LOOKUP, DECREMENT_GUARDED, WRITE_LEDGER, COMMIT, DONE, with a
// compensation edge from WRITE_LEDGER/COMMIT back through an increment
// before the failure propagates.
func (o *Orchestrator) Purchase(ctx context.Context, req Request) (registry.Purchase, error) {
	logger := myLogger.FromContext(ctx, "purchase")

	if req.Quantity <= 0 {
		return registry.Purchase{}, svcerr.New(svcerr.KindInternal, "quantity must be positive")
	}

	// LOOKUP: product must exist in the registry before we touch the
	// hot counter at all.
	product, err := o.Registry.GetProduct(ctx, req.ProductID)
	if err != nil {
		return registry.Purchase{}, err
	}

	// SNAPSHOT: the hot counter must exist before any lock work starts. A
	// registered product whose counter was never seeded is indistinguishable
	// from a missing product at this layer.
	snapshot, present, err := o.Guard.Read(ctx, req.ProductID)
	if err != nil {
		return registry.Purchase{}, svcerr.Internal("read hot stock", err)
	}
	if !present {
		return registry.Purchase{}, svcerr.ProductNotFound(req.ProductID)
	}

	if err := o.Registry.EnsureUser(ctx, req.BuyerID); err != nil {
		return registry.Purchase{}, svcerr.Internal("ensure buyer row", err)
	}

	// DECREMENT_GUARDED: the guard acquires its lock and runs the
	// atomic conditional decrement.
	result, err := o.Guard.Decrement(ctx, req.ProductID, req.Quantity)
	if err != nil {
		// The guard already classifies lock exhaustion as
		// LockAcquisitionFailure; propagate unchanged.
		return registry.Purchase{}, err
	}

	switch result.Outcome {
	case stock.OutcomeMissing:
		return registry.Purchase{}, svcerr.ProductNotFound(req.ProductID)
	case stock.OutcomeInsufficient:
		return registry.Purchase{}, svcerr.InsufficientStock(req.ProductID, req.Quantity, snapshot)
	}

	// WRITE_LEDGER + COMMIT: one relational transaction inserts the
	// Purchase row and overwrites the mirror with the hot value this
	// request observed.
	purchase, err := o.Registry.CommitPurchase(ctx, req.BuyerID, req.ProductID, req.Quantity, product.PriceMinorUnits, result.Remaining)
	if err != nil {
		// Compensation: increment, never overwrite with the pre-decrement
		// snapshot, so concurrent purchases' progress survives. Compensation
		// runs even if ctx is already cancelled, hence context.Background()
		// here.
		if _, incErr := o.Guard.Increment(context.Background(), req.ProductID, req.Quantity); incErr != nil {
			logger.Error("purchase compensate | increment failed, counter under-counted",
				"product_id", req.ProductID, "quantity", req.Quantity, "error", incErr)
		} else {
			logger.Warn("purchase compensate | restored hot counter after commit failure",
				"product_id", req.ProductID, "quantity", req.Quantity)
		}
		return registry.Purchase{}, svcerr.Internal("commit purchase", err)
	}

	logger.Info("purchase | committed", "purchase_id", purchase.ID, "buyer_id", req.BuyerID, "product_id", req.ProductID, "quantity", req.Quantity)
	return purchase, nil
}
