// Package product implements the product creation orchestrator: serialize
// creation by name via the lease lock, insert the Product row, seed the hot
// counter, and compensate by deleting the row if seeding fails.
package product

import (
	"context"
	"fmt"
	"time"

	"github.com/pcristin/stockguard/internal/guard"
	myLogger "github.com/pcristin/stockguard/internal/logger"
	"github.com/pcristin/stockguard/internal/lock"
	"github.com/pcristin/stockguard/internal/registry"
	"github.com/pcristin/stockguard/internal/svcerr"
)

// Request is the creation saga's input.
type Request struct {
	Name            string
	PriceMinorUnits int64
	InitialStock    int64
}

// Orchestrator runs the creation saga against a Registry and a name lock.
type Orchestrator struct {
	Registry    *registry.Registry
	Locker      lock.Locker
	Seeder      guard.Seeder
	LockTimeout time.Duration
}

func New(reg *registry.Registry, locker lock.Locker, seeder guard.Seeder, lockTimeout time.Duration) *Orchestrator {
	return &Orchestrator{Registry: reg, Locker: locker, Seeder: seeder, LockTimeout: lockTimeout}
}

func nameLockResource(name string) string {
	return fmt.Sprintf("product:create:%s", name)
}

// Create runs: acquire name lock, check uniqueness, insert, seed the
// counter, compensate by deleting the row on seed failure, release.
func (o *Orchestrator) Create(ctx context.Context, req Request) (registry.Product, error) {
	logger := myLogger.FromContext(ctx, "product")
	resource := nameLockResource(req.Name)

	token, ok, err := o.Locker.Acquire(ctx, resource, o.LockTimeout)
	if err != nil {
		return registry.Product{}, svcerr.Internal("acquire product-name lock", err)
	}
	if !ok {
		return registry.Product{}, svcerr.ConcurrentCreationInProgress(req.Name)
	}
	// Release is owner-verified and atomic at the store (GET+compare+DEL
	// in one script); releasing with plain GET-then-DEL from Go would
	// race a holder whose lease just expired and was re-acquired by
	// someone else.
	defer o.Locker.Release(context.Background(), resource, token) //nolint:errcheck

	exists, err := o.Registry.ProductExistsByName(ctx, req.Name)
	if err != nil {
		return registry.Product{}, svcerr.Internal("check product name uniqueness", err)
	}
	if exists {
		return registry.Product{}, svcerr.ProductAlreadyExists(req.Name)
	}

	p, err := o.Registry.CreateProduct(ctx, req.Name, req.PriceMinorUnits)
	if err != nil {
		return registry.Product{}, err
	}

	seeded, err := o.Seeder.Seed(ctx, p.ID, req.InitialStock)
	if err != nil || !seeded {
		// Counter already present for a brand-new id should not happen
		// barring id recycling; treat both cases the same way: delete
		// the row we just inserted and fail.
		if delErr := o.Registry.DeleteProduct(context.Background(), p.ID); delErr != nil {
			logger.Error("product create | compensating delete failed, row orphaned",
				"product_id", p.ID, "error", delErr)
		}
		if err != nil {
			return registry.Product{}, svcerr.Internal("seed stock counter", err)
		}
		return registry.Product{}, svcerr.Internal("stock counter already present for new product id", nil)
	}

	logger.Info("product create | completed", "product_id", p.ID, "name", p.Name, "initial_stock", req.InitialStock)
	return p, nil
}
