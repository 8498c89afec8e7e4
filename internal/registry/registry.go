// Package registry implements the product registry and the purchase
// ledger, the authoritative relational store behind the hot counter in
// package stock/quorum. Uses sql.Open with prepared statements and
// explicit rollback-before-commit.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	myLogger "github.com/pcristin/stockguard/internal/logger"
	"github.com/pcristin/stockguard/internal/svcerr"
)

// Product is the registry's durable record: identity, price, and a
// best-effort mirror of the hot counter.
type Product struct {
	ID              int64
	Name            string
	PriceMinorUnits int64
	Stock           int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Purchase is an append-only ledger row.
type Purchase struct {
	ID                   int64
	BuyerID              int64
	ProductID            int64
	Quantity             int64
	TotalPriceMinorUnits int64
	PurchasedAt          time.Time
}

// StockView is the consistency view: the mirror alongside the hot value
// observed at read time, with an explicit divergence signal rather than a
// hidden reconciliation.
type StockView struct {
	Product     Product
	MirrorStock int64
	HotStock    int64
	Synced      bool
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id BIGINT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS products (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL UNIQUE,
    price_minor_units BIGINT NOT NULL CHECK (price_minor_units >= 0),
    stock BIGINT NOT NULL DEFAULT 0 CHECK (stock >= 0),
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS purchases (
    id BIGSERIAL PRIMARY KEY,
    buyer_id BIGINT NOT NULL REFERENCES users(id),
    product_id BIGINT NOT NULL REFERENCES products(id),
    quantity BIGINT NOT NULL CHECK (quantity > 0),
    total_price_minor_units BIGINT NOT NULL,
    purchased_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_purchases_product ON purchases(product_id);
CREATE INDEX IF NOT EXISTS idx_purchases_buyer ON purchases(buyer_id);
`

// uniqueViolation is Postgres's SQLSTATE for a unique-constraint breach.
const uniqueViolation = "23505"

// Registry wraps the relational connection pool.
type Registry struct {
	db *sql.DB
}

// Open opens a Postgres connection pool sized for a baseline plus overflow
// for burst to ~150 connections, and verifies connectivity.
func Open(ctx context.Context, url string, poolSize, poolOverflow int, poolTimeout time.Duration) (*Registry, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(poolSize + poolOverflow)
	db.SetMaxIdleConns(poolSize)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, poolTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, err
	}

	return &Registry{db: db}, nil
}

// FromDB wraps an already-open *sql.DB. Exposed for tests that substitute a
// mocked driver (sqlmock) in place of a live Postgres connection.
func FromDB(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// Close closes the underlying pool.
func (r *Registry) Close() error {
	return r.db.Close()
}

// HealthCheck reports whether the relational store is reachable.
func (r *Registry) HealthCheck(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateSchema creates the products/purchases/users tables if absent.
func (r *Registry) CreateSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// EnsureUser upserts the row Purchase.buyer_id's foreign key needs. This is
// not an authentication service: the HTTP edge is responsible for
// authenticating the caller; this only guarantees the FK target exists.
func (r *Registry) EnsureUser(ctx context.Context, buyerID int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING", buyerID)
	return err
}

// CreateProduct inserts a new Product row. Name uniqueness is enforced by
// the schema; a duplicate insert surfaces as ProductAlreadyExists rather
// than a generic internal error.
func (r *Registry) CreateProduct(ctx context.Context, name string, priceMinorUnits int64) (Product, error) {
	logger := myLogger.FromContext(ctx, "registry")
	var p Product
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO products (name, price_minor_units, stock, created_at, updated_at)
		 VALUES ($1, $2, 0, NOW(), NOW())
		 RETURNING id, name, price_minor_units, stock, created_at, updated_at`,
		name, priceMinorUnits,
	).Scan(&p.ID, &p.Name, &p.PriceMinorUnits, &p.Stock, &p.CreatedAt, &p.UpdatedAt)

	if isUniqueViolation(err) {
		return Product{}, svcerr.ProductAlreadyExists(name)
	}
	if err != nil {
		logger.Error("registry create product | failed", "name", name, "error", err)
		return Product{}, svcerr.Internal("create product", err)
	}
	return p, nil
}

// ProductExistsByName performs the explicit uniqueness check product
// creation runs ahead of the insert; the schema's UNIQUE constraint guards
// against the remaining race.
func (r *Registry) ProductExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM products WHERE name = $1)", name).Scan(&exists)
	return exists, err
}

// DeleteProduct removes a Product row. Product creation uses it to
// compensate when the stock counter seed fails after the row was inserted.
func (r *Registry) DeleteProduct(ctx context.Context, productID int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", productID)
	return err
}

// GetProduct reads a Product by id.
func (r *Registry) GetProduct(ctx context.Context, productID int64) (Product, error) {
	var p Product
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, price_minor_units, stock, created_at, updated_at FROM products WHERE id = $1",
		productID,
	).Scan(&p.ID, &p.Name, &p.PriceMinorUnits, &p.Stock, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, svcerr.ProductNotFound(productID)
	}
	if err != nil {
		return Product{}, svcerr.Internal("get product", err)
	}
	return p, nil
}

// ReadWithStock assembles the consistency view. hotRead/hotSeed are
// supplied by the caller (package guard) so this package stays free of a
// direct Redis dependency; seeding happens lazily and race-safely (the
// Seeder itself is set-if-absent, so a concurrent seeder never overwrites
// a value another caller already established).
func (r *Registry) ReadWithStock(ctx context.Context, productID int64, hotRead func(context.Context, int64) (int64, bool, error), hotSeed func(context.Context, int64, int64) (bool, error)) (StockView, error) {
	p, err := r.GetProduct(ctx, productID)
	if err != nil {
		return StockView{}, err
	}

	hot, present, err := hotRead(ctx, productID)
	if err != nil {
		return StockView{}, svcerr.Internal("read hot stock", err)
	}
	if !present {
		if _, err := hotSeed(ctx, productID, p.Stock); err != nil {
			return StockView{}, svcerr.Internal("lazy seed hot stock", err)
		}
		hot, _, err = hotRead(ctx, productID)
		if err != nil {
			return StockView{}, svcerr.Internal("read hot stock after seed", err)
		}
	}

	return StockView{
		Product:     p,
		MirrorStock: p.Stock,
		HotStock:    hot,
		Synced:      p.Stock == hot,
	}, nil
}

// CommitPurchase runs the ledger write and mirror update as one relational
// transaction: insert
// the Purchase row with a decimal-computed total_price, then overwrite
// Product.stock with the hot value observed after this request's
// decrement. total_price is computed via decimal.Decimal to avoid int64
// overflow on price * quantity for large quantities rather than
// hand-rolling money arithmetic.
func (r *Registry) CommitPurchase(ctx context.Context, buyerID, productID, quantity int64, priceMinorUnits int64, hotStockAfter int64) (Purchase, error) {
	logger := myLogger.FromContext(ctx, "registry")

	total := decimal.NewFromInt(priceMinorUnits).Mul(decimal.NewFromInt(quantity))
	if total.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return Purchase{}, svcerr.Internal("purchase total exceeds the int64 minor-unit range", nil)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Purchase{}, svcerr.Internal("begin purchase transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var purchase Purchase
	err = tx.QueryRowContext(ctx,
		`INSERT INTO purchases (buyer_id, product_id, quantity, total_price_minor_units, purchased_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING id, buyer_id, product_id, quantity, total_price_minor_units, purchased_at`,
		buyerID, productID, quantity, total.IntPart(),
	).Scan(&purchase.ID, &purchase.BuyerID, &purchase.ProductID, &purchase.Quantity, &purchase.TotalPriceMinorUnits, &purchase.PurchasedAt)
	if err != nil {
		logger.Error("registry commit purchase | insert failed", "buyer_id", buyerID, "product_id", productID, "error", err)
		return Purchase{}, err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2", hotStockAfter, productID,
	); err != nil {
		logger.Error("registry commit purchase | mirror update failed", "product_id", productID, "error", err)
		return Purchase{}, err
	}

	if err := tx.Commit(); err != nil {
		return Purchase{}, err
	}

	logger.Info("registry commit purchase | committed", "purchase_id", purchase.ID, "buyer_id", buyerID, "product_id", productID)
	return purchase, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
