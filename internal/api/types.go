package api

import (
	"context"
	"time"

	"github.com/pcristin/stockguard/internal/config"
	"github.com/pcristin/stockguard/internal/product"
	"github.com/pcristin/stockguard/internal/purchase"
	"github.com/pcristin/stockguard/internal/registry"
)

// Handler is the HTTP edge: thin request/response translation over the
// purchase and product orchestrators, with a direct registry handle for the
// read-only consistency view.
type Handler struct {
	Config   *config.Config
	Registry *registry.Registry
	Purchase *purchase.Orchestrator
	Product  *product.Orchestrator

	// HotRead backs the read_with_stock consistency view without giving
	// this package a direct Redis dependency; wired in cmd/server/main.go
	// to whichever guard (single-node or quorum) is active.
	HotRead func(ctx context.Context, productID int64) (int64, bool, error)
	// HotSeed lazily seeds the hot counter from the mirror on first read.
	HotSeed func(ctx context.Context, productID int64, quantity int64) (bool, error)
}

// NewHandler wires a Handler from its collaborators.
func NewHandler(cfg *config.Config, reg *registry.Registry, purchaseOrch *purchase.Orchestrator, productOrch *product.Orchestrator, hotRead func(context.Context, int64) (int64, bool, error), hotSeed func(context.Context, int64, int64) (bool, error)) *Handler {
	return &Handler{
		Config:   cfg,
		Registry: reg,
		Purchase: purchaseOrch,
		Product:  productOrch,
		HotRead:  hotRead,
		HotSeed:  hotSeed,
	}
}

// PurchaseRequest is the inbound JSON body for POST /purchases.
type PurchaseRequest struct {
	BuyerID   int64 `json:"buyer_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// PurchaseResponse mirrors the committed Purchase row.
type PurchaseResponse struct {
	ID                   int64  `json:"id"`
	BuyerID              int64  `json:"buyer_id"`
	ProductID            int64  `json:"product_id"`
	Quantity             int64  `json:"quantity"`
	TotalPriceMinorUnits int64  `json:"total_price_minor_units"`
	PurchasedAt          string `json:"purchased_at"`
}

// CreateProductRequest is the inbound JSON body for POST /products.
type CreateProductRequest struct {
	Name            string `json:"name"`
	PriceMinorUnits int64  `json:"price_minor_units"`
	InitialStock    int64  `json:"initial_stock"`
}

// ProductResponse mirrors a Product row.
type ProductResponse struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	PriceMinorUnits int64  `json:"price_minor_units"`
	Stock           int64  `json:"stock"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// StockViewResponse mirrors the registry's consistency view.
type StockViewResponse struct {
	Product     ProductResponse `json:"product"`
	MirrorStock int64           `json:"mirror_stock"`
	HotStock    int64           `json:"hot_stock"`
	Synced      bool            `json:"synced"`
}

// ErrorResponse is the standardized error body writeError emits for
// errors returned by the orchestrators and the registry.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthStatus reports edge + dependency health.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func toProductResponse(p registry.Product) ProductResponse {
	return ProductResponse{
		ID:              p.ID,
		Name:            p.Name,
		PriceMinorUnits: p.PriceMinorUnits,
		Stock:           p.Stock,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       p.UpdatedAt.Format(time.RFC3339),
	}
}

func toPurchaseResponse(p registry.Purchase) PurchaseResponse {
	return PurchaseResponse{
		ID:                   p.ID,
		BuyerID:              p.BuyerID,
		ProductID:            p.ProductID,
		Quantity:             p.Quantity,
		TotalPriceMinorUnits: p.TotalPriceMinorUnits,
		PurchasedAt:          p.PurchasedAt.Format(time.RFC3339),
	}
}
