package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	myLogger "github.com/pcristin/stockguard/internal/logger"
	"github.com/pcristin/stockguard/internal/product"
)

// CreateProduct handles POST /products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	logger := myLogger.FromContext(r.Context(), "product_handler")

	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.PriceMinorUnits < 0 || req.InitialStock < 0 {
		http.Error(w, "name, non-negative price_minor_units and initial_stock are required", http.StatusBadRequest)
		return
	}

	p, err := h.Product.Create(r.Context(), product.Request{
		Name:            req.Name,
		PriceMinorUnits: req.PriceMinorUnits,
		InitialStock:    req.InitialStock,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info("product create | completed", "product_id", p.ID, "name", p.Name)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toProductResponse(p)) //nolint:errcheck
}

// GetProductWithStock handles GET /products/{id}: the mirror-vs-hot-counter
// consistency view, lazily seeding the hot counter from the mirror if absent.
func (h *Handler) GetProductWithStock(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	productID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || productID <= 0 {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}

	view, err := h.Registry.ReadWithStock(r.Context(), productID, h.HotRead, h.HotSeed)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(StockViewResponse{ //nolint:errcheck
		Product:     toProductResponse(view.Product),
		MirrorStock: view.MirrorStock,
		HotStock:    view.HotStock,
		Synced:      view.Synced,
	})
}
