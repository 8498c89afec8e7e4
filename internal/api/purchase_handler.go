package api

import (
	"encoding/json"
	"net/http"

	myLogger "github.com/pcristin/stockguard/internal/logger"
	"github.com/pcristin/stockguard/internal/purchase"
)

// CreatePurchase handles POST /purchases. The buyer id here stands in for
// an authenticated caller identity; request authentication itself lives
// outside this service.
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	logger := myLogger.FromContext(r.Context(), "purchase_handler")

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Quantity <= 0 || req.ProductID <= 0 {
		http.Error(w, "quantity and product_id must be positive", http.StatusBadRequest)
		return
	}

	result, err := h.Purchase.Purchase(r.Context(), purchase.Request{
		BuyerID:   req.BuyerID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info("purchase | completed", "purchase_id", result.ID, "buyer_id", req.BuyerID, "product_id", req.ProductID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPurchaseResponse(result)) //nolint:errcheck
}
