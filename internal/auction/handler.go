package auction

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/farmconnect/marketplace/internal/domain"
	"github.com/farmconnect/marketplace/internal/httpx"
	"github.com/farmconnect/marketplace/internal/identity"
)

type Handler struct {
	engine *Engine
	logger *slog.Logger
}

func NewHandler(engine *Engine, logger *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// BidRequest is the body of POST /listings/{id}/bids. BidderID is optional
// and must match the caller when present.
type BidRequest struct {
	BidderID string           `json:"bidder_id"`
	Amount   *decimal.Decimal `json:"amount"`
}

func (h *Handler) HandlePlaceBid(w http.ResponseWriter, r *http.Request) {
	listingID := r.PathValue("id")
	caller := identity.FromRequest(r)

	if caller.UserID == "" {
		httpx.WriteError(w, h.logger, domain.ErrUnauthorized)
		return
	}

	var req BidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	if req.Amount == nil {
		httpx.WriteMessage(w, h.logger, http.StatusBadRequest, "amount is required")
		return
	}
	if req.BidderID != "" && req.BidderID != caller.UserID {
		httpx.WriteError(w, h.logger, fmt.Errorf("%w: cannot bid on behalf of another user", domain.ErrForbidden))
		return
	}

	listing, err := h.engine.PlaceBid(r.Context(), listingID, caller.UserID, *req.Amount)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("bid accepted",
		"listing_id", listing.ID,
		"bidder_id", caller.UserID,
		"amount", req.Amount.String(),
	)
	httpx.WriteJSON(w, h.logger, http.StatusOK, listing)
}
