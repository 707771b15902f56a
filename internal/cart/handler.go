package cart

import (
	"log/slog"
	"net/http"

	"github.com/farmconnect/marketplace/internal/domain"
	"github.com/farmconnect/marketplace/internal/httpx"
	"github.com/farmconnect/marketplace/internal/identity"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type AddItemRequest struct {
	ListingID string `json:"listing_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), identity.FromRequest(r).UserID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, view)
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	if req.ListingID == "" {
		httpx.WriteMessage(w, h.logger, http.StatusBadRequest, "listing_id is required")
		return
	}

	userID := identity.FromRequest(r).UserID
	view, err := h.service.AddItem(r.Context(), userID, req.ListingID, req.Quantity)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("cart item added", "user_id", userID, "listing_id", req.ListingID, "quantity", req.Quantity)
	httpx.WriteJSON(w, h.logger, http.StatusOK, view)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	listingID := r.PathValue("listingId")

	view, err := h.service.RemoveItem(r.Context(), identity.FromRequest(r).UserID, listingID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, view)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	userID := identity.FromRequest(r).UserID

	if err := h.service.Clear(r.Context(), userID); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, &domain.CartView{UserID: userID, Items: []domain.CartViewLine{}})
}
