package listings

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

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	listing, err := h.service.Create(r.Context(), identity.FromRequest(r), in)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("listing created", "listing_id", listing.ID, "mode", listing.Mode, "owner_id", listing.OwnerID)
	httpx.WriteJSON(w, h.logger, http.StatusCreated, listing)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	listing, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, listing)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListingFilter{
		Category: r.URL.Query().Get("category"),
		Mode:     domain.PricingMode(r.URL.Query().Get("mode")),
	}

	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("listings listed", "count", len(list), "category", filter.Category)
	httpx.WriteJSON(w, h.logger, http.StatusOK, list)
}

func (h *Handler) HandleListBySeller(w http.ResponseWriter, r *http.Request) {
	seller := r.PathValue("sellerName")

	list, err := h.service.ListByOwnerName(r.Context(), seller)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, list)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	listing, err := h.service.Update(r.Context(), identity.FromRequest(r), id, in)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("listing updated", "listing_id", listing.ID, "version", listing.Version)
	httpx.WriteJSON(w, h.logger, http.StatusOK, listing)
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

func (h *Handler) HandleSetAvailability(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req availabilityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if req.Available == nil {
		httpx.WriteMessage(w, h.logger, http.StatusBadRequest, "available is required")
		return
	}

	listing, err := h.service.SetAvailability(r.Context(), identity.FromRequest(r), id, *req.Available)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("listing availability changed", "listing_id", listing.ID, "available", *req.Available)
	httpx.WriteJSON(w, h.logger, http.StatusOK, listing)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.service.Delete(r.Context(), identity.FromRequest(r), id); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("listing deleted", "listing_id", id)
	w.WriteHeader(http.StatusNoContent)
}
