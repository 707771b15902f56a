package orders

import (
	"log/slog"
	"net/http"

	"github.com/farmconnect/marketplace/internal/domain"
	"github.com/farmconnect/marketplace/internal/httpx"
	"github.com/farmconnect/marketplace/internal/identity"
)

type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
	}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	order, err := h.manager.Create(r.Context(), identity.FromRequest(r), in)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("order created", "order_id", order.ID, "customer_id", order.CustomerID, "seller_id", order.SellerID)
	httpx.WriteJSON(w, h.logger, http.StatusCreated, order)
}

type checkoutRequest struct {
	Customer domain.CustomerDetails `json:"customer"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	caller := identity.FromRequest(r)
	orders, err := h.manager.Checkout(r.Context(), caller, req.Customer)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("cart checked out", "customer_id", caller.UserID, "orders", len(orders))
	httpx.WriteJSON(w, h.logger, http.StatusCreated, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	order, err := h.manager.Get(r.Context(), identity.FromRequest(r), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	order, err := h.manager.SetStatus(r.Context(), identity.FromRequest(r), id, req.Status)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	httpx.WriteJSON(w, h.logger, http.StatusOK, order)
}

func (h *Handler) HandleListByCustomer(w http.ResponseWriter, r *http.Request) {
	orders, err := h.manager.ListByCustomerName(r.Context(), identity.FromRequest(r), r.PathValue("name"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	httpx.WriteJSON(w, h.logger, http.StatusOK, orders)
}

func (h *Handler) HandleListBySeller(w http.ResponseWriter, r *http.Request) {
	orders, err := h.manager.ListBySellerName(r.Context(), identity.FromRequest(r), r.PathValue("sellerName"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("seller orders listed", "count", len(orders))
	httpx.WriteJSON(w, h.logger, http.StatusOK, orders)
}
