package gateway

import (
	"log/slog"
	"net/http"

	"github.com/farmconnect/marketplace/internal/identity"
	"github.com/farmconnect/marketplace/internal/telemetry"
)

var publicRoutes = []string{
	"POST /auth/signup",
	"POST /auth/login",
	"GET /listings",
	"GET /listings/{id}",
}

var protectedRoutes = []string{
	"POST /listings",
	"PUT /listings/{id}",
	"DELETE /listings/{id}",
	"PUT /listings/{id}/availability",
	"POST /listings/{id}/bids",
	"GET /cart",
	"POST /cart/items",
	"DELETE /cart/items/{listingId}",
	"DELETE /cart",
	"POST /cart/checkout",
	"POST /orders",
	"GET /orders/{id}",
	"PUT /orders/{id}/status",
	"GET /orders/by-customer/{name}",
	"GET /dashboard/listings/{sellerName}",
	"GET /dashboard/orders/{sellerName}",
}

// Register mounts every marketplace route on mux. Public routes accept an
// optional token; the rest reject requests without a valid one.
func Register(mux *http.ServeMux, h *Handler, tokens *identity.TokenManager, logger *slog.Logger) {
	optional := identity.Authenticate(tokens, false, logger)
	required := identity.Authenticate(tokens, true, logger)

	for _, pattern := range publicRoutes {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(optional(h.HandleMarketplace)))
	}
	for _, pattern := range protectedRoutes {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(required(h.HandleMarketplace)))
	}
}
