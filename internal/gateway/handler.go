package gateway

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/farmconnect/marketplace/internal/httpx"
)

type Handler struct {
	marketplace *ServiceProxy
	logger      *slog.Logger
}

func NewHandler(marketplace *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		marketplace: marketplace,
		logger:      logger,
	}
}

// HandleMarketplace forwards the request unchanged, query string included.
func (h *Handler) HandleMarketplace(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.marketplace, r.URL.RequestURI())
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, target string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, target)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", r.URL.Path)
		httpx.WriteMessage(w, h.logger, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", r.URL.Path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}
