// Package httpx holds the JSON response helpers shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/farmconnect/marketplace/internal/domain"
)

func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func WriteMessage(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	WriteJSON(w, logger, status, map[string]string{"error": message})
}

// WriteError maps domain errors onto status codes. Domain errors carry a
// reason meant for the client; anything else gets a fixed message.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusFor(err)
	switch status {
	case http.StatusServiceUnavailable:
		logger.Error("dependency unavailable", "error", err)
		WriteMessage(w, logger, status, "service unavailable")
	case http.StatusInternalServerError:
		logger.Error("unexpected error", "error", err)
		WriteMessage(w, logger, status, "internal server error")
	default:
		WriteMessage(w, logger, status, err.Error())
	}
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrAuctionNotLive),
		errors.Is(err, domain.ErrBidTooLow),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}
	return nil
}
