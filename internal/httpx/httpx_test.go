package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/farmconnect/marketplace/internal/domain"
)

func TestWriteError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", fmt.Errorf("%w: price is required", domain.ErrValidation), http.StatusBadRequest, "validation failed: price is required"},
		{"bid too low", fmt.Errorf("%w: must exceed 150", domain.ErrBidTooLow), http.StatusBadRequest, "bid too low: must exceed 150"},
		{"not found", fmt.Errorf("%w: listing abc", domain.ErrNotFound), http.StatusNotFound, "not found: listing abc"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"conflict", domain.ErrConflict, http.StatusConflict, "conflict"},
		{"unavailable hides cause", fmt.Errorf("%w: dial tcp 10.0.0.3:5432", domain.ErrUnavailable), http.StatusServiceUnavailable, "service unavailable"},
		{"unknown hides cause", errors.New("nil pointer somewhere"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, logger, tt.err)

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}

			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp["error"] != tt.message {
				t.Errorf("expected %q, got %q", tt.message, resp["error"])
			}
		})
	}
}
