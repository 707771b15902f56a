package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandler_HandleMarketplace(t *testing.T) {
	t.Run("proxies GET /listings with query", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/listings" {
				t.Errorf("expected /listings, got %s", r.URL.Path)
			}
			if r.URL.Query().Get("mode") != "auction" {
				t.Errorf("expected mode=auction, got %q", r.URL.RawQuery)
			}
			if r.Method != http.MethodGet {
				t.Errorf("expected GET, got %s", r.Method)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`[{"id":"1"}]`))
		}))
		defer upstream.Close()

		handler := NewHandler(NewServiceProxy(upstream.URL, upstream.Client()), discardLogger())

		req := httptest.NewRequest(http.MethodGet, "/listings?mode=auction", nil)
		rec := httptest.NewRecorder()

		handler.HandleMarketplace(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
		if rec.Header().Get("Content-Type") != "application/json" {
			t.Errorf("expected application/json, got %s", rec.Header().Get("Content-Type"))
		}
		if rec.Body.String() != `[{"id":"1"}]` {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("proxies POST /cart/items with body", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"listing_id":"l-1","quantity":2}` {
				t.Errorf("unexpected body: %s", body)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"items":[]}`))
		}))
		defer upstream.Close()

		handler := NewHandler(NewServiceProxy(upstream.URL, upstream.Client()), discardLogger())

		req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"listing_id":"l-1","quantity":2}`))
		rec := httptest.NewRecorder()

		handler.HandleMarketplace(rec, req)

		if rec.Code != http.StatusCreated {
			t.Errorf("expected status 201, got %d", rec.Code)
		}
	})

	t.Run("preserves downstream error status", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"bid must exceed current price"}`))
		}))
		defer upstream.Close()

		handler := NewHandler(NewServiceProxy(upstream.URL, upstream.Client()), discardLogger())

		req := httptest.NewRequest(http.MethodPost, "/listings/l-1/bids", strings.NewReader(`{"amount":"10"}`))
		rec := httptest.NewRecorder()

		handler.HandleMarketplace(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
	})

	t.Run("returns 502 when marketplace unavailable", func(t *testing.T) {
		handler := NewHandler(NewServiceProxy("http://localhost:99999", &http.Client{}), discardLogger())

		req := httptest.NewRequest(http.MethodGet, "/listings", nil)
		rec := httptest.NewRecorder()

		handler.HandleMarketplace(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected status 502, got %d", rec.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "service unavailable" {
			t.Errorf("expected 'service unavailable', got %s", resp["error"])
		}
	})
}
