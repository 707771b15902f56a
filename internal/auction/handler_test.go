package auction

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/farmconnect/marketplace/internal/domain"
	"github.com/farmconnect/marketplace/internal/identity"
)

func TestHandlePlaceBid(t *testing.T) {
	engine, repo, clk := newTestEngine(t)
	seedAuction(t, repo, lotHandler, 100)
	clk.Set(auctionStart.Add(5 * time.Minute))

	h := NewHandler(engine, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /listings/{id}/bids", h.HandlePlaceBid)

	alice := domain.Identity{UserID: "alice", Name: "Alice"}

	tests := []struct {
		name       string
		path       string
		body       string
		caller     domain.Identity
		wantStatus int
	}{
		{"anonymous", "/listings/" + lotHandler + "/bids", `{"amount":"120"}`, domain.Identity{}, http.StatusUnauthorized},
		{"invalid json", "/listings/" + lotHandler + "/bids", `{`, alice, http.StatusBadRequest},
		{"missing amount", "/listings/" + lotHandler + "/bids", `{}`, alice, http.StatusBadRequest},
		{"bidding for someone else", "/listings/" + lotHandler + "/bids", `{"bidder_id":"bob","amount":"120"}`, alice, http.StatusForbidden},
		{"too low", "/listings/" + lotHandler + "/bids", `{"amount":"90"}`, alice, http.StatusBadRequest},
		{"accepted", "/listings/" + lotHandler + "/bids", `{"bidder_id":"alice","amount":"120"}`, alice, http.StatusOK},
		{"same amount again", "/listings/" + lotHandler + "/bids", `{"amount":120}`, alice, http.StatusBadRequest},
		{"unknown listing", "/listings/nope/bids", `{"amount":"500"}`, alice, http.StatusNotFound},
		{"sub-cent amount", "/listings/" + lotHandler + "/bids", `{"amount":"130.001"}`, alice, http.StatusBadRequest},
		{"amount overflows", "/listings/" + lotHandler + "/bids", `{"amount":"10000000000"}`, alice, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			if tt.caller.UserID != "" {
				identity.Inject(req.Header, tt.caller)
			}
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}

	t.Run("response carries the new price", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/listings/" + lotHandler + "/bids", strings.NewReader(`{"amount":"175.50"}`))
		identity.Inject(req.Header, alice)
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		var listing domain.Listing
		if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if listing.Auction.CurrentPrice.String() != "175.5" {
			t.Errorf("expected current price 175.5, got %s", listing.Auction.CurrentPrice)
		}
		if listing.Auction.HighestBidder != "alice" {
			t.Errorf("expected alice to lead, got %s", listing.Auction.HighestBidder)
		}
	})

	t.Run("after close", func(t *testing.T) {
		clk.Set(auctionStart.Add(2 * time.Hour))
		req := httptest.NewRequest(http.MethodPost, "/listings/" + lotHandler + "/bids", strings.NewReader(`{"amount":"900"}`))
		identity.Inject(req.Header, alice)
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "auction is not live") {
			t.Errorf("expected reason in body, got %s", rec.Body.String())
		}
	})
}
