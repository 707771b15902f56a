package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/farmconnect/marketplace/internal/domain"
	"github.com/farmconnect/marketplace/internal/email"
	"github.com/farmconnect/marketplace/internal/messaging"
)

type emailServer struct {
	mu     sync.Mutex
	sent   []email.Message
	status int
}

func newEmailServer(t *testing.T) (*emailServer, *httptest.Server) {
	t.Helper()
	es := &emailServer{status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/send" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var msg email.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		es.mu.Lock()
		defer es.mu.Unlock()
		if es.status == http.StatusOK {
			es.sent = append(es.sent, msg)
		}
		w.WriteHeader(es.status)
	}))
	t.Cleanup(srv.Close)
	return es, srv
}

func newTestMailer(srv *httptest.Server) *Mailer {
	return NewMailer(srv.URL, &http.Client{Timeout: 5 * time.Second})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestOrderStatusHandler(t *testing.T) {
	event := domain.OrderStatusChangedEvent{
		OrderID:        "5f0c3c7e-3a53-4b8f-9f0c-1d1c1b1a1e1f",
		CustomerName:   "Meera",
		CustomerEmail:  "meera@mail.test",
		SellerName:     "Green Acres",
		SellerEmail:    "green@farm.test",
		PreviousStatus: domain.OrderStatusPending,
		Status:         domain.OrderStatusShipped,
		Timestamp:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	t.Run("emails the customer with seller as reply-to", func(t *testing.T) {
		es, srv := newEmailServer(t)
		h := NewOrderStatusHandler(newTestMailer(srv), discardLogger())

		if err := h.Handle(context.Background(), mustJSON(t, event)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(es.sent) != 1 {
			t.Fatalf("expected 1 email, got %d", len(es.sent))
		}
		msg := es.sent[0]
		if msg.To != "meera@mail.test" || msg.ReplyTo != "green@farm.test" {
			t.Errorf("unexpected addressing: %+v", msg)
		}
		if msg.Subject != "Your order 5f0c3c7e is shipped" {
			t.Errorf("unexpected subject %q", msg.Subject)
		}
		if !strings.Contains(msg.Body, "Green Acres has shipped your order") {
			t.Errorf("unexpected body %q", msg.Body)
		}
	})

	t.Run("skips events without customer email", func(t *testing.T) {
		es, srv := newEmailServer(t)
		h := NewOrderStatusHandler(newTestMailer(srv), discardLogger())

		noEmail := event
		noEmail.CustomerEmail = ""
		if err := h.Handle(context.Background(), mustJSON(t, noEmail)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(es.sent) != 0 {
			t.Errorf("expected no email, got %d", len(es.sent))
		}
	})

	t.Run("malformed payload is permanent", func(t *testing.T) {
		_, srv := newEmailServer(t)
		h := NewOrderStatusHandler(newTestMailer(srv), discardLogger())

		err := h.Handle(context.Background(), []byte(`{not json`))
		if !messaging.IsPermanent(err) {
			t.Errorf("expected a permanent error, got %v", err)
		}
	})

	t.Run("email service outage is retryable", func(t *testing.T) {
		es, srv := newEmailServer(t)
		es.status = http.StatusBadGateway
		h := NewOrderStatusHandler(newTestMailer(srv), discardLogger())

		err := h.Handle(context.Background(), mustJSON(t, event))
		if err == nil || messaging.IsPermanent(err) {
			t.Errorf("expected a retryable error, got %v", err)
		}
	})

	t.Run("rejected message is permanent", func(t *testing.T) {
		es, srv := newEmailServer(t)
		es.status = http.StatusBadRequest
		h := NewOrderStatusHandler(newTestMailer(srv), discardLogger())

		if err := h.Handle(context.Background(), mustJSON(t, event)); !messaging.IsPermanent(err) {
			t.Errorf("expected a permanent error, got %v", err)
		}
	})
}

func TestAuctionClosedHandler(t *testing.T) {
	base := domain.AuctionClosedEvent{
		ListingID:   "l-1",
		ListingName: "Tractor",
		SellerName:  "Green Acres",
		SellerEmail: "green@farm.test",
		FinalPrice:  decimal.RequireFromString("1500"),
		ClosedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	t.Run("winner and seller", func(t *testing.T) {
		es, srv := newEmailServer(t)
		h := NewAuctionClosedHandler(newTestMailer(srv), discardLogger())

		event := base
		event.WinnerID = "u-2"
		event.WinnerName = "Ravi"
		event.WinnerEmail = "ravi@mail.test"
		event.BidCount = 4

		if err := h.Handle(context.Background(), mustJSON(t, event)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(es.sent) != 2 {
			t.Fatalf("expected 2 emails, got %d", len(es.sent))
		}
		if es.sent[0].To != "ravi@mail.test" || !strings.Contains(es.sent[0].Body, "1500.00") {
			t.Errorf("unexpected winner email: %+v", es.sent[0])
		}
		if es.sent[1].To != "green@farm.test" || es.sent[1].ReplyTo != "ravi@mail.test" {
			t.Errorf("unexpected seller email: %+v", es.sent[1])
		}
	})

	t.Run("no bids", func(t *testing.T) {
		es, srv := newEmailServer(t)
		h := NewAuctionClosedHandler(newTestMailer(srv), discardLogger())

		if err := h.Handle(context.Background(), mustJSON(t, base)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(es.sent) != 1 || !strings.Contains(es.sent[0].Body, "without any bids") {
			t.Errorf("expected a single no-bid email to the seller, got %+v", es.sent)
		}
	})
}
