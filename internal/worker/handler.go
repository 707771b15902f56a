// Package worker turns marketplace events into notification emails.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/farmconnect/marketplace/internal/domain"
	"github.com/farmconnect/marketplace/internal/email"
	"github.com/farmconnect/marketplace/internal/messaging"
)

type Sender interface {
	Send(ctx context.Context, msg email.Message) error
}

type OrderStatusHandler struct {
	sender Sender
	logger *slog.Logger
}

func NewOrderStatusHandler(sender Sender, logger *slog.Logger) *OrderStatusHandler {
	return &OrderStatusHandler{
		sender: sender,
		logger: logger,
	}
}

func (h *OrderStatusHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderStatusChangedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return messaging.Permanent(fmt.Errorf("unmarshal order status event: %w", err))
	}

	h.logger.Info("processing order status event", "order_id", event.OrderID, "status", event.Status)

	if event.CustomerEmail == "" {
		h.logger.Warn("order has no customer email, skipping", "order_id", event.OrderID)
		return nil
	}

	msg := email.Message{
		To:      event.CustomerEmail,
		Subject: fmt.Sprintf("Your order %s is %s", shortID(event.OrderID), event.Status),
		Body:    orderStatusBody(event),
		ReplyTo: event.SellerEmail,
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		h.logger.Error("failed to send order status email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send order status email: %w", err)
	}

	h.logger.Info("order status email sent", "order_id", event.OrderID)
	return nil
}

func orderStatusBody(e domain.OrderStatusChangedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", e.CustomerName)

	switch e.Status {
	case domain.OrderStatusShipped:
		fmt.Fprintf(&b, "%s has shipped your order %s.", e.SellerName, e.OrderID)
	case domain.OrderStatusDelivered:
		fmt.Fprintf(&b, "Your order %s from %s has been delivered.", e.OrderID, e.SellerName)
	case domain.OrderStatusCancelled:
		fmt.Fprintf(&b, "%s has cancelled your order %s.", e.SellerName, e.OrderID)
	default:
		fmt.Fprintf(&b, "Your order %s from %s is now %s.", e.OrderID, e.SellerName, e.Status)
	}

	if e.SellerEmail != "" {
		b.WriteString("\n\nReply to this email to reach the seller.")
	}

	return b.String()
}

type AuctionClosedHandler struct {
	sender Sender
	logger *slog.Logger
}

func NewAuctionClosedHandler(sender Sender, logger *slog.Logger) *AuctionClosedHandler {
	return &AuctionClosedHandler{
		sender: sender,
		logger: logger,
	}
}

// Handle emails the winner and the seller of a closed auction. An auction
// without bids only produces the seller's email.
func (h *AuctionClosedHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.AuctionClosedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return messaging.Permanent(fmt.Errorf("unmarshal auction closed event: %w", err))
	}

	h.logger.Info("processing auction closed event", "listing_id", event.ListingID, "bids", event.BidCount)

	price := event.FinalPrice.StringFixed(2)
	var msgs []email.Message

	if event.WinnerID != "" && event.WinnerEmail != "" {
		msgs = append(msgs, email.Message{
			To:      event.WinnerEmail,
			Subject: fmt.Sprintf("You won the auction for %s", event.ListingName),
			Body: fmt.Sprintf("Hello %s,\n\nYour bid of %s won %s. %s will be in touch to arrange the handover.",
				event.WinnerName, price, event.ListingName, event.SellerName),
			ReplyTo: event.SellerEmail,
		})
	}

	if event.SellerEmail != "" {
		seller := email.Message{
			To:      event.SellerEmail,
			Subject: fmt.Sprintf("Your auction for %s has closed", event.ListingName),
			ReplyTo: event.WinnerEmail,
		}
		if event.WinnerID == "" {
			seller.Body = fmt.Sprintf("Hello %s,\n\nYour auction for %s closed without any bids.", event.SellerName, event.ListingName)
		} else {
			seller.Body = fmt.Sprintf("Hello %s,\n\n%s won %s with a bid of %s after %d bids.",
				event.SellerName, event.WinnerName, event.ListingName, price, event.BidCount)
		}
		msgs = append(msgs, seller)
	}

	for _, msg := range msgs {
		if err := h.sender.Send(ctx, msg); err != nil {
			h.logger.Error("failed to send auction email", "error", err, "listing_id", event.ListingID, "to", msg.To)
			return fmt.Errorf("send auction email: %w", err)
		}
	}

	h.logger.Info("auction emails sent", "listing_id", event.ListingID, "count", len(msgs))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
