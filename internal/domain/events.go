package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicOrderStatusChanged = "order.status_changed"
	TopicAuctionClosed      = "auction.closed"
)

type OrderStatusChangedEvent struct {
	OrderID        string      `json:"order_id"`
	CustomerName   string      `json:"customer_name"`
	CustomerEmail  string      `json:"customer_email,omitempty"`
	SellerName     string      `json:"seller_name"`
	SellerEmail    string      `json:"seller_email,omitempty"`
	PreviousStatus OrderStatus `json:"previous_status"`
	Status         OrderStatus `json:"status"`
	Timestamp      time.Time   `json:"timestamp"`
}

type AuctionClosedEvent struct {
	ListingID   string          `json:"listing_id"`
	ListingName string          `json:"listing_name"`
	SellerName  string          `json:"seller_name"`
	SellerEmail string          `json:"seller_email,omitempty"`
	WinnerID    string          `json:"winner_id,omitempty"`
	WinnerName  string          `json:"winner_name,omitempty"`
	WinnerEmail string          `json:"winner_email,omitempty"`
	FinalPrice  decimal.Decimal `json:"final_price"`
	BidCount    int             `json:"bid_count"`
	ClosedAt    time.Time       `json:"closed_at"`
}
