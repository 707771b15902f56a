package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var statusRank = map[OrderStatus]int{
	OrderStatusPending:   0,
	OrderStatusShipped:   1,
	OrderStatusDelivered: 2,
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether the fulfillment flow may move from s to next.
// Moves only go forward; cancellation is only possible while pending.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next == OrderStatusCancelled {
		return s == OrderStatusPending
	}
	return statusRank[next] > statusRank[s]
}

type CustomerDetails struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Email      string `json:"email,omitempty"`
}

// LineItem is a copy of the listing taken when the order was placed.
type LineItem struct {
	ListingID string          `json:"listing_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Order struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	Customer   CustomerDetails `json:"customer"`
	Items      []LineItem      `json:"items"`
	Total      decimal.Decimal `json:"total"`
	SellerID   string          `json:"seller_id"`
	SellerName string          `json:"seller_name"`
	Status     OrderStatus     `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func SumLineItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
