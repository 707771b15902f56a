package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPending, OrderStatusShipped, true},
		{OrderStatusPending, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusShipped, OrderStatusPending, false},
		{OrderStatusPending, OrderStatusPending, false},
		{OrderStatusDelivered, OrderStatusShipped, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusPending, OrderStatus("lost"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestOrderStatus_TerminalStatesRejectEverything(t *testing.T) {
	all := []OrderStatus{OrderStatusPending, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled}
	for _, terminal := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled} {
		for _, next := range all {
			if terminal.CanTransitionTo(next) {
				t.Errorf("%s must not transition to %s", terminal, next)
			}
		}
	}
}

func TestSumLineItems(t *testing.T) {
	items := []LineItem{
		{ListingID: "a", Price: decimal.RequireFromString("12.50"), Quantity: 2},
		{ListingID: "b", Price: decimal.RequireFromString("3.10"), Quantity: 1},
	}

	got := SumLineItems(items)
	if !got.Equal(decimal.RequireFromString("28.10")) {
		t.Errorf("expected 28.10, got %s", got)
	}
}
