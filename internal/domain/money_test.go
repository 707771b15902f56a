package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCheckMoney(t *testing.T) {
	tests := []struct {
		amount string
		valid  bool
	}{
		{"0", true},
		{"100", true},
		{"100.5", true},
		{"100.01", true},
		{"100.010", true},
		{"9999999999.99", true},
		{"100.001", false},
		{"0.005", false},
		{"10000000000", false},
		{"-10000000000", false},
		{"1e12", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := CheckMoney("price", decimal.RequireFromString(tt.amount))
			if tt.valid && err != nil {
				t.Errorf("expected %s to be accepted, got %v", tt.amount, err)
			}
			if !tt.valid && !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation for %s, got %v", tt.amount, err)
			}
		})
	}
}
