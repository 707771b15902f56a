package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PricingMode string

const (
	PricingModeDirectBuy PricingMode = "direct_buy"
	PricingModeEnquiry   PricingMode = "enquiry"
	PricingModeAuction   PricingMode = "auction"
	PricingModeRental    PricingMode = "rental"
)

func (m PricingMode) Valid() bool {
	switch m {
	case PricingModeDirectBuy, PricingModeEnquiry, PricingModeAuction, PricingModeRental:
		return true
	}
	return false
}

type Listing struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url,omitempty"`
	Category    string          `json:"category"`
	OwnerID     string          `json:"owner_id"`
	OwnerName   string          `json:"owner_name"`
	Mode        PricingMode     `json:"mode"`
	Price       decimal.Decimal `json:"price"`
	InStock     bool            `json:"in_stock"`
	Auction     *AuctionDetails `json:"auction,omitempty"`
	Rental      *RentalDetails  `json:"rental,omitempty"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// AuctionDetails holds the price state of an auction listing. CurrentPrice
// never drops below StartingBid and HighestBidder is always the bidder of the
// last entry in Bids.
type AuctionDetails struct {
	StartingBid   decimal.Decimal `json:"starting_bid"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
	HighestBidder string          `json:"highest_bidder,omitempty"`
	Bids          []Bid           `json:"bids"`
	SettledAt     *time.Time      `json:"settled_at,omitempty"`
}

type Bid struct {
	BidderID string          `json:"bidder_id"`
	Amount   decimal.Decimal `json:"amount"`
	PlacedAt time.Time       `json:"placed_at"`
}

type RentalDetails struct {
	PricePerDay decimal.Decimal `json:"price_per_day"`
	Available   bool            `json:"available"`
	Location    string          `json:"location"`
}

type AuctionState string

const (
	AuctionStateScheduled AuctionState = "scheduled"
	AuctionStateLive      AuctionState = "live"
	AuctionStateEnded     AuctionState = "ended"
)

// State derives the auction phase from now. The window is half-open:
// [StartTime, EndTime).
func (a *AuctionDetails) State(now time.Time) AuctionState {
	switch {
	case now.Before(a.StartTime):
		return AuctionStateScheduled
	case now.Before(a.EndTime):
		return AuctionStateLive
	default:
		return AuctionStateEnded
	}
}

type ListingFilter struct {
	Category string
	Mode     PricingMode
}
