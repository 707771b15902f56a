// Package auction applies bids to auction listings. Every accepted bid is
// strictly greater than the price it replaced, even under concurrent bidders
// spread across processes.
package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmconnect/marketplace/internal/domain"
	"github.com/farmconnect/marketplace/internal/listings"
)

const (
	DefaultAttempts = 5
	defaultBackoff  = 10 * time.Millisecond
)

// Store is the slice of the listing repository the engine needs. ApplyBid
// must fail with listings.ErrStaleVersion when the stored version moved.
type Store interface {
	GetByID(ctx context.Context, id string) (*domain.Listing, error)
	ApplyBid(ctx context.Context, id string, expectedVersion int64, bid domain.Bid) error
}

type Engine struct {
	store    Store
	clock    clock.Clock
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
	locks    *keyedMutex
	metrics  *metrics
}

func NewEngine(store Store, clk clock.Clock, logger *slog.Logger, attempts int) *Engine {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return &Engine{
		store:    store,
		clock:    clk,
		logger:   logger,
		attempts: attempts,
		backoff:  defaultBackoff,
		locks:    newKeyedMutex(),
		metrics:  newMetrics(),
	}
}

// PlaceBid validates the bid against the current auction state and applies
// it with a version guarded write. A lost race re-reads the listing and
// validates again, so a bid that was high enough a moment ago can still come
// back as ErrBidTooLow.
func (e *Engine) PlaceBid(ctx context.Context, listingID, bidderID string, amount decimal.Decimal) (*domain.Listing, error) {
	if bidderID == "" {
		return nil, fmt.Errorf("%w: bidder is required", domain.ErrValidation)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if err := domain.CheckMoney("amount", amount); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(listingID); err != nil {
		e.metrics.reject(ctx, "not_found")
		return nil, fmt.Errorf("%w: auction %s", domain.ErrNotFound, listingID)
	}

	unlock := e.locks.Lock(listingID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		l, err := e.store.GetByID(ctx, listingID)
		if err != nil {
			return nil, err
		}
		if l == nil || l.Mode != domain.PricingModeAuction || l.Auction == nil {
			e.metrics.reject(ctx, "not_found")
			return nil, fmt.Errorf("%w: auction %s", domain.ErrNotFound, listingID)
		}

		now := e.clock.Now().UTC()
		if err := checkBid(l.Auction, now, amount); err != nil {
			e.metrics.reject(ctx, reasonFor(err))
			return nil, err
		}

		bid := domain.Bid{BidderID: bidderID, Amount: amount, PlacedAt: now}

		err = e.store.ApplyBid(ctx, listingID, l.Version, bid)
		if err == nil {
			l.Auction.CurrentPrice = amount
			l.Auction.HighestBidder = bidderID
			l.Auction.Bids = append(l.Auction.Bids, bid)
			l.Version++
			l.UpdatedAt = now

			e.metrics.accepted.Add(ctx, 1)
			return l, nil
		}
		if !errors.Is(err, listings.ErrStaleVersion) {
			return nil, err
		}

		e.metrics.conflicts.Add(ctx, 1)
		e.logger.Warn("bid lost a version race",
			"listing_id", listingID,
			"attempt", attempt,
			"version", l.Version,
		)

		if attempt >= e.attempts {
			return nil, fmt.Errorf("%w: auction %s is busy, retry the bid", domain.ErrConflict, listingID)
		}

		if err := e.wait(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

func checkBid(a *domain.AuctionDetails, now time.Time, amount decimal.Decimal) error {
	switch a.State(now) {
	case domain.AuctionStateScheduled:
		return fmt.Errorf("%w: auction opens at %s", domain.ErrAuctionNotLive, a.StartTime.Format(time.RFC3339))
	case domain.AuctionStateEnded:
		return fmt.Errorf("%w: auction closed at %s", domain.ErrAuctionNotLive, a.EndTime.Format(time.RFC3339))
	}

	if !amount.GreaterThan(a.CurrentPrice) {
		return fmt.Errorf("%w: bid must be greater than %s", domain.ErrBidTooLow, a.CurrentPrice.StringFixed(2))
	}

	return nil
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuctionNotLive):
		return "not_live"
	case errors.Is(err, domain.ErrBidTooLow):
		return "too_low"
	default:
		return "other"
	}
}

func (e *Engine) wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(e.backoff * time.Duration(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
