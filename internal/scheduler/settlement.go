package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/farmconnect/marketplace/internal/domain"
)

type Store interface {
	ListUnsettledEnded(ctx context.Context, now time.Time) ([]domain.Listing, error)
	MarkSettled(ctx context.Context, id string, now time.Time) (bool, error)
	ReleaseSettlement(ctx context.Context, id string) error
}

type Users interface {
	Lookup(ctx context.Context, id string) (*domain.User, error)
}

type Dispatcher interface {
	Offer(ctx context.Context, topic, key string, event any) error
}

// Settler announces auctions whose window has closed. Each auction is
// claimed with a guarded update before its event is queued, so concurrent
// replicas announce it once. A claim whose event cannot be queued is
// released for the next run.
type Settler struct {
	store      Store
	users      Users
	dispatcher Dispatcher
	clock      clock.Clock
	logger     *slog.Logger
}

func NewSettler(store Store, users Users, dispatcher Dispatcher, clk clock.Clock, logger *slog.Logger) *Settler {
	return &Settler{
		store:      store,
		users:      users,
		dispatcher: dispatcher,
		clock:      clk,
		logger:     logger,
	}
}

// SettleEnded claims and announces every ended, unsettled auction. It returns
// how many auctions this call settled.
func (s *Settler) SettleEnded(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()

	ended, err := s.store.ListUnsettledEnded(ctx, now)
	if err != nil {
		return 0, err
	}

	settled := 0
	for i := range ended {
		l := &ended[i]

		claimed, err := s.store.MarkSettled(ctx, l.ID, now)
		if err != nil {
			return settled, err
		}
		if !claimed {
			continue
		}

		event := s.closedEvent(ctx, l)
		if err := s.dispatcher.Offer(ctx, domain.TopicAuctionClosed, l.ID, event); err != nil {
			if releaseErr := s.store.ReleaseSettlement(ctx, l.ID); releaseErr != nil {
				s.logger.Error("auction announcement lost",
					"error", errors.Join(err, releaseErr),
					"listing_id", l.ID,
				)
			} else {
				s.logger.Warn("auction settlement deferred", "error", err, "listing_id", l.ID)
			}
			continue
		}
		settled++

		s.logger.Info("auction settled",
			"listing_id", l.ID,
			"winner_id", event.WinnerID,
			"final_price", event.FinalPrice.String(),
			"bids", event.BidCount,
		)
	}

	return settled, nil
}

func (s *Settler) closedEvent(ctx context.Context, l *domain.Listing) domain.AuctionClosedEvent {
	event := domain.AuctionClosedEvent{
		ListingID:   l.ID,
		ListingName: l.Name,
		SellerName:  l.OwnerName,
		FinalPrice:  l.Auction.CurrentPrice,
		BidCount:    len(l.Auction.Bids),
		ClosedAt:    l.Auction.EndTime,
	}

	if seller := s.lookup(ctx, l.OwnerID); seller != nil {
		event.SellerEmail = seller.Email
	}

	if l.Auction.HighestBidder != "" {
		event.WinnerID = l.Auction.HighestBidder
		if winner := s.lookup(ctx, l.Auction.HighestBidder); winner != nil {
			event.WinnerName = winner.Name
			event.WinnerEmail = winner.Email
		}
	}

	return event
}

// lookup resolves contact details. Failures only cost the email address.
func (s *Settler) lookup(ctx context.Context, userID string) *domain.User {
	user, err := s.users.Lookup(ctx, userID)
	if err != nil {
		s.logger.Warn("user lookup failed", "error", err, "user_id", userID)
		return nil
	}
	return user
}
