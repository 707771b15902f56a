// Package cart holds each buyer's working set of intended purchases. Carts
// live in Redis and are superseded by orders at checkout.
package cart

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/farmconnect/marketplace/internal/domain"
)

const maxQuantity = 10_000

type Store interface {
	Add(ctx context.Context, userID, listingID string, qty int) error
	Remove(ctx context.Context, userID, listingID string) error
	Consume(ctx context.Context, userID string, lines []domain.CartLine) error
	Clear(ctx context.Context, userID string) error
	Lines(ctx context.Context, userID string) ([]domain.CartLine, error)
}

type Listings interface {
	Get(ctx context.Context, id string) (*domain.Listing, error)
	GetMany(ctx context.Context, ids []string) (map[string]*domain.Listing, error)
}

type Service struct {
	store    Store
	listings Listings
	logger   *slog.Logger
}

func NewService(store Store, listings Listings, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		listings: listings,
		logger:   logger,
	}
}

// AddItem adds qty units of a listing, merging with an existing line. A qty
// of zero means one.
func (s *Service) AddItem(ctx context.Context, userID, listingID string, qty int) (*domain.CartView, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if qty == 0 {
		qty = 1
	}
	if qty < 0 || qty > maxQuantity {
		return nil, fmt.Errorf("%w: quantity must be between 1 and %d", domain.ErrValidation, maxQuantity)
	}

	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Mode != domain.PricingModeDirectBuy {
		return nil, fmt.Errorf("%w: only direct buy listings can be added to a cart", domain.ErrValidation)
	}

	if err := s.store.Add(ctx, userID, listingID, qty); err != nil {
		return nil, err
	}

	return s.View(ctx, userID)
}

func (s *Service) RemoveItem(ctx context.Context, userID, listingID string) (*domain.CartView, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := s.store.Remove(ctx, userID, listingID); err != nil {
		return nil, err
	}
	return s.View(ctx, userID)
}

// Consume takes purchased quantities out of the cart, leaving anything the
// buyer added since.
func (s *Service) Consume(ctx context.Context, userID string, lines []domain.CartLine) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	return s.store.Consume(ctx, userID, lines)
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	return s.store.Clear(ctx, userID)
}

// View joins the cart lines with the listings they point at. Lines whose
// listing no longer exists are left out.
func (s *Service) View(ctx context.Context, userID string) (*domain.CartView, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	lines, err := s.store.Lines(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &domain.CartView{UserID: userID, Items: []domain.CartViewLine{}}
	if len(lines) == 0 {
		return view, nil
	}

	ids := make([]string, len(lines))
	for i, line := range lines {
		ids[i] = line.ListingID
	}

	found, err := s.listings.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		listing, ok := found[line.ListingID]
		if !ok {
			s.logger.Debug("dropping cart line for missing listing", "user_id", userID, "listing_id", line.ListingID)
			continue
		}
		view.Items = append(view.Items, domain.CartViewLine{Listing: *listing, Quantity: line.Quantity})
	}

	return view, nil
}
