package listings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmconnect/marketplace/internal/domain"
)

type Repository interface {
	Create(ctx context.Context, l *domain.Listing) error
	GetByID(ctx context.Context, id string) (*domain.Listing, error)
	GetMany(ctx context.Context, ids []string) (map[string]*domain.Listing, error)
	List(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error)
	ListByOwnerName(ctx context.Context, ownerName string) ([]domain.Listing, error)
	Update(ctx context.Context, l *domain.Listing) error
	SetAvailability(ctx context.Context, id string, version int64, available bool, now time.Time) error
	Delete(ctx context.Context, id string) error
}

// Input carries the client supplied fields of a listing. Pointer fields are
// optional; which ones are required depends on Mode.
type Input struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	ImageURL    string             `json:"image_url"`
	Category    string             `json:"category"`
	Mode        domain.PricingMode `json:"mode"`
	Price       *decimal.Decimal   `json:"price"`
	InStock     *bool              `json:"in_stock"`
	StartingBid *decimal.Decimal   `json:"starting_bid"`
	StartTime   *time.Time         `json:"start_time"`
	EndTime     *time.Time         `json:"end_time"`
	PricePerDay *decimal.Decimal   `json:"price_per_day"`
	Available   *bool              `json:"available"`
	Location    string             `json:"location"`
}

type Service struct {
	repo  Repository
	clock clock.Clock
}

func NewService(repo Repository, clk clock.Clock) *Service {
	return &Service{repo: repo, clock: clk}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}

func (s *Service) Create(ctx context.Context, caller domain.Identity, in Input) (*domain.Listing, error) {
	if caller.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name is required")
	}
	if !in.Mode.Valid() {
		return nil, invalid("mode must be one of direct_buy, enquiry, auction, rental")
	}

	now := s.clock.Now().UTC()
	l := &domain.Listing{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Category:    in.Category,
		OwnerID:     caller.UserID,
		OwnerName:   caller.Name,
		Mode:        in.Mode,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	switch in.Mode {
	case domain.PricingModeDirectBuy:
		if in.Price == nil || !in.Price.IsPositive() {
			return nil, invalid("direct buy listings require a positive price")
		}
		if err := domain.CheckMoney("price", *in.Price); err != nil {
			return nil, err
		}
		l.Price = *in.Price
		l.InStock = in.InStock == nil || *in.InStock

	case domain.PricingModeAuction:
		if in.StartingBid == nil || !in.StartingBid.IsPositive() {
			return nil, invalid("auction listings require a positive starting bid")
		}
		if err := domain.CheckMoney("starting_bid", *in.StartingBid); err != nil {
			return nil, err
		}
		if in.StartTime == nil || in.EndTime == nil {
			return nil, invalid("auction listings require start_time and end_time")
		}
		if !in.EndTime.After(*in.StartTime) {
			return nil, invalid("end_time must be after start_time")
		}
		l.Auction = &domain.AuctionDetails{
			StartingBid:  *in.StartingBid,
			CurrentPrice: *in.StartingBid,
			StartTime:    in.StartTime.UTC(),
			EndTime:      in.EndTime.UTC(),
			Bids:         []domain.Bid{},
		}

	case domain.PricingModeRental:
		if in.PricePerDay == nil || !in.PricePerDay.IsPositive() {
			return nil, invalid("rental listings require a positive price_per_day")
		}
		if err := domain.CheckMoney("price_per_day", *in.PricePerDay); err != nil {
			return nil, err
		}
		if strings.TrimSpace(in.Location) == "" {
			return nil, invalid("rental listings require a location")
		}
		l.Rental = &domain.RentalDetails{
			PricePerDay: *in.PricePerDay,
			Available:   in.Available == nil || *in.Available,
			Location:    strings.TrimSpace(in.Location),
		}
	}

	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}

	return l, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Listing, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: listing %s", domain.ErrNotFound, id)
	}

	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("%w: listing %s", domain.ErrNotFound, id)
	}

	return l, nil
}

// GetMany returns the listings that still exist among ids. Unknown or
// malformed ids are skipped.
func (s *Service) GetMany(ctx context.Context, ids []string) (map[string]*domain.Listing, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return s.repo.GetMany(ctx, valid)
}

func (s *Service) List(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	if filter.Mode != "" && !filter.Mode.Valid() {
		return nil, invalid("unknown mode %q", filter.Mode)
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) ListByOwnerName(ctx context.Context, ownerName string) ([]domain.Listing, error) {
	return s.repo.ListByOwnerName(ctx, ownerName)
}

// Update replaces the display fields and the mode specific fields that are
// not price state. The pricing mode and the auction state are fixed.
func (s *Service) Update(ctx context.Context, caller domain.Identity, id string, in Input) (*domain.Listing, error) {
	l, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if in.Mode != "" && in.Mode != l.Mode {
		return nil, invalid("pricing mode cannot be changed")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name is required")
	}

	l.Name = strings.TrimSpace(in.Name)
	l.Description = in.Description
	l.ImageURL = in.ImageURL
	l.Category = in.Category

	switch l.Mode {
	case domain.PricingModeDirectBuy:
		if in.Price != nil {
			if !in.Price.IsPositive() {
				return nil, invalid("price must be positive")
			}
			if err := domain.CheckMoney("price", *in.Price); err != nil {
				return nil, err
			}
			l.Price = *in.Price
		}
		if in.InStock != nil {
			l.InStock = *in.InStock
		}

	case domain.PricingModeAuction:
		if in.StartingBid != nil || in.StartTime != nil || in.EndTime != nil {
			return nil, invalid("auction price and window cannot be changed")
		}

	case domain.PricingModeRental:
		if in.PricePerDay != nil {
			if !in.PricePerDay.IsPositive() {
				return nil, invalid("price_per_day must be positive")
			}
			if err := domain.CheckMoney("price_per_day", *in.PricePerDay); err != nil {
				return nil, err
			}
			l.Rental.PricePerDay = *in.PricePerDay
		}
		if in.Available != nil {
			l.Rental.Available = *in.Available
		}
		if strings.TrimSpace(in.Location) != "" {
			l.Rental.Location = strings.TrimSpace(in.Location)
		}
	}

	l.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, l); err != nil {
		if errors.Is(err, ErrStaleVersion) {
			return nil, fmt.Errorf("%w: listing %s was modified concurrently, retry", domain.ErrConflict, id)
		}
		return nil, err
	}

	return l, nil
}

func (s *Service) SetAvailability(ctx context.Context, caller domain.Identity, id string, available bool) (*domain.Listing, error) {
	l, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if l.Mode != domain.PricingModeRental {
		return nil, invalid("availability only applies to rental listings")
	}

	now := s.clock.Now().UTC()
	if err := s.repo.SetAvailability(ctx, id, l.Version, available, now); err != nil {
		if errors.Is(err, ErrStaleVersion) {
			return nil, fmt.Errorf("%w: listing %s was modified concurrently, retry", domain.ErrConflict, id)
		}
		return nil, err
	}

	l.Rental.Available = available
	l.Version++
	l.UpdatedAt = now
	return l, nil
}

// Delete removes a direct buy or enquiry listing. Auctions and rentals keep
// their history and are never hard deleted.
func (s *Service) Delete(ctx context.Context, caller domain.Identity, id string) error {
	l, err := s.owned(ctx, caller, id)
	if err != nil {
		return err
	}

	if l.Mode != domain.PricingModeDirectBuy && l.Mode != domain.PricingModeEnquiry {
		return invalid("only direct buy and enquiry listings can be deleted")
	}

	return s.repo.Delete(ctx, id)
}

func (s *Service) owned(ctx context.Context, caller domain.Identity, id string) (*domain.Listing, error) {
	if caller.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if l.OwnerID != caller.UserID {
		return nil, fmt.Errorf("%w: only the owner can modify listing %s", domain.ErrForbidden, id)
	}

	return l, nil
}
