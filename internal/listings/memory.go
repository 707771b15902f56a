package listings

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/farmconnect/marketplace/internal/domain"
)

// MemoryRepository is an in-process Repository with the same version and
// price guards as ListingRepository. Reads return copies.
type MemoryRepository struct {
	mu       sync.Mutex
	listings map[string]*domain.Listing
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{listings: map[string]*domain.Listing{}}
}

func (m *MemoryRepository) Create(_ context.Context, l *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.listings[l.ID]; exists {
		return fmt.Errorf("%w: listing %s already exists", domain.ErrConflict, l.ID)
	}
	m.listings[l.ID] = cloneListing(l)
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return nil, nil
	}
	return cloneListing(l), nil
}

func (m *MemoryRepository) GetMany(_ context.Context, ids []string) (map[string]*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[string]*domain.Listing, len(ids))
	for _, id := range ids {
		if l, ok := m.listings[id]; ok {
			result[id] = cloneListing(l)
		}
	}
	return result, nil
}

func (m *MemoryRepository) List(_ context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	return m.filter(func(l *domain.Listing) bool {
		return (filter.Category == "" || l.Category == filter.Category) &&
			(filter.Mode == "" || l.Mode == filter.Mode)
	}), nil
}

func (m *MemoryRepository) ListByOwnerName(_ context.Context, ownerName string) ([]domain.Listing, error) {
	return m.filter(func(l *domain.Listing) bool { return l.OwnerName == ownerName }), nil
}

func (m *MemoryRepository) ListUnsettledEnded(_ context.Context, now time.Time) ([]domain.Listing, error) {
	return m.filter(func(l *domain.Listing) bool {
		return l.Auction != nil && l.Auction.SettledAt == nil && !l.Auction.EndTime.After(now)
	}), nil
}

func (m *MemoryRepository) Update(_ context.Context, l *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.listings[l.ID]
	if !ok || stored.Version != l.Version {
		return ErrStaleVersion
	}

	stored.Name = l.Name
	stored.Description = l.Description
	stored.ImageURL = l.ImageURL
	stored.Category = l.Category
	stored.Price = l.Price
	stored.InStock = l.InStock
	if l.Rental != nil && stored.Rental != nil {
		*stored.Rental = *l.Rental
	}
	stored.Version++
	stored.UpdatedAt = l.UpdatedAt

	l.Version = stored.Version
	return nil
}

func (m *MemoryRepository) SetAvailability(_ context.Context, id string, version int64, available bool, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.listings[id]
	if !ok || stored.Version != version || stored.Rental == nil {
		return ErrStaleVersion
	}

	stored.Rental.Available = available
	stored.Version++
	stored.UpdatedAt = now
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.listings[id]; !ok {
		return fmt.Errorf("%w: listing %s", domain.ErrNotFound, id)
	}
	delete(m.listings, id)
	return nil
}

func (m *MemoryRepository) ApplyBid(_ context.Context, id string, expectedVersion int64, bid domain.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.listings[id]
	if !ok || stored.Auction == nil || stored.Version != expectedVersion {
		return ErrStaleVersion
	}
	if !bid.Amount.GreaterThan(stored.Auction.CurrentPrice) {
		return ErrStaleVersion
	}

	stored.Auction.CurrentPrice = bid.Amount
	stored.Auction.HighestBidder = bid.BidderID
	stored.Auction.Bids = append(stored.Auction.Bids, bid)
	stored.Version++
	stored.UpdatedAt = bid.PlacedAt
	return nil
}

func (m *MemoryRepository) MarkSettled(_ context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.listings[id]
	if !ok || stored.Auction == nil || stored.Auction.SettledAt != nil {
		return false, nil
	}

	settled := now
	stored.Auction.SettledAt = &settled
	return true, nil
}

func (m *MemoryRepository) ReleaseSettlement(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stored, ok := m.listings[id]; ok && stored.Auction != nil {
		stored.Auction.SettledAt = nil
	}
	return nil
}

func (m *MemoryRepository) filter(keep func(*domain.Listing) bool) []domain.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := []domain.Listing{}
	for _, l := range m.listings {
		if keep(l) {
			list = append(list, *cloneListing(l))
		}
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	return list
}

func cloneListing(l *domain.Listing) *domain.Listing {
	c := *l
	if l.Auction != nil {
		a := *l.Auction
		a.Bids = append([]domain.Bid{}, l.Auction.Bids...)
		if l.Auction.SettledAt != nil {
			settled := *l.Auction.SettledAt
			a.SettledAt = &settled
		}
		c.Auction = &a
	}
	if l.Rental != nil {
		rt := *l.Rental
		c.Rental = &rt
	}
	return &c
}
