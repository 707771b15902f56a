package listings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/farmconnect/marketplace/internal/domain"
)

// ErrStaleVersion is returned by version guarded writes when the row changed
// since it was read.
var ErrStaleVersion = errors.New("listing version is stale")

const listingColumns = `
	id, name, description, image_url, category, owner_id, owner_name, mode,
	price, in_stock, starting_bid, current_price, start_time, end_time,
	highest_bidder, settled_at, price_per_day, available, location,
	version, created_at, updated_at`

type ListingRepository struct {
	db *sql.DB
}

func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrUnavailable, op, err)
}

func (r *ListingRepository) Create(ctx context.Context, l *domain.Listing) error {
	cols := columnsFor(l)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22)
	`, l.ID, l.Name, l.Description, l.ImageURL, l.Category, l.OwnerID, l.OwnerName, l.Mode,
		cols.price, l.InStock, cols.startingBid, cols.currentPrice, cols.startTime, cols.endTime,
		cols.highestBidder, cols.settledAt, cols.pricePerDay, cols.available, cols.location,
		l.Version, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return unavailable("insert listing", err)
	}

	return nil
}

// GetByID returns the listing with its bid history, or nil when it does not
// exist.
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)

	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("get listing", err)
	}

	if l.Auction != nil {
		bids, err := r.loadBids(ctx, []string{l.ID})
		if err != nil {
			return nil, err
		}
		l.Auction.Bids = bids[l.ID]
	}

	return l, nil
}

// GetMany returns the listings that still exist among ids, keyed by id.
func (r *ListingRepository) GetMany(ctx context.Context, ids []string) (map[string]*domain.Listing, error) {
	result := make(map[string]*domain.Listing, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	list, err := r.query(ctx, "get listings", `
		SELECT `+listingColumns+` FROM listings WHERE id::text = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}

	for i := range list {
		result[list[i].ID] = &list[i]
	}

	return result, nil
}

func (r *ListingRepository) List(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	return r.query(ctx, "list listings", `
		SELECT `+listingColumns+`
		FROM listings
		WHERE ($1::text = '' OR category = $1) AND ($2::text = '' OR mode = $2)
		ORDER BY created_at DESC
	`, filter.Category, string(filter.Mode))
}

func (r *ListingRepository) ListByOwnerName(ctx context.Context, ownerName string) ([]domain.Listing, error) {
	return r.query(ctx, "list listings by owner", `
		SELECT `+listingColumns+`
		FROM listings
		WHERE owner_name = $1
		ORDER BY created_at DESC
	`, ownerName)
}

// ListUnsettledEnded returns auctions whose window closed at or before now
// and whose close has not been announced yet.
func (r *ListingRepository) ListUnsettledEnded(ctx context.Context, now time.Time) ([]domain.Listing, error) {
	return r.query(ctx, "list ended auctions", `
		SELECT `+listingColumns+`
		FROM listings
		WHERE mode = 'auction' AND settled_at IS NULL AND end_time <= $1
		ORDER BY end_time
	`, now)
}

// Update writes the replaceable fields of l if the stored version still
// matches l.Version, then bumps l.Version.
func (r *ListingRepository) Update(ctx context.Context, l *domain.Listing) error {
	cols := columnsFor(l)

	result, err := r.db.ExecContext(ctx, `
		UPDATE listings
		SET name = $3, description = $4, image_url = $5, category = $6,
		    price = $7, in_stock = $8, price_per_day = $9, available = $10, location = $11,
		    version = version + 1, updated_at = $12
		WHERE id = $1 AND version = $2
	`, l.ID, l.Version, l.Name, l.Description, l.ImageURL, l.Category,
		cols.price, l.InStock, cols.pricePerDay, cols.available, cols.location, l.UpdatedAt)
	if err != nil {
		return unavailable("update listing", err)
	}

	if err := expectOneRow(result); err != nil {
		return err
	}

	l.Version++
	return nil
}

func (r *ListingRepository) SetAvailability(ctx context.Context, id string, version int64, available bool, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE listings
		SET available = $3, version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $2 AND mode = 'rental'
	`, id, version, available, now)
	if err != nil {
		return unavailable("set availability", err)
	}

	return expectOneRow(result)
}

func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return unavailable("delete listing", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return unavailable("delete listing", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: listing %s", domain.ErrNotFound, id)
	}

	return nil
}

// ApplyBid advances the auction price state and appends the bid in one
// transaction. The update only applies when the stored version equals
// expectedVersion, so two bidders that read the same state cannot both win.
func (r *ListingRepository) ApplyBid(ctx context.Context, id string, expectedVersion int64, bid domain.Bid) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin bid", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE listings
		SET current_price = $3, highest_bidder = $4, version = version + 1, updated_at = $5
		WHERE id = $1 AND version = $2 AND mode = 'auction' AND current_price < $3
	`, id, expectedVersion, bid.Amount, bid.BidderID, bid.PlacedAt)
	if err != nil {
		return unavailable("update auction", err)
	}

	if err := expectOneRow(result); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bids (id, listing_id, bidder_id, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New().String(), id, bid.BidderID, bid.Amount, bid.PlacedAt)
	if err != nil {
		return unavailable("insert bid", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit bid", err)
	}

	return nil
}

// MarkSettled records that the close of an auction was announced. It reports
// false when another run already settled it.
func (r *ListingRepository) MarkSettled(ctx context.Context, id string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE listings SET settled_at = $2
		WHERE id = $1 AND mode = 'auction' AND settled_at IS NULL
	`, id, now)
	if err != nil {
		return false, unavailable("settle auction", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, unavailable("settle auction", err)
	}

	return rowsAffected == 1, nil
}

// ReleaseSettlement undoes MarkSettled so a later run announces the auction.
func (r *ListingRepository) ReleaseSettlement(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE listings SET settled_at = NULL
		WHERE id = $1 AND mode = 'auction'
	`, id); err != nil {
		return unavailable("release settlement", err)
	}
	return nil
}

func (r *ListingRepository) query(ctx context.Context, op, query string, args ...any) ([]domain.Listing, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer func() { _ = rows.Close() }()

	list := []domain.Listing{}
	var auctionIDs []string

	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		if l.Auction != nil {
			auctionIDs = append(auctionIDs, l.ID)
		}
		list = append(list, *l)
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}

	if len(auctionIDs) == 0 {
		return list, nil
	}

	bids, err := r.loadBids(ctx, auctionIDs)
	if err != nil {
		return nil, err
	}

	for i := range list {
		if list[i].Auction != nil {
			list[i].Auction.Bids = bids[list[i].ID]
		}
	}

	return list, nil
}

func (r *ListingRepository) loadBids(ctx context.Context, listingIDs []string) (map[string][]domain.Bid, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT listing_id, bidder_id, amount, placed_at
		FROM bids
		WHERE listing_id::text = ANY($1)
		ORDER BY seq
	`, pq.Array(listingIDs))
	if err != nil {
		return nil, unavailable("load bids", err)
	}
	defer func() { _ = rows.Close() }()

	bids := make(map[string][]domain.Bid, len(listingIDs))
	for _, id := range listingIDs {
		bids[id] = []domain.Bid{}
	}

	for rows.Next() {
		var listingID string
		var bid domain.Bid
		if err := rows.Scan(&listingID, &bid.BidderID, &bid.Amount, &bid.PlacedAt); err != nil {
			return nil, unavailable("load bids", err)
		}
		bids[listingID] = append(bids[listingID], bid)
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable("load bids", err)
	}

	return bids, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanListing(s scanner) (*domain.Listing, error) {
	var (
		l             domain.Listing
		price         decimal.NullDecimal
		startingBid   decimal.NullDecimal
		currentPrice  decimal.NullDecimal
		startTime     sql.NullTime
		endTime       sql.NullTime
		highestBidder string
		settledAt     sql.NullTime
		pricePerDay   decimal.NullDecimal
		available     bool
		location      string
	)

	err := s.Scan(&l.ID, &l.Name, &l.Description, &l.ImageURL, &l.Category, &l.OwnerID, &l.OwnerName, &l.Mode,
		&price, &l.InStock, &startingBid, &currentPrice, &startTime, &endTime,
		&highestBidder, &settledAt, &pricePerDay, &available, &location,
		&l.Version, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if price.Valid {
		l.Price = price.Decimal
	}

	switch l.Mode {
	case domain.PricingModeAuction:
		l.Auction = &domain.AuctionDetails{
			StartingBid:   startingBid.Decimal,
			CurrentPrice:  currentPrice.Decimal,
			StartTime:     startTime.Time,
			EndTime:       endTime.Time,
			HighestBidder: highestBidder,
			Bids:          []domain.Bid{},
		}
		if settledAt.Valid {
			t := settledAt.Time
			l.Auction.SettledAt = &t
		}
	case domain.PricingModeRental:
		l.Rental = &domain.RentalDetails{
			PricePerDay: pricePerDay.Decimal,
			Available:   available,
			Location:    location,
		}
	}

	return &l, nil
}

type listingColumnValues struct {
	price         decimal.NullDecimal
	startingBid   decimal.NullDecimal
	currentPrice  decimal.NullDecimal
	startTime     sql.NullTime
	endTime       sql.NullTime
	highestBidder string
	settledAt     sql.NullTime
	pricePerDay   decimal.NullDecimal
	available     bool
	location      string
}

func columnsFor(l *domain.Listing) listingColumnValues {
	var cols listingColumnValues

	if l.Mode == domain.PricingModeDirectBuy {
		cols.price = decimal.NullDecimal{Decimal: l.Price, Valid: true}
	}
	if a := l.Auction; a != nil {
		cols.startingBid = decimal.NullDecimal{Decimal: a.StartingBid, Valid: true}
		cols.currentPrice = decimal.NullDecimal{Decimal: a.CurrentPrice, Valid: true}
		cols.startTime = sql.NullTime{Time: a.StartTime, Valid: true}
		cols.endTime = sql.NullTime{Time: a.EndTime, Valid: true}
		cols.highestBidder = a.HighestBidder
		if a.SettledAt != nil {
			cols.settledAt = sql.NullTime{Time: *a.SettledAt, Valid: true}
		}
	}
	if rt := l.Rental; rt != nil {
		cols.pricePerDay = decimal.NullDecimal{Decimal: rt.PricePerDay, Valid: true}
		cols.available = rt.Available
		cols.location = rt.Location
	}

	return cols
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if rowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}
