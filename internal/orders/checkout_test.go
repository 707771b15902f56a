package orders

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmconnect/marketplace/internal/cart"
	"github.com/farmconnect/marketplace/internal/domain"
	"github.com/farmconnect/marketplace/internal/listings"
)

// liveFixture checks out against real listings and a Redis backed cart, so
// listing changes after checkout reach the same store the order was built
// from.
type liveFixture struct {
	manager  *Manager
	repo     *memoryRepository
	carts    *cart.Service
	listings *listings.Service
}

func newLiveFixture(t *testing.T) *liveFixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	listingSvc := listings.NewService(listings.NewMemoryRepository(), clk)
	carts := cart.NewService(cart.NewRedisStore(client, time.Hour), listingSvc, logger)
	repo := newMemoryRepository()
	users := fakeUsers{sellerA.ID: sellerA, sellerB.ID: sellerB}

	return &liveFixture{
		manager:  NewManager(repo, carts, users, &recordingDispatcher{}, clk, logger),
		repo:     repo,
		carts:    carts,
		listings: listingSvc,
	}
}

func (f *liveFixture) product(t *testing.T, owner *domain.User, name, price string) *domain.Listing {
	t.Helper()
	p := money(price)
	l, err := f.listings.Create(context.Background(), identityOf(owner), listings.Input{Name: name, Mode: domain.PricingModeDirectBuy, Price: &p})
	require.NoError(t, err)
	return l
}

func TestCheckout_OrderKeepsPriceAfterRepricing(t *testing.T) {
	ctx := context.Background()
	f := newLiveFixture(t)
	honey := f.product(t, sellerA, "Honey", "10")

	_, err := f.carts.AddItem(ctx, buyer.UserID, honey.ID, 2)
	require.NoError(t, err)

	placed, err := f.manager.Checkout(ctx, buyer, customer)
	require.NoError(t, err)
	require.Len(t, placed, 1)

	_, err = f.listings.Update(ctx, identityOf(sellerA), honey.ID, listings.Input{Name: "Honey", Price: ptr(money("99"))})
	require.NoError(t, err)

	repriced, err := f.listings.Get(ctx, honey.ID)
	require.NoError(t, err)
	require.True(t, repriced.Price.Equal(money("99")), "listing price should have changed, got %s", repriced.Price)

	stored, err := f.repo.GetByID(ctx, placed[0].ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.True(t, stored.Items[0].Price.Equal(money("10")), "expected snapshot price 10, got %s", stored.Items[0].Price)
	assert.True(t, stored.Total.Equal(money("20")), "expected total 20, got %s", stored.Total)

	got, err := f.manager.Get(ctx, buyer, placed[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].Price.Equal(money("10")))
}

func TestCheckout_KeepsItemsAddedAfterTheView(t *testing.T) {
	ctx := context.Background()
	f := newLiveFixture(t)
	honey := f.product(t, sellerA, "Honey", "10")
	ghee := f.product(t, sellerB, "Ghee", "4.25")

	_, err := f.carts.AddItem(ctx, buyer.UserID, honey.ID, 1)
	require.NoError(t, err)

	// The buyer adds to the cart while checkout is between reading the cart
	// and emptying it.
	f.manager.carts = &interleavingCarts{
		Service: f.carts,
		between: func() {
			_, err := f.carts.AddItem(ctx, buyer.UserID, ghee.ID, 1)
			require.NoError(t, err)
			_, err = f.carts.AddItem(ctx, buyer.UserID, honey.ID, 1)
			require.NoError(t, err)
		},
	}

	placed, err := f.manager.Checkout(ctx, buyer, customer)
	require.NoError(t, err)
	require.Len(t, placed, 1)
	assert.Equal(t, 1, placed[0].Items[0].Quantity)

	view, err := f.carts.View(ctx, buyer.UserID)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, honey.ID, view.Items[0].Listing.ID)
	assert.Equal(t, 1, view.Items[0].Quantity)
	assert.Equal(t, ghee.ID, view.Items[1].Listing.ID)
	assert.Equal(t, 1, view.Items[1].Quantity)
}

// interleavingCarts runs between after the cart is read.
type interleavingCarts struct {
	*cart.Service
	between func()
}

func (c *interleavingCarts) View(ctx context.Context, userID string) (*domain.CartView, error) {
	view, err := c.Service.View(ctx, userID)
	if err == nil && c.between != nil {
		c.between()
		c.between = nil
	}
	return view, err
}
