package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmconnect/marketplace/internal/domain"
)

func newMockRepository(t *testing.T) (*OrderRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewOrderRepository(db), mock
}

var orderColumnNames = []string{
	"id", "customer_id", "customer_name", "customer_address", "customer_city",
	"customer_postal_code", "customer_email", "seller_id", "seller_name", "status", "total",
	"created_at", "updated_at",
}

func TestOrderRepository_CreateMany(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	newOrder := func() *domain.Order {
		return &domain.Order{
			CustomerID: "c-1",
			Customer:   domain.CustomerDetails{Name: "Meera", Address: "12 Lake Rd", City: "Pune", PostalCode: "411001"},
			Items: []domain.LineItem{
				{ListingID: "l-1", Name: "Honey", Price: decimal.NewFromInt(10), Quantity: 2},
				{ListingID: "l-2", Name: "Jam", Price: decimal.NewFromInt(3), Quantity: 1},
			},
			Total:      decimal.NewFromInt(23),
			SellerID:   "s-1",
			SellerName: "Green Acres",
			Status:     domain.OrderStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	t.Run("writes orders and items in one transaction", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		order := newOrder()

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO orders`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO order_items`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "l-1", "Honey", decimal.NewFromInt(10), 2, 0).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO order_items`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "l-2", "Jam", decimal.NewFromInt(3), 1, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Create(ctx, order))
		assert.NotEmpty(t, order.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("item failure rolls everything back", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO orders`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO order_items`).WillReturnError(errors.New("constraint violated"))
		mock.ExpectRollback()

		err := repo.CreateMany(ctx, []*domain.Order{newOrder()})
		assert.ErrorIs(t, err, domain.ErrUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("found with items", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(`SELECT .* FROM orders WHERE id = \$1`).
			WithArgs("o-1").
			WillReturnRows(sqlmock.NewRows(orderColumnNames).AddRow(
				"o-1", "c-1", "Meera", "12 Lake Rd", "Pune", "411001", "meera@mail.test",
				"s-1", "Green Acres", "shipped", "23.00", now, now,
			))
		mock.ExpectQuery(`SELECT order_id, listing_id, name, price, quantity\s+FROM order_items`).
			WillReturnRows(sqlmock.NewRows([]string{"order_id", "listing_id", "name", "price", "quantity"}).
				AddRow("o-1", "l-1", "Honey", "10.00", 2).
				AddRow("o-1", "l-2", "Jam", "3.00", 1))

		order, err := repo.GetByID(ctx, "o-1")
		require.NoError(t, err)
		require.NotNil(t, order)
		assert.Equal(t, domain.OrderStatusShipped, order.Status)
		assert.True(t, order.Total.Equal(decimal.NewFromInt(23)))
		assert.Equal(t, "meera@mail.test", order.Customer.Email)
		require.Len(t, order.Items, 2)
		assert.Equal(t, "Honey", order.Items[0].Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(`SELECT .* FROM orders WHERE id = \$1`).
			WithArgs("o-2").
			WillReturnRows(sqlmock.NewRows(orderColumnNames))

		order, err := repo.GetByID(ctx, "o-2")
		assert.NoError(t, err)
		assert.Nil(t, order)
	})
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`UPDATE orders SET status = \$3, updated_at = \$4\s+WHERE id = \$1 AND status = \$2`).
		WithArgs("o-1", domain.OrderStatusPending, domain.OrderStatusShipped, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE orders SET status`).
		WithArgs("o-1", domain.OrderStatusPending, domain.OrderStatusShipped, now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE orders SET status`).
		WillReturnError(errors.New("connection reset"))

	assert.NoError(t, repo.UpdateStatus(ctx, "o-1", domain.OrderStatusPending, domain.OrderStatusShipped, now))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "o-1", domain.OrderStatusPending, domain.OrderStatusShipped, now), ErrStatusChanged)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "o-1", domain.OrderStatusPending, domain.OrderStatusShipped, now), domain.ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ListBySellerNameEmpty(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`WHERE seller_name = \$1`).
		WithArgs("Nobody").
		WillReturnRows(sqlmock.NewRows(orderColumnNames))

	orders, err := repo.ListBySellerName(context.Background(), "Nobody")
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}
