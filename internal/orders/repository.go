package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/farmconnect/marketplace/internal/domain"
)

// ErrStatusChanged is returned by UpdateStatus when the stored status is no
// longer the one the caller validated against.
var ErrStatusChanged = errors.New("order status changed concurrently")

const orderColumns = `
	id, customer_id, customer_name, customer_address, customer_city,
	customer_postal_code, customer_email, seller_id, seller_name, status, total,
	created_at, updated_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrUnavailable, op, err)
}

// CreateMany inserts all orders and their line items in one transaction.
// Orders without an id get one.
func (r *OrderRepository) CreateMany(ctx context.Context, orders []*domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin orders", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, order := range orders {
		if order.ID == "" {
			order.ID = uuid.New().String()
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, order.ID, order.CustomerID, order.Customer.Name, order.Customer.Address, order.Customer.City,
			order.Customer.PostalCode, order.Customer.Email, order.SellerID, order.SellerName,
			order.Status, order.Total, order.CreatedAt, order.UpdatedAt)
		if err != nil {
			return unavailable("insert order", err)
		}

		for i, item := range order.Items {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, listing_id, name, price, quantity, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, uuid.New().String(), order.ID, item.ListingID, item.Name, item.Price, item.Quantity, i)
			if err != nil {
				return unavailable("insert order item", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit orders", err)
	}

	return nil
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	return r.CreateMany(ctx, []*domain.Order{order})
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	list, err := r.list(ctx, "get order", `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

// UpdateStatus moves the order from prev to next. It fails with
// ErrStatusChanged if the order is no longer in prev.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, prev, next domain.OrderStatus, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`, id, prev, next, now)
	if err != nil {
		return unavailable("update order status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return unavailable("update order status", err)
	}

	if rowsAffected == 0 {
		return ErrStatusChanged
	}

	return nil
}

func (r *OrderRepository) ListByCustomerName(ctx context.Context, name string) ([]domain.Order, error) {
	return r.list(ctx, "list orders by customer", `
		SELECT `+orderColumns+`
		FROM orders
		WHERE customer_name = $1
		ORDER BY created_at DESC
	`, name)
}

func (r *OrderRepository) ListBySellerName(ctx context.Context, name string) ([]domain.Order, error) {
	return r.list(ctx, "list orders by seller", `
		SELECT `+orderColumns+`
		FROM orders
		WHERE seller_name = $1
		ORDER BY created_at DESC
	`, name)
}

// list runs an order query and loads the line items of every returned order
// with a single extra query.
func (r *OrderRepository) list(ctx context.Context, op, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order := &domain.Order{Items: []domain.LineItem{}}
		err := rows.Scan(&order.ID, &order.CustomerID, &order.Customer.Name, &order.Customer.Address,
			&order.Customer.City, &order.Customer.PostalCode, &order.Customer.Email,
			&order.SellerID, &order.SellerName, &order.Status, &order.Total,
			&order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return nil, unavailable(op, err)
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, listing_id, name, price, quantity
		FROM order_items
		WHERE order_id::text = ANY($1)
		ORDER BY order_id, position
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, unavailable("load order items", err)
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.LineItem
		if err := itemRows.Scan(&orderID, &item.ListingID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, unavailable("load order items", err)
		}
		if order, ok := orderMap[orderID]; ok {
			order.Items = append(order.Items, item)
		}
	}

	if err := itemRows.Err(); err != nil {
		return nil, unavailable("load order items", err)
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}
