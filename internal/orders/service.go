package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/farmconnect/marketplace/internal/domain"
)

type Repository interface {
	CreateMany(ctx context.Context, orders []*domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, prev, next domain.OrderStatus, now time.Time) error
	ListByCustomerName(ctx context.Context, name string) ([]domain.Order, error)
	ListBySellerName(ctx context.Context, name string) ([]domain.Order, error)
}

type Carts interface {
	View(ctx context.Context, userID string) (*domain.CartView, error)
	Consume(ctx context.Context, userID string, lines []domain.CartLine) error
}

type Users interface {
	Lookup(ctx context.Context, id string) (*domain.User, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, topic, key string, event any)
}

type CreateInput struct {
	Customer domain.CustomerDetails `json:"customer"`
	Items    []domain.LineItem      `json:"items"`
	Total    *decimal.Decimal       `json:"total"`
	SellerID string                 `json:"seller_id"`
}

// Manager owns the order lifecycle: creation, checkout from a cart and the
// fulfillment status flow. Status changes are announced through the
// dispatcher after they are stored.
type Manager struct {
	repo        Repository
	carts       Carts
	users       Users
	dispatcher  Dispatcher
	clock       clock.Clock
	logger      *slog.Logger
	transitions metric.Int64Counter
}

func NewManager(repo Repository, carts Carts, users Users, dispatcher Dispatcher, clk clock.Clock, logger *slog.Logger) *Manager {
	transitions, _ := otel.Meter("github.com/farmconnect/marketplace/internal/orders").
		Int64Counter("marketplace.orders.transitions",
			metric.WithDescription("Order status changes, by target status"))

	return &Manager{
		repo:        repo,
		carts:       carts,
		users:       users,
		dispatcher:  dispatcher,
		clock:       clk,
		logger:      logger,
		transitions: transitions,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}

func (m *Manager) Create(ctx context.Context, caller domain.Identity, in CreateInput) (*domain.Order, error) {
	if caller.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	customer, err := normalizeCustomer(in.Customer, caller)
	if err != nil {
		return nil, err
	}

	if len(in.Items) == 0 {
		return nil, invalid("at least one line item is required")
	}
	items := make([]domain.LineItem, len(in.Items))
	for i, item := range in.Items {
		if item.ListingID == "" || strings.TrimSpace(item.Name) == "" {
			return nil, invalid("item %d needs a listing_id and a name", i+1)
		}
		if item.Quantity <= 0 {
			return nil, invalid("item %d quantity must be positive", i+1)
		}
		if item.Price.IsNegative() {
			return nil, invalid("item %d price must not be negative", i+1)
		}
		if err := domain.CheckMoney(fmt.Sprintf("item %d price", i+1), item.Price); err != nil {
			return nil, err
		}
		items[i] = item
	}

	total := domain.SumLineItems(items)
	if in.Total == nil {
		return nil, invalid("total is required")
	}
	if err := domain.CheckMoney("total", *in.Total); err != nil {
		return nil, err
	}
	if !in.Total.Equal(total) {
		return nil, invalid("total %s does not match the line items (%s)", in.Total.StringFixed(2), total.StringFixed(2))
	}

	if in.SellerID == "" {
		return nil, invalid("seller_id is required")
	}
	seller, err := m.users.Lookup(ctx, in.SellerID)
	if err != nil {
		return nil, err
	}
	if seller == nil {
		return nil, invalid("unknown seller %s", in.SellerID)
	}

	order := m.newOrder(caller.UserID, customer, seller.ID, seller.Name, items)

	if err := m.repo.CreateMany(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}

// Checkout turns the caller's cart into one pending order per seller, then
// takes the ordered quantities out of the cart. Every line must still be a
// direct buy listing in stock.
func (m *Manager) Checkout(ctx context.Context, caller domain.Identity, details domain.CustomerDetails) ([]*domain.Order, error) {
	if caller.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	customer, err := normalizeCustomer(details, caller)
	if err != nil {
		return nil, err
	}

	view, err := m.carts.View(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if len(view.Items) == 0 {
		return nil, invalid("cart is empty")
	}

	type sellerGroup struct {
		id, name string
		items    []domain.LineItem
	}
	var groups []*sellerGroup
	bySeller := map[string]*sellerGroup{}
	bought := make([]domain.CartLine, 0, len(view.Items))

	for _, line := range view.Items {
		l := line.Listing
		if l.Mode != domain.PricingModeDirectBuy {
			return nil, invalid("%s cannot be bought directly", l.Name)
		}
		if !l.InStock {
			return nil, invalid("%s is out of stock", l.Name)
		}

		g, ok := bySeller[l.OwnerID]
		if !ok {
			g = &sellerGroup{id: l.OwnerID, name: l.OwnerName}
			bySeller[l.OwnerID] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, domain.LineItem{
			ListingID: l.ID,
			Name:      l.Name,
			Price:     l.Price,
			Quantity:  line.Quantity,
		})
		bought = append(bought, domain.CartLine{ListingID: l.ID, Quantity: line.Quantity})
	}

	orders := make([]*domain.Order, 0, len(groups))
	for _, g := range groups {
		orders = append(orders, m.newOrder(caller.UserID, customer, g.id, g.name, g.items))
	}

	if err := m.repo.CreateMany(ctx, orders); err != nil {
		return nil, err
	}

	if err := m.carts.Consume(ctx, caller.UserID, bought); err != nil {
		m.logger.Error("failed to empty cart after checkout", "error", err, "user_id", caller.UserID)
	}

	return orders, nil
}

func (m *Manager) newOrder(customerID string, customer domain.CustomerDetails, sellerID, sellerName string, items []domain.LineItem) *domain.Order {
	now := m.clock.Now().UTC()
	return &domain.Order{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Customer:   customer,
		Items:      items,
		Total:      domain.SumLineItems(items),
		SellerID:   sellerID,
		SellerName: sellerName,
		Status:     domain.OrderStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Get returns an order to its customer or its seller.
func (m *Manager) Get(ctx context.Context, caller domain.Identity, id string) (*domain.Order, error) {
	order, err := m.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.UserID != order.CustomerID && caller.UserID != order.SellerID {
		return nil, fmt.Errorf("%w: order %s belongs to someone else", domain.ErrForbidden, id)
	}
	return order, nil
}

// SetStatus moves an order along the fulfillment flow. Only the seller may
// do this. The change is stored before the notification is queued, and a
// notification problem never fails the call.
func (m *Manager) SetStatus(ctx context.Context, caller domain.Identity, id string, next domain.OrderStatus) (*domain.Order, error) {
	if caller.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if !next.Valid() {
		return nil, fmt.Errorf("%w: %q is not one of pending, shipped, delivered, cancelled", domain.ErrInvalidStatus, next)
	}

	order, err := m.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.UserID != order.SellerID {
		return nil, fmt.Errorf("%w: only the seller can update order %s", domain.ErrForbidden, id)
	}

	prev := order.Status
	if !prev.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: cannot move order from %s to %s", domain.ErrInvalidTransition, prev, next)
	}

	now := m.clock.Now().UTC()
	if err := m.repo.UpdateStatus(ctx, id, prev, next, now); err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, fmt.Errorf("%w: order %s was updated concurrently, reload and retry", domain.ErrConflict, id)
		}
		return nil, err
	}

	order.Status = next
	order.UpdatedAt = now
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(next))))

	m.dispatcher.Dispatch(ctx, domain.TopicOrderStatusChanged, order.ID, domain.OrderStatusChangedEvent{
		OrderID:        order.ID,
		CustomerName:   order.Customer.Name,
		CustomerEmail:  order.Customer.Email,
		SellerName:     order.SellerName,
		SellerEmail:    m.sellerEmail(ctx, caller),
		PreviousStatus: prev,
		Status:         next,
		Timestamp:      now,
	})

	return order, nil
}

// ListByCustomerName returns the caller's own orders placed under name.
// Orders of other accounts that share the name are never returned.
func (m *Manager) ListByCustomerName(ctx context.Context, caller domain.Identity, name string) ([]domain.Order, error) {
	if caller.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	all, err := m.repo.ListByCustomerName(ctx, name)
	if err != nil {
		return nil, err
	}
	return keep(all, func(o domain.Order) bool { return o.CustomerID == caller.UserID }), nil
}

// ListBySellerName is the seller dashboard. Like ListByCustomerName it only
// returns orders the caller sold.
func (m *Manager) ListBySellerName(ctx context.Context, caller domain.Identity, name string) ([]domain.Order, error) {
	if caller.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	all, err := m.repo.ListBySellerName(ctx, name)
	if err != nil {
		return nil, err
	}
	return keep(all, func(o domain.Order) bool { return o.SellerID == caller.UserID }), nil
}

func keep(orders []domain.Order, ok func(domain.Order) bool) []domain.Order {
	out := orders[:0]
	for _, o := range orders {
		if ok(o) {
			out = append(out, o)
		}
	}
	return out
}

func (m *Manager) find(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}

	order, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}

	return order, nil
}

// sellerEmail is the reply-to address of the notification. A failed lookup
// only costs the reply-to.
func (m *Manager) sellerEmail(ctx context.Context, seller domain.Identity) string {
	if seller.Email != "" {
		return seller.Email
	}

	user, err := m.users.Lookup(ctx, seller.UserID)
	if err != nil {
		m.logger.Warn("seller lookup failed", "error", err, "user_id", seller.UserID)
		return ""
	}
	if user == nil {
		return ""
	}
	return user.Email
}

func normalizeCustomer(c domain.CustomerDetails, caller domain.Identity) (domain.CustomerDetails, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Address = strings.TrimSpace(c.Address)
	c.City = strings.TrimSpace(c.City)
	c.PostalCode = strings.TrimSpace(c.PostalCode)
	c.Email = strings.TrimSpace(c.Email)

	if c.Name == "" || c.Address == "" || c.City == "" || c.PostalCode == "" {
		return c, invalid("customer name, address, city and postal_code are required")
	}

	if c.Email == "" {
		c.Email = caller.Email
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return c, invalid("customer email is not valid")
		}
	}

	return c, nil
}
