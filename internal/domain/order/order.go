package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a placed order with a snapshot of its line items.
type Order struct {
	ID        string
	UserID    string
	Items     []LineItem
	Total     decimal.Decimal
	CreatedAt time.Time
}

// LineItem is the priced snapshot of one product inside an order.
type LineItem struct {
	ProductID string          `json:"producto"`
	Name      string          `json:"nombre"`
	Price     decimal.Decimal `json:"precio"`
	Quantity  int             `json:"cantidad"`
}

// Subtotal returns price × quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderItem is a requested product and quantity, before pricing.
type OrderItem struct {
	ProductID string
	Quantity  int
}

// Page is one page of a user's order history, newest first.
type Page struct {
	Results []Order
	// Count is the number of orders across all pages.
	Count   int
	HasNext bool
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists o, decrements stock for every line and empties the
	// user's server-side cart in one transaction. It returns an
	// *InsufficientStockError when stock ran out concurrently.
	Create(ctx context.Context, o *Order) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, int, error)
}

// CartReader exposes the server-side cart of a user.
type CartReader interface {
	ListLines(ctx context.Context, userID string) ([]OrderItem, error)
}
