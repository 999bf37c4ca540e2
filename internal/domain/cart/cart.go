package cart

import (
	"context"
	"fmt"

	"github.com/xenking/kart-storefront/internal/domain/fault"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

// Item is a single cart line: one product and the requested quantity.
type Item struct {
	ID string
	// ProductID identifies the product even while Product is unresolved.
	ProductID string
	// Product is nil while the product record is still unresolved.
	Product  *product.Product
	Quantity int
}

// ProductRef returns the id of the line's product.
func (i Item) ProductRef() string {
	if i.Product != nil && i.Product.ID != "" {
		return i.Product.ID
	}
	return i.ProductID
}

// limit returns the highest orderable quantity for the line. The second
// result is false when the product is unknown and no upper bound applies.
func (i Item) limit() (int, bool) {
	if i.Product == nil {
		return 0, false
	}
	if i.Product.Stock < 1 {
		return 1, true
	}
	return i.Product.Stock, true
}

func (i Item) name() string {
	if i.Product == nil || i.Product.Name == "" {
		return i.ID
	}
	return i.Product.Name
}

// clamp bounds qty to [1, stock] and describes the correction, if any.
func clamp(item Item, qty int) (int, *fault.ValidationError) {
	if limit, ok := item.limit(); ok && qty > limit {
		reason := fmt.Sprintf("only %d of %q in stock", limit, item.name())
		if item.Product.Stock < 1 {
			reason = fmt.Sprintf("%q is out of stock", item.name())
		}
		return limit, &fault.ValidationError{
			Field:     "quantity",
			Requested: qty,
			Applied:   limit,
			Reason:    reason,
		}
	}
	if qty < 1 {
		return 1, &fault.ValidationError{
			Field:     "quantity",
			Requested: qty,
			Applied:   1,
			Reason:    "quantity must be at least 1, use remove to drop the item",
		}
	}
	return qty, nil
}

// Backend is the remote side of the cart.
type Backend interface {
	FetchCart(ctx context.Context, token string) ([]Item, error)
	PlaceOrder(ctx context.Context, token string, items []Item) (*order.Order, error)
}

// Repository is the server-side cart of a user.
type Repository interface {
	List(ctx context.Context, userID string) ([]Item, error)
	// Add increases the quantity of productID by qty, creating the line
	// when needed.
	Add(ctx context.Context, userID, productID string, qty int) error
}

// TokenSource yields the bearer token of the current session, or an empty
// string when logged out.
type TokenSource interface {
	AccessToken() string
}
