package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Category    string
	// Images holds image URLs, primary image first.
	Images []string
}

// Image returns the primary image URL, or an empty string.
func (p *Product) Image() string {
	if p == nil || len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// InStock reports whether at least one unit can be ordered.
func (p *Product) InStock() bool {
	return p != nil && p.Stock > 0
}

// Filter narrows a catalog listing.
type Filter struct {
	Category string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
