package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

const (
	listCartSQL = `SELECT c.id::text, c.quantity,
			p.id, p.name, p.description, p.price, p.stock, p.category, p.images
		FROM cart_items c JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1 ORDER BY c.id`

	listCartLinesSQL = `SELECT product_id, quantity FROM cart_items
		WHERE user_id = $1 ORDER BY id`

	addToCartSQL = `INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var (
	_ cart.Repository  = (*CartRepository)(nil)
	_ order.CartReader = (*CartRepository)(nil)
)

// CartRepository stores server-side carts.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// List returns the user's cart lines with their products resolved.
func (r *CartRepository) List(ctx context.Context, userID string) ([]cart.Item, error) {
	rows, err := r.pool.Query(ctx, listCartSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var (
			item cart.Item
			p    product.Product
		)
		err := row.Scan(&item.ID, &item.Quantity,
			&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category, &p.Images,
		)
		item.ProductID = p.ID
		item.Product = &p
		return item, err
	})
}

// ListLines returns the user's cart as order lines.
func (r *CartRepository) ListLines(ctx context.Context, userID string) ([]order.OrderItem, error) {
	rows, err := r.pool.Query(ctx, listCartLinesSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart lines")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.OrderItem, error) {
		var item order.OrderItem
		err := row.Scan(&item.ProductID, &item.Quantity)
		return item, err
	})
}

// Add increases the quantity of productID by qty, creating the line when
// needed. It returns product.ErrNotFound for an unknown product.
func (r *CartRepository) Add(ctx context.Context, userID, productID string, qty int) error {
	if _, err := r.pool.Exec(ctx, addToCartSQL, userID, productID, qty); err != nil {
		if pgErrorCode(err) == codeForeignKeyViolation {
			return product.ErrNotFound
		}
		return errors.Wrapf(err, "add %q to cart", productID)
	}
	return nil
}
