package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/order"
)

const (
	reserveStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	getStockSQL = `SELECT stock FROM products WHERE id = $1`

	createOrderSQL = `INSERT INTO orders (id, user_id, items, total, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	countOrdersSQL = `SELECT count(*) FROM orders WHERE user_id = $1`

	listOrdersSQL = `SELECT id, user_id, items, total, created_at FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create reserves stock for every line, persists the order and clears the
// user's cart in one transaction. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, line := range o.Items {
		tag, err := tx.Exec(ctx, reserveStockSQL, line.ProductID, line.Quantity)
		if err != nil {
			return errors.Wrapf(err, "reserve stock for %q", line.ProductID)
		}
		if tag.RowsAffected() == 1 {
			continue
		}
		var available int
		if err := tx.QueryRow(ctx, getStockSQL, line.ProductID).Scan(&available); err != nil {
			return errors.Wrapf(err, "get stock of %q", line.ProductID)
		}
		return &order.InsufficientStockError{
			ProductID: line.ProductID,
			Name:      line.Name,
			Requested: line.Quantity,
			Available: available,
		}
	}

	if _, err := tx.Exec(ctx, createOrderSQL, o.ID, o.UserID, itemsJSON, o.Total, o.CreatedAt); err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	if _, err := tx.Exec(ctx, clearCartSQL, o.UserID); err != nil {
		return errors.Wrap(err, "clear cart")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// ListByUser returns up to limit orders of userID starting at offset, newest
// first, together with the user's total order count.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]order.Order, int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, countOrdersSQL, userID).Scan(&count); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}
	if count == 0 || offset >= count {
		return nil, count, nil
	}

	rows, err := r.pool.Query(ctx, listOrdersSQL, userID, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan orders")
	}
	return orders, count, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
		createdAt time.Time
	)
	if err := row.Scan(&o.ID, &o.UserID, &itemsJSON, &o.Total, &createdAt); err != nil {
		return o, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, errors.Wrapf(err, "unmarshal items of order %q", o.ID)
	}
	o.CreatedAt = createdAt.UTC()
	return o, nil
}
