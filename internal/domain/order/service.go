package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

// ErrEmptyItems is returned when neither the request nor the server-side
// cart holds any items.
var ErrEmptyItems = fmt.Errorf("the cart is empty")

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InsufficientStockError indicates a product cannot cover the requested quantity.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", name, e.Requested, e.Available)
}

// PlaceOrderRequest holds the input for placing an order. When Items is
// empty the user's server-side cart is ordered instead.
type PlaceOrderRequest struct {
	UserID string
	Items  []OrderItem
}

// Service encapsulates order placement and history business logic.
type Service struct {
	products product.Repository
	carts    CartReader
	orders   Repository
	now      func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	carts CartReader,
	orders Repository,
) *Service {
	return &Service{
		products: products,
		carts:    carts,
		orders:   orders,
		now:      time.Now,
	}
}

// PlaceOrder validates items, fetches products in a single batch, checks
// stock, prices the lines and persists the order.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	items := req.Items
	if len(items) == 0 {
		fromCart, err := s.carts.ListLines(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("list cart: %w", err)
		}
		items = fromCart
	}
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}

	// Merge repeated products, keeping first-seen order.
	merged := make([]OrderItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}

	ids := make([]string, len(merged))
	for i, item := range merged {
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}

	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	lines := make([]LineItem, len(merged))
	total := decimal.Zero
	for i, item := range merged {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if item.Quantity > p.Stock {
			return nil, &InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: item.Quantity,
				Available: p.Stock,
			}
		}
		lines[i] = LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  item.Quantity,
		}
		total = total.Add(lines[i].Subtotal())
	}

	o := &Order{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Items:     lines,
		Total:     total.Round(2),
		CreatedAt: s.now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return o, nil
}

// ListPage returns page (1-based) of the user's orders, newest first.
func (s *Service) ListPage(ctx context.Context, userID string, page, size int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * size

	orders, count, err := s.orders.ListByUser(ctx, userID, size, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	return &Page{
		Results: orders,
		Count:   count,
		HasNext: offset+len(orders) < count,
	}, nil
}
