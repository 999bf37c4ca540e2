package shopapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/fault"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/wire"
)

var (
	_ cart.Backend  = (*Client)(nil)
	_ order.Fetcher = (*Client)(nil)
)

// Products lists the catalog, optionally narrowed to one category.
func (c *Client) Products(ctx context.Context, category string) ([]product.Product, error) {
	const op = "list products"
	var q url.Values
	if category != "" {
		q = url.Values{"categoria": {category}}
	}
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   "/productos/",
		query:  q,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, unexpected(op, resp)
	}

	products, err := wire.DecodeProducts(resp.decoder())
	if err != nil {
		return nil, malformed(op, resp, err)
	}
	return products, nil
}

// FetchCart returns the server-side cart of the token's user.
func (c *Client) FetchCart(ctx context.Context, token string) ([]cart.Item, error) {
	const op = "fetch cart"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   "/carrito/",
		token:  token,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, unexpected(op, resp)
	}

	items, err := wire.DecodeCartItems(resp.decoder())
	if err != nil {
		return nil, malformed(op, resp, err)
	}
	return items, nil
}

// AddToCart adds qty units of productID to the server-side cart.
func (c *Client) AddToCart(ctx context.Context, token, productID string, qty int) error {
	const op = "add to cart"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/carrito/",
		token:  token,
		body:   func(e *jx.Encoder) { wire.EncodeAddToCart(e, productID, qty) },
	})
	if err != nil {
		return err
	}
	if !resp.ok() {
		if msg, ok := wire.ErrorMessage(resp.body); ok && resp.status < http.StatusInternalServerError {
			return businessError(msg)
		}
		return unexpected(op, resp)
	}
	return nil
}

// PlaceOrder submits items as a new order. Any response carrying an
// "error" field is a business rejection, whatever its status.
func (c *Client) PlaceOrder(ctx context.Context, token string, items []cart.Item) (*order.Order, error) {
	const op = "place order"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/pedidos/",
		token:  token,
		body:   func(e *jx.Encoder) { wire.EncodeOrderRequest(e, items) },
	})
	if err != nil {
		return nil, err
	}
	if wire.HasErrorField(resp.body) {
		msg, _ := wire.ErrorMessage(resp.body)
		return nil, businessError(msg)
	}
	if !resp.ok() {
		if msg, ok := wire.ErrorMessage(resp.body); ok && resp.status < http.StatusInternalServerError {
			return nil, businessError(msg)
		}
		return nil, unexpected(op, resp)
	}

	o, err := wire.DecodeOrder(resp.decoder())
	if err != nil {
		return nil, malformed(op, resp, err)
	}
	return &o, nil
}

// ListOrders fetches one page of the order history, newest first.
func (c *Client) ListOrders(ctx context.Context, token string, page int) (*order.Page, error) {
	const op = "list orders"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   "/pedidos/",
		query:  url.Values{"page": {strconv.Itoa(page)}},
		token:  token,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, unexpected(op, resp)
	}

	p, err := wire.DecodeOrderPage(resp.decoder())
	if err != nil {
		return nil, malformed(op, resp, err)
	}
	return &p, nil
}

func businessError(msg string) error {
	if msg == "" {
		msg = "request rejected"
	}
	return &fault.BusinessError{Message: msg}
}

