// Package devserver is a development backend for the storefront REST API,
// backed by PostgreSQL.
package devserver

import (
	"context"
	"net/http"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

// OrderService places orders and pages through a user's order history.
type OrderService interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
	ListPage(ctx context.Context, userID string, page, size int) (*order.Page, error)
}

// Deps are the collaborators of a Server.
type Deps struct {
	Users    auth.Repository
	Products product.Repository
	Carts    cart.Repository
	Orders   OrderService
	Tokens   *Tokens
}

// Options tune a Server.
type Options struct {
	// PageSize is the number of orders per history page. Zero means 5.
	PageSize int
	// BcryptCost is the cost of new password hashes. Zero means bcrypt.DefaultCost.
	BcryptCost int
	// LoginLimit throttles login attempts per client. Nil disables it.
	LoginLimit *Limiter
}

// Server serves the storefront REST API.
type Server struct {
	Deps
	pageSize   int
	bcryptCost int
	loginLimit *Limiter
}

// NewServer creates a Server.
func NewServer(deps Deps, opts Options) *Server {
	if opts.PageSize <= 0 {
		opts.PageSize = 5
	}
	return &Server{
		Deps:       deps,
		pageSize:   opts.PageSize,
		bcryptCost: opts.BcryptCost,
		loginLimit: opts.LoginLimit,
	}
}

// Routes registers the API under prefix, e.g. "/api".
func (s *Server) Routes(mux *http.ServeMux, prefix string) {
	authed := Authenticate(s.Tokens)

	var login http.Handler = http.HandlerFunc(s.login)
	if s.loginLimit != nil {
		login = s.loginLimit.Middleware()(login)
	}
	mux.Handle("POST "+prefix+"/login/", login)
	mux.HandleFunc("POST "+prefix+"/register/", s.register)
	mux.HandleFunc("GET "+prefix+"/productos/", s.listProducts)
	mux.Handle("GET "+prefix+"/carrito/", authed(http.HandlerFunc(s.getCart)))
	mux.Handle("POST "+prefix+"/carrito/", authed(http.HandlerFunc(s.addToCart)))
	mux.Handle("GET "+prefix+"/pedidos/", authed(http.HandlerFunc(s.listOrders)))
	mux.Handle("POST "+prefix+"/pedidos/", authed(http.HandlerFunc(s.placeOrder)))
}

// userID returns the subject of the authenticated request.
func userID(r *http.Request) string {
	if c, ok := claimsFromContext(r.Context()); ok {
		return c.Subject
	}
	return ""
}
