package devserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/wire"
)

// --- In-memory repositories ---

type fakeUsers struct {
	mu     sync.Mutex
	byName map[string]*auth.Account
}

func (f *fakeUsers) Create(_ context.Context, a *auth.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[a.Username]; ok {
		return auth.ErrUserExists
	}
	a.ID = strconv.Itoa(len(f.byName) + 1)
	cp := *a
	f.byName[a.Username] = &cp
	return nil
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (*auth.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byName[username]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	cp := *a
	return &cp, nil
}

type fakeProducts struct {
	mu   sync.Mutex
	byID map[string]*product.Product
	ids  []string
}

func (f *fakeProducts) List(_ context.Context, flt product.Filter) ([]product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []product.Product
	for _, id := range f.ids {
		p := f.byID[id]
		if flt.Category != "" && p.Category != flt.Category {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

type cartLine struct {
	productID string
	qty       int
}

type fakeCarts struct {
	products *fakeProducts

	mu    sync.Mutex
	lines map[string][]cartLine
}

func (f *fakeCarts) List(_ context.Context, userID string) ([]cart.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []cart.Item{}
	for _, l := range f.lines[userID] {
		p := *f.products.byID[l.productID]
		items = append(items, cart.Item{ID: l.productID, ProductID: l.productID, Product: &p, Quantity: l.qty})
	}
	return items, nil
}

func (f *fakeCarts) Add(_ context.Context, userID, productID string, qty int) error {
	if _, ok := f.products.byID[productID]; !ok {
		return product.ErrNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.lines[userID] {
		if l.productID == productID {
			f.lines[userID][i].qty += qty
			return nil
		}
	}
	f.lines[userID] = append(f.lines[userID], cartLine{productID: productID, qty: qty})
	return nil
}

func (f *fakeCarts) ListLines(_ context.Context, userID string) ([]order.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []order.OrderItem
	for _, l := range f.lines[userID] {
		out = append(out, order.OrderItem{ProductID: l.productID, Quantity: l.qty})
	}
	return out, nil
}

// fakeOrders stores orders oldest first and, like the real repository,
// reserves stock and empties the cart on Create.
type fakeOrders struct {
	carts *fakeCarts

	mu     sync.Mutex
	orders []order.Order
}

func (f *fakeOrders) Create(_ context.Context, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range o.Items {
		f.carts.products.byID[l.ProductID].Stock -= l.Quantity
	}
	f.carts.mu.Lock()
	delete(f.carts.lines, o.UserID)
	f.carts.mu.Unlock()
	f.orders = append(f.orders, *o)
	return nil
}

func (f *fakeOrders) ListByUser(_ context.Context, userID string, limit, offset int) ([]order.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var mine []order.Order
	for _, o := range slices.Backward(f.orders) {
		if o.UserID == userID {
			mine = append(mine, o)
		}
	}
	if offset >= len(mine) {
		return nil, len(mine), nil
	}
	end := min(offset+limit, len(mine))
	return mine[offset:end], len(mine), nil
}

// --- Harness ---

type testEnv struct {
	handler  http.Handler
	tokens   *Tokens
	users    *fakeUsers
	products *fakeProducts
	carts    *fakeCarts
	orders   *fakeOrders
}

func newTestEnv(t *testing.T, catalog ...product.Product) *testEnv {
	t.Helper()

	tokens, err := NewTokens(TokenConfig{Secret: "test-secret", Issuer: "test"})
	require.NoError(t, err)

	products := &fakeProducts{byID: make(map[string]*product.Product)}
	for i := range catalog {
		p := catalog[i]
		products.byID[p.ID] = &p
		products.ids = append(products.ids, p.ID)
	}
	carts := &fakeCarts{products: products, lines: make(map[string][]cartLine)}
	orders := &fakeOrders{carts: carts}
	users := &fakeUsers{byName: make(map[string]*auth.Account)}

	srv := NewServer(Deps{
		Users:    users,
		Products: products,
		Carts:    carts,
		Orders:   order.NewService(products, carts, orders),
		Tokens:   tokens,
	}, Options{BcryptCost: bcrypt.MinCost})

	mux := http.NewServeMux()
	srv.Routes(mux, "/api")

	return &testEnv{
		handler:  Wrap(mux, RequestID(), Recovery()),
		tokens:   tokens,
		users:    users,
		products: products,
		carts:    carts,
		orders:   orders,
	}
}

func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) tokenFor(t *testing.T, id, username string) string {
	t.Helper()
	access, _, err := e.tokens.Issue(auth.User{ID: id, Username: username})
	require.NoError(t, err)
	return access
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	msg, ok := wire.ErrorMessage(w.Body.Bytes())
	require.True(t, ok, "body has no error message: %s", w.Body.String())
	return msg
}

func testCatalog() []product.Product {
	return []product.Product{
		{ID: "1", Name: "Mate", Price: decimal.RequireFromString("12.50"), Stock: 10, Category: "cocina"},
		{ID: "2", Name: "Bombilla", Price: decimal.RequireFromString("3.99"), Stock: 2, Category: "cocina"},
		{ID: "3", Name: "Poncho", Price: decimal.RequireFromString("80"), Stock: 5, Category: "ropa"},
	}
}

// --- Tests ---

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/register/", "", `{"username":"ana","password":"secret1","email":"ana@example.com"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	u, err := auth.DecodeUser(jx.DecodeBytes(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "ana", u.Username)
	assert.NotEmpty(t, u.ID)

	w = env.do(http.MethodPost, "/api/login/", "", `{"username":"ana","password":"secret1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tokens, err := wire.DecodeTokens(jx.DecodeBytes(w.Body.Bytes()))
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.Refresh)
	assert.Equal(t, "ana", tokens.User.Username)

	claims, err := env.tokens.Verify(tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)
}

func TestLogin_Rejected(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated,
		env.do(http.MethodPost, "/api/register/", "", `{"username":"ana","password":"secret1"}`).Code)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "WrongPassword", body: `{"username":"ana","password":"nope"}`, status: http.StatusUnauthorized},
		{name: "UnknownUser", body: `{"username":"bob","password":"secret1"}`, status: http.StatusUnauthorized},
		{name: "MissingPassword", body: `{"username":"ana"}`, status: http.StatusBadRequest},
		{name: "Malformed", body: `[1,2]`, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/login/", "", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, errorMessage(t, w))
		})
	}
}

func TestRegister_Rejected(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated,
		env.do(http.MethodPost, "/api/register/", "", `{"username":"ana","password":"secret1"}`).Code)

	w := env.do(http.MethodPost, "/api/register/", "", `{"username":"ana","password":"another1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w), "already exists")

	w = env.do(http.MethodPost, "/api/register/", "", `{"username":"bob","password":"123"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w), "at least 6")

	w = env.do(http.MethodPost, "/api/register/", "", `{"username":"  ","password":"secret1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListProducts(t *testing.T) {
	env := newTestEnv(t, testCatalog()...)

	w := env.do(http.MethodGet, "/api/productos/", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	all, err := wire.DecodeProducts(jx.DecodeBytes(w.Body.Bytes()))
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, decimal.RequireFromString("12.50").Equal(all[0].Price))

	w = env.do(http.MethodGet, "/api/productos/?categoria=ropa", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	ropa, err := wire.DecodeProducts(jx.DecodeBytes(w.Body.Bytes()))
	require.NoError(t, err)
	require.Len(t, ropa, 1)
	assert.Equal(t, "Poncho", ropa[0].Name)
}

func TestCart_RequiresToken(t *testing.T) {
	env := newTestEnv(t, testCatalog()...)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/carrito/"},
		{http.MethodPost, "/api/carrito/"},
		{http.MethodGet, "/api/pedidos/"},
		{http.MethodPost, "/api/pedidos/"},
	} {
		w := env.do(tc.method, tc.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.method+" "+tc.path)
	}

	w := env.do(http.MethodGet, "/api/carrito/", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAddToCart(t *testing.T) {
	env := newTestEnv(t, testCatalog()...)
	token := env.tokenFor(t, "7", "ana")

	w := env.do(http.MethodPost, "/api/carrito/", token, `{"producto":"1","cantidad":2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(http.MethodPost, "/api/carrito/", token, `{"producto":1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/api/carrito/", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	items, err := wire.DecodeCartItems(jx.DecodeBytes(w.Body.Bytes()))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	require.NotNil(t, items[0].Product)
	assert.Equal(t, "Mate", items[0].Product.Name)

	// Carts are per user.
	w = env.do(http.MethodGet, "/api/carrito/", env.tokenFor(t, "8", "bob"), "")
	require.Equal(t, http.StatusOK, w.Code)
	other, err := wire.DecodeCartItems(jx.DecodeBytes(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAddToCart_Rejected(t *testing.T) {
	env := newTestEnv(t, testCatalog()...)
	token := env.tokenFor(t, "7", "ana")

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "UnknownProduct", body: `{"producto":"99","cantidad":1}`, msg: "does not exist"},
		{name: "ZeroQuantity", body: `{"producto":"1","cantidad":0}`, msg: "at least 1"},
		{name: "MissingProduct", body: `{"cantidad":1}`, msg: "producto is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/carrito/", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, errorMessage(t, w), tt.msg)
		})
	}
}

func TestPlaceOrder_FromServerCart(t *testing.T) {
	env := newTestEnv(t, testCatalog()...)
	token := env.tokenFor(t, "7", "ana")

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/carrito/", token, `{"producto":"1","cantidad":2}`).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/carrito/", token, `{"producto":"2","cantidad":1}`).Code)

	w := env.do(http.MethodPost, "/api/pedidos/", token, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	o, err := wire.DecodeOrder(jx.DecodeBytes(w.Body.Bytes()))
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "28.99", o.Total.StringFixed(2))

	assert.Equal(t, 8, env.products.byID["1"].Stock)
	assert.Empty(t, env.carts.lines["7"])
}

func TestPlaceOrder_ExplicitItems(t *testing.T) {
	env := newTestEnv(t, testCatalog()...)
	token := env.tokenFor(t, "7", "ana")

	w := env.do(http.MethodPost, "/api/pedidos/", token, `{"productos":[{"id":"3","cantidad":2}]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	o, err := wire.DecodeOrder(jx.DecodeBytes(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "160.00", o.Total.StringFixed(2))
}

func TestPlaceOrder_Rejected(t *testing.T) {
	env := newTestEnv(t, testCatalog()...)
	token := env.tokenFor(t, "7", "ana")

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "EmptyCart", body: ``, msg: "empty"},
		{name: "InsufficientStock", body: `{"productos":[{"id":"2","cantidad":3}]}`, msg: "insufficient stock for Bombilla"},
		{name: "UnknownProduct", body: `{"productos":[{"id":"42","cantidad":1}]}`, msg: "not found"},
		{name: "BadQuantity", body: `{"productos":[{"id":"1","cantidad":-1}]}`, msg: "greater than 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/pedidos/", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.True(t, wire.HasErrorField(w.Body.Bytes()))
			assert.Contains(t, errorMessage(t, w), tt.msg)
		})
	}
	assert.Empty(t, env.orders.orders)
}

func TestListOrders_Pagination(t *testing.T) {
	env := newTestEnv(t, product.Product{ID: "1", Name: "Mate", Price: decimal.NewFromInt(1), Stock: 100})
	token := env.tokenFor(t, "7", "ana")

	for range 7 {
		w := env.do(http.MethodPost, "/api/pedidos/", token, `{"productos":[{"id":"1","cantidad":1}]}`)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.do(http.MethodGet, "/api/pedidos/", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	first, err := wire.DecodeOrderPage(jx.DecodeBytes(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 7, first.Count)
	assert.Len(t, first.Results, 5)
	assert.True(t, first.HasNext)
	assert.Equal(t, env.orders.orders[6].ID, first.Results[0].ID, "newest first")
	assert.Contains(t, w.Body.String(), `"previous":null`)

	w = env.do(http.MethodGet, "/api/pedidos/?page=2", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	second, err := wire.DecodeOrderPage(jx.DecodeBytes(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Len(t, second.Results, 2)
	assert.False(t, second.HasNext)
	assert.Contains(t, w.Body.String(), "page=1")

	for _, page := range []string{"3", "0", "abc"} {
		w = env.do(http.MethodGet, "/api/pedidos/?page="+page, token, "")
		assert.Equal(t, http.StatusNotFound, w.Code, page)
	}
}

func TestListOrders_EmptyHistory(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/pedidos/", env.tokenFor(t, "7", "ana"), "")
	require.Equal(t, http.StatusOK, w.Code)

	p, err := wire.DecodeOrderPage(jx.DecodeBytes(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Zero(t, p.Count)
	assert.Empty(t, p.Results)
	assert.False(t, p.HasNext)
}

func TestLoginLimit(t *testing.T) {
	env := newTestEnv(t)
	srv := NewServer(Deps{Users: env.users, Tokens: env.tokens}, Options{
		LoginLimit: newTestLimiter(t, LimitConfig{Max: 2, Window: time.Minute}),
	})
	mux := http.NewServeMux()
	srv.Routes(mux, "/api")

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/login/", strings.NewReader(`{"username":"x","password":"y"}`))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}
