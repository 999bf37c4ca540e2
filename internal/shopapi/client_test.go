package shopapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/fault"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/wire"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/api/", UserAgent: "kart-test"})
	require.NoError(t, err)
	return c
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com", "://nope"} {
		_, err := New(Config{BaseURL: raw})
		require.Error(t, err, raw)
	}
}

func TestProducts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/productos/", r.URL.Path)
		assert.Equal(t, "cocina", r.URL.Query().Get("categoria"))
		assert.Equal(t, "kart-test", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Empty(t, r.Header.Get("Authorization"))
		reply(http.StatusOK, `{"count":2,"results":[
			{"id":1,"nombre":"Mate","precio":"12.50","stock":3,"categoria":{"nombre":"cocina"},"imagen":"a.jpg"},
			{"id":"2","nombre":"Bombilla","precio":3.99,"stock":"7","imagenes":[{"url":"b.jpg"}]}
		]}`)(w, r)
	})

	products, err := c.Products(context.Background(), "cocina")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "1", products[0].ID)
	assert.Equal(t, "cocina", products[0].Category)
	assert.Equal(t, "a.jpg", products[0].Image())
	assert.True(t, decimal.RequireFromString("3.99").Equal(products[1].Price))
	assert.Equal(t, 7, products[1].Stock)
	assert.Equal(t, "b.jpg", products[1].Image())
}

func TestLogin(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"username":"ana","password":"secret1"}`, string(body))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			reply(http.StatusOK, `{"access":"a","refresh":"r","user":{"id":7,"username":"ana"}}`)(w, r)
		})
		tokens, err := c.Login(context.Background(), "ana", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "a", tokens.Access)
		assert.Equal(t, "7", tokens.User.ID)
	})

	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name:    "BadRequest",
			handler: reply(http.StatusBadRequest, `{"non_field_errors":["Unable to log in"]}`),
			check: func(t *testing.T, err error) {
				var authErr *fault.AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, "Unable to log in", authErr.Message)
			},
		},
		{
			name:    "Unauthorized",
			handler: reply(http.StatusUnauthorized, `{"detail":"invalid username or password"}`),
			check: func(t *testing.T, err error) {
				var authErr *fault.AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, "invalid username or password", authErr.Message)
			},
		},
		{
			name:    "ServerError",
			handler: reply(http.StatusInternalServerError, `oops`),
			check: func(t *testing.T, err error) {
				var fetchErr *fault.FetchError
				require.ErrorAs(t, err, &fetchErr)
				assert.Equal(t, http.StatusInternalServerError, fetchErr.Status)
			},
		},
		{
			name:    "NoAccessToken",
			handler: reply(http.StatusOK, `{"refresh":"r"}`),
			check: func(t *testing.T, err error) {
				var fetchErr *fault.FetchError
				require.ErrorAs(t, err, &fetchErr)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.Login(context.Background(), "ana", "wrong")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRegister(t *testing.T) {
	c := newTestClient(t, reply(http.StatusCreated, `{"id":1,"username":"ana"}`))
	require.NoError(t, c.Register(context.Background(), wire.Credentials{Username: "ana", Password: "secret1"}))

	c = newTestClient(t, reply(http.StatusBadRequest, `{"username":["A user with that username already exists."]}`))
	err := c.Register(context.Background(), wire.Credentials{Username: "ana", Password: "secret1"})
	var biz *fault.BusinessError
	require.ErrorAs(t, err, &biz)
	assert.Equal(t, "username: A user with that username already exists.", biz.Message)
}

func TestFetchCart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			reply(http.StatusUnauthorized, `{"detail":"authentication credentials were not provided"}`)(w, r)
			return
		}
		reply(http.StatusOK, `{"items":[{"id":5,"producto":{"id":"1","nombre":"Mate","precio":"10.00","stock":2},"cantidad":2}],"total":"20.00"}`)(w, r)
	})

	items, err := c.FetchCart(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "5", items[0].ID)
	assert.Equal(t, "1", items[0].ProductRef())
	assert.Equal(t, "20.00", cart.FormatAmount(cart.Total(items)))

	_, err = c.FetchCart(context.Background(), "stale")
	var authErr *fault.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestAddToCart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"producto":"9","cantidad":1}`, string(body))
		reply(http.StatusBadRequest, `{"error":"product 9 does not exist"}`)(w, r)
	})

	err := c.AddToCart(context.Background(), "tok", "9", 1)
	var biz *fault.BusinessError
	require.ErrorAs(t, err, &biz)
	assert.Equal(t, "product 9 does not exist", biz.Message)
}

func TestPlaceOrder(t *testing.T) {
	items := []cart.Item{{
		ID:       "5",
		Product:  &product.Product{ID: "1", Price: decimal.NewFromInt(10), Stock: 3},
		Quantity: 2,
	}}

	t.Run("Created", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"productos":[{"id":"1","cantidad":2}]}`, string(body))
			reply(http.StatusCreated, `{"id":"o-1","items":[{"producto":"1","nombre":"Mate","precio":"10.00","cantidad":2}],"total":"20.00","created_at":"2026-03-01T10:00:00Z"}`)(w, r)
		})
		o, err := c.PlaceOrder(context.Background(), "tok", items)
		require.NoError(t, err)
		assert.Equal(t, "o-1", o.ID)
		assert.Equal(t, "20.00", o.Total.StringFixed(2))
		assert.Equal(t, 2026, o.CreatedAt.Year())
	})

	tests := []struct {
		name    string
		handler http.HandlerFunc
		biz     string
		status  int
	}{
		{name: "ErrorWithSuccessStatus", handler: reply(http.StatusOK, `{"error":"Stock insuficiente"}`), biz: "Stock insuficiente"},
		{name: "ErrorWithBadRequest", handler: reply(http.StatusBadRequest, `{"error":"the cart is empty"}`), biz: "the cart is empty"},
		{name: "ServerError", handler: reply(http.StatusBadGateway, ``), status: http.StatusBadGateway},
		{name: "Malformed", handler: reply(http.StatusCreated, `{"id":`), status: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.PlaceOrder(context.Background(), "tok", items)
			require.Error(t, err)
			if tt.biz != "" {
				var biz *fault.BusinessError
				require.ErrorAs(t, err, &biz)
				assert.Equal(t, tt.biz, biz.Message)
				return
			}
			var fetchErr *fault.FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.status, fetchErr.Status)
		})
	}
}

func TestListOrders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		reply(http.StatusOK, `{"count":6,"next":null,"previous":"http://x/api/pedidos/?page=1","results":[{"id":1,"total":"5.00"}]}`)(w, r)
	})

	p, err := c.ListOrders(context.Background(), "tok", 2)
	require.NoError(t, err)
	assert.Equal(t, 6, p.Count)
	assert.False(t, p.HasNext)
	require.Len(t, p.Results, 1)
	assert.Equal(t, "1", p.Results[0].ID)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(reply(http.StatusOK, `[]`))
	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	srv.Close()

	_, err = c.Products(context.Background(), "")
	var fetchErr *fault.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.Status)
	assert.NotNil(t, errors.Unwrap(fetchErr))
}

func TestCanceledContext(t *testing.T) {
	c := newTestClient(t, reply(http.StatusOK, `[]`))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Products(ctx, "")
	require.ErrorIs(t, err, context.Canceled)
}
