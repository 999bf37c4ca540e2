package devserver

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/wire"
)

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := wire.DecodeOrderRequest(d)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	o, err := s.Orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID: userID(r),
		Items:  items,
	})
	if err != nil {
		if msg, ok := orderRejection(err); ok {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		writeInternal(w, r, err)
		return
	}

	zctx.From(r.Context()).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("total", o.Total.StringFixed(2)),
	)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { wire.EncodeOrder(e, *o) })
}

// orderRejection maps business failures of order placement to the message
// shown to the user.
func orderRejection(err error) (string, bool) {
	var (
		notFound *order.ProductNotFoundError
		badQty   *order.InvalidQuantityError
		stock    *order.InsufficientStockError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems):
		return err.Error(), true
	case errors.As(err, &notFound):
		return notFound.Error(), true
	case errors.As(err, &badQty):
		return badQty.Error(), true
	case errors.As(err, &stock):
		return stock.Error(), true
	default:
		return "", false
	}
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeDetail(w, http.StatusNotFound, "invalid page")
			return
		}
		page = n
	}

	p, err := s.Orders.ListPage(r.Context(), userID(r), page, s.pageSize)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if page > 1 && len(p.Results) == 0 {
		writeDetail(w, http.StatusNotFound, "invalid page")
		return
	}

	var next, previous string
	if p.HasNext {
		next = pageLink(r, page+1)
	}
	if page > 1 {
		previous = pageLink(r, page-1)
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeOrderPage(e, *p, next, previous) })
}

// pageLink returns the absolute URL of another page of the current listing.
func pageLink(r *http.Request, page int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(page))
	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: q.Encode(),
	}
	return u.String()
}
