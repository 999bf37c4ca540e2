package devserver

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/wire"
)

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.Products.List(r.Context(), product.Filter{
		Category: r.URL.Query().Get("categoria"),
	})
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeProductList(e, products) })
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	s.writeCart(w, r, http.StatusOK)
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	productID, qty, err := wire.DecodeAddToCart(d)
	switch {
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case qty < 1:
		writeError(w, http.StatusBadRequest, "cantidad must be at least 1")
		return
	}

	if err := s.Carts.Add(r.Context(), userID(r), productID, qty); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "product "+productID+" does not exist")
			return
		}
		writeInternal(w, r, err)
		return
	}
	s.writeCart(w, r, http.StatusOK)
}

func (s *Server) writeCart(w http.ResponseWriter, r *http.Request, status int) {
	items, err := s.Carts.List(r.Context(), userID(r))
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, status, func(e *jx.Encoder) { wire.EncodeCart(e, items) })
}
