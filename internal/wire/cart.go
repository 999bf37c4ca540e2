package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

// EncodeCart writes {"items": [...], "total"}.
func EncodeCart(e *jx.Encoder, items []cart.Item) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range items {
		encodeCartItem(e, item)
	}
	e.ArrEnd()
	e.FieldStart("total")
	EncodeDecimal(e, cart.Total(items))
	e.ObjEnd()
}

func encodeCartItem(e *jx.Encoder, item cart.Item) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(item.ID)
	e.FieldStart("producto")
	if item.Product != nil {
		EncodeProduct(e, *item.Product)
	} else {
		e.Str(item.ProductRef())
	}
	e.FieldStart("cantidad")
	e.Int(item.Quantity)
	e.ObjEnd()
}

// DecodeCartItems reads a bare item array or an {"items": [...]} envelope.
func DecodeCartItems(d *jx.Decoder) ([]cart.Item, error) {
	items := []cart.Item{}
	err := decodeList(d, func(d *jx.Decoder) error {
		item, err := decodeCartItem(d)
		if err != nil {
			return err
		}
		items = append(items, item)
		return nil
	}, "items", "productos", "results")
	if err != nil {
		return nil, err
	}
	return items, nil
}

func decodeCartItem(d *jx.Decoder) (cart.Item, error) {
	var item cart.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			item.ID, err = DecodeID(d)
		case "producto", "product":
			if d.Next() == jx.Object {
				p, perr := DecodeProduct(d)
				if perr != nil {
					return wrapField(perr, key)
				}
				item.Product = &p
				item.ProductID = p.ID
				return nil
			}
			item.ProductID, err = DecodeID(d)
		case "producto_id", "product_id":
			item.ProductID, err = DecodeID(d)
		case "cantidad", "quantity":
			item.Quantity, err = DecodeInt(d)
		default:
			return d.Skip()
		}
		return wrapField(err, key)
	})
	if err != nil {
		return cart.Item{}, err
	}
	if item.ID == "" {
		item.ID = item.ProductRef()
	}
	if item.ID == "" {
		return cart.Item{}, errors.New("cart item has neither id nor product")
	}
	return item, nil
}

// EncodeAddToCart writes {"producto", "cantidad"}.
func EncodeAddToCart(e *jx.Encoder, productID string, qty int) {
	e.ObjStart()
	e.FieldStart("producto")
	e.Str(productID)
	e.FieldStart("cantidad")
	e.Int(qty)
	e.ObjEnd()
}

// DecodeAddToCart reads {"producto", "cantidad"}. A missing quantity means 1.
func DecodeAddToCart(d *jx.Decoder) (productID string, qty int, err error) {
	qty = 1
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "producto", "producto_id", "product_id":
			productID, err = DecodeID(d)
		case "cantidad", "quantity":
			qty, err = DecodeInt(d)
		default:
			return d.Skip()
		}
		return wrapField(err, key)
	})
	if err != nil {
		return "", 0, err
	}
	if productID == "" {
		return "", 0, errors.New("producto is required")
	}
	return productID, qty, nil
}
