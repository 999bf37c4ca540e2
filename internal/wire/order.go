package wire

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
)

// EncodeOrderRequest writes the checkout body {"productos": [{"id", "cantidad"}]}.
func EncodeOrderRequest(e *jx.Encoder, items []cart.Item) {
	e.ObjStart()
	e.FieldStart("productos")
	e.ArrStart()
	for _, item := range items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(item.ProductRef())
		e.FieldStart("cantidad")
		e.Int(item.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

// DecodeOrderRequest reads a checkout body. An absent or null "productos"
// yields no items, which asks the server to order its stored cart.
func DecodeOrderRequest(d *jx.Decoder) ([]order.OrderItem, error) {
	var items []order.OrderItem
	if d.Next() == jx.Invalid {
		return nil, nil
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "productos" && key != "items" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var item order.OrderItem
			item.Quantity = 1
			err := d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "id", "producto", "producto_id", "product_id":
					item.ProductID, err = DecodeID(d)
				case "cantidad", "quantity":
					item.Quantity, err = DecodeInt(d)
				default:
					return d.Skip()
				}
				return wrapField(err, key)
			})
			if err != nil {
				return err
			}
			if item.ProductID == "" {
				return errors.New("order line without product id")
			}
			items = append(items, item)
			return nil
		})
	})
	return items, err
}

// EncodeOrder writes an order record.
func EncodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("items")
	e.ArrStart()
	for _, l := range o.Items {
		e.ObjStart()
		e.FieldStart("producto")
		e.Str(l.ProductID)
		e.FieldStart("nombre")
		e.Str(l.Name)
		e.FieldStart("precio")
		EncodeDecimal(e, l.Price)
		e.FieldStart("cantidad")
		e.Int(l.Quantity)
		e.FieldStart("subtotal")
		EncodeDecimal(e, l.Subtotal())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total")
	EncodeDecimal(e, o.Total)
	e.FieldStart("created_at")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}

// DecodeOrder reads an order record.
func DecodeOrder(d *jx.Decoder) (order.Order, error) {
	var o order.Order
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = DecodeID(d)
		case "items", "productos", "detalles":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLineItem(d)
				if err != nil {
					return err
				}
				o.Items = append(o.Items, l)
				return nil
			})
		case "total":
			o.Total, err = DecodeDecimal(d)
		case "created_at", "fecha", "fecha_creacion":
			o.CreatedAt, err = decodeTime(d)
		default:
			return d.Skip()
		}
		return wrapField(err, key)
	})
	if err != nil {
		return order.Order{}, err
	}
	return o, nil
}

func decodeLineItem(d *jx.Decoder) (order.LineItem, error) {
	var l order.LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "producto", "product", "producto_id", "product_id":
			if d.Next() == jx.Object {
				p, perr := DecodeProduct(d)
				if perr != nil {
					return wrapField(perr, key)
				}
				l.ProductID = p.ID
				if l.Name == "" {
					l.Name = p.Name
				}
				if l.Price.IsZero() {
					l.Price = p.Price
				}
				return nil
			}
			l.ProductID, err = DecodeID(d)
		case "nombre", "name":
			l.Name, err = DecodeOptStr(d)
		case "precio", "price":
			l.Price, err = DecodeDecimal(d)
		case "cantidad", "quantity":
			l.Quantity, err = DecodeInt(d)
		default:
			return d.Skip()
		}
		return wrapField(err, key)
	})
	return l, err
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := DecodeOptStr(d)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized time %q", s)
}

// EncodeOrderPage writes {"count", "next", "previous", "results"}. Empty
// next and previous links are written as null.
func EncodeOrderPage(e *jx.Encoder, p order.Page, next, previous string) {
	e.ObjStart()
	e.FieldStart("count")
	e.Int(p.Count)
	e.FieldStart("next")
	encodeLink(e, next)
	e.FieldStart("previous")
	encodeLink(e, previous)
	e.FieldStart("results")
	e.ArrStart()
	for _, o := range p.Results {
		EncodeOrder(e, o)
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeLink(e *jx.Encoder, link string) {
	if link == "" {
		e.Null()
		return
	}
	e.Str(link)
}

// DecodeOrderPage reads a paginated order list. A bare array is accepted
// as a single complete page.
func DecodeOrderPage(d *jx.Decoder) (order.Page, error) {
	var (
		p        order.Page
		hasCount bool
	)
	appendOrder := func(d *jx.Decoder) error {
		o, err := DecodeOrder(d)
		if err != nil {
			return err
		}
		p.Results = append(p.Results, o)
		return nil
	}

	if d.Next() == jx.Array {
		if err := d.Arr(appendOrder); err != nil {
			return order.Page{}, err
		}
		p.Count = len(p.Results)
		return p, nil
	}

	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "count":
			n, err := DecodeInt(d)
			p.Count = n
			hasCount = true
			return wrapField(err, key)
		case "next":
			link, err := DecodeOptStr(d)
			p.HasNext = link != ""
			return wrapField(err, key)
		case "results":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return wrapField(d.Arr(appendOrder), key)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return order.Page{}, err
	}
	if !hasCount {
		p.Count = len(p.Results)
	}
	return p, nil
}
