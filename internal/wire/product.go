package wire

import (
	"slices"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

// EncodeProduct writes a product record.
func EncodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("nombre")
	e.Str(p.Name)
	e.FieldStart("descripcion")
	e.Str(p.Description)
	e.FieldStart("precio")
	EncodeDecimal(e, p.Price)
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.FieldStart("categoria")
	e.Str(p.Category)
	e.FieldStart("imagen")
	if img := p.Image(); img != "" {
		e.Str(img)
	} else {
		e.Null()
	}
	e.FieldStart("imagenes")
	e.ArrStart()
	for _, img := range p.Images {
		e.Str(img)
	}
	e.ArrEnd()
	e.ObjEnd()
}

// EncodeProductList writes products inside a {"count", "results"} envelope.
func EncodeProductList(e *jx.Encoder, products []product.Product) {
	e.ObjStart()
	e.FieldStart("count")
	e.Int(len(products))
	e.FieldStart("results")
	e.ArrStart()
	for _, p := range products {
		EncodeProduct(e, p)
	}
	e.ArrEnd()
	e.ObjEnd()
}

// DecodeProduct reads a product record.
func DecodeProduct(d *jx.Decoder) (product.Product, error) {
	var (
		p       product.Product
		primary string
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = DecodeID(d)
		case "nombre", "name":
			p.Name, err = DecodeOptStr(d)
		case "descripcion", "description":
			p.Description, err = DecodeOptStr(d)
		case "precio", "price":
			p.Price, err = DecodeDecimal(d)
		case "stock":
			p.Stock, err = DecodeInt(d)
		case "categoria", "category":
			p.Category, err = decodeCategory(d)
		case "imagen", "image":
			primary, err = decodeImage(d)
		case "imagenes", "images":
			p.Images, err = decodeImages(d)
		default:
			return d.Skip()
		}
		return wrapField(err, key)
	})
	if err != nil {
		return product.Product{}, err
	}
	if primary != "" && !slices.Contains(p.Images, primary) {
		p.Images = append([]string{primary}, p.Images...)
	}
	return p, nil
}

// DecodeProducts reads a bare product array or a {"results": [...]} envelope.
func DecodeProducts(d *jx.Decoder) ([]product.Product, error) {
	products := []product.Product{}
	err := decodeList(d, func(d *jx.Decoder) error {
		p, err := DecodeProduct(d)
		if err != nil {
			return err
		}
		products = append(products, p)
		return nil
	}, "results", "productos")
	if err != nil {
		return nil, err
	}
	return products, nil
}

// decodeCategory accepts a name, a numeric id or a nested {"nombre"} object.
func decodeCategory(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Object:
		var name string
		err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "nombre", "name":
				v, err := DecodeOptStr(d)
				name = v
				return err
			default:
				return d.Skip()
			}
		})
		return name, err
	default:
		return DecodeID(d)
	}
}

// decodeImage accepts a URL string or an object holding one.
func decodeImage(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.Object:
		var url string
		err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "url", "imagen", "image":
				v, err := DecodeOptStr(d)
				if url == "" {
					url = v
				}
				return err
			default:
				return d.Skip()
			}
		})
		return url, err
	default:
		return d.Str()
	}
}

func decodeImages(d *jx.Decoder) ([]string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var images []string
	err := d.Arr(func(d *jx.Decoder) error {
		img, err := decodeImage(d)
		if err != nil {
			return err
		}
		if img != "" {
			images = append(images, img)
		}
		return nil
	})
	return images, err
}
