// Package wire is the JSON codec of the storefront REST contract.
//
// Decoders are lenient: prices may be numbers or decimal strings, ids may be
// numbers or strings, and list endpoints may answer with a bare array or a
// paginated {"results": [...]} envelope. Encoders emit one canonical shape.
package wire

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// DecodeDecimal reads a JSON number or a decimal string. null reads as zero.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(strings.TrimSpace(s))
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	}
}

// EncodeDecimal writes an amount as a fixed two-place decimal string.
func EncodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.StringFixed(2))
}

// DecodeInt reads a JSON integer or an integer string. null reads as zero.
func DecodeInt(d *jx.Decoder) (int, error) {
	switch d.Next() {
	case jx.Null:
		return 0, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		return strconv.Atoi(strings.TrimSpace(s))
	default:
		return d.Int()
	}
}

// DecodeID reads an identifier given as a string or a number.
func DecodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return d.Str()
	}
}

// DecodeOptStr reads a string that may be null.
func DecodeOptStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// decodeList calls item for every element of either a bare array or the
// array stored under one of keys of an envelope object.
func decodeList(d *jx.Decoder, item func(d *jx.Decoder) error, keys ...string) error {
	switch d.Next() {
	case jx.Array:
		return d.Arr(item)
	case jx.Object:
		return d.Obj(func(d *jx.Decoder, key string) error {
			for _, k := range keys {
				if k == key {
					if d.Next() == jx.Null {
						return d.Null()
					}
					return d.Arr(item)
				}
			}
			return d.Skip()
		})
	default:
		return errors.Errorf("expected array or object, got %s", d.Next())
	}
}

func wrapField(err error, key string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "field %q", key)
}
