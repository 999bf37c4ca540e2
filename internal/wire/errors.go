package wire

import (
	"strings"

	"github.com/go-faster/jx"
)

// EncodeError writes {"error": msg}.
func EncodeError(e *jx.Encoder, msg string) {
	e.ObjStart()
	e.FieldStart("error")
	e.Str(msg)
	e.ObjEnd()
}

// ErrorMessage extracts a human-readable message from an error body. It
// understands {"error"}, {"detail"}, {"message"} and field error maps such
// as {"username": ["already taken"]}. The second result is false when the
// body carries no message.
func ErrorMessage(data []byte) (string, bool) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return "", false
	}

	var (
		direct string
		fields []string
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch d.Next() {
		case jx.String:
			v, err := d.Str()
			if err != nil {
				return err
			}
			switch key {
			case "error", "detail", "message":
				if direct == "" {
					direct = v
				}
			}
			return nil
		case jx.Array:
			return d.Arr(func(d *jx.Decoder) error {
				if d.Next() != jx.String {
					return d.Skip()
				}
				v, err := d.Str()
				if err != nil {
					return err
				}
				if key == "error" || key == "non_field_errors" || key == "detail" {
					fields = append(fields, v)
				} else {
					fields = append(fields, key+": "+v)
				}
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return "", false
	}
	if direct != "" {
		return direct, true
	}
	if len(fields) > 0 {
		return strings.Join(fields, "; "), true
	}
	return "", false
}

// HasErrorField reports whether an object body carries a non-empty
// top-level "error" member.
func HasErrorField(data []byte) bool {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return false
	}
	found := false
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		if key != "error" {
			return d.Skip()
		}
		switch d.Next() {
		case jx.Null:
			return d.Null()
		case jx.String:
			v, err := d.Str()
			found = err == nil && v != ""
			return err
		default:
			found = true
			return d.Skip()
		}
	})
	return found
}
