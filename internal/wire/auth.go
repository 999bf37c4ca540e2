package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/auth"
)

// Credentials is the login and registration body.
type Credentials struct {
	Username string
	Password string
	Email    string
}

// EncodeCredentials writes {"username", "password"[, "email"]}.
func EncodeCredentials(e *jx.Encoder, c Credentials) {
	e.ObjStart()
	e.FieldStart("username")
	e.Str(c.Username)
	e.FieldStart("password")
	e.Str(c.Password)
	if c.Email != "" {
		e.FieldStart("email")
		e.Str(c.Email)
	}
	e.ObjEnd()
}

// DecodeCredentials reads a login or registration body.
func DecodeCredentials(d *jx.Decoder) (Credentials, error) {
	var c Credentials
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "username":
			c.Username, err = DecodeOptStr(d)
		case "password":
			c.Password, err = DecodeOptStr(d)
		case "email":
			c.Email, err = DecodeOptStr(d)
		default:
			return d.Skip()
		}
		return wrapField(err, key)
	})
	return c, err
}

// Tokens is the login response.
type Tokens struct {
	Access  string
	Refresh string
	User    auth.User
}

// EncodeTokens writes {"access", "refresh", "user"}.
func EncodeTokens(e *jx.Encoder, t Tokens) {
	e.ObjStart()
	e.FieldStart("access")
	e.Str(t.Access)
	e.FieldStart("refresh")
	e.Str(t.Refresh)
	e.FieldStart("user")
	auth.EncodeUser(e, t.User)
	e.ObjEnd()
}

// DecodeTokens reads a login response.
func DecodeTokens(d *jx.Decoder) (Tokens, error) {
	var t Tokens
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "access":
			t.Access, err = d.Str()
		case "refresh":
			t.Refresh, err = DecodeOptStr(d)
		case "user":
			t.User, err = auth.DecodeUser(d)
		default:
			return d.Skip()
		}
		return wrapField(err, key)
	})
	if err != nil {
		return Tokens{}, err
	}
	if t.Access == "" {
		return Tokens{}, errors.New("login response has no access token")
	}
	return t, nil
}
