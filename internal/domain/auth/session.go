package auth

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Keys of the durable session record. Each entry is stored independently;
// absence of KeyAccessToken means logged out.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// User is the identity returned by the backend on login.
type User struct {
	ID       string
	Username string
	Email    string
}

// Session is the authenticated identity and tokens of the current user.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         User
}

// Storage is durable key/value storage scoped to one namespace.
type Storage interface {
	// Get returns the value of key and whether it was present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}

// EncodeUser writes u as a JSON object.
func EncodeUser(e *jx.Encoder, u User) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(u.ID)
	e.FieldStart("username")
	e.Str(u.Username)
	if u.Email != "" {
		e.FieldStart("email")
		e.Str(u.Email)
	}
	e.ObjEnd()
}

// DecodeUser reads a user object. Numeric ids are accepted and kept in
// their textual form.
func DecodeUser(d *jx.Decoder) (User, error) {
	var u User
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			id, err := decodeID(d)
			if err != nil {
				return errors.Wrap(err, "id")
			}
			u.ID = id
		case "username":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "username")
			}
			u.Username = v
		case "email":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "email")
			}
			u.Email = v
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	if u.Username == "" {
		return User{}, errors.New("user record has no username")
	}
	return u, nil
}

func marshalUser(u User) string {
	var e jx.Encoder
	EncodeUser(&e, u)
	return string(e.Bytes())
}

func unmarshalUser(data string) (User, error) {
	return DecodeUser(jx.DecodeStr(data))
}

func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
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
