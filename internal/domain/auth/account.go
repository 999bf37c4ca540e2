package auth

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrUserNotFound is returned when no account matches a lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when registering a taken username.
	ErrUserExists = errors.New("username already taken")
)

// Account is a registered user together with its password hash.
type Account struct {
	User
	PasswordHash string
}

// Repository provides storage of accounts.
type Repository interface {
	Create(ctx context.Context, a *Account) error
	FindByUsername(ctx context.Context, username string) (*Account, error)
}
