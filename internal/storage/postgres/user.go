package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/auth"
)

const (
	createUserSQL = `INSERT INTO users (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)`

	upsertUserSQL = `INSERT INTO users (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE SET
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash
		RETURNING id`

	findUserByUsernameSQL = `SELECT id, username, email, password_hash
		FROM users WHERE username = $1`
)

var _ auth.Repository = (*UserRepository)(nil)

// UserRepository implements auth.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new account, assigning an id when a.ID is empty. It
// returns auth.ErrUserExists when the username is taken.
func (r *UserRepository) Create(ctx context.Context, a *auth.Account) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := r.pool.Exec(ctx, createUserSQL, a.ID, a.Username, a.Email, a.PasswordHash)
	if err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return auth.ErrUserExists
		}
		return errors.Wrapf(err, "create user %q", a.Username)
	}
	return nil
}

// Upsert stores a, replacing the email and password of an existing account
// with the same username. a.ID is set to the stored id.
func (r *UserRepository) Upsert(ctx context.Context, a *auth.Account) error {
	id := a.ID
	if id == "" {
		id = uuid.New().String()
	}
	if err := r.pool.QueryRow(ctx, upsertUserSQL, id, a.Username, a.Email, a.PasswordHash).Scan(&a.ID); err != nil {
		return errors.Wrapf(err, "upsert user %q", a.Username)
	}
	return nil
}

// FindByUsername returns the account registered under username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	var a auth.Account
	err := r.pool.QueryRow(ctx, findUserByUsernameSQL, username).
		Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, errors.Wrapf(err, "find user %q", username)
	}
	return &a, nil
}
