package devserver

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/xenking/kart-storefront/internal/domain/auth"
)

// Token kinds carried in the token_type claim.
const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// TokenConfig configures token signing.
type TokenConfig struct {
	Secret     string        `usage:"HMAC secret for signing tokens (STOREFRONT_DEV_TOKENS_SECRET)"`
	Issuer     string        `default:"kart-storefront-dev" usage:"Token issuer"`
	AccessTTL  time.Duration `default:"15m" usage:"Access token lifetime" flag:"access-ttl"`
	RefreshTTL time.Duration `default:"168h" usage:"Refresh token lifetime" flag:"refresh-ttl"`
}

// Claims are the JWT claims issued by the dev backend.
type Claims struct {
	jwt.RegisteredClaims
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
}

// Tokens issues and verifies HS256 token pairs.
type Tokens struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokens creates a Tokens from cfg.
func NewTokens(cfg TokenConfig) (*Tokens, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Tokens{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

// Issue signs an access and a refresh token for u.
func (t *Tokens) Issue(u auth.User) (access, refresh string, err error) {
	now := t.now()
	if access, err = t.sign(u, tokenAccess, now, t.accessTTL); err != nil {
		return "", "", errors.Wrap(err, "sign access token")
	}
	if refresh, err = t.sign(u, tokenRefresh, now, t.refreshTTL); err != nil {
		return "", "", errors.Wrap(err, "sign refresh token")
	}
	return access, refresh, nil
}

func (t *Tokens) sign(u auth.User, kind string, now time.Time, ttl time.Duration) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    t.issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username:  u.Username,
		TokenType: kind,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks an access token and returns its claims.
func (t *Tokens) Verify(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	var claims Claims
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrInvalidToken
	case claims.TokenType != tokenAccess || claims.Subject == "":
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
