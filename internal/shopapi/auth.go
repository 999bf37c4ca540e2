package shopapi

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/fault"
	"github.com/xenking/kart-storefront/internal/wire"
)

// Login exchanges credentials for a token pair and the user record.
func (c *Client) Login(ctx context.Context, username, password string) (*wire.Tokens, error) {
	const op = "login"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/login/",
		body: func(e *jx.Encoder) {
			wire.EncodeCredentials(e, wire.Credentials{Username: username, Password: password})
		},
	})
	if err != nil {
		return nil, err
	}
	switch {
	case resp.ok():
	case resp.status == http.StatusBadRequest:
		msg, _ := wire.ErrorMessage(resp.body)
		if msg == "" {
			msg = "invalid username or password"
		}
		return nil, &fault.AuthError{Op: op, Message: msg}
	default:
		return nil, unexpected(op, resp)
	}

	tokens, err := wire.DecodeTokens(resp.decoder())
	if err != nil {
		return nil, malformed(op, resp, err)
	}
	return &tokens, nil
}

// Register creates an account. Rejections such as a taken username are
// returned as *fault.BusinessError.
func (c *Client) Register(ctx context.Context, creds wire.Credentials) error {
	const op = "register"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/register/",
		body:   func(e *jx.Encoder) { wire.EncodeCredentials(e, creds) },
	})
	if err != nil {
		return err
	}
	switch {
	case resp.ok():
		return nil
	case resp.status == http.StatusBadRequest || resp.status == http.StatusConflict:
		msg, ok := wire.ErrorMessage(resp.body)
		if !ok {
			msg = "registration rejected"
		}
		return &fault.BusinessError{Message: msg}
	default:
		return unexpected(op, resp)
	}
}
