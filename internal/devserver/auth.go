package devserver

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/wire"
)

const minPasswordLen = 6

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	creds, err := wire.DecodeCredentials(d)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if creds.Username == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	account, err := s.Users.FindByUsername(r.Context(), creds.Username)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		writeDetail(w, http.StatusUnauthorized, "invalid username or password")
		return
	case err != nil:
		writeInternal(w, r, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(creds.Password)); err != nil {
		writeDetail(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	access, refresh, err := s.Tokens.Issue(account.User)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("User logged in", zap.String("username", account.Username))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		wire.EncodeTokens(e, wire.Tokens{Access: access, Refresh: refresh, User: account.User})
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	creds, err := wire.DecodeCredentials(d)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	creds.Username = strings.TrimSpace(creds.Username)
	switch {
	case creds.Username == "":
		writeError(w, http.StatusBadRequest, "username is required")
		return
	case len(creds.Password) < minPasswordLen:
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	cost := s.bcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), cost)
	if err != nil {
		writeInternal(w, r, errors.Wrap(err, "hash password"))
		return
	}

	account := &auth.Account{
		User:         auth.User{Username: creds.Username, Email: creds.Email},
		PasswordHash: string(hash),
	}
	if err := s.Users.Create(r.Context(), account); err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			writeError(w, http.StatusBadRequest, "a user with that username already exists")
			return
		}
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { auth.EncodeUser(e, account.User) })
}
