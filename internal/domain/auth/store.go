package auth

import (
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// Store holds the current session and mirrors it to durable Storage.
type Store struct {
	storage Storage
	lg      *zap.Logger

	mu      sync.RWMutex
	session *Session
}

// NewStore creates a logged-out Store. Call Rehydrate to restore a
// persisted session.
func NewStore(storage Storage, lg *zap.Logger) *Store {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Store{storage: storage, lg: lg}
}

// Rehydrate restores the session from storage. A partial or unreadable
// record leaves the store logged out and is purged. Storage I/O failures
// also leave the store logged out and are returned.
func (s *Store) Rehydrate() error {
	s.set(nil)

	access, ok, err := s.storage.Get(KeyAccessToken)
	if err != nil {
		return errors.Wrap(err, "read access token")
	}
	if !ok || access == "" {
		return nil
	}

	refresh, _, err := s.storage.Get(KeyRefreshToken)
	if err != nil {
		return errors.Wrap(err, "read refresh token")
	}
	raw, ok, err := s.storage.Get(KeyUser)
	if err != nil {
		return errors.Wrap(err, "read user")
	}
	if !ok {
		s.lg.Warn("Stored session has no user record, treating as logged out")
		return s.purge()
	}

	user, err := unmarshalUser(raw)
	if err != nil {
		s.lg.Warn("Stored user record is unreadable, treating as logged out", zap.Error(err))
		return s.purge()
	}

	s.set(&Session{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	})
	s.lg.Debug("Session restored", zap.String("username", user.Username))
	return nil
}

// Login persists the tokens and user, then makes them current. Any stored
// access token is removed first and the new one is written last, so an
// interrupted write reads back as logged out. A failed Login leaves the
// store logged out.
func (s *Store) Login(access, refresh string, user User) error {
	if access == "" {
		return errors.New("empty access token")
	}
	if err := s.persist(access, refresh, user); err != nil {
		s.set(nil)
		return err
	}

	s.set(&Session{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	})
	return nil
}

func (s *Store) persist(access, refresh string, user User) error {
	if err := s.storage.Delete(KeyAccessToken); err != nil {
		return errors.Wrap(err, "delete previous access token")
	}
	if err := s.storage.Set(KeyUser, marshalUser(user)); err != nil {
		return errors.Wrap(err, "persist user")
	}
	if err := s.storage.Set(KeyRefreshToken, refresh); err != nil {
		return errors.Wrap(err, "persist refresh token")
	}
	if err := s.storage.Set(KeyAccessToken, access); err != nil {
		return errors.Wrap(err, "persist access token")
	}
	return nil
}

// Logout forgets the session in memory and in storage. The in-memory
// session is cleared even if storage fails.
func (s *Store) Logout() error {
	s.set(nil)
	return s.purge()
}

// IsAuthenticated reports whether an access token is present.
func (s *Store) IsAuthenticated() bool {
	return s.AccessToken() != ""
}

// AccessToken returns the current bearer token, or "" when logged out.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return ""
	}
	return s.session.AccessToken
}

// Session returns a copy of the current session, or nil when logged out.
func (s *Store) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

func (s *Store) set(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
}

// purge deletes the access token first so a partial purge reads as logged out.
func (s *Store) purge() error {
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyUser} {
		if err := s.storage.Delete(key); err != nil {
			return errors.Wrapf(err, "delete %s", key)
		}
	}
	return nil
}
