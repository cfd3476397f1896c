// Package credentials owns the signed-in user's auth session. It is the only
// place that persists or clears tokens; everything else reads through it.
package credentials

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"agriadvisor/internal/domain"
	"agriadvisor/internal/ports"
)

// Storage keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// Store keeps the current auth session in memory and in durable storage.
type Store struct {
	kv     ports.KeyValueStore
	logger *slog.Logger

	mu        sync.RWMutex
	session   domain.AuthSession
	listeners []func()
}

// New loads any persisted session from kv.
func New(kv ports.KeyValueStore, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{kv: kv, logger: logger}

	access, _, err := kv.Get(KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("load access token: %w", err)
	}
	refresh, _, err := kv.Get(KeyRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	rawUser, ok, err := kv.Get(KeyUser)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	s.session = domain.AuthSession{AccessToken: access, RefreshToken: refresh}
	if ok && rawUser != "" {
		if err := json.Unmarshal([]byte(rawUser), &s.session.User); err != nil {
			logger.Warn("discarding unreadable stored user profile", "error", err)
			s.session.User = domain.UserProfile{}
		}
	}
	return s, nil
}

// Current returns the session and whether it is usable.
func (s *Store) Current() (domain.AuthSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, s.session.Valid()
}

// AccessToken returns the bearer token, empty when signed out.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.AccessToken
}

// Save persists session and makes it current.
func (s *Store) Save(session domain.AuthSession) error {
	rawUser, err := json.Marshal(session.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(KeyAccessToken, session.AccessToken); err != nil {
		return err
	}
	if err := s.kv.Set(KeyRefreshToken, session.RefreshToken); err != nil {
		return err
	}
	if err := s.kv.Set(KeyUser, string(rawUser)); err != nil {
		return err
	}
	s.session = session
	return nil
}

// UpdateAccessToken replaces the access token after a refresh.
func (s *Store) UpdateAccessToken(access string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(KeyAccessToken, access); err != nil {
		return err
	}
	s.session.AccessToken = access
	return nil
}

// UpdateUser replaces the stored profile.
func (s *Store) UpdateUser(user domain.UserProfile) error {
	rawUser, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(KeyUser, string(rawUser)); err != nil {
		return err
	}
	s.session.User = user
	return nil
}

// Invalidate clears the session everywhere and notifies listeners. Calling it
// while already signed out still notifies, so a stray 401 always lands the UI
// in the logged-out state.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.session = domain.AuthSession{}
	if err := s.kv.Delete(KeyAccessToken, KeyRefreshToken, KeyUser); err != nil {
		s.logger.Error("failed to clear stored credentials", "error", err)
	}
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// OnInvalidate registers fn to run after every invalidation.
func (s *Store) OnInvalidate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// AccessExpiry reads the exp claim of the access token. The token is not
// verified, and opaque or exp-less tokens report false.
func (s *Store) AccessExpiry() (time.Time, bool) {
	token := s.AccessToken()
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
