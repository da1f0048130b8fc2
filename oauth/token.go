package oauth

import (
	"sync"
	"time"
)

// AccessTokenTTL and RefreshTokenTTL are the fixed lifetimes for issued
// OAuth tokens: access tokens live 1 hour, refresh tokens 7 days.
const (
	AccessTokenTTL  = 1 * time.Hour
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// grant is one issued access/refresh token pair.
type grant struct {
	AccessToken     string
	RefreshToken    string
	ClientID        string
	Scope           string
	Subject         string
	AccessExpiresAt time.Time
	RefreshExpires  time.Time
	revoked         bool
}

func (g *grant) accessExpired(now time.Time) bool  { return now.After(g.AccessExpiresAt) }
func (g *grant) refreshExpired(now time.Time) bool { return now.After(g.RefreshExpires) }

// TokenStore holds issued grants keyed by both access and refresh token, so
// userinfo/authorization lookups and refresh-token redemption are both O(1).
// Refresh is rotating: each successful refresh invalidates the old pair and
// mints a new one, matching the corpus author's general "never reuse a
// consumed credential" posture (see CodeStore.Redeem's single-use code).
type TokenStore struct {
	mu          sync.RWMutex
	byAccess    map[string]*grant
	byRefresh   map[string]*grant
}

func NewTokenStore() *TokenStore {
	return &TokenStore{
		byAccess:  make(map[string]*grant),
		byRefresh: make(map[string]*grant),
	}
}

func (s *TokenStore) Issue(clientID, scope, subject string) *grant {
	now := time.Now()
	g := &grant{
		AccessToken:     randomToken(32),
		RefreshToken:    randomToken(32),
		ClientID:        clientID,
		Scope:           scope,
		Subject:         subject,
		AccessExpiresAt: now.Add(AccessTokenTTL),
		RefreshExpires:  now.Add(RefreshTokenTTL),
	}
	s.mu.Lock()
	s.byAccess[g.AccessToken] = g
	s.byRefresh[g.RefreshToken] = g
	s.mu.Unlock()
	return g
}

// Authenticate resolves a bearer access token to its grant, failing if
// unknown, revoked, or expired.
func (s *TokenStore) Authenticate(accessToken string) (*grant, bool) {
	s.mu.RLock()
	g, ok := s.byAccess[accessToken]
	s.mu.RUnlock()
	if !ok || g.revoked || g.accessExpired(time.Now()) {
		return nil, false
	}
	return g, true
}

// Refresh rotates a refresh token: the presented token is revoked and a
// fresh access/refresh pair is issued in its place.
func (s *TokenStore) Refresh(refreshToken, clientID string) (*grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.byRefresh[refreshToken]
	if !ok || g.revoked {
		return nil, &ErrInvalidGrant{Reason: "unknown refresh token"}
	}
	if g.refreshExpired(time.Now()) {
		return nil, &ErrInvalidGrant{Reason: "refresh token expired"}
	}
	if g.ClientID != clientID {
		return nil, &ErrInvalidGrant{Reason: "client_id mismatch"}
	}

	g.revoked = true
	delete(s.byAccess, g.AccessToken)
	delete(s.byRefresh, g.RefreshToken)

	now := time.Now()
	next := &grant{
		AccessToken:     randomToken(32),
		RefreshToken:    randomToken(32),
		ClientID:        g.ClientID,
		Scope:           g.Scope,
		Subject:         g.Subject,
		AccessExpiresAt: now.Add(AccessTokenTTL),
		RefreshExpires:  now.Add(RefreshTokenTTL),
	}
	s.byAccess[next.AccessToken] = next
	s.byRefresh[next.RefreshToken] = next
	return next, nil
}

// Sweep drops grants whose refresh token has also expired — the access
// token is the shorter-lived half, so once the refresh half is gone there
// is no way to reach the grant legitimately again.
func (s *TokenStore) Sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for refresh, g := range s.byRefresh {
		if g.revoked || g.refreshExpired(now) {
			delete(s.byRefresh, refresh)
			delete(s.byAccess, g.AccessToken)
		}
	}
}
