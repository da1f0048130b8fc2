// Package oauth implements the authorization-server half of OAuth 2.1 +
// PKCE + Dynamic Client Registration needed for a hosted LLM connector to
// attach to the MCP HTTP transport: discovery, DCR, authorize, token,
// refresh, userinfo, and the vendor start-auth shortcut.
package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client is a dynamically registered OAuth client.
type Client struct {
	ClientID                string
	ClientSecret            string // empty for public clients
	ClientName              string
	RedirectURIs            []string
	GrantTypes              []string
	TokenEndpointAuthMethod string
	SoftwareID              string
	CreatedAt               time.Time
}

func (c *Client) confidential() bool {
	return c.ClientSecret != ""
}

func (c *Client) hasRedirectURI(uri string) bool {
	for _, r := range c.RedirectURIs {
		if r == uri {
			return true
		}
	}
	return false
}

// ClientStore holds dynamically registered clients for the process
// lifetime, guarded by its own lock — the same per-map-lock shape used
// throughout this package for codes and tokens.
type ClientStore struct {
	mu  sync.RWMutex
	byID       map[string]*Client
	byIdemKey  map[string]string // (client_name, redirect_uris, software_id) -> client_id
}

func NewClientStore() *ClientStore {
	return &ClientStore{
		byID:      make(map[string]*Client),
		byIdemKey: make(map[string]string),
	}
}

// Register performs DCR. When softwareID is non-empty and a prior
// registration exists for the same (clientName, redirectURIs, softwareID)
// tuple, that client is returned unchanged instead of minting a new one.
func (s *ClientStore) Register(clientName string, redirectURIs []string, grantTypes []string, authMethod, softwareID string) *Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if softwareID != "" {
		key := idempotencyKey(clientName, redirectURIs, softwareID)
		if id, ok := s.byIdemKey[key]; ok {
			if existing, ok := s.byID[id]; ok {
				return existing
			}
		}
	}

	c := &Client{
		ClientID:                uuid.NewString(),
		ClientName:              clientName,
		RedirectURIs:            redirectURIs,
		GrantTypes:              grantTypes,
		TokenEndpointAuthMethod: authMethod,
		SoftwareID:              softwareID,
		CreatedAt:               time.Now(),
	}
	if authMethod != "none" {
		c.ClientSecret = randomToken(32)
	}

	s.byID[c.ClientID] = c
	if softwareID != "" {
		s.byIdemKey[idempotencyKey(clientName, redirectURIs, softwareID)] = c.ClientID
	}
	return c
}

func (s *ClientStore) Get(clientID string) (*Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[clientID]
	return c, ok
}

func idempotencyKey(clientName string, redirectURIs []string, softwareID string) string {
	key := clientName + "|" + softwareID
	for _, u := range redirectURIs {
		key += "|" + u
	}
	return key
}

// randomToken returns a URL-safe base64 opaque token of n random bytes.
// Opaque OAuth tokens deliberately don't reuse the JWT machinery in the
// optional session id issuer (session_jwt.go) — access and refresh tokens here carry
// no claims, they are bearer keys into the token store.
func randomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("oauth: crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
