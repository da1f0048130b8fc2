package oauth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// sweepInterval controls how often expired codes and grants are dropped.
const sweepInterval = 5 * time.Minute

// Provider wires together the client/code/token stores behind the HTTP
// routes a hosted LLM's connector flow drives. Each
// store guards its own map with its own lock — the same per-map-lock shape
// the rest of this codebase uses for session state — so the provider
// itself holds no lock of its own.
type Provider struct {
	Issuer              string // PUBLIC_URL, used to build absolute endpoint URLs
	AutoApproveClients  []string
	AutoApproveRedirect []string
	SkipOAuth           bool
	Logger              *slog.Logger

	Clients *ClientStore
	Codes   *CodeStore
	Tokens  *TokenStore

	stop chan struct{}
}

// NewProvider builds a Provider and starts its background sweeper.
func NewProvider(issuer string, autoApproveClients, autoApproveRedirects []string, skipOAuth bool, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{
		Issuer:              strings.TrimSuffix(issuer, "/"),
		AutoApproveClients:  autoApproveClients,
		AutoApproveRedirect: autoApproveRedirects,
		SkipOAuth:           skipOAuth,
		Logger:              logger,
		Clients:             NewClientStore(),
		Codes:               NewCodeStore(),
		Tokens:              NewTokenStore(),
		stop:                make(chan struct{}),
	}
	go p.sweepLoop()
	return p
}

func (p *Provider) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.Codes.Sweep()
			p.Tokens.Sweep()
		case <-p.stop:
			return
		}
	}
}

func (p *Provider) Stop() { close(p.stop) }

// Endpoints lists the routes this provider mounts, for the health
// document's oauth.endpoints field.
func (p *Provider) Endpoints() []string {
	return []string{
		"/.well-known/oauth-authorization-server",
		"/.well-known/oauth-protected-resource",
		"/oauth/register",
		"/oauth/authorize",
		"/oauth/token",
		"/oauth/userinfo",
	}
}

func (p *Provider) url(path string) string { return p.Issuer + path }

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeOAuthError(w http.ResponseWriter, status int, errCode, description string) {
	writeJSON(w, status, map[string]string{
		"error":             errCode,
		"error_description": description,
	})
}

// HandleAuthorizationServerMetadata serves
// /.well-known/oauth-authorization-server (RFC 8414).
func (p *Provider) HandleAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"issuer":                                p.Issuer,
		"authorization_endpoint":                p.url("/oauth/authorize"),
		"token_endpoint":                        p.url("/oauth/token"),
		"registration_endpoint":                 p.url("/oauth/register"),
		"userinfo_endpoint":                     p.url("/oauth/userinfo"),
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code", "refresh_token"},
		"code_challenge_methods_supported":      []string{"S256", "plain"},
		"token_endpoint_auth_methods_supported": []string{"none", "client_secret_post"},
		"scopes_supported":                      []string{"read"},
	})
}

// HandleProtectedResourceMetadata serves /.well-known/oauth-protected-resource,
// pointing clients back at this same process as its own authorization server.
func (p *Provider) HandleProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resource":              p.Issuer,
		"authorization_servers": []string{p.Issuer},
	})
}

type registerRequest struct {
	ClientName              string   `json:"client_name"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	SoftwareID              string   `json:"software_id"`
}

// HandleRegister implements RFC 7591 dynamic client registration.
func (p *Provider) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_client_metadata", "malformed JSON body")
		return
	}
	if req.ClientName == "" || len(req.RedirectURIs) == 0 {
		writeOAuthError(w, http.StatusBadRequest, "invalid_client_metadata", "client_name and redirect_uris are required")
		return
	}
	if req.TokenEndpointAuthMethod == "" {
		req.TokenEndpointAuthMethod = "none"
	}
	if len(req.GrantTypes) == 0 {
		req.GrantTypes = []string{"authorization_code", "refresh_token"}
	}

	c := p.Clients.Register(req.ClientName, req.RedirectURIs, req.GrantTypes, req.TokenEndpointAuthMethod, req.SoftwareID)

	body := map[string]interface{}{
		"client_id":                  c.ClientID,
		"client_name":                c.ClientName,
		"redirect_uris":              c.RedirectURIs,
		"grant_types":                c.GrantTypes,
		"token_endpoint_auth_method": c.TokenEndpointAuthMethod,
	}
	if c.ClientSecret != "" {
		body["client_secret"] = c.ClientSecret
	}
	p.Logger.Info("oauth client registered", "client_id", c.ClientID, "client_name", c.ClientName)
	writeJSON(w, http.StatusCreated, body)
}

// autoApprove reports whether clientID or redirectURI matches the
// configured hosted-LLM allow-list, letting a trusted client skip the
// consent page. The decision is logged at the call site since it bypasses
// user consent.
func (p *Provider) autoApprove(clientID, redirectURI string) bool {
	for _, id := range p.AutoApproveClients {
		if id == clientID {
			return true
		}
	}
	for _, uri := range p.AutoApproveRedirect {
		if uri == redirectURI {
			return true
		}
	}
	return false
}

// HandleAuthorize implements /oauth/authorize. Consent is rendered for
// unrecognized clients; the auto-approval allow-list skips straight to
// minting the code, since a second consent screen would break the hosted
// LLM's own redirect loop.
func (p *Provider) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := q.Get("client_id")
	redirectURI := q.Get("redirect_uri")
	responseType := q.Get("response_type")
	codeChallenge := q.Get("code_challenge")
	codeChallengeMethod := q.Get("code_challenge_method")
	scope := q.Get("scope")
	state := q.Get("state")

	client, ok := p.Clients.Get(clientID)
	if !ok {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "unknown client_id")
		return
	}
	if !client.hasRedirectURI(redirectURI) {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "redirect_uri does not match registration")
		return
	}
	if responseType != "code" {
		p.redirectError(w, r, redirectURI, state, "unsupported_response_type", "only response_type=code is supported")
		return
	}
	if codeChallengeMethod == "" {
		codeChallengeMethod = "plain"
	}
	if codeChallenge == "" && !client.confidential() {
		p.redirectError(w, r, redirectURI, state, "invalid_request", "code_challenge is required for public clients")
		return
	}
	if codeChallengeMethod == "plain" && !client.confidential() {
		p.redirectError(w, r, redirectURI, state, "invalid_request", "plain PKCE is only permitted for confidential clients")
		return
	}

	if !p.autoApprove(clientID, redirectURI) && q.Get("consent") != "approve" {
		p.renderConsent(w, r, client, q)
		return
	}
	if p.autoApprove(clientID, redirectURI) {
		p.Logger.Info("oauth auto-approved", "client_id", clientID, "redirect_uri", redirectURI)
	}

	code := p.Codes.Issue(clientID, redirectURI, scope, codeChallenge, codeChallengeMethod)

	dest, err := url.Parse(redirectURI)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not a valid URL")
		return
	}
	dq := dest.Query()
	dq.Set("code", code.Code)
	if state != "" {
		dq.Set("state", state)
	}
	dest.RawQuery = dq.Encode()
	http.Redirect(w, r, dest.String(), http.StatusFound)
}

func (p *Provider) redirectError(w http.ResponseWriter, r *http.Request, redirectURI, state, errCode, description string) {
	dest, err := url.Parse(redirectURI)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, errCode, description)
		return
	}
	dq := dest.Query()
	dq.Set("error", errCode)
	dq.Set("error_description", description)
	if state != "" {
		dq.Set("state", state)
	}
	dest.RawQuery = dq.Encode()
	http.Redirect(w, r, dest.String(), http.StatusFound)
}

// renderConsent serves a minimal HTML consent page that re-submits the
// original query string plus consent=approve back to this same handler.
func (p *Provider) renderConsent(w http.ResponseWriter, r *http.Request, client *Client, q url.Values) {
	approveQuery := url.Values{}
	for k, v := range q {
		approveQuery[k] = v
	}
	approveQuery.Set("consent", "approve")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html><html><body>` +
		`<h1>Authorize ` + htmlEscape(client.ClientName) + `</h1>` +
		`<p>This application is requesting access to your knowledge corpus.</p>` +
		`<form method="GET" action="/oauth/authorize">` +
		hiddenFields(approveQuery) +
		`<button type="submit">Approve</button>` +
		`</form></body></html>`))
}

func hiddenFields(q url.Values) string {
	var b strings.Builder
	for k, values := range q {
		for _, v := range values {
			b.WriteString(`<input type="hidden" name="`)
			b.WriteString(htmlEscape(k))
			b.WriteString(`" value="`)
			b.WriteString(htmlEscape(v))
			b.WriteString(`">`)
		}
	}
	return b.String()
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// HandleToken implements /oauth/token for both the authorization_code and
// refresh_token grants.
func (p *Provider) HandleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		p.handleAuthorizationCodeGrant(w, r)
	case "refresh_token":
		p.handleRefreshGrant(w, r)
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "grant_type must be authorization_code or refresh_token")
	}
}

func (p *Provider) clientAuth(r *http.Request) (string, *Client, bool) {
	clientID := r.PostForm.Get("client_id")
	client, ok := p.Clients.Get(clientID)
	if !ok {
		return clientID, nil, false
	}
	if client.confidential() {
		secret := r.PostForm.Get("client_secret")
		if secret == "" || secret != client.ClientSecret {
			return clientID, client, false
		}
	}
	return clientID, client, true
}

func (p *Provider) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request) {
	clientID, _, ok := p.clientAuth(r)
	if !ok {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	code := r.PostForm.Get("code")
	verifier := r.PostForm.Get("code_verifier")

	redeemed, err := p.Codes.Redeem(code, clientID, verifier)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", err.Error())
		return
	}

	g := p.Tokens.Issue(clientID, redeemed.Scope, clientID)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(AccessTokenTTL.Seconds()),
		Scope:        g.Scope,
	})
}

func (p *Provider) handleRefreshGrant(w http.ResponseWriter, r *http.Request) {
	clientID, _, ok := p.clientAuth(r)
	if !ok {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	refreshToken := r.PostForm.Get("refresh_token")
	g, err := p.Tokens.Refresh(refreshToken, clientID)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(AccessTokenTTL.Seconds()),
		Scope:        g.Scope,
	})
}

// Authenticate resolves the Authorization: Bearer header to a grant.
// HandleUserinfo is its only caller; the /sse and /messages routes are not
// gated by it.
func (p *Provider) Authenticate(r *http.Request) (clientID, scope string, ok bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", "", false
	}
	g, found := p.Tokens.Authenticate(strings.TrimPrefix(h, prefix))
	if !found {
		return "", "", false
	}
	return g.ClientID, g.Scope, true
}

// HandleUserinfo serves /oauth/userinfo: a minimal profile for the bearer
// token, enough for a hosted LLM's connector UI to show it's connected.
func (p *Provider) HandleUserinfo(w http.ResponseWriter, r *http.Request) {
	clientID, scope, ok := p.Authenticate(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", `Bearer realm="mcp"`)
		writeOAuthError(w, http.StatusUnauthorized, "invalid_token", "missing or invalid bearer token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sub":   clientID,
		"scope": scope,
	})
}

// HandleStartAuth serves the vendor-specific
// GET /api/organizations/{org_id}/mcp/start-auth/{auth_id} shortcut a
// hosted LLM polls during connector setup.
func (p *Provider) HandleStartAuth(w http.ResponseWriter, r *http.Request) {
	if p.SkipOAuth {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":           "success",
			"auth_not_required": true,
			"server_url":       p.Issuer,
		})
		return
	}
	http.Redirect(w, r, p.url("/oauth/authorize")+"?"+r.URL.RawQuery, http.StatusFound)
}
