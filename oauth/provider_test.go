package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func pkceChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func registerClient(t *testing.T, p *Provider, clientName, redirectURI string) map[string]interface{} {
	t.Helper()
	body, _ := json.Marshal(registerRequest{
		ClientName:    clientName,
		RedirectURIs:  []string{redirectURI},
		SoftwareID:    "test-software",
	})
	req := httptest.NewRequest(http.MethodPost, "/oauth/register", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	p.HandleRegister(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestDCRIsIdempotentPerSoftwareID(t *testing.T) {
	p := NewProvider("https://mcp.example.com", nil, nil, false, nil)
	defer p.Stop()

	first := registerClient(t, p, "hosted-llm", "https://claude.ai/api/mcp/auth_callback")
	second := registerClient(t, p, "hosted-llm", "https://claude.ai/api/mcp/auth_callback")
	require.Equal(t, first["client_id"], second["client_id"])
}

func TestAutoApprovalFullFlow(t *testing.T) {
	p := NewProvider("https://mcp.example.com", nil, []string{"https://claude.ai/api/mcp/auth_callback"}, false, nil)
	defer p.Stop()

	reg := registerClient(t, p, "hosted-llm", "https://claude.ai/api/mcp/auth_callback")
	clientID := reg["client_id"].(string)

	verifier := "a-sufficiently-long-code-verifier-string-1234567890"
	challenge := pkceChallenge(verifier)

	authorizeURL := "/oauth/authorize?" + url.Values{
		"response_type":         {"code"},
		"client_id":             {clientID},
		"redirect_uri":          {"https://claude.ai/api/mcp/auth_callback"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
		"state":                 {"abc"},
		"scope":                 {"read"},
	}.Encode()

	req := httptest.NewRequest(http.MethodGet, authorizeURL, nil)
	w := httptest.NewRecorder()
	p.HandleAuthorize(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "abc", loc.Query().Get("state"))
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"code_verifier": {verifier},
		"client_id":     {clientID},
	}
	tokenReq := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	tokenReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tokenW := httptest.NewRecorder()
	p.HandleToken(tokenW, tokenReq)
	require.Equal(t, http.StatusOK, tokenW.Code)

	var tok tokenResponse
	require.NoError(t, json.NewDecoder(tokenW.Body).Decode(&tok))
	require.NotEmpty(t, tok.AccessToken)
	require.NotEmpty(t, tok.RefreshToken)
	require.Equal(t, "Bearer", tok.TokenType)

	// Replaying the same code must fail with invalid_grant.
	replayReq := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	replayReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	replayW := httptest.NewRecorder()
	p.HandleToken(replayW, replayReq)
	require.Equal(t, http.StatusBadRequest, replayW.Code)
	var replayErr map[string]string
	require.NoError(t, json.NewDecoder(replayW.Body).Decode(&replayErr))
	require.Equal(t, "invalid_grant", replayErr["error"])
}

func TestAuthorizeRejectsMissingChallengeForPublicClient(t *testing.T) {
	p := NewProvider("https://mcp.example.com", nil, nil, false, nil)
	defer p.Stop()

	reg := registerClient(t, p, "some-client", "https://example.com/callback")
	clientID := reg["client_id"].(string)

	authorizeURL := "/oauth/authorize?" + url.Values{
		"response_type": {"code"},
		"client_id":     {clientID},
		"redirect_uri":  {"https://example.com/callback"},
		"state":         {"xyz"},
		"consent":       {"approve"},
	}.Encode()

	req := httptest.NewRequest(http.MethodGet, authorizeURL, nil)
	w := httptest.NewRecorder()
	p.HandleAuthorize(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "invalid_request", loc.Query().Get("error"))
}

func TestRefreshTokenRotates(t *testing.T) {
	store := NewTokenStore()
	g := store.Issue("client-1", "read", "client-1")

	rotated, err := store.Refresh(g.RefreshToken, "client-1")
	require.NoError(t, err)
	require.NotEqual(t, g.AccessToken, rotated.AccessToken)
	require.NotEqual(t, g.RefreshToken, rotated.RefreshToken)

	_, err = store.Refresh(g.RefreshToken, "client-1")
	require.Error(t, err)
}

func TestStartAuthSkipOAuthMode(t *testing.T) {
	p := NewProvider("https://mcp.example.com", nil, nil, true, nil)
	defer p.Stop()

	req := httptest.NewRequest(http.MethodGet, "/api/organizations/org-1/mcp/start-auth/auth-1", nil)
	w := httptest.NewRecorder()
	p.HandleStartAuth(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, true, body["auth_not_required"])
}
