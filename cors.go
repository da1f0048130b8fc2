package mcp

import (
	"net/http"
	"strings"
)

// CORSPolicy applies an origin allow-list to the two MCP HTTP/SSE routes.
// OAuth and health routes are not wrapped by this policy — they permit any
// origin.
type CORSPolicy struct {
	AllowedOrigins []string
}

// NewCORSPolicy builds a policy from a comma-separated ALLOWED_ORIGINS
// environment value. An empty or "*" value allows any origin.
func NewCORSPolicy(allowedOrigins string) *CORSPolicy {
	allowedOrigins = strings.TrimSpace(allowedOrigins)
	if allowedOrigins == "" || allowedOrigins == "*" {
		return &CORSPolicy{AllowedOrigins: nil}
	}
	var origins []string
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return &CORSPolicy{AllowedOrigins: origins}
}

func (c *CORSPolicy) allowed(origin string) bool {
	if len(c.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// Apply sets CORS response headers for the given request's Origin, and
// reports whether the request is from an allowed origin. A preflight
// OPTIONS request is fully handled (headers set and 200 written) and the
// caller should not write further.
func (c *CORSPolicy) Apply(w http.ResponseWriter, r *http.Request) (allowed bool, handledPreflight bool) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true, false
	}
	if !c.allowed(origin) {
		return false, false
	}

	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Vary", "Origin")

	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, MCP-Protocol-Version, MCP-Session-Id")
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusOK)
		return true, true
	}
	return true, false
}
