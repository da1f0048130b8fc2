package mcp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCORSPolicyAllowsAnyOriginWhenUnconfigured(t *testing.T) {
	policy := NewCORSPolicy("")
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/sse", nil)
	r.Header.Set("Origin", "https://anything.example")

	allowed, handled := policy.Apply(w, r)
	require.True(t, allowed)
	require.False(t, handled)
	require.Equal(t, "https://anything.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPolicyRejectsDisallowedOrigin(t *testing.T) {
	policy := NewCORSPolicy("https://allowed.example")
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/sse", nil)
	r.Header.Set("Origin", "https://evil.example")

	allowed, _ := policy.Apply(w, r)
	require.False(t, allowed)
}

func TestCORSPolicyAllowsConfiguredOrigin(t *testing.T) {
	policy := NewCORSPolicy("https://allowed.example, https://also-allowed.example")
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/sse", nil)
	r.Header.Set("Origin", "https://also-allowed.example")

	allowed, _ := policy.Apply(w, r)
	require.True(t, allowed)
}

func TestCORSPolicyHandlesPreflight(t *testing.T) {
	policy := NewCORSPolicy("https://allowed.example")
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/sse", nil)
	r.Header.Set("Origin", "https://allowed.example")

	allowed, handled := policy.Apply(w, r)
	require.True(t, allowed)
	require.True(t, handled)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSPolicyNoOriginHeaderPassesThrough(t *testing.T) {
	policy := NewCORSPolicy("https://allowed.example")
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/sse", nil)

	allowed, handled := policy.Apply(w, r)
	require.True(t, allowed)
	require.False(t, handled)
}
