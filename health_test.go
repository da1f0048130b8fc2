package mcp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHealthHandlerHandleRootReportsStatus(t *testing.T) {
	h := &HealthHandler{
		Version:         "1.0.0",
		ProtocolVersion: ProtocolVersionLatest,
		StartedAt:       time.Now().Add(-time.Minute),
		IndexStatus: func() IndexStatus {
			return IndexStatus{Ready: true, DocumentCount: 42}
		},
		OAuthEnabled:   true,
		OAuthEndpoints: []string{"/oauth/token"},
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	h.HandleRoot(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var body healthBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.True(t, body.Index.Ready)
	require.Equal(t, 42, body.Index.DocumentCount)
	require.True(t, body.OAuth.Enabled)
	require.Greater(t, body.UptimeSeconds, 0.0)
}

func TestHealthHandlerHandleRootNeverBlocksOnIndex(t *testing.T) {
	called := false
	h := &HealthHandler{
		IndexStatus: func() IndexStatus {
			called = true
			return IndexStatus{Ready: false}
		},
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	h.HandleRoot(w, r)

	require.True(t, called)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandlerHandleRootRejectsUnsupportedMethod(t *testing.T) {
	h := &HealthHandler{IndexStatus: func() IndexStatus { return IndexStatus{} }}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/", nil)
	h.HandleRoot(w, r)

	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthHandlerHandleLivenessAlwaysOK(t *testing.T) {
	h := &HealthHandler{}
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/railway-health", nil)
	h.HandleLiveness(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}
