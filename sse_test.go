package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandleSSEEmitsEndpointEvent(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, 0, nil)
	sessions := NewSessionManager(time.Hour, time.Second, nil)
	defer sessions.Stop()
	cors := NewCORSPolicy("")
	transport := NewHTTPTransport(d, sessions, cors, 0, 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r := httptest.NewRequest(http.MethodGet, "/sse", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	transport.HandleSSE(w, r)

	require.Contains(t, w.Body.String(), "event: endpoint")
	require.Contains(t, w.Body.String(), "data: /messages?session_id=")
}

func TestHandleMessagesRejectsMissingSessionID(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, 0, nil)
	sessions := NewSessionManager(time.Hour, time.Second, nil)
	defer sessions.Stop()
	cors := NewCORSPolicy("")
	transport := NewHTTPTransport(d, sessions, cors, 0, 0, nil)

	r := httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	transport.HandleMessages(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleMessagesRejectsUnknownSession(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, 0, nil)
	sessions := NewSessionManager(time.Hour, time.Second, nil)
	defer sessions.Stop()
	cors := NewCORSPolicy("")
	transport := NewHTTPTransport(d, sessions, cors, 0, 0, nil)

	r := httptest.NewRequest(http.MethodPost, "/messages?session_id=bogus", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	transport.HandleMessages(w, r)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleMessagesAcceptsAndEnqueuesResponse(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, 0, nil)
	sessions := NewSessionManager(time.Hour, time.Second, nil)
	defer sessions.Stop()
	cors := NewCORSPolicy("")
	transport := NewHTTPTransport(d, sessions, cors, 0, 0, nil)

	sess := sessions.Create()

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-11-25"}}`
	r := httptest.NewRequest(http.MethodPost, "/messages?session_id="+sess.ID, strings.NewReader(body))
	w := httptest.NewRecorder()
	transport.HandleMessages(w, r)

	require.Equal(t, http.StatusAccepted, w.Code)

	select {
	case resp := <-sess.Outbound():
		require.Nil(t, resp.Error)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for enqueued response")
	}
}

func TestHandleMessagesRejectsDisallowedOrigin(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, 0, nil)
	sessions := NewSessionManager(time.Hour, time.Second, nil)
	defer sessions.Stop()
	cors := NewCORSPolicy("https://allowed.example")
	transport := NewHTTPTransport(d, sessions, cors, 0, 0, nil)

	r := httptest.NewRequest(http.MethodPost, "/messages?session_id=whatever", strings.NewReader(`{}`))
	r.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	transport.HandleMessages(w, r)

	require.Equal(t, http.StatusForbidden, w.Code)
}
