package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// sseKeepaliveInterval is how often a keepalive comment is written to an
// open SSE stream.
const sseKeepaliveInterval = 15 * time.Second

// HTTPTransport mounts the paired SSE + POST routes that form the
// bidirectional MCP channel over HTTP. It is a thin adapter:
// all protocol logic lives in Dispatcher; this type only frames bytes and
// manages SSE connections and per-session worker concurrency.
type HTTPTransport struct {
	Dispatcher            *Dispatcher
	Sessions              *SessionManager
	CORS                  *CORSPolicy
	Logger                *slog.Logger
	PerSessionConcurrency int

	globalSem  chan struct{}
	sessionSem sync.Map // session id -> chan struct{}
}

func (t *HTTPTransport) sessionSemaphore(sessionID string) chan struct{} {
	v, _ := t.sessionSem.LoadOrStore(sessionID, make(chan struct{}, t.PerSessionConcurrency))
	return v.(chan struct{})
}

// NewHTTPTransport builds an HTTPTransport. perSessionConcurrency defaults
// to 8 and globalConcurrency to perSessionConcurrency*16 when zero.
func NewHTTPTransport(d *Dispatcher, sessions *SessionManager, cors *CORSPolicy, perSessionConcurrency, globalConcurrency int, logger *slog.Logger) *HTTPTransport {
	if perSessionConcurrency <= 0 {
		perSessionConcurrency = 8
	}
	if globalConcurrency <= 0 {
		globalConcurrency = perSessionConcurrency * 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPTransport{
		Dispatcher:            d,
		Sessions:              sessions,
		CORS:                  cors,
		Logger:                logger,
		PerSessionConcurrency: perSessionConcurrency,
		globalSem:             make(chan struct{}, globalConcurrency),
	}
}

// HandleSSE serves GET /sse: it allocates a session, emits the endpoint
// event, then streams queued responses as message events until the client
// disconnects. cmd/server mounts it at /sse only; there is no
// vendor-prefixed alias.
func (t *HTTPTransport) HandleSSE(w http.ResponseWriter, r *http.Request) {
	allowed, handled := t.CORS.Apply(w, r)
	if handled {
		return
	}
	if !allowed {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess := t.Sessions.Create()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: endpoint\ndata: /messages?session_id=%s\n\n", sess.ID)
	flusher.Flush()

	ctx := r.Context()
	ticker := time.NewTicker(sseKeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Logger.Info("sse client disconnected", "session_id", sess.ID)
			t.Sessions.Close(sess)
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				t.Sessions.Close(sess)
				return
			}
			flusher.Flush()
		case resp, ok := <-sess.Outbound():
			if !ok {
				return
			}
			payload, err := json.Marshal(resp)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// HandleMessages serves POST /messages?session_id=<id> (mounted at /messages
// only, with no vendor-prefixed alias): it parses one JSON-RPC frame, enqueues it for
// processing against the named session, and returns 202 immediately. The
// response is delivered asynchronously on the matching SSE stream.
func (t *HTTPTransport) HandleMessages(w http.ResponseWriter, r *http.Request) {
	allowed, handled := t.CORS.Apply(w, r)
	if handled {
		return
	}
	if !allowed {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id query parameter required", http.StatusBadRequest)
		return
	}
	sess, ok := t.Sessions.Get(sessionID)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	var req MCPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sess.Enqueue(&MCPResponse{
			JSONRPC: "2.0",
			Error:   &MCPError{Code: ErrorCodeParseError, Message: "parse error", Data: map[string]interface{}{"details": err.Error()}},
		})
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.WriteHeader(http.StatusAccepted)

	ctx := r.Context()
	sessSem := t.sessionSemaphore(sessionID)
	select {
	case t.globalSem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	select {
	case sessSem <- struct{}{}:
	case <-ctx.Done():
		<-t.globalSem
		return
	}
	go func() {
		defer func() { <-t.globalSem; <-sessSem }()
		resp := t.Dispatcher.Handle(context.Background(), sess, &req)
		if resp != nil {
			if !sess.Enqueue(resp) {
				t.Logger.Warn("dropped response, outbound queue full or session closed", "session_id", sess.ID)
			}
		}
	}()
}
