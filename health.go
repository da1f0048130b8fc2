package mcp

import (
	"encoding/json"
	"net/http"
	"time"
)

// IndexStatus is the subset of KnowledgeIndex.status() the health endpoint
// reports, kept narrow so health.go doesn't need to import the index
// package's concrete type.
type IndexStatus struct {
	Ready         bool `json:"ready"`
	DocumentCount int  `json:"document_count"`
}

// IndexStatusFunc returns the current index status without blocking on
// construction ("must never block on C1 loading").
type IndexStatusFunc func() IndexStatus

// HealthHandler serves the two health/readiness routes.
type HealthHandler struct {
	Version         string
	ProtocolVersion string
	StartedAt       time.Time
	IndexStatus     IndexStatusFunc
	OAuthEnabled    bool
	OAuthEndpoints  []string
}

type healthBody struct {
	Status          string         `json:"status"`
	Version         string         `json:"version"`
	ProtocolVersion string         `json:"protocol_version"`
	UptimeSeconds   float64        `json:"uptime_seconds"`
	Index           indexBody      `json:"index"`
	OAuth           oauthBody      `json:"oauth"`
}

type indexBody struct {
	Ready         bool `json:"ready"`
	DocumentCount int  `json:"document_count"`
}

type oauthBody struct {
	Enabled   bool     `json:"enabled"`
	Endpoints []string `json:"endpoints"`
}

// HandleRoot serves GET/HEAD/POST / — the detailed status document. It
// never blocks on the index: IndexStatus is expected to return immediately
// from a cached/atomic value even while the index is still loading.
func (h *HealthHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idx := h.IndexStatus()
	body := healthBody{
		Status:          "ok",
		Version:         h.Version,
		ProtocolVersion: h.ProtocolVersion,
		UptimeSeconds:   time.Since(h.StartedAt).Seconds(),
		Index:           indexBody{Ready: idx.Ready, DocumentCount: idx.DocumentCount},
		OAuth:           oauthBody{Enabled: h.OAuthEnabled, Endpoints: h.OAuthEndpoints},
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	json.NewEncoder(w).Encode(body)
}

// HandleLiveness serves GET/HEAD /railway-health unconditionally — the
// route the hosting platform probes.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
