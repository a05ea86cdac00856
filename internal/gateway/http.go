// ABOUTME: HTTP endpoints for health, readiness, agent listing and metrics
// ABOUTME: Routed with chi and served on server.http_addr

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// agentJSON is the HTTP representation of an agent.
type agentJSON struct {
	Name        string    `json:"name"`
	SessionID   string    `json:"session_id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	Fingerprint string    `json:"fingerprint"`
	KeyBits     int       `json:"key_bits"`
	Focused     bool      `json:"focused"`
}

// Router returns the HTTP handler for the control node.
func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", g.handleHealth)
	r.Get("/health/ready", g.handleReady)
	r.Get("/api/agents", g.handleListAgents)

	if g.config.Metrics.Enabled {
		r.Handle(g.config.Metrics.Path, g.metrics.Handler())
	}
	return r
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the listener is up and at least one agent is connected.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if !g.Running() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not listening"))
		return
	}
	agents := g.ListAgents()
	if len(agents) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no agents connected"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d agents)", len(agents))
}

func (g *Gateway) handleListAgents(w http.ResponseWriter, r *http.Request) {
	infos := g.ListAgents()
	out := make([]agentJSON, 0, len(infos))
	for _, a := range infos {
		out = append(out, agentJSON{
			Name:        a.Name,
			SessionID:   a.SessionID,
			RemoteAddr:  a.RemoteAddr,
			ConnectedAt: a.ConnectedAt,
			Fingerprint: a.Fingerprint,
			KeyBits:     a.KeyBits,
			Focused:     a.Focused,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		g.logger.Warn("encoding agent list", "error", err)
	}
}
