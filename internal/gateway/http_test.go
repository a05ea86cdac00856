// ABOUTME: Tests for the gateway HTTP endpoints
// ABOUTME: Uses httptest against the chi router

package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	gw := newTestGateway(t)
	rec := get(t, gw.Router(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestReady(t *testing.T) {
	gw := newTestGateway(t)
	router := gw.Router()

	rec := get(t, router, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not listening", rec.Body.String())

	require.True(t, gw.Start())
	rec = get(t, router, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "no agents connected", rec.Body.String())

	newRawAgent(t, gw).handshake(t)
	rec = get(t, router, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready (1 agents)", rec.Body.String())
}

func TestListAgentsEndpoint(t *testing.T) {
	gw := newTestGateway(t)
	ra := newRawAgent(t, gw)
	ra.handshake(t)
	gw.SetFocus("client-1")

	rec := get(t, gw.Router(), "/api/agents")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var agents []agentJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
	require.Len(t, agents, 1)
	assert.Equal(t, "client-1", agents[0].Name)
	assert.True(t, agents[0].Focused)
	assert.Equal(t, ra.session.Own().Public.Fingerprint(), agents[0].Fingerprint)
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"
	gw := newTestGatewayWithConfig(t, cfg)
	newRawAgent(t, gw).handshake(t)

	rec := get(t, gw.Router(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "coven_control_handshakes_total 1")
	assert.Contains(t, rec.Body.String(), "coven_control_agents_connected 1")
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	gw := newTestGateway(t)
	rec := get(t, gw.Router(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
