// ABOUTME: Tests for the control node metrics.
// ABOUTME: Uses prometheus testutil to read collector values and scrape output.

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.PongsReceived.Inc()
	a.PongsReceived.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(a.PongsReceived))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PongsReceived))
}

func TestMetrics_Values(t *testing.T) {
	m := New()

	m.ConnectionsTotal.Inc()
	m.AgentsConnected.Set(3)
	m.AgentsConnected.Dec()
	m.MessagesReceived.WithLabelValues("true").Inc()
	m.MessagesReceived.WithLabelValues("false").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AgentsConnected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesReceived.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesReceived.WithLabelValues("false")))
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.Handshakes.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "coven_control_handshakes_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
