// ABOUTME: Shared helpers for gateway tests
// ABOUTME: Builds small-key gateways and a raw protocol client over net.Pipe

package gateway

import (
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/2389/coven-control/internal/config"
	"github.com/2389/coven-control/internal/keys"
	"github.com/2389/coven-control/internal/protocol"
)

// Keys of 32 bits use 16-bit primes, for which 65537 never divides p-1.
const testKeyBits = 32

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Crypto.ServerKeyBits = testKeyBits
	cfg.Crypto.ClientKeyBits = testKeyBits
	cfg.Agent.RetryConnectionDelay = 20 * time.Millisecond
	return cfg
}

func newTestGateway(t *testing.T, opts ...Option) *Gateway {
	t.Helper()
	return newTestGatewayWithConfig(t, testConfig(), opts...)
}

func newTestGatewayWithConfig(t *testing.T, cfg *config.Config, opts ...Option) *Gateway {
	t.Helper()
	gw, err := New(cfg, testLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })
	return gw
}

// rawAgent speaks the wire protocol directly, for tests that need to send
// things a well-behaved agent never would.
type rawAgent struct {
	conn    net.Conn
	reader  *protocol.Reader
	writer  *protocol.Writer
	session *protocol.Session
}

func newRawAgent(t *testing.T, gw *Gateway) *rawAgent {
	t.Helper()
	client, server := net.Pipe()
	gw.ServeConn(server)
	t.Cleanup(func() { client.Close() })

	kp, err := keys.GenerateKeyPair(testKeyBits)
	require.NoError(t, err)
	return &rawAgent{
		conn:    client,
		reader:  protocol.NewReader(client),
		writer:  protocol.NewWriter(client),
		session: protocol.NewSession(kp),
	}
}

// handshake announces the agent key and stores the server's reply.
func (r *rawAgent) handshake(t *testing.T) keys.PublicKey {
	t.Helper()
	require.NoError(t, r.writer.WriteMessage(r.session.Handshake()))

	m, err := r.reader.ReadMessage()
	require.NoError(t, err)
	require.True(t, m.IsHandshake())
	key, err := m.Key()
	require.NoError(t, err)
	r.session.SetPeer(key)
	return key
}

func (r *rawAgent) send(t *testing.T, text string) {
	t.Helper()
	m, err := r.session.Seal(text)
	require.NoError(t, err)
	require.NoError(t, r.writer.WriteMessage(m))
}

func (r *rawAgent) receive(t *testing.T) string {
	t.Helper()
	m, err := r.reader.ReadMessage()
	require.NoError(t, err)
	text, encrypted, err := r.session.Open(m)
	require.NoError(t, err)
	require.True(t, encrypted, "server content must be encrypted")
	return text
}

// waitAgents blocks until the gateway lists n agents.
func waitAgents(t *testing.T, gw *Gateway, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(gw.ListAgents()) == n },
		5*time.Second, 5*time.Millisecond)
}
