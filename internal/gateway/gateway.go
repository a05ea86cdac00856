// ABOUTME: Control node that accepts agent connections and drives the session protocol
// ABOUTME: Owns the listener, agent registry, server key pair and lifecycle operations

package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"tailscale.com/tsnet"

	"github.com/2389/coven-control/internal/agent"
	"github.com/2389/coven-control/internal/config"
	"github.com/2389/coven-control/internal/keys"
	"github.com/2389/coven-control/internal/metrics"
	"github.com/2389/coven-control/internal/store"
)

// ErrNoFocus is returned by focused-agent operations when nothing is focused.
var ErrNoFocus = errors.New("no agent focused")

// ErrNotRunning is returned when an operation needs the listener to be up.
var ErrNotRunning = errors.New("gateway is not running")

// ErrNoJournal is returned by History when no session journal is configured.
var ErrNoJournal = errors.New("session journal not configured")

// listenFunc opens the control listener on a port.
type listenFunc func(port int) (net.Listener, error)

// Gateway is the control node.
// Operator operations are safe for concurrent use.
type Gateway struct {
	config  *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	store   store.Store // nil when the journal is disabled

	mu          sync.Mutex
	listen      listenFunc
	tsnetServer *tsnet.Server
	port        int
	bits        int
	keyPair     *keys.KeyPair
	keyBits     int // modulus size requested when keyPair was generated
	registry    *agent.Registry
	listener    net.Listener
	peers       map[*peer]struct{}
	wg          sync.WaitGroup

	pongs atomic.Int64
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithStore enables the session journal.
func WithStore(s store.Store) Option {
	return func(g *Gateway) { g.store = s }
}

// WithMetrics shares an existing Metrics instance.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithKeyPair uses kp as the server key instead of generating one.
func WithKeyPair(kp *keys.KeyPair) Option {
	return func(g *Gateway) { g.keyPair = kp }
}

// New creates a Gateway and generates its key pair. Key generation failure
// fails construction.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		config: cfg,
		logger: logger.With("component", "gateway"),
		port:   cfg.Server.Port,
		bits:   cfg.Crypto.ServerKeyBits,
		peers:  make(map[*peer]struct{}),
	}
	g.listen = g.listenTCP
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = metrics.New()
	}

	if g.keyPair == nil {
		kp, err := keys.GenerateKeyPair(g.bits)
		if err != nil {
			return nil, fmt.Errorf("generating server key: %w", err)
		}
		g.keyPair = kp
	}
	g.keyBits = g.bits
	g.registry = agent.NewRegistry(logger.With("component", "registry"))

	g.logger.Info("server key ready",
		"bits", g.keyPair.Public.Bits(),
		"fingerprint", g.keyPair.Public.Fingerprint(),
	)
	return g, nil
}

func (g *Gateway) listenTCP(port int) (net.Listener, error) {
	return net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
}

// Start opens the listener on the configured port and begins accepting
// agents. It returns false if already running or if the listen fails.
func (g *Gateway) Start() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.listener != nil {
		g.logger.Warn("gateway already running", "addr", g.listener.Addr().String())
		return false
	}

	ln, err := g.listen(g.port)
	if err != nil {
		g.logger.Error("failed to listen", "port", g.port, "error", err)
		return false
	}
	g.listener = ln

	g.wg.Add(1)
	go g.acceptLoop(ln, g.registry)

	g.logger.Info("server started", "addr", ln.Addr().String())
	return true
}

// acceptLoop accepts connections until ln is closed.
func (g *Gateway) acceptLoop(ln net.Listener, reg *agent.Registry) {
	defer g.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				g.logger.Error("accept failed", "error", err)
			}
			return
		}

		g.mu.Lock()
		if g.listener != ln {
			// closed between Accept and here
			g.mu.Unlock()
			_ = conn.Close()
			return
		}
		g.trackLocked(conn, reg)
		g.mu.Unlock()
	}
}

// ServeConn runs the session protocol over an already established
// connection, as if it had been accepted by the listener. It returns
// immediately; the connection is closed by Close and Restart like any other.
func (g *Gateway) ServeConn(conn net.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.trackLocked(conn, g.registry)
}

func (g *Gateway) trackLocked(conn net.Conn, reg *agent.Registry) {
	p := newPeer(g, conn, reg)
	g.peers[p] = struct{}{}
	g.metrics.ConnectionsTotal.Inc()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		p.serve()

		g.mu.Lock()
		delete(g.peers, p)
		g.mu.Unlock()
	}()
}

// Close ends every agent connection, then stops listening. It returns false
// if the gateway was not running. Connections handed to ServeConn are closed
// either way.
func (g *Gateway) Close() bool {
	g.mu.Lock()
	ln := g.listener
	g.listener = nil
	peers := make([]*peer, 0, len(g.peers))
	for p := range g.peers {
		peers = append(peers, p)
	}
	g.mu.Unlock()

	for _, p := range peers {
		_ = p.Close()
	}
	if ln != nil {
		if err := ln.Close(); err != nil {
			g.logger.Warn("closing listener", "error", err)
		}
	}
	g.wg.Wait()

	if ln == nil {
		return false
	}
	g.logger.Info("server closed", "agents_dropped", len(peers))
	return true
}

// Restart closes the gateway, then starts again with a fresh registry on the
// currently configured port. The server key is regenerated only when the
// configured bit length changed. Every previous connection is closed first,
// so none survive untracked.
func (g *Gateway) Restart() bool {
	g.Close()
	g.metrics.Restarts.Inc()

	g.mu.Lock()
	if g.bits != g.keyBits {
		kp, err := keys.GenerateKeyPair(g.bits)
		if err != nil {
			g.mu.Unlock()
			g.logger.Error("regenerating server key", "bits", g.bits, "error", err)
			return false
		}
		g.keyPair = kp
		g.keyBits = g.bits
		g.logger.Info("server key regenerated",
			"bits", kp.Public.Bits(),
			"fingerprint", kp.Public.Fingerprint(),
		)
	}
	g.registry = agent.NewRegistry(g.logger.With("component", "registry"))
	g.mu.Unlock()

	return g.Start()
}

// Running reports whether the listener is open.
func (g *Gateway) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listener != nil
}

// Addr returns the listener address, or nil when not running.
func (g *Gateway) Addr() net.Addr {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// Port returns the configured port.
func (g *Gateway) Port() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.port
}

// SetPort changes the configured port. It takes effect on the next Restart.
func (g *Gateway) SetPort(port int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.port = port
}

// RSABitLength returns the configured server key size.
func (g *Gateway) RSABitLength() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bits
}

// SetRSABitLength changes the configured server key size. It takes effect
// on the next Restart.
func (g *Gateway) SetRSABitLength(bits int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bits = bits
}

// PrivateKey returns the server's own private key.
func (g *Gateway) PrivateKey() keys.PrivateKey {
	return g.keys().Private
}

// PublicKey returns the server's own public key.
func (g *Gateway) PublicKey() keys.PublicKey {
	return g.keys().Public
}

func (g *Gateway) keys() *keys.KeyPair {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.keyPair
}

func (g *Gateway) currentRegistry() *agent.Registry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.registry
}

// Metrics returns the gateway's collectors.
func (g *Gateway) Metrics() *metrics.Metrics {
	return g.metrics
}
