// ABOUTME: Long-lived agent connection to the control node with reconnect and retry
// ABOUTME: Single dispatcher goroutine drives the state machine from socket and timer events

package uplink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/2389/coven-control/internal/config"
	"github.com/2389/coven-control/internal/keys"
	"github.com/2389/coven-control/internal/protocol"
)

// ErrNotReady is returned by Send before the handshake has completed.
var ErrNotReady = errors.New("uplink not ready")

// DialFunc opens a transport connection to addr.
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

// Conn is the agent's connection to the control node. It survives
// reconnects: each successful attempt is promoted into it.
type Conn struct {
	addr       string
	keyBits    int
	retryDelay time.Duration
	dial       DialFunc
	logger     *slog.Logger

	onMessage func(text string)
	onState   func(State)

	events chan event

	mu      sync.RWMutex
	state   State
	conn    net.Conn
	writer  *protocol.Writer
	session *protocol.Session
}

// Option configures a Conn.
type Option func(*Conn)

// WithDialer replaces the TCP dialer.
func WithDialer(d DialFunc) Option {
	return func(c *Conn) { c.dial = d }
}

// WithMessageHandler sets the callback for decrypted server messages other
// than ping. It runs on the dispatcher goroutine.
func WithMessageHandler(fn func(text string)) Option {
	return func(c *Conn) { c.onMessage = fn }
}

// WithStateHandler sets a callback invoked on every state change.
func WithStateHandler(fn func(State)) Option {
	return func(c *Conn) { c.onState = fn }
}

// New creates a Conn dialing cfg.DialAddr() with a cfg.Crypto.ClientKeyBits key.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Conn {
	c := &Conn{
		addr:       cfg.DialAddr(),
		keyBits:    cfg.Crypto.ClientKeyBits,
		retryDelay: cfg.Agent.RetryConnectionDelay,
		logger:     logger.With("component", "uplink"),
		events:     make(chan event, 16),
	}
	c.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ServerKey returns the control node's public key once Ready.
func (c *Conn) ServerKey() (keys.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return keys.PublicKey{}, false
	}
	return c.session.Peer()
}

// PublicKey returns the key announced on the current connection.
func (c *Conn) PublicKey() (keys.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return keys.PublicKey{}, false
	}
	return c.session.Own().Public, true
}

// Send encrypts text with the server key and writes it.
func (c *Conn) Send(text string) error {
	c.mu.RLock()
	state, session, writer := c.state, c.session, c.writer
	c.mu.RUnlock()

	if state != Ready || session == nil {
		return ErrNotReady
	}
	m, err := session.Seal(text)
	if err != nil {
		return err
	}
	return writer.WriteMessage(m)
}

// attempt is one connection try. Only the dispatcher touches it.
type attempt struct {
	id      uint64
	conn    net.Conn
	session *protocol.Session
	writer  *protocol.Writer
}

func (a *attempt) close() {
	if a.conn != nil {
		_ = a.conn.Close()
	}
}

// dispatcher is the state owned by Run.
type dispatcher struct {
	c       *Conn
	ctx     context.Context
	seq     uint64
	current *attempt
	timer   *time.Timer
	timerID uint64
}

// Run drives the connection until ctx is canceled. It returns nil on
// cancellation and an error only when a key pair cannot be generated.
func (c *Conn) Run(ctx context.Context) error {
	d := &dispatcher{c: c, ctx: ctx}
	defer d.stop()

	d.connect()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			if err := d.handle(ev); err != nil {
				return err
			}
		}
	}
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()

	if prev != s {
		c.logger.Debug("state change", "from", prev, "to", s)
		if c.onState != nil {
			c.onState(s)
		}
	}
}

// post delivers ev to the dispatcher. It reports false once Run is returning.
func (d *dispatcher) post(ev event) bool {
	select {
	case d.c.events <- ev:
		return true
	case <-d.ctx.Done():
		return false
	}
}

// connect starts a new attempt.
func (d *dispatcher) connect() {
	d.seq++
	a := &attempt{id: d.seq}
	d.current = a
	d.c.setState(Connecting)

	go func() {
		conn, err := d.c.dial(d.ctx, d.c.addr)
		if err != nil {
			d.post(event{kind: evErrored, attempt: a.id, err: err})
			return
		}
		if !d.post(event{kind: evConnected, attempt: a.id, conn: conn}) {
			_ = conn.Close()
		}
	}()
}

func (d *dispatcher) handle(ev event) error {
	a := d.current
	if ev.kind == evTimerFired {
		if ev.attempt != d.timerID || d.timer == nil {
			return nil
		}
		d.timer = nil
		d.c.logger.Info("retrying connection", "addr", d.c.addr)
		d.connect()
		return nil
	}

	if a == nil || ev.attempt != a.id {
		// a superseded attempt finishing late
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
		return nil
	}

	switch ev.kind {
	case evConnected:
		return d.onConnected(a, ev.conn)
	case evDataReceived:
		d.onData(a, ev.msg)
	case evClosed:
		d.c.logger.Info("disconnected from server", "addr", d.c.addr)
		d.discard(a)
		d.connect()
	case evErrored:
		d.c.logger.Warn("connection error", "addr", d.c.addr, "error", ev.err, "retry_in", d.c.retryDelay)
		d.discard(a)
		d.scheduleRetry()
	}
	return nil
}

func (d *dispatcher) onConnected(a *attempt, conn net.Conn) error {
	a.conn = conn
	d.c.logger.Info("connected", "addr", d.c.addr)

	kp, err := keys.GenerateKeyPair(d.c.keyBits)
	if err != nil {
		a.close()
		d.current = nil
		d.c.setState(Disconnected)
		return fmt.Errorf("generating agent key: %w", err)
	}
	d.c.logger.Debug("key generated", "bits", kp.Public.Bits(), "fingerprint", kp.Public.Fingerprint())

	a.session = protocol.NewSession(kp)
	a.writer = protocol.NewWriter(conn)
	if err := a.writer.WriteMessage(a.session.Handshake()); err != nil {
		d.c.logger.Warn("sending handshake", "error", err, "retry_in", d.c.retryDelay)
		d.discard(a)
		d.scheduleRetry()
		return nil
	}
	d.c.setState(Handshaking)

	go d.read(a)
	return nil
}

// read forwards frames from a's connection to the dispatcher.
func (d *dispatcher) read(a *attempt) {
	reader := protocol.NewReader(a.conn)
	for {
		m, err := reader.ReadMessage()
		if err != nil {
			var fe *protocol.FrameError
			switch {
			case errors.As(err, &fe):
				d.c.logger.Warn("dropping malformed frame", "error", fe.Err, "bytes", len(fe.Frame))
				continue
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
				d.post(event{kind: evClosed, attempt: a.id})
			default:
				d.post(event{kind: evErrored, attempt: a.id, err: err})
			}
			return
		}
		d.post(event{kind: evDataReceived, attempt: a.id, msg: m})
	}
}

func (d *dispatcher) onData(a *attempt, m protocol.Message) {
	if m.IsHandshake() {
		key, err := m.Key()
		if err != nil {
			d.c.logger.Warn("rejecting server key", "error", err)
			return
		}
		a.session.SetPeer(key)
		if d.c.State() == Handshaking {
			d.promote(a)
			d.c.logger.Info("server key received", "fingerprint", key.Fingerprint())
		} else {
			d.c.logger.Info("server key replaced", "fingerprint", key.Fingerprint())
		}
		return
	}

	text, encrypted, err := a.session.Open(m)
	if err != nil {
		d.c.logger.Warn("dropping undecryptable content", "error", err)
		return
	}
	if !encrypted {
		d.c.logger.Warn("received unencrypted content")
	}

	if text == protocol.PingPayload {
		d.c.logger.Debug("ping received, replying")
		reply, err := a.session.Seal(protocol.PongPayload)
		if err == nil {
			err = a.writer.WriteMessage(reply)
		}
		if err != nil {
			d.c.logger.Warn("sending pong", "error", err)
		}
		return
	}

	d.c.logger.Info("received from server", "text", text)
	if d.c.onMessage != nil {
		d.c.onMessage(text)
	}
}

// promote moves a's connection and keys into the long-lived Conn and cancels
// any pending retry.
func (d *dispatcher) promote(a *attempt) {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	d.c.mu.Lock()
	d.c.conn = a.conn
	d.c.writer = a.writer
	d.c.session = a.session
	d.c.mu.Unlock()

	d.c.setState(Ready)
}

// discard drops the attempt's socket, listeners and keys.
func (d *dispatcher) discard(a *attempt) {
	a.close()
	d.current = nil

	d.c.mu.Lock()
	if d.c.conn == a.conn {
		d.c.conn = nil
		d.c.writer = nil
		d.c.session = nil
	}
	d.c.mu.Unlock()
}

func (d *dispatcher) scheduleRetry() {
	d.c.setState(Retrying)
	d.timerID++
	id := d.timerID
	d.timer = time.AfterFunc(d.c.retryDelay, func() {
		d.post(event{kind: evTimerFired, attempt: id})
	})
}

func (d *dispatcher) stop() {
	if d.timer != nil {
		d.timer.Stop()
	}
	for {
		select {
		case ev := <-d.c.events:
			if ev.conn != nil {
				_ = ev.conn.Close()
			}
			continue
		default:
		}
		break
	}
	if d.current != nil {
		d.discard(d.current)
	}
	d.c.setState(Disconnected)
}
