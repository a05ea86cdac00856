// ABOUTME: Per-connection session handling on the control node
// ABOUTME: Reads frames, completes the handshake, decrypts content and routes replies

package gateway

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"

	"github.com/2389/coven-control/internal/agent"
	"github.com/2389/coven-control/internal/protocol"
	"github.com/2389/coven-control/internal/store"
)

// peer is one accepted connection. It implements agent.Transport.
type peer struct {
	gw       *Gateway
	conn     net.Conn
	writer   *protocol.Writer
	session  *protocol.Session
	registry *agent.Registry
	logger   *slog.Logger

	// agent is set on the first handshake; only the read loop touches it.
	agent *agent.Agent
}

func newPeer(g *Gateway, conn net.Conn, reg *agent.Registry) *peer {
	return &peer{
		gw:       g,
		conn:     conn,
		writer:   protocol.NewWriter(conn),
		session:  protocol.NewSession(g.keyPair),
		registry: reg,
		logger:   g.logger.With("remote_addr", conn.RemoteAddr().String()),
	}
}

// Send encrypts text with the agent's key and writes it.
func (p *peer) Send(text string) error {
	m, err := p.session.Seal(text)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessage(m); err != nil {
		return err
	}
	p.gw.metrics.MessagesSent.Inc()
	return nil
}

// RemoteAddr describes the connection's peer.
func (p *peer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

// Close ends the connection; the read loop then unregisters the agent.
func (p *peer) Close() error {
	return p.conn.Close()
}

// serve runs the read loop until the connection ends.
func (p *peer) serve() {
	p.logger.Debug("connection opened")
	defer p.cleanup()

	reader := protocol.NewReader(p.conn)
	for {
		m, err := reader.ReadMessage()
		if err != nil {
			var fe *protocol.FrameError
			switch {
			case errors.As(err, &fe):
				p.gw.metrics.ProtocolErrors.Inc()
				p.logger.Warn("dropping malformed frame", "error", fe.Err, "bytes", len(fe.Frame))
				continue
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				p.logger.Debug("connection closed")
			default:
				p.logger.Warn("connection error", "error", err)
			}
			return
		}

		if m.IsHandshake() {
			p.handleHandshake(m)
		} else {
			p.handleContent(m)
		}
	}
}

func (p *peer) cleanup() {
	_ = p.conn.Close()

	a, ok := p.registry.Remove(p)
	if !ok {
		return
	}
	p.gw.metrics.AgentsConnected.Dec()
	p.gw.journalClose(a)
}

func (p *peer) handleHandshake(m protocol.Message) {
	key, err := m.Key()
	if err != nil {
		p.gw.metrics.ProtocolErrors.Inc()
		p.logger.Warn("rejecting handshake", "error", err)
		return
	}
	p.session.SetPeer(key)
	p.gw.metrics.Handshakes.Inc()

	if p.agent == nil {
		p.agent = p.registry.Add(p, key)
		p.logger = p.logger.With("session_id", p.agent.SessionID)
		p.gw.metrics.AgentsConnected.Inc()
		p.gw.journalOpen(p.agent)
	} else {
		p.agent.SetPublicKey(key)
		p.logger.Info("agent re-keyed", "agent", p.agent.Name(), "fingerprint", key.Fingerprint())
		p.gw.journalEvent(p.agent, store.EventRekey, key.Fingerprint())
	}

	if err := p.writer.WriteMessage(p.session.Handshake()); err != nil {
		p.logger.Warn("sending server key", "error", err)
		_ = p.conn.Close()
		return
	}
	p.logger.Debug("handshake complete", "agent", p.agent.Name())
}

func (p *peer) handleContent(m protocol.Message) {
	text, encrypted, err := p.session.Open(m)
	if err != nil {
		p.gw.metrics.ProtocolErrors.Inc()
		p.logger.Warn("dropping undecryptable content", "error", err)
		return
	}
	p.gw.metrics.MessagesReceived.WithLabelValues(strconv.FormatBool(encrypted)).Inc()
	if !encrypted {
		p.logger.Warn("received unencrypted content")
	}

	if p.agent == nil {
		p.logger.Info("content before handshake", "text", text)
		return
	}
	name := p.agent.Name()

	if text == protocol.PongPayload {
		p.gw.pongs.Add(1)
		p.gw.metrics.PongsReceived.Inc()
		p.logger.Info("pong received", "agent", name)
		p.gw.journalEvent(p.agent, store.EventPong, "")
		return
	}

	p.gw.journalEvent(p.agent, store.EventInbound, text)
	if !p.agent.Deliver(text) {
		p.logger.Debug("dropping unsolicited message", "agent", name, "text", text)
	}
}
