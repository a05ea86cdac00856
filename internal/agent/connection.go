// ABOUTME: A single connected agent as seen from the control node.
// ABOUTME: Holds identity, remote key, transport handle and the one-shot reply listener.

package agent

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-control/internal/keys"
)

// ErrReplyPending indicates a reply listener is already installed on the agent.
var ErrReplyPending = errors.New("reply already pending")

// ErrAgentGone indicates the agent disconnected while a reply was pending.
var ErrAgentGone = errors.New("agent disconnected")

// Transport is the connection an Agent is bound to.
type Transport interface {
	// Send encrypts text for the agent and writes it.
	Send(text string) error
	// RemoteAddr describes the peer address.
	RemoteAddr() string
	// Close ends the connection.
	Close() error
}

// Reply is the outcome of a pending reply listener.
type Reply struct {
	Text string
	Err  error
}

// Agent is a handshaken connection registered under a name.
type Agent struct {
	// SessionID is unique per connection and survives renames.
	SessionID   string
	RemoteAddr  string
	ConnectedAt time.Time

	seq       int
	transport Transport

	mu     sync.Mutex
	name   string
	key    keys.PublicKey
	waiter chan Reply
}

func newAgent(seq int, t Transport, key keys.PublicKey) *Agent {
	return &Agent{
		seq:         seq,
		SessionID:   uuid.New().String(),
		RemoteAddr:  t.RemoteAddr(),
		ConnectedAt: time.Now(),
		transport:   t,
		name:        NamePrefix + strconv.Itoa(seq),
		key:         key,
	}
}

// Name returns the agent's current identity.
func (a *Agent) Name() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.name
}

func (a *Agent) setName(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.name = name
}

// PublicKey returns the key the agent announced in its handshake.
func (a *Agent) PublicKey() keys.PublicKey {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.key
}

// SetPublicKey replaces the agent's key after a repeated handshake.
func (a *Agent) SetPublicKey(key keys.PublicKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.key = key
}

// Transport returns the connection the agent is bound to.
func (a *Agent) Transport() Transport {
	return a.transport
}

// Send encrypts text for the agent and writes it to its connection.
func (a *Agent) Send(text string) error {
	return a.transport.Send(text)
}

// ExpectReply installs the one-shot reply listener.
// The returned channel receives exactly one Reply.
func (a *Agent) ExpectReply() (<-chan Reply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.waiter != nil {
		return nil, ErrReplyPending
	}
	ch := make(chan Reply, 1)
	a.waiter = ch
	return ch, nil
}

// CancelReply detaches ch if it is still the installed listener.
func (a *Agent) CancelReply(ch <-chan Reply) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.waiter != nil && (<-chan Reply)(a.waiter) == ch {
		a.waiter = nil
	}
}

// Deliver resolves the pending listener with text.
// Returns false if no listener was installed; the text is then dropped.
func (a *Agent) Deliver(text string) bool {
	return a.resolve(Reply{Text: text})
}

func (a *Agent) fail(err error) {
	a.resolve(Reply{Err: err})
}

func (a *Agent) resolve(r Reply) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.waiter == nil {
		return false
	}
	a.waiter <- r
	a.waiter = nil
	return true
}

// Info is a point-in-time description of an agent.
type Info struct {
	Name        string
	SessionID   string
	RemoteAddr  string
	ConnectedAt time.Time
	Fingerprint string
	KeyBits     int
	Focused     bool

	seq int
}
