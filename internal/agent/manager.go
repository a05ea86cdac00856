// ABOUTME: Registry of connected agents with sequential naming and operator focus.
// ABOUTME: Central lookup the control node consults for every operator action.

package agent

import (
	"log/slog"
	"regexp"
	"sort"
	"sync"

	"github.com/2389/coven-control/internal/keys"
)

// NamePrefix prefixes every auto-assigned identity.
const NamePrefix = "client-"

var reservedName = regexp.MustCompile(`^client-\d+$`)

// IsReservedName reports whether name has the auto-assigned "client-<digits>" shape.
func IsReservedName(name string) bool {
	return reservedName.MatchString(name)
}

// Registry coordinates all connected agents and the operator's focus.
type Registry struct {
	mu          sync.RWMutex
	agents      map[string]*Agent
	byTransport map[Transport]*Agent
	total       int
	focus       *Agent
	logger      *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		agents:      make(map[string]*Agent),
		byTransport: make(map[Transport]*Agent),
		logger:      logger,
	}
}

// Add registers t under the next "client-{N}" name. It always succeeds.
func (r *Registry) Add(t Transport, key keys.PublicKey) *Agent {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total++
	a := newAgent(r.total, t, key)
	name := a.name
	r.agents[name] = a
	r.byTransport[t] = a

	r.logger.Info("=== AGENT CONNECTED ===",
		"agent", name,
		"remote_addr", a.RemoteAddr,
		"fingerprint", key.Fingerprint(),
		"total_agents", len(r.agents),
	)
	return a
}

// Remove drops the agent bound to t. Focus is cleared if it pointed at that
// agent, and any pending reply listener fails with ErrAgentGone.
func (r *Registry) Remove(t Transport) (*Agent, bool) {
	r.mu.Lock()
	a, ok := r.byTransport[t]
	if ok {
		delete(r.byTransport, t)
		delete(r.agents, a.Name())
		if r.focus == a {
			r.focus = nil
		}
	}
	remaining := len(r.agents)
	r.mu.Unlock()

	if !ok {
		return nil, false
	}

	a.fail(ErrAgentGone)
	r.logger.Info("=== AGENT DISCONNECTED ===",
		"agent", a.Name(),
		"remote_addr", a.RemoteAddr,
		"total_agents", remaining,
	)
	return a, true
}

// Lookup returns the agent bound to t.
func (r *Registry) Lookup(t Transport) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byTransport[t]
	return a, ok
}

// Get retrieves an agent by name.
func (r *Registry) Get(name string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[name]
	return a, ok
}

// Rename changes oldName to newName. It returns false without mutating
// anything when oldName is unknown, newName is reserved, or newName belongs
// to a different agent.
func (r *Registry) Rename(oldName, newName string) bool {
	if newName == "" || IsReservedName(newName) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[oldName]
	if !ok {
		return false
	}
	if other, taken := r.agents[newName]; taken && other != a {
		return false
	}

	delete(r.agents, oldName)
	a.setName(newName)
	r.agents[newName] = a

	r.logger.Info("agent renamed", "from", oldName, "to", newName)
	return true
}

// SetFocus focuses the named agent. An empty or unknown name clears focus.
// It always returns true; callers distinguish the cases from their own input.
func (r *Registry) SetFocus(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.focus = r.agents[name]
	if r.focus == nil {
		r.logger.Debug("focus cleared", "requested", name)
	} else {
		r.logger.Debug("focus set", "agent", name)
	}
	return true
}

// Focus returns the focused agent, if any.
func (r *Registry) Focus() (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.focus, r.focus != nil
}

// List returns a snapshot of all agents in connection order.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.agents))
	for name, a := range r.agents {
		key := a.PublicKey()
		infos = append(infos, Info{
			Name:        name,
			SessionID:   a.SessionID,
			RemoteAddr:  a.RemoteAddr,
			ConnectedAt: a.ConnectedAt,
			Fingerprint: key.Fingerprint(),
			KeyBits:     key.Bits(),
			Focused:     a == r.focus,
			seq:         a.seq,
		})
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].seq < infos[j].seq
	})
	return infos
}

// Agents returns the currently registered agents.
func (r *Registry) Agents() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// TotalConnections returns how many agents have ever been added.
func (r *Registry) TotalConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}
