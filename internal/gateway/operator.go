// ABOUTME: Operator-facing operations on the control node
// ABOUTME: Listing, focus, renaming, ping and the one-shot exchange with the focused agent

package gateway

import (
	"context"
	"fmt"

	"github.com/2389/coven-control/internal/agent"
	"github.com/2389/coven-control/internal/protocol"
	"github.com/2389/coven-control/internal/store"
)

// ListAgents returns a snapshot of the connected agents in connection order.
func (g *Gateway) ListAgents() []agent.Info {
	return g.currentRegistry().List()
}

// SetFocus focuses name. An empty or unknown name clears the focus.
// It always returns true.
func (g *Gateway) SetFocus(name string) bool {
	return g.currentRegistry().SetFocus(name)
}

// Focus returns the focused agent's name.
func (g *Gateway) Focus() (string, bool) {
	a, ok := g.currentRegistry().Focus()
	if !ok {
		return "", false
	}
	return a.Name(), true
}

// Rename changes an agent's identity. Reserved or taken names are refused.
func (g *Gateway) Rename(oldName, newName string) bool {
	reg := g.currentRegistry()
	if !reg.Rename(oldName, newName) {
		return false
	}
	if a, ok := reg.Get(newName); ok {
		g.journalRename(a, newName)
	}
	return true
}

// SendPing sends "ping" to the named agent. It returns false when no such
// agent exists or the send fails.
func (g *Gateway) SendPing(name string) bool {
	a, ok := g.currentRegistry().Get(name)
	if !ok {
		return false
	}
	if err := a.Send(protocol.PingPayload); err != nil {
		g.logger.Warn("sending ping", "agent", name, "error", err)
		return false
	}
	g.logger.Debug("ping sent", "agent", name)
	g.journalEvent(a, store.EventPing, "")
	return true
}

// Pongs returns the number of pong replies received since construction.
func (g *Gateway) Pongs() int64 {
	return g.pongs.Load()
}

// SendToFocused encrypts text for the focused agent and sends it.
func (g *Gateway) SendToFocused(text string) error {
	a, err := g.focused()
	if err != nil {
		return err
	}
	return g.send(a, text)
}

// WaitForNextFromFocused waits for the next message from the focused agent.
// Messages that arrive while nobody is waiting are dropped.
func (g *Gateway) WaitForNextFromFocused(ctx context.Context) (string, error) {
	a, err := g.focused()
	if err != nil {
		return "", err
	}
	ch, err := a.ExpectReply()
	if err != nil {
		return "", err
	}
	return wait(ctx, a, ch)
}

// Exchange sends text to the focused agent and waits for its reply. The
// listener is installed before sending so a fast reply is not lost.
func (g *Gateway) Exchange(ctx context.Context, text string) (string, error) {
	a, err := g.focused()
	if err != nil {
		return "", err
	}
	ch, err := a.ExpectReply()
	if err != nil {
		return "", err
	}
	if err := g.send(a, text); err != nil {
		a.CancelReply(ch)
		return "", err
	}
	return wait(ctx, a, ch)
}

// History returns up to limit journal events, newest first.
func (g *Gateway) History(ctx context.Context, limit int) ([]*store.Event, error) {
	if g.store == nil {
		return nil, ErrNoJournal
	}
	return g.store.ListEvents(ctx, store.EventFilter{Limit: limit})
}

func (g *Gateway) focused() (*agent.Agent, error) {
	a, ok := g.currentRegistry().Focus()
	if !ok {
		return nil, ErrNoFocus
	}
	return a, nil
}

func (g *Gateway) send(a *agent.Agent, text string) error {
	if err := a.Send(text); err != nil {
		return fmt.Errorf("sending to %s: %w", a.Name(), err)
	}
	g.journalEvent(a, store.EventOutbound, text)
	return nil
}

func wait(ctx context.Context, a *agent.Agent, ch <-chan agent.Reply) (string, error) {
	select {
	case r := <-ch:
		return r.Text, r.Err
	case <-ctx.Done():
		a.CancelReply(ch)
		return "", ctx.Err()
	}
}
