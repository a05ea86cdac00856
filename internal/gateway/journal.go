// ABOUTME: Session journal hooks called from the connection and operator paths
// ABOUTME: Every hook is a no-op without a store; failures are logged, never returned

package gateway

import (
	"context"
	"time"

	"github.com/2389/coven-control/internal/agent"
	"github.com/2389/coven-control/internal/store"
)

const journalTimeout = 2 * time.Second

func (g *Gateway) journalOpen(a *agent.Agent) {
	if g.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	key := a.PublicKey()
	err := g.store.OpenSession(ctx, &store.Session{
		ID:          a.SessionID,
		Name:        a.Name(),
		RemoteAddr:  a.RemoteAddr,
		Fingerprint: key.Fingerprint(),
		KeyBits:     key.Bits(),
		ConnectedAt: a.ConnectedAt,
	})
	if err != nil {
		g.logger.Warn("journal: opening session", "session_id", a.SessionID, "error", err)
	}
}

func (g *Gateway) journalClose(a *agent.Agent) {
	if g.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	if err := g.store.CloseSession(ctx, a.SessionID, time.Now()); err != nil {
		g.logger.Warn("journal: closing session", "session_id", a.SessionID, "error", err)
	}
}

func (g *Gateway) journalRename(a *agent.Agent, name string) {
	if g.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	if err := g.store.RenameSession(ctx, a.SessionID, name); err != nil {
		g.logger.Warn("journal: renaming session", "session_id", a.SessionID, "error", err)
		return
	}
	g.journalEvent(a, store.EventRenamed, name)
}

func (g *Gateway) journalEvent(a *agent.Agent, kind store.EventKind, text string) {
	if g.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	err := g.store.AppendEvent(ctx, &store.Event{
		SessionID: a.SessionID,
		AgentName: a.Name(),
		Kind:      kind,
		Text:      text,
	})
	if err != nil {
		g.logger.Warn("journal: appending event", "kind", kind, "error", err)
	}
}
