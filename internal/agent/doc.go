// Package agent tracks the agents connected to the control node.
//
// # Registry
//
// The Registry maps identities to connected agents and holds the operator's
// focus:
//
//	reg := agent.NewRegistry(logger)
//
// Key operations:
//
//   - Add(transport, key): register a handshaken connection as "client-{N}"
//   - Remove(transport): drop the agent bound to a connection
//   - Rename(old, new): rename, refusing duplicates and "client-<digits>" targets
//   - SetFocus(name): focus an agent; "" or an unknown name clears focus
//   - Focus(), Get(name), List(): lookups; List returns a snapshot
//
// # Naming
//
// N comes from a counter that only grows. It is never reused, even after the
// agent that held a name disconnects, so "client-3" always means the third
// connection this registry accepted.
//
// # Focus
//
// Focus is either empty or points at an agent currently in the registry.
// Removing the focused agent clears focus.
//
// # Reply Listener
//
// Each Agent can hold at most one pending reply listener:
//
//  1. ExpectReply installs the listener and returns a channel
//  2. the next content message from that agent resolves it via Deliver
//  3. the listener detaches itself after resolving
//
// Content that arrives with no listener installed is not buffered.
//
// # Thread Safety
//
// Registry and Agent are safe for concurrent use. The registry lock guards the
// name map, counter and focus; each Agent guards its own name, key and listener.
package agent
