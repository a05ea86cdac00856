// Package gateway implements the control node.
//
// # Overview
//
// A Gateway owns one control listener, one agent registry and one long-lived
// server key pair. Agents dial in, announce their public key, and receive
// the server's key in return. After that every content message is encrypted
// with the recipient's key.
//
// # Connection Handling
//
// Each accepted connection gets its own read loop (conn.go). Frames are
// newline-delimited JSON messages. A frame that fails to decode or decrypt is
// logged and dropped; the connection stays open. A transport error or EOF
// unregisters the agent and fails any reply the operator is waiting on.
//
// Content is routed as follows:
//
//   - before the handshake: decrypted and logged only
//   - "pong": counted and logged
//   - anything else: handed to the agent's pending reply listener, or dropped
//
// # Operator Operations
//
//   - ListAgents, SetFocus, Focus, Rename, SendPing
//   - SendToFocused, WaitForNextFromFocused, Exchange
//   - Port/SetPort, RSABitLength/SetRSABitLength, PrivateKey
//   - History (requires a session journal)
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger, gateway.WithStore(journal))
//	gw.Start()   // listen on the configured port
//	gw.Restart() // close everything, fresh registry, listen again
//	gw.Close()   // end all agent connections, stop listening
//
// Run wraps Start with the HTTP endpoints (/health, /health/ready,
// /api/agents and optionally metrics) and the optional Tailscale listener,
// and shuts everything down when its context is canceled.
//
// # Key Files
//
//   - gateway.go: Gateway struct, construction, Start/Close/Restart
//   - conn.go: per-connection read loop and message routing
//   - operator.go: operations called by the operator shell
//   - journal.go: session journal hooks
//   - http.go: chi router
//   - run.go: Run and shutdown
//   - tailscale.go: tsnet listener
package gateway
