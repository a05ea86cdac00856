// Package protocol defines the control-node wire record and the rules for
// which key encrypts which direction.
//
// # Wire record
//
// One Message per frame, JSON encoded:
//
//	{"content": "...", "encrypted": true}
//	{"RSAPublicKey": {"e": "65537", "n": "3233..."}}
//
// Exactly one of content / RSAPublicKey is set. Key components travel as
// decimal strings.
//
// # Framing
//
// Frames are newline terminated. JSON encoding never emits a raw newline, so
// a frame boundary is unambiguous even when the transport coalesces or splits
// writes. A frame that does not decode is reported as a *FrameError wrapping
// ErrMalformed; the stream stays usable and the caller decides whether to log
// and continue.
//
// # Handshake
//
//  1. the agent generates its key pair after connecting
//  2. the agent sends a handshake carrying its public key, unencrypted
//  3. the control node registers the agent and answers with its own key
//  4. both sides now hold the peer key
//
// After the handshake, Session.Seal encrypts with the peer's public key and
// Session.Open decrypts with our own private key. Content marked
// encrypted=false is passed through as plaintext.
package protocol
