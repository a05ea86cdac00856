// ABOUTME: Per-connection encryption direction: seal with the peer key, open with ours.
// ABOUTME: Holds the peer public key learned during the handshake.

package protocol

import (
	"errors"
	"fmt"
	"sync"

	"github.com/2389/coven-control/internal/keys"
)

// ErrNoPeerKey indicates content was sealed before the handshake completed.
var ErrNoPeerKey = errors.New("peer public key not received")

// Session applies the encryption rules for one connection.
type Session struct {
	own *keys.KeyPair

	mu   sync.RWMutex
	peer *keys.PublicKey
}

// NewSession returns a Session that decrypts with own.
func NewSession(own *keys.KeyPair) *Session {
	return &Session{own: own}
}

// SetPeer stores the peer's public key.
func (s *Session) SetPeer(pub keys.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peer = &pub
}

// Peer returns the stored peer key.
func (s *Session) Peer() (keys.PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.peer == nil {
		return keys.PublicKey{}, false
	}
	return *s.peer, true
}

// Own returns the local key pair.
func (s *Session) Own() *keys.KeyPair {
	return s.own
}

// Handshake returns the handshake announcing our public key.
func (s *Session) Handshake() Message {
	return NewHandshake(s.own.Public)
}

// Seal encrypts text for the peer.
func (s *Session) Seal(text string) (Message, error) {
	peer, ok := s.Peer()
	if !ok {
		return Message{}, ErrNoPeerKey
	}
	return NewContent(keys.Encrypt(text, peer), true), nil
}

// Open returns the plaintext of a content message and whether it arrived encrypted.
func (s *Session) Open(m Message) (text string, encrypted bool, err error) {
	if m.Content == nil {
		return "", false, fmt.Errorf("opening handshake as content: %w", ErrMalformed)
	}
	if !m.Encrypted {
		return *m.Content, false, nil
	}
	text, err = keys.Decrypt(*m.Content, s.own.Private)
	if err != nil {
		return "", true, fmt.Errorf("decrypting content: %w", err)
	}
	return text, true, nil
}
