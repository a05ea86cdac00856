// ABOUTME: Wire message types for the control protocol.
// ABOUTME: Handshake and content variants, validation and key conversion.

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/2389/coven-control/internal/keys"
)

// Control payloads exchanged through the normal encrypted path.
const (
	PingPayload = "ping"
	PongPayload = "pong"
)

// ErrMalformed indicates a frame that is not a valid Message.
var ErrMalformed = errors.New("malformed message")

// WireKey is a public key as carried on the wire.
type WireKey struct {
	E string `json:"e"`
	N string `json:"n"`
}

// Message is one wire unit. Exactly one of Content and PublicKey is set.
type Message struct {
	Content   *string  `json:"content,omitempty"`
	Encrypted bool     `json:"encrypted,omitempty"`
	PublicKey *WireKey `json:"RSAPublicKey,omitempty"`
}

// NewHandshake builds the handshake message announcing pub.
func NewHandshake(pub keys.PublicKey) Message {
	return Message{
		PublicKey: &WireKey{E: pub.E.String(), N: pub.N.String()},
	}
}

// NewContent builds a content message.
func NewContent(payload string, encrypted bool) Message {
	return Message{Content: &payload, Encrypted: encrypted}
}

// IsHandshake reports whether m carries a public key.
func (m Message) IsHandshake() bool {
	return m.PublicKey != nil
}

// Payload returns the content string, or "" for a handshake.
func (m Message) Payload() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// Key parses the carried public key.
func (m Message) Key() (keys.PublicKey, error) {
	if m.PublicKey == nil {
		return keys.PublicKey{}, fmt.Errorf("no public key: %w", ErrMalformed)
	}
	e, ok := new(big.Int).SetString(m.PublicKey.E, 10)
	if !ok || e.Sign() <= 0 {
		return keys.PublicKey{}, fmt.Errorf("public exponent %q: %w", m.PublicKey.E, ErrMalformed)
	}
	n, ok := new(big.Int).SetString(m.PublicKey.N, 10)
	if !ok || n.Cmp(big.NewInt(1)) <= 0 {
		return keys.PublicKey{}, fmt.Errorf("modulus %q: %w", m.PublicKey.N, ErrMalformed)
	}
	return keys.PublicKey{E: e, N: n}, nil
}

// Validate checks the exactly-one-variant rule and key syntax.
func (m Message) Validate() error {
	switch {
	case m.PublicKey != nil && m.Content != nil:
		return fmt.Errorf("both content and public key set: %w", ErrMalformed)
	case m.PublicKey != nil:
		_, err := m.Key()
		return err
	case m.Content != nil:
		return nil
	default:
		return fmt.Errorf("neither content nor public key set: %w", ErrMalformed)
	}
}

// Encode marshals m without a frame terminator.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Decode parses and validates one frame.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
