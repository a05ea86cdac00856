// ABOUTME: Byte-granular textbook RSA encryption and decryption.
// ABOUTME: Fixed-width blocks derived from the modulus, base64 transport encoding.

package keys

import (
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/2389/coven-control/internal/prime"
)

// Encrypt encrypts each byte of plaintext under pub and returns the base64
// encoding of the concatenated fixed-width blocks.
func Encrypt(plaintext string, pub PublicKey) string {
	width := BlockSize(pub.N)
	raw := []byte(plaintext)
	out := make([]byte, len(raw)*width)

	m := new(big.Int)
	for i, b := range raw {
		m.SetUint64(uint64(b))
		c := prime.ModExp(m, pub.E, pub.N)
		c.FillBytes(out[i*width : (i+1)*width])
	}
	return base64.StdEncoding.EncodeToString(out)
}

// Decrypt reverses Encrypt with the recipient's private key.
// Only a malformed base64 payload is an error; a mismatched key produces garbage.
func Decrypt(ciphertext string, priv PrivateKey) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	width := BlockSize(priv.N)
	if width == 0 {
		return "", fmt.Errorf("decrypting with empty modulus")
	}
	out := make([]byte, 0, len(raw)/width+1)
	lowByte := big.NewInt(0xff)

	c := new(big.Int)
	for start := 0; start < len(raw); start += width {
		end := min(start+width, len(raw))
		c.SetBytes(raw[start:end])
		m := prime.ModExp(c, priv.D, priv.N)
		out = append(out, byte(m.And(m, lowByte).Uint64()))
	}
	return string(out), nil
}
