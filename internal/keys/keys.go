// ABOUTME: RSA key pair types and key generation on top of internal/prime.
// ABOUTME: Public exponent is fixed at 65537; incompatible totients fail the call.

package keys

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/ssh"

	"github.com/2389/coven-control/internal/prime"
)

// PublicExponent is the fixed public exponent e.
const PublicExponent = 65537

// ErrIncompatiblePublicExponent indicates gcd(e, phi) != 1 for the sampled primes.
// Callers wanting a key must call GenerateKeyPair again.
var ErrIncompatiblePublicExponent = errors.New("public exponent is not coprime with phi")

// PublicKey is the (e, n) half of a key pair.
type PublicKey struct {
	E *big.Int
	N *big.Int
}

// PrivateKey is the (d, n) half of a key pair.
type PrivateKey struct {
	D *big.Int
	N *big.Int
}

// KeyPair holds both halves; N is shared and never re-derived.
type KeyPair struct {
	Public  PublicKey
	Private PrivateKey
}

// GenerateKeyPair builds a key pair whose modulus is the product of two
// distinct primes of bits/2 bits each.
func GenerateKeyPair(bits int) (*KeyPair, error) {
	p, err := prime.GeneratePrime(bits / 2)
	if err != nil {
		return nil, fmt.Errorf("generating p: %w", err)
	}

	var q *big.Int
	for q == nil || q.Cmp(p) == 0 {
		q, err = prime.GeneratePrime(bits / 2)
		if err != nil {
			return nil, fmt.Errorf("generating q: %w", err)
		}
	}

	return fromPrimes(p, q)
}

// fromPrimes derives a key pair from p and q.
func fromPrimes(p, q *big.Int) (*KeyPair, error) {
	one := big.NewInt(1)
	n := new(big.Int).Mul(p, q)
	phi := new(big.Int).Mul(new(big.Int).Sub(p, one), new(big.Int).Sub(q, one))

	e := big.NewInt(PublicExponent)
	if prime.GCD(e, phi).Cmp(one) != 0 {
		return nil, ErrIncompatiblePublicExponent
	}

	d, err := prime.ModInverse(e, phi)
	if err != nil {
		return nil, fmt.Errorf("computing private exponent: %w", err)
	}

	return &KeyPair{
		Public:  PublicKey{E: e, N: n},
		Private: PrivateKey{D: d, N: new(big.Int).Set(n)},
	}, nil
}

// BlockSize is the width in bytes of one ciphertext block under modulus n.
func BlockSize(n *big.Int) int {
	return (n.BitLen() + 7) / 8
}

// Bits returns the modulus bit length.
func (k PublicKey) Bits() int {
	return k.N.BitLen()
}

// Fingerprint returns the OpenSSH SHA256 fingerprint of the key, or "" when
// the exponent does not fit an int.
func (k PublicKey) Fingerprint() string {
	if k.E == nil || k.N == nil || !k.E.IsInt64() {
		return ""
	}
	pub, err := ssh.NewPublicKey(&rsa.PublicKey{N: k.N, E: int(k.E.Int64())})
	if err != nil {
		return ""
	}
	return ssh.FingerprintSHA256(pub)
}

// Equal reports whether both keys carry the same exponent and modulus.
func (k PublicKey) Equal(other PublicKey) bool {
	return k.E.Cmp(other.E) == 0 && k.N.Cmp(other.N) == 0
}
