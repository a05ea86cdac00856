// ABOUTME: Modular arithmetic over arbitrary-precision integers.
// ABOUTME: ModExp, GCD, ModInverse and bounded uniform sampling.

package prime

import (
	"errors"
	"fmt"
	"io"
	"math/big"
)

// ErrNoInverse indicates a has no inverse modulo m because gcd(a, m) != 1.
var ErrNoInverse = errors.New("no modular inverse exists")

// ErrEmptyRange indicates RandomInRange was called with max < min.
var ErrEmptyRange = errors.New("empty sampling range")

var (
	zero = big.NewInt(0)
	one  = big.NewInt(1)
	two  = big.NewInt(2)
)

// ModExp computes base^exp mod m by square-and-multiply.
// exp must be non-negative and m positive; the result is in [0, m).
func ModExp(base, exp, m *big.Int) *big.Int {
	if m.Cmp(one) == 0 {
		return new(big.Int)
	}

	result := big.NewInt(1)
	b := new(big.Int).Mod(base, m)
	e := new(big.Int).Set(exp)

	for e.Sign() > 0 {
		if e.Bit(0) == 1 {
			result.Mul(result, b)
			result.Mod(result, m)
		}
		e.Rsh(e, 1)
		b.Mul(b, b)
		b.Mod(b, m)
	}
	return result
}

// GCD returns the greatest common divisor of a and b.
func GCD(a, b *big.Int) *big.Int {
	x := new(big.Int).Abs(a)
	y := new(big.Int).Abs(b)
	for y.Sign() != 0 {
		x, y = y, x.Mod(x, y)
	}
	return x
}

// ModInverse returns d in [0, m) with a*d ≡ 1 (mod m).
// Returns ErrNoInverse if a and m are not coprime.
func ModInverse(a, m *big.Int) (*big.Int, error) {
	if m.Sign() <= 0 {
		return nil, fmt.Errorf("modulus must be positive, got %s", m)
	}
	if m.Cmp(one) == 0 {
		return new(big.Int), nil
	}

	// Invariant: oldR = oldS*a (mod m), r = s*a (mod m).
	oldR, r := new(big.Int).Mod(a, m), new(big.Int).Set(m)
	oldS, s := big.NewInt(1), big.NewInt(0)
	q := new(big.Int)
	tmp := new(big.Int)

	for r.Sign() != 0 {
		q.Quo(oldR, r)

		tmp.Mul(q, r)
		oldR, r = r, tmp.Sub(oldR, tmp)
		tmp = new(big.Int)

		tmp.Mul(q, s)
		oldS, s = s, tmp.Sub(oldS, tmp)
		tmp = new(big.Int)
	}

	if oldR.Cmp(one) != 0 {
		return nil, fmt.Errorf("inverting %s mod %s: %w", a, m, ErrNoInverse)
	}
	if oldS.Sign() < 0 {
		oldS.Add(oldS, m)
	}
	return oldS, nil
}

// RandomInRange returns an integer drawn uniformly from [min, max].
// Candidates are sampled over the smallest power-of-two range covering
// max-min+1 values and rejected until one falls inside.
func RandomInRange(r io.Reader, min, max *big.Int) (*big.Int, error) {
	span := new(big.Int).Sub(max, min)
	if span.Sign() < 0 {
		return nil, fmt.Errorf("sampling [%s, %s]: %w", min, max, ErrEmptyRange)
	}
	span.Add(span, one)

	bits := span.BitLen()
	buf := make([]byte, (bits+7)/8)
	excess := uint(len(buf)*8 - bits)
	candidate := new(big.Int)

	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("reading random bytes: %w", err)
		}
		buf[0] &= byte(0xff >> excess)
		candidate.SetBytes(buf)
		if candidate.Cmp(span) < 0 {
			return candidate.Add(candidate, min), nil
		}
	}
}
