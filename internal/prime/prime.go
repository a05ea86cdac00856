// ABOUTME: Miller-Rabin primality testing and random prime generation.
// ABOUTME: Witnesses and candidates come from crypto/rand.

package prime

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// DefaultRounds is the witness count used by GeneratePrime.
const DefaultRounds = 20

// ErrInvalidBitLength indicates a prime was requested with fewer than 2 bits.
var ErrInvalidBitLength = errors.New("bit length must be at least 2")

var three = big.NewInt(3)

// IsProbablePrime reports whether n passes rounds of Miller-Rabin.
// A false result is always correct; a true result is wrong with
// probability at most 4^-rounds.
func IsProbablePrime(n *big.Int, rounds int) bool {
	if n.Cmp(two) < 0 {
		return false
	}
	if n.Cmp(three) <= 0 {
		return true
	}
	if n.Bit(0) == 0 {
		return false
	}

	// n-1 = 2^s * d with d odd
	nMinusOne := new(big.Int).Sub(n, one)
	d := new(big.Int).Set(nMinusOne)
	s := 0
	for d.Bit(0) == 0 {
		d.Rsh(d, 1)
		s++
	}

	witnessMax := new(big.Int).Sub(n, two)

witness:
	for i := 0; i < rounds; i++ {
		a, err := RandomInRange(rand.Reader, two, witnessMax)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(fmt.Sprintf("sampling witness: %v", err))
		}

		x := ModExp(a, d, n)
		if x.Cmp(one) == 0 || x.Cmp(nMinusOne) == 0 {
			continue
		}

		for r := 1; r < s; r++ {
			x = ModExp(x, two, n)
			if x.Cmp(one) == 0 {
				return false
			}
			if x.Cmp(nMinusOne) == 0 {
				continue witness
			}
		}
		return false
	}
	return true
}

// GeneratePrime returns a probable prime with exactly bits bits.
func GeneratePrime(bits int) (*big.Int, error) {
	if bits < 2 {
		return nil, fmt.Errorf("generating %d-bit prime: %w", bits, ErrInvalidBitLength)
	}

	min := new(big.Int).Lsh(one, uint(bits-1))
	max := new(big.Int).Lsh(one, uint(bits))
	max.Sub(max, one)

	for {
		candidate, err := RandomInRange(rand.Reader, min, max)
		if err != nil {
			return nil, fmt.Errorf("sampling candidate: %w", err)
		}
		if IsProbablePrime(candidate, DefaultRounds) {
			return candidate, nil
		}
	}
}
