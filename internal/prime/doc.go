// Package prime implements the arbitrary-precision arithmetic the control
// protocol's key material is built from.
//
// # Arithmetic
//
// All values are *big.Int and every helper returns a fresh value; arguments are
// never mutated:
//
//   - ModExp(base, exp, mod): square-and-multiply, result in [0, mod)
//   - GCD(a, b): iterative Euclid
//   - ModInverse(a, m): extended Euclid, ErrNoInverse when gcd(a, m) != 1
//   - RandomInRange(r, min, max): uniform in [min, max] by rejection sampling
//
// # Primality
//
// IsProbablePrime runs Miller–Rabin with independently sampled witnesses.
// With DefaultRounds (20) the false-positive bound is 4^-20:
//
//	ok := prime.IsProbablePrime(big.NewInt(7919), prime.DefaultRounds)
//
// GeneratePrime draws candidates with exactly the requested bit length until
// one passes:
//
//	p, err := prime.GeneratePrime(512)
//
// Neither call can be cancelled; they run to completion on the caller's goroutine.
package prime
