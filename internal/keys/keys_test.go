// ABOUTME: Tests for key generation and the byte-granular codec.
// ABOUTME: Round trips, e*d = 1 mod phi, block widths and wrong-key behavior.

package keys

import (
	"encoding/base64"
	"errors"
	"math/big"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generate retries on ErrIncompatiblePublicExponent the way callers are expected to.
func generate(t *testing.T, bits int) *KeyPair {
	t.Helper()
	for {
		kp, err := GenerateKeyPair(bits)
		if errors.Is(err, ErrIncompatiblePublicExponent) {
			continue
		}
		require.NoError(t, err)
		return kp
	}
}

func TestGenerateKeyPair(t *testing.T) {
	t.Run("shares modulus and fixes e", func(t *testing.T) {
		kp := generate(t, 128)
		assert.Equal(t, 0, kp.Public.N.Cmp(kp.Private.N))
		assert.Equal(t, int64(PublicExponent), kp.Public.E.Int64())
		assert.InDelta(t, 128, kp.Public.Bits(), 1)
	})

	t.Run("rejects bit lengths below four", func(t *testing.T) {
		_, err := GenerateKeyPair(3)
		assert.Error(t, err)
	})
}

func TestGenerateKeyPair_DistinctPrimes(t *testing.T) {
	// 5 and 7 are the only 3-bit primes, so distinct factors always give 35.
	for i := 0; i < 50; i++ {
		kp, err := GenerateKeyPair(6)
		require.NoError(t, err)
		assert.Equal(t, int64(35), kp.Public.N.Int64())
	}
}

func TestFromPrimes(t *testing.T) {
	t.Run("e*d mod phi is one", func(t *testing.T) {
		p, q := big.NewInt(61), big.NewInt(53)
		kp, err := fromPrimes(p, q)
		require.NoError(t, err)

		phi := big.NewInt(60 * 52)
		check := new(big.Int).Mul(kp.Public.E, kp.Private.D)
		check.Mod(check, phi)
		assert.Equal(t, int64(1), check.Int64())
		assert.Equal(t, int64(3233), kp.Public.N.Int64())
	})

	t.Run("incompatible exponent aborts", func(t *testing.T) {
		// 65537*2+1 = 131075 is not prime but is enough to make phi a multiple of e.
		p := big.NewInt(2*PublicExponent + 1)
		_, err := fromPrimes(p, big.NewInt(3))
		assert.ErrorIs(t, err, ErrIncompatiblePublicExponent)
	})
}

func TestRoundTrip(t *testing.T) {
	messages := []string{
		"Hello world !",
		"",
		"ping",
		"ls -la /tmp && echo done",
		"unicode: héllo wörld ✓",
		strings.Repeat("x", 300),
	}

	for _, bits := range []int{16, 32, 64, 256} {
		kp := generate(t, bits)
		for _, msg := range messages {
			ct := Encrypt(msg, kp.Public)
			pt, err := Decrypt(ct, kp.Private)
			require.NoError(t, err)
			assert.Equal(t, msg, pt, "bits=%d", bits)
		}
	}
}

func TestRoundTripRandomPrintable(t *testing.T) {
	kp := generate(t, 64)
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 100; i++ {
		buf := make([]byte, rng.IntN(64))
		for j := range buf {
			buf[j] = byte(0x20 + rng.IntN(0x7f-0x20))
		}
		pt, err := Decrypt(Encrypt(string(buf), kp.Public), kp.Private)
		require.NoError(t, err)
		require.Equal(t, string(buf), pt)
	}
}

func TestEncryptBlockLayout(t *testing.T) {
	kp := generate(t, 64)
	ct := Encrypt("abc", kp.Public)
	assert.NotEqual(t, "abc", ct)

	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)
	assert.Len(t, raw, 3*BlockSize(kp.Public.N))
}

func TestDecryptWithWrongKeyIsGarbage(t *testing.T) {
	a := generate(t, 64)
	var b *KeyPair
	for b == nil || b.Public.N.Cmp(a.Public.N) == 0 {
		b = generate(t, 64)
	}

	pt, err := Decrypt(Encrypt("secret message", a.Public), b.Private)
	require.NoError(t, err)
	assert.NotEqual(t, "secret message", pt)
}

func TestDecryptRejectsMalformedBase64(t *testing.T) {
	kp := generate(t, 32)
	_, err := Decrypt("not base64!!", kp.Private)
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	kp := generate(t, 64)
	fp := kp.Public.Fingerprint()
	assert.True(t, strings.HasPrefix(fp, "SHA256:"), "got %q", fp)
	assert.Equal(t, fp, kp.Public.Fingerprint())

	huge := PublicKey{E: new(big.Int).Lsh(big.NewInt(1), 80), N: kp.Public.N}
	assert.Empty(t, huge.Fingerprint())
}
