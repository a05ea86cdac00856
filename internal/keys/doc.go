// Package keys builds RSA key pairs from internal/prime and applies them as
// textbook, byte-granular RSA.
//
// Every plaintext byte m is encrypted independently as m^e mod n and written
// as a fixed-width big-endian block of ceil(bitlen(n)/8) bytes. The blocks are
// concatenated and base64 encoded. There is no padding and no chaining; the
// scheme is meant for short control messages only.
//
// Decrypting with a key whose modulus differs from the one used to encrypt
// yields garbage rather than an error.
package keys
