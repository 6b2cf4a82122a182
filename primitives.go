package sphinx

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/chacha20"
)

// Hash256 is a 32-byte value produced by SHA-256. It's used throughout this
// package for shared secrets and the sub-keys derived from them.
type Hash256 [32]byte

// zeroNonce is the all-zero 96-bit ChaCha20 nonce used for every keystream
// generated in this package. Stream re-use is safe here because every
// keystream is generated under a fresh, single-use key derived from a
// per-hop shared secret (or, for the padding key, a one-shot session
// scalar): a given (key, nonce) pair is consumed exactly once.
var zeroNonce = make([]byte, chacha20.NonceSize)

// sha256Sum returns the SHA-256 digest of the concatenation of the passed
// byte slices.
func sha256Sum(parts ...[]byte) Hash256 {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}

	var out Hash256
	copy(out[:], h.Sum(nil))
	return out
}

// hmacSHA256 computes HMAC-SHA256(key, msg).
func hmacSHA256(key, msg []byte) Hash256 {
	h := hmac.New(sha256.New, key)
	h.Write(msg)

	var out Hash256
	copy(out[:], h.Sum(nil))
	return out
}

// hmacsEqual performs a constant-time comparison of two HMAC values.
func hmacsEqual(a, b [32]byte) bool {
	return hmac.Equal(a[:], b[:])
}

// generateStreamCipherBytes returns the first numBytes bytes of the
// zero-nonce ChaCha20 keystream produced under the given 32-byte key. It is
// the single primitive backing the rho/pad/ammag-keyed XOR operations used
// by the filler generator, the packet builder/peeler, and the failure
// onion.
func generateStreamCipherBytes(key [32]byte, numBytes int) []byte {
	stream := make([]byte, numBytes)

	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], zeroNonce)
	if err != nil {
		// A 32-byte key and a 12-byte nonce are always valid inputs;
		// reaching this indicates a broken build of x/crypto/chacha20.
		panic(fmt.Sprintf("sphinx: invalid chacha20 params: %v", err))
	}

	cipher.XORKeyStream(stream, stream)
	return stream
}

// xorBytes computes dst = a XOR b over the shorter of the two slices,
// writing the result into dst. dst may alias a.
func xorBytes(dst, a, b []byte) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	for i := 0; i < n; i++ {
		dst[i] = a[i] ^ b[i]
	}
}

// rightShift shifts slice to the right by num bytes, discarding the
// trailing num bytes and zero-filling the gap that opens up on the left.
func rightShift(slice []byte, num int) {
	for i := len(slice) - num - 1; i >= 0; i-- {
		slice[num+i] = slice[i]
	}
	for i := 0; i < num && i < len(slice); i++ {
		slice[i] = 0
	}
}

// zero overwrites a byte slice with zeros. It's used to scrub secret
// material (session scalars, shared secrets, derived sub-keys) once an
// operation no longer needs them, per the secret-hygiene requirement that
// accompanies this construction.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// blind multiplies the given curve point by a scalar, returning the
// resulting point. It's used both to derive the next hop's ephemeral public
// key (alpha) and, inside ecdh, to compute each hop's shared secret.
func blind(point *btcec.PublicKey, blindingFactor *btcec.ModNScalar) *btcec.PublicKey {
	var pointJacobian, resultJacobian btcec.JacobianPoint
	point.AsJacobian(&pointJacobian)

	btcec.ScalarMultNonConst(blindingFactor, &pointJacobian, &resultJacobian)
	resultJacobian.ToAffine()

	return btcec.NewPublicKey(&resultJacobian.X, &resultJacobian.Y)
}

// scalarFromHash interprets a 32-byte hash as a scalar modulo the curve
// order. Blinding factors and blinded session scalars are derived this way
// throughout the key schedule.
func scalarFromHash(h Hash256) *btcec.ModNScalar {
	var s btcec.ModNScalar
	s.SetByteSlice(h[:])
	return &s
}

// ecdh performs scalar multiplication of privScalar with the given public
// key and returns SHA-256 of the resulting point's compressed serialization.
// Both sides of a Sphinx exchange - the originator (with a blinded session
// scalar) and the hop (with its static private key) - compute the same
// value via this function for a given hop, which is the shared secret s_i.
func ecdh(privScalar *btcec.ModNScalar, point *btcec.PublicKey) Hash256 {
	result := blind(point, privScalar)
	return sha256Sum(result.SerializeCompressed())
}

// equalBytes reports whether two byte slices are identical. It exists
// purely so call sites that are checking the all-zero terminal-HMAC sentinel
// don't need to special-case bytes.Equal vs a constant-time compare - the
// all-zero sentinel carries no secret, so a non-constant-time compare is
// fine there (see Peel).
func equalBytes(a, b []byte) bool {
	return bytes.Equal(a, b)
}
