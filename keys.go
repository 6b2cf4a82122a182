package sphinx

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lightning-onion/fn"
)

// Sub-key derivation labels. Each is HMAC-SHA256'd against a per-hop shared
// secret (or, for padLabel, the session scalar directly) to derive a
// sub-key used for exactly one purpose.
var (
	rhoLabel   = []byte("rho")
	muLabel    = []byte("mu")
	umLabel    = []byte("um")
	padLabel   = []byte("pad")
	ammagLabel = []byte("ammag")
)

// MaxHops is the maximum path length this construction supports. A longer
// path can't be hidden behind a constant-width packet without the filler
// growing unboundedly relative to P.
const MaxHops = 20

// SharedSecretPair bundles a single hop's blinded ephemeral public key
// (alpha_i) together with the shared secret (s_i) the originator and that
// hop both derive for it. NewOnionPacket returns an ordered list of these so the
// originator can later authenticate and decrypt a returned failure onion.
type SharedSecretPair = fn.T2[*btcec.PublicKey, Hash256]

// NewSharedSecretPair builds a SharedSecretPair from an ephemeral key and
// shared secret.
func NewSharedSecretPair(ephemeralKey *btcec.PublicKey, secret Hash256) SharedSecretPair {
	return fn.NewT2(ephemeralKey, secret)
}

// generateKey derives a sub-key of the given label from secret via
// HMAC-SHA256(label, secret).
func generateKey(label []byte, secret [32]byte) [32]byte {
	return hmacSHA256(label, secret[:])
}

// rhoKey, muKey, umKey, and ammagKey derive the four per-hop sub-keys from a
// shared secret. padKey derives the single, originator-only padding key
// directly from the session scalar.
func rhoKey(secret Hash256) [32]byte   { return generateKey(rhoLabel, secret) }
func muKey(secret Hash256) [32]byte    { return generateKey(muLabel, secret) }
func umKey(secret Hash256) [32]byte    { return generateKey(umLabel, secret) }
func ammagKey(secret Hash256) [32]byte { return generateKey(ammagLabel, secret) }

func padKey(sessionScalar [32]byte) [32]byte {
	return generateKey(padLabel, sessionScalar)
}

// generateSharedSecrets implements the key schedule described in the
// Sphinx construction (C2): from a single session scalar and the ordered
// list of hop public keys, it derives the per-hop blinded ephemeral public
// key and shared secret, walking the multiplicative blinding chain one hop
// at a time.
//
//	alpha_0 = sessionScalar * G
//	s_0     = SHA256(sessionScalar * hopPubkey_0)
//	blind_i = SHA256(alpha_i || s_i)
//	alpha_{i+1} = blind_i * alpha_i
//	s_{i+1} = SHA256((blind_0 * ... * blind_i * sessionScalar) * hopPubkey_{i+1})
func generateSharedSecrets(sessionScalar *btcec.PrivateKey,
	hopPubKeys []*btcec.PublicKey) ([]SharedSecretPair, error) {

	numHops := len(hopPubKeys)
	if numHops < 1 || numHops > MaxHops {
		return nil, fmt.Errorf("sphinx: path length %d outside "+
			"[1, %d]", numHops, MaxHops)
	}

	pairs := make([]SharedSecretPair, numHops)

	// sessionBlinded tracks the running product of blinding factors
	// times the original session scalar; it's what's actually used to
	// ECDH against each successive hop's public key.
	sessionBlinded := new(btcec.ModNScalar)
	sessionBlinded.Set(&sessionScalar.Key)

	alpha := sessionScalar.PubKey()

	for i := 0; i < numHops; i++ {
		secret := ecdh(sessionBlinded, hopPubKeys[i])
		pairs[i] = NewSharedSecretPair(alpha, secret)

		if i == numHops-1 {
			break
		}

		blindingFactor := scalarFromHash(
			sha256Sum(alpha.SerializeCompressed(), secret[:]),
		)

		alpha = blind(alpha, blindingFactor)
		sessionBlinded = sessionBlinded.Mul(blindingFactor)
	}

	return pairs, nil
}

// nextEphemeralKey computes the ephemeral key a downstream hop will see,
// given the current hop's ephemeral key and shared secret. This is the same
// blinding step the originator performs in generateSharedSecrets, replayed
// one hop at a time by a hop that has just peeled its own layer.
func nextEphemeralKey(alpha *btcec.PublicKey, secret Hash256) *btcec.PublicKey {
	blindingFactor := scalarFromHash(
		sha256Sum(alpha.SerializeCompressed(), secret[:]),
	)

	return blind(alpha, blindingFactor)
}
