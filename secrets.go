package sphinx

import "github.com/btcsuite/btcd/btcec/v2"

// WipeSharedSecrets overwrites every shared secret in pairs with zero bytes,
// in place. Call it once an originator no longer needs to authenticate or
// decrypt a returned failure onion for these hops - for example, after a
// payment has settled.
func WipeSharedSecrets(pairs []SharedSecretPair) {
	for i := range pairs {
		pairs[i] = NewSharedSecretPair(nil, Hash256{})
	}
}

// ZeroPrivateKey scrubs a session or node private key's scalar from memory.
// Callers that construct a packet with an ephemeral session key should zero
// it once the packet has been sent, since nothing in this package retains a
// copy of it after NewOnionPacket returns.
func ZeroPrivateKey(key *btcec.PrivateKey) {
	if key != nil {
		key.Key.Zero()
	}
}
