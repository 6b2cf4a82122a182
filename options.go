package sphinx

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lightning-onion/fn"
)

// ConstructOption configures an optional argument to NewOnionPacketWithOptions.
type ConstructOption func(*constructOpts)

type constructOpts struct {
	associatedData fn.Option[[]byte]
}

// WithAssociatedData attaches associated data - authenticated by every
// hop's HMAC but never transmitted as part of the packet itself - to a
// packet under construction. Without this option no associated data is
// bound to the packet.
func WithAssociatedData(ad []byte) ConstructOption {
	return func(o *constructOpts) {
		o.associatedData = fn.Some(ad)
	}
}

// NewOnionPacketWithOptions is NewOnionPacket with its associated data
// expressed as a functional option instead of a required positional
// argument, for callers that only sometimes have associated data to bind.
func NewOnionPacketWithOptions(paths []*btcec.PublicKey,
	sessionKey *btcec.PrivateKey, payloads [][]byte, packetSize int,
	opts ...ConstructOption) (*OnionPacket, []SharedSecretPair, error) {

	o := constructOpts{associatedData: fn.None[[]byte]()}
	for _, opt := range opts {
		opt(&o)
	}

	ad := fn.ElimOption(o.associatedData, func() []byte { return nil },
		func(ad []byte) []byte { return ad })

	return NewOnionPacket(paths, sessionKey, payloads, ad, packetSize)
}

// PeelOption configures an optional argument to PeelWithOptions.
type PeelOption func(*peelOpts)

type peelOpts struct {
	associatedData fn.Option[[]byte]
}

// WithPeelAssociatedData attaches the associated data a packet was
// constructed with, so Peel can verify it was part of the authenticated
// HMAC. It must match whatever WithAssociatedData supplied at construction
// time, or HMAC verification fails.
func WithPeelAssociatedData(ad []byte) PeelOption {
	return func(o *peelOpts) {
		o.associatedData = fn.Some(ad)
	}
}

// PeelWithOptions is Peel with its associated data expressed as a
// functional option instead of a required positional argument.
func PeelWithOptions(privKey *btcec.PrivateKey, packet *OnionPacket,
	packetSize int, opts ...PeelOption) (*ProcessedPacket, error) {

	o := peelOpts{associatedData: fn.None[[]byte]()}
	for _, opt := range opts {
		opt(&o)
	}

	ad := fn.ElimOption(o.associatedData, func() []byte { return nil },
		func(ad []byte) []byte { return ad })

	return Peel(privKey, ad, packet, packetSize)
}
