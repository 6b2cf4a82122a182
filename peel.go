package sphinx

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ProcessAction describes what a hop should do with a ProcessedPacket: keep
// forwarding it, or treat itself as the final recipient.
type ProcessAction int

const (
	// MoreHops indicates the packet has at least one more hop to travel
	// after this one.
	MoreHops ProcessAction = iota

	// ExitNode indicates this hop is the final recipient: the "virtual"
	// HMAC for the next packet was all-zero.
	ExitNode
)

func (a ProcessAction) String() string {
	if a == ExitNode {
		return "ExitNode"
	}
	return "MoreHops"
}

// ProcessedPacket is the result of peeling one layer off an onion packet.
type ProcessedPacket struct {
	// Action indicates whether this hop is the payment's final
	// recipient or should forward NextPacket onward.
	Action ProcessAction

	// Payload is this hop's own payload, with its length-prefix framing
	// intact but its trailing HMAC stripped off.
	Payload []byte

	// SharedSecret is the secret this hop derived for itself; it's also
	// the value the originator stored for this hop when it called
	// NewOnionPacket, and is used to wrap a returned failure onion.
	SharedSecret Hash256

	// NextPacket is the packet to forward to the next hop. It's valid
	// (but uninteresting - its HMAC is all-zero) even when Action is
	// ExitNode.
	NextPacket *OnionPacket
}

// Peel implements the packet peeler (C5): given a hop's private key, it
// authenticates and decrypts one layer of an onion packet, returning that
// hop's own payload, the shared secret it derived (needed later to
// authenticate or wrap a failure onion), and the packet to forward.
//
// Peel returns ErrInvalidOnionVersion, ErrInvalidOnionKey, or
// ErrInvalidOnionHMAC - each carrying the SHA-256 of the full received
// packet - when the packet fails validation. These are recoverable at the
// caller's boundary (report upstream via a failure onion); Peel never
// retries and never returns a partial result.
func Peel(privKey *btcec.PrivateKey, associatedData []byte,
	packet *OnionPacket, packetSize int) (*ProcessedPacket, error) {

	packetHash := packet.hash()

	if packet.Version != baseVersion {
		return nil, ErrInvalidOnionVersion{Hash: packetHash}
	}

	if packet.EphemeralKey == nil {
		return nil, ErrInvalidOnionKey{Hash: packetHash}
	}

	secret := ecdh(&privKey.Key, packet.EphemeralKey)
	defer zero(secret[:])

	mu := muKey(secret)
	expectedHMAC := hmacSHA256(mu[:], append(
		append([]byte{}, packet.RoutingInfo...), associatedData...,
	))
	zero(mu[:])
	if !hmacsEqual(expectedHMAC, packet.HMAC) {
		return nil, ErrInvalidOnionHMAC{Hash: packetHash}
	}

	// Extend the payload region with packetSize zero bytes on the right
	// and XOR the whole 2*packetSize buffer with the rho keystream. The
	// tail beyond the original payload region - which this hop can now
	// see cryptographically, but never could have predicted without the
	// key - is exactly the bytes the next hop's payload region should
	// start with.
	extended := make([]byte, 2*packetSize)
	copy(extended, packet.RoutingInfo)

	rho := rhoKey(secret)
	stream := generateStreamCipherBytes(rho, 2*packetSize)
	zero(rho[:])
	xorBytes(extended, extended, stream)
	zero(stream)

	frameLen, err := PeekPayloadLength(extended)
	if err != nil {
		return nil, err
	}
	if frameLen < hmacSize || frameLen+uint64(packetSize) > uint64(len(extended)) {
		return nil, fmt.Errorf("sphinx: decrypted hop frame length %d "+
			"out of bounds for packet size %d", frameLen, packetSize)
	}

	payload := extended[:frameLen-hmacSize]
	var nextHMAC [hmacSize]byte
	copy(nextHMAC[:], extended[frameLen-hmacSize:frameLen])

	nextPayloadRegion := make([]byte, packetSize)
	copy(nextPayloadRegion, extended[frameLen:uint64(frameLen)+uint64(packetSize)])

	nextAlpha := nextEphemeralKey(packet.EphemeralKey, secret)

	nextPacket := &OnionPacket{
		Version:      baseVersion,
		EphemeralKey: nextAlpha,
		RoutingInfo:  nextPayloadRegion,
		HMAC:         nextHMAC,
	}
	copy(nextPacket.EphemeralKeyBytes[:], nextAlpha.SerializeCompressed())

	action := MoreHops
	var zeroHMAC [hmacSize]byte
	if equalBytes(nextHMAC[:], zeroHMAC[:]) {
		action = ExitNode
	}

	return &ProcessedPacket{
		Action:       action,
		Payload:      payload,
		SharedSecret: secret,
		NextPacket:   nextPacket,
	}, nil
}
