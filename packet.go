package sphinx

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

const (
	// baseVersion is the only version of the onion packet format this
	// package understands.
	baseVersion = 0x00

	// versionSize, ephemeralKeySize, and hmacSize are the fixed-width
	// fields that bracket the variable-size (but, for a given P,
	// constant) encrypted payload region.
	versionSize      = 1
	ephemeralKeySize = 33
	hmacSize         = 32

	// PaymentPacketSize is the size, in bytes, of the encrypted payload
	// region of a payment onion packet.
	PaymentPacketSize = 1300

	// TrampolinePacketSize is the size, in bytes, of the encrypted
	// payload region of a trampoline onion packet nested inside a
	// payment onion's final hop payload.
	TrampolinePacketSize = 400
)

// OnionPacket is the fixed-width wire packet described in BOLT#4: a version
// byte, a 33-byte compressed ephemeral public key, a P-byte encrypted
// payload region, and a 32-byte HMAC authenticating that region together
// with the associated data. Its total size is always 1+33+P+32 bytes,
// independent of how many hops are on the route or how the per-hop payload
// sizes are distributed among them.
//
// EphemeralKeyBytes always holds the raw 33 bytes read off (or written to)
// the wire; EphemeralKey holds the parsed point and is nil when
// EphemeralKeyBytes isn't a valid compressed secp256k1 point. Decode never
// fails solely because of an unparseable key or a non-zero version - both
// are onion-layer failures that Peel reports, tagged with the hash of the
// full received packet, rather than decode-time errors.
type OnionPacket struct {
	Version           byte
	EphemeralKey      *btcec.PublicKey
	EphemeralKeyBytes [ephemeralKeySize]byte
	RoutingInfo       []byte
	HMAC              [32]byte
}

// PacketSize returns the total wire size, in bytes, of an onion packet whose
// encrypted payload region is packetSize bytes.
func PacketSize(packetSize int) int {
	return versionSize + ephemeralKeySize + packetSize + hmacSize
}

// Encode serializes the onion packet to w in its exact wire format.
func (p *OnionPacket) Encode(w io.Writer) error {
	if _, err := w.Write([]byte{p.Version}); err != nil {
		return err
	}

	if _, err := w.Write(p.EphemeralKeyBytes[:]); err != nil {
		return err
	}

	if _, err := w.Write(p.RoutingInfo); err != nil {
		return err
	}

	_, err := w.Write(p.HMAC[:])
	return err
}

// Decode reads a payment-sized (P=PaymentPacketSize) onion packet from r.
// Use DecodeWithPacketSize to decode a packet built with a different P, such
// as a trampoline onion.
func (p *OnionPacket) Decode(r io.Reader) error {
	return p.DecodeWithPacketSize(r, PaymentPacketSize)
}

// DecodeWithPacketSize reads an onion packet whose encrypted payload region
// is packetSize bytes from r.
func (p *OnionPacket) DecodeWithPacketSize(r io.Reader, packetSize int) error {
	var version [versionSize]byte
	if _, err := io.ReadFull(r, version[:]); err != nil {
		return err
	}
	p.Version = version[0]

	if _, err := io.ReadFull(r, p.EphemeralKeyBytes[:]); err != nil {
		return err
	}

	// A parse failure here is reported by Peel as ErrInvalidOnionKey, not
	// by Decode; leave EphemeralKey nil and carry on so the full packet
	// can still be hashed.
	p.EphemeralKey, _ = btcec.ParsePubKey(p.EphemeralKeyBytes[:])

	p.RoutingInfo = make([]byte, packetSize)
	if _, err := io.ReadFull(r, p.RoutingInfo); err != nil {
		return err
	}

	_, err := io.ReadFull(r, p.HMAC[:])
	return err
}

// hopSize returns the total number of bytes a single hop's framed payload
// occupies within the encrypted payload region: the payload itself
// (including its own length prefix) plus the trailing 32-byte HMAC.
func hopSize(payload []byte) int {
	return len(payload) + hmacSize
}

// NewOnionPacket implements the packet builder (C4): it constructs a
// complete forward onion for the given path, wrapping each hop's payload
// from the last hop to the first so that only the originator ever computes
// more than one layer of encryption.
//
// Every payload must already carry its own length-prefix framing (see
// PeekPayloadLength); NewOnionPacket fails if a payload's declared length
// disagrees with its actual size, if the hop count is outside [1, MaxHops],
// or if the combined framed hop sizes exceed packetSize.
func NewOnionPacket(paths []*btcec.PublicKey, sessionKey *btcec.PrivateKey,
	payloads [][]byte, associatedData []byte,
	packetSize int) (*OnionPacket, []SharedSecretPair, error) {

	numHops := len(paths)
	if numHops != len(payloads) {
		return nil, nil, fmt.Errorf("sphinx: got %d hop pubkeys but "+
			"%d payloads", numHops, len(payloads))
	}

	for i, payload := range payloads {
		if err := validateHopPayload(payload); err != nil {
			return nil, nil, fmt.Errorf("sphinx: hop %d: %w", i, err)
		}
	}

	hopSizes := make([]int, numHops)
	totalSize := 0
	for i, payload := range payloads {
		hopSizes[i] = hopSize(payload)
		totalSize += hopSizes[i]
	}
	if totalSize > packetSize {
		return nil, nil, fmt.Errorf("sphinx: combined hop payloads "+
			"(%d bytes) exceed packet size (%d bytes)", totalSize,
			packetSize)
	}

	sharedSecretPairs, err := generateSharedSecrets(sessionKey, paths)
	if err != nil {
		return nil, nil, err
	}

	secrets := make([]Hash256, numHops)
	for i, pair := range sharedSecretPairs {
		secrets[i] = pair.Snd()
	}
	defer func() {
		for i := range secrets {
			zero(secrets[i][:])
		}
	}()

	var filler []byte
	if numHops > 1 {
		filler = generateHeaderPadding(
			rhoLabel, packetSize, secrets[:numHops-1],
			hopSizes[:numHops-1],
		)
	}

	var sessionScalarBytes [32]byte
	copy(sessionScalarBytes[:], sessionKey.Serialize())
	defer zero(sessionScalarBytes[:])

	padKeyBytes := padKey(sessionScalarBytes)
	payloadRegion := generateStreamCipherBytes(padKeyBytes, packetSize)
	zero(padKeyBytes[:])

	var runningHMAC [hmacSize]byte

	for i := numHops - 1; i >= 0; i-- {
		rightShift(payloadRegion, hopSizes[i])

		copy(payloadRegion, payloads[i])
		copy(payloadRegion[len(payloads[i]):], runningHMAC[:])

		rhoKeyBytes := rhoKey(secrets[i])
		rhoStream := generateStreamCipherBytes(rhoKeyBytes, packetSize)
		zero(rhoKeyBytes[:])
		xorBytes(payloadRegion, payloadRegion, rhoStream)
		zero(rhoStream)

		if i == numHops-1 && len(filler) > 0 {
			copy(payloadRegion[packetSize-len(filler):], filler)
		}

		muKeyBytes := muKey(secrets[i])
		runningHMAC = hmacSHA256(
			muKeyBytes[:], append(
				append([]byte{}, payloadRegion...),
				associatedData...,
			),
		)
		zero(muKeyBytes[:])
	}

	ephemeralKey := sharedSecretPairs[0].Fst()
	packet := &OnionPacket{
		Version:      baseVersion,
		EphemeralKey: ephemeralKey,
		RoutingInfo:  payloadRegion,
		HMAC:         runningHMAC,
	}
	copy(packet.EphemeralKeyBytes[:], ephemeralKey.SerializeCompressed())

	return packet, sharedSecretPairs, nil
}

// hash returns the SHA-256 of the packet's exact wire encoding, used to tag
// onion-layer errors so the rejecting node can report exactly what it
// rejected without leaking anything beyond that hash.
func (p *OnionPacket) hash() [32]byte {
	var buf bytes.Buffer
	// Encode errors are impossible against a bytes.Buffer.
	_ = p.Encode(&buf)
	return sha256Sum(buf.Bytes())
}
