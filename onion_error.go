package sphinx

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

const (
	// failureMessageSpace is the fixed number of bytes reserved for a
	// failure message plus its zero padding, independent of the message's
	// actual encoded length.
	failureMessageSpace = 256

	// FailurePacketSize is the total wire size of a failure onion: a
	// 32-byte HMAC, a 2-byte failure-message length, the reserved
	// message-plus-padding space, and a 2-byte padding length.
	FailurePacketSize = hmacSize + 2 + failureMessageSpace + 2
)

// NewFailurePacket implements the failure-onion constructor (C7): it builds
// the fixed-width failure packet a hop sends back toward the originator when
// it cannot process (or forward) an onion, and obfuscates it once under its
// own shared secret exactly as every upstream hop will do again on the way
// back.
//
// The returned packet is always exactly FailurePacketSize bytes, regardless
// of how short the encoded failure message is; the unused space is
// zero-padded before obfuscation so its length leaks nothing.
func NewFailurePacket(sharedSecret Hash256, failure FailureMessage) ([]byte, error) {
	msgBytes, err := EncodeFailureMessage(failure)
	if err != nil {
		return nil, fmt.Errorf("sphinx: unable to encode failure "+
			"message: %w", err)
	}
	if len(msgBytes) > failureMessageSpace {
		return nil, fmt.Errorf("sphinx: failure message of %d bytes "+
			"exceeds the %d-byte reserved space", len(msgBytes),
			failureMessageSpace)
	}

	padLen := failureMessageSpace - len(msgBytes)

	body := make([]byte, 0, 4+failureMessageSpace)
	body = appendUint16(body, uint16(len(msgBytes)))
	body = append(body, msgBytes...)
	body = appendUint16(body, uint16(padLen))
	body = append(body, make([]byte, padLen)...)

	um := umKey(sharedSecret)
	mac := hmacSHA256(um[:], body)
	zero(um[:])

	packet := make([]byte, 0, FailurePacketSize)
	packet = append(packet, mac[:]...)
	packet = append(packet, body...)

	return obfuscateFailurePacket(packet, sharedSecret), nil
}

// WrapFailurePacket re-obfuscates an already-built failure packet under an
// intermediate hop's own shared secret, as that hop forwards the packet
// back toward the originator. It doesn't touch the packet's HMAC or
// contents - it only adds one more layer of ChaCha20 keystream, exactly
// mirroring the layer NewFailurePacket itself adds at the reporting hop.
func WrapFailurePacket(packet []byte, sharedSecret Hash256) ([]byte, error) {
	if len(packet) != FailurePacketSize {
		return nil, fmt.Errorf("sphinx: failure packet is %d bytes, "+
			"want %d", len(packet), FailurePacketSize)
	}
	return obfuscateFailurePacket(packet, sharedSecret), nil
}

func obfuscateFailurePacket(packet []byte, sharedSecret Hash256) []byte {
	key := ammagKey(sharedSecret)
	stream := generateStreamCipherBytes(key, FailurePacketSize)
	zero(key[:])

	out := make([]byte, FailurePacketSize)
	xorBytes(out, packet, stream)
	zero(stream)
	return out
}

// DecryptFailurePacket implements the failure-onion decryptor (C7): given
// the shared secrets the originator stored for each hop on the route, in
// forwarding order, it peels one obfuscation layer per hop - oldest
// (closest) hop first - until the packet's HMAC authenticates under that
// hop's um key. It returns the index, within sharedSecrets, of the hop that
// reported the failure, along with the decoded message. The caller maps
// that index back to whatever identifies the hop in its own route record -
// this package never learns a hop's real identity, only its shared secret.
//
// DecryptFailurePacket returns ErrDecryptionFailed if no prefix of the
// shared-secret list produces a valid HMAC, which can only happen if the
// packet was corrupted or never originated from this route.
func DecryptFailurePacket(packet []byte,
	sharedSecrets []SharedSecretPair) (int, FailureMessage, error) {

	if len(packet) != FailurePacketSize {
		return 0, nil, fmt.Errorf("sphinx: failure packet is %d "+
			"bytes, want %d", len(packet), FailurePacketSize)
	}

	current := make([]byte, FailurePacketSize)
	copy(current, packet)

	for i, pair := range sharedSecrets {
		secret := pair.Snd()
		current = obfuscateFailurePacket(current, secret)

		var gotHMAC [hmacSize]byte
		copy(gotHMAC[:], current[:hmacSize])
		body := current[hmacSize:]

		um := umKey(secret)
		wantHMAC := hmacSHA256(um[:], body)
		zero(um[:])
		if !hmacsEqual(wantHMAC, gotHMAC) {
			continue
		}

		msgLen := binary.BigEndian.Uint16(body[:2])
		if int(msgLen) > failureMessageSpace {
			return 0, nil, fmt.Errorf("sphinx: failure message "+
				"declares length %d exceeding reserved space %d",
				msgLen, failureMessageSpace)
		}

		msg, err := DecodeFailureMessage(body[2 : 2+int(msgLen)])
		if err != nil {
			return 0, nil, fmt.Errorf("sphinx: decoding "+
				"recovered failure message: %w", err)
		}

		return i, msg, nil
	}

	return 0, nil, ErrDecryptionFailed
}

func appendUint16(b []byte, v uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return append(b, buf[:]...)
}

// Circuit records what's needed to reconstruct, and later decrypt, a
// failure onion for a single payment: the session key the originator used
// to build the forward onion, and the real node public keys along the
// route, in forwarding order.
type Circuit struct {
	SessionKey  *btcec.PrivateKey
	PaymentPath []*btcec.PublicKey
}

func (c *Circuit) sharedSecrets() ([]SharedSecretPair, error) {
	return generateSharedSecrets(c.SessionKey, c.PaymentPath)
}

// OnionErrorEncrypter obfuscates a failure packet under a single hop's
// shared secret. A forwarding hop that can't construct the original
// failure itself (it only relays, rather than reports, the error) uses
// Wrap; the hop that reports the failure uses EncryptFirstHop.
type OnionErrorEncrypter struct {
	sharedSecret Hash256
}

// NewOnionErrorEncrypter creates an encrypter bound to a single hop's
// shared secret.
func NewOnionErrorEncrypter(sharedSecret Hash256) *OnionErrorEncrypter {
	return &OnionErrorEncrypter{sharedSecret: sharedSecret}
}

// EncryptFirstHop builds a new failure packet reporting failure at this
// hop.
func (o *OnionErrorEncrypter) EncryptFirstHop(failure FailureMessage) ([]byte, error) {
	return NewFailurePacket(o.sharedSecret, failure)
}

// Wrap adds this hop's obfuscation layer to a failure packet it's
// forwarding back toward the originator.
func (o *OnionErrorEncrypter) Wrap(packet []byte) ([]byte, error) {
	return WrapFailurePacket(packet, o.sharedSecret)
}

// OnionErrorDecrypter decrypts a failure onion at the originator, using the
// same session key and route the originator used to build the forward
// onion in the first place.
type OnionErrorDecrypter struct {
	circuit *Circuit
}

// NewOnionErrorDecrypter creates a decrypter bound to the given circuit.
func NewOnionErrorDecrypter(circuit *Circuit) *OnionErrorDecrypter {
	return &OnionErrorDecrypter{circuit: circuit}
}

// DecryptError decrypts packet and resolves the reporting hop's real node
// public key from the decrypter's own payment path, rather than leaking an
// ephemeral onion key that would mean nothing to the caller.
func (o *OnionErrorDecrypter) DecryptError(packet []byte) (*btcec.PublicKey, FailureMessage, error) {
	pairs, err := o.circuit.sharedSecrets()
	if err != nil {
		return nil, nil, err
	}
	defer WipeSharedSecrets(pairs)

	idx, msg, err := DecryptFailurePacket(packet, pairs)
	if err != nil {
		return nil, nil, err
	}

	return o.circuit.PaymentPath[idx], msg, nil
}
