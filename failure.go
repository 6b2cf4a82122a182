package sphinx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// FailCode identifies the kind of failure message carried inside a failure
// onion. Each code is two bytes on the wire, big-endian, exactly as for
// every other integer in a per-hop payload.
type FailCode uint16

// The failure codes this package recognizes. Values follow the BOLT#4
// failure-message catalog's bit-flagged scheme (BADONION, PERM, NODE) so
// that callers forwarding these codes upstream can apply the usual
// uint16-bitmask interpretation without this package needing to expose the
// flags separately.
const (
	CodeInvalidRealm                     FailCode = 0x4001
	CodeTemporaryNodeFailure             FailCode = 0x2002
	CodeInvalidOnionVersion              FailCode = 0xc004
	CodeInvalidOnionHmac                 FailCode = 0xc005
	CodeInvalidOnionKey                  FailCode = 0xc006
	CodeIncorrectOrUnknownPaymentDetails FailCode = 0x400f
)

// FailureMessage is a decoded failure reason travelling inside a failure
// onion. Every failure message is encoded on the wire as code(2) || data.
type FailureMessage interface {
	// Code returns this message's two-byte failure code.
	Code() FailCode

	// EncodeData writes this message's code-specific data (everything
	// after the two-byte code) to w.
	EncodeData(w io.Writer) error
}

// FailTemporaryNodeFailure signals a transient problem at a node along the
// route; the sender may retry. It carries no data.
type FailTemporaryNodeFailure struct{}

func (FailTemporaryNodeFailure) Code() FailCode           { return CodeTemporaryNodeFailure }
func (FailTemporaryNodeFailure) EncodeData(io.Writer) error { return nil }

// FailInvalidRealm signals that a hop didn't recognize the realm byte of
// the legacy payload format. It carries no data.
type FailInvalidRealm struct{}

func (FailInvalidRealm) Code() FailCode           { return CodeInvalidRealm }
func (FailInvalidRealm) EncodeData(io.Writer) error { return nil }

// FailInvalidOnionVersion, FailInvalidOnionKey, and FailInvalidOnionHmac
// mirror the three onion-layer validation failures Peel can return,
// re-expressed as wire failure messages a hop sends back to the
// originator. Each carries the SHA-256 of the onion packet it rejected.
type (
	FailInvalidOnionVersion struct{ OnionSHA256 [32]byte }
	FailInvalidOnionKey     struct{ OnionSHA256 [32]byte }
	FailInvalidOnionHmac    struct{ OnionSHA256 [32]byte }
)

func (f FailInvalidOnionVersion) Code() FailCode { return CodeInvalidOnionVersion }
func (f FailInvalidOnionVersion) EncodeData(w io.Writer) error {
	_, err := w.Write(f.OnionSHA256[:])
	return err
}

func (f FailInvalidOnionKey) Code() FailCode { return CodeInvalidOnionKey }
func (f FailInvalidOnionKey) EncodeData(w io.Writer) error {
	_, err := w.Write(f.OnionSHA256[:])
	return err
}

func (f FailInvalidOnionHmac) Code() FailCode { return CodeInvalidOnionHmac }
func (f FailInvalidOnionHmac) EncodeData(w io.Writer) error {
	_, err := w.Write(f.OnionSHA256[:])
	return err
}

// FailIncorrectOrUnknownPaymentDetails signals that the final recipient
// couldn't match the payment to an invoice, or that the amount/timing
// didn't fit what it expected. It has three historical wire encodings:
// no data, amount only, or amount and block height. Encoders must always
// emit the richest (amount+height) form; decoders must accept all three,
// per the backward-compatibility requirement this message type carries.
type FailIncorrectOrUnknownPaymentDetails struct {
	// Amount is the HTLC amount in millisatoshis, if known.
	Amount uint64

	// Height is the block height at the time of failure, if known.
	Height uint32

	// HasAmount and HasHeight record which trailing fields were present
	// on the wire when the message was decoded. EncodeData ignores them:
	// it always writes both Amount and Height, as zero when absent.
	HasAmount bool
	HasHeight bool
}

func (FailIncorrectOrUnknownPaymentDetails) Code() FailCode {
	return CodeIncorrectOrUnknownPaymentDetails
}

func (f FailIncorrectOrUnknownPaymentDetails) EncodeData(w io.Writer) error {
	// Encoders always emit the richest form available to them.
	if err := binary.Write(w, binary.BigEndian, f.Amount); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, f.Height)
}

// EncodeFailureMessage serializes a failure message to its full wire form:
// the two-byte code followed by its data.
func EncodeFailureMessage(msg FailureMessage) ([]byte, error) {
	var buf bytes.Buffer

	var codeBytes [2]byte
	binary.BigEndian.PutUint16(codeBytes[:], uint16(msg.Code()))
	buf.Write(codeBytes[:])

	if err := msg.EncodeData(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// DecodeFailureMessage parses a failure message from its full wire form
// (code followed by data). It implements the backward-compatible decoding
// IncorrectOrUnknownPaymentDetails requires: trailing fields may be
// entirely absent, amount-only, or amount-and-height.
func DecodeFailureMessage(data []byte) (FailureMessage, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("sphinx: failure message too short to " +
			"contain a code")
	}

	code := FailCode(binary.BigEndian.Uint16(data[:2]))
	rest := data[2:]

	switch code {
	case CodeTemporaryNodeFailure:
		return FailTemporaryNodeFailure{}, nil

	case CodeInvalidRealm:
		return FailInvalidRealm{}, nil

	case CodeInvalidOnionVersion:
		var f FailInvalidOnionVersion
		if err := decodeOnionHash(rest, &f.OnionSHA256); err != nil {
			return nil, err
		}
		return f, nil

	case CodeInvalidOnionKey:
		var f FailInvalidOnionKey
		if err := decodeOnionHash(rest, &f.OnionSHA256); err != nil {
			return nil, err
		}
		return f, nil

	case CodeInvalidOnionHmac:
		var f FailInvalidOnionHmac
		if err := decodeOnionHash(rest, &f.OnionSHA256); err != nil {
			return nil, err
		}
		return f, nil

	case CodeIncorrectOrUnknownPaymentDetails:
		var f FailIncorrectOrUnknownPaymentDetails
		switch len(rest) {
		case 0:
			// Fully-missing: oldest, pre-amount encoding.
		case 8:
			f.Amount = binary.BigEndian.Uint64(rest)
			f.HasAmount = true
		case 12:
			f.Amount = binary.BigEndian.Uint64(rest[:8])
			f.Height = binary.BigEndian.Uint32(rest[8:])
			f.HasAmount = true
			f.HasHeight = true
		default:
			return nil, fmt.Errorf("sphinx: unexpected "+
				"incorrect_or_unknown_payment_details length: %d",
				len(rest))
		}
		return f, nil

	default:
		return nil, fmt.Errorf("sphinx: unrecognized failure code: 0x%x",
			uint16(code))
	}
}

func decodeOnionHash(data []byte, out *[32]byte) error {
	if len(data) != 32 {
		return fmt.Errorf("sphinx: expected 32-byte onion hash, got "+
			"%d bytes", len(data))
	}
	copy(out[:], data)
	return nil
}
