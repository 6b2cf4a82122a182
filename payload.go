package sphinx

import (
	"bytes"
	"fmt"

	"github.com/lightningnetwork/lnd/tlv"
)

// legacyRealm is the first byte of a legacy, fixed-size hop payload. It's a
// historical special case: rather than a BOLT bigsize length prefix, a
// leading zero byte signals a fixed 32-byte content frame.
const legacyRealm = 0x00

// legacyPayloadSize is the total hop size (realm byte + content + trailing
// HMAC) of a legacy payload frame.
const legacyPayloadSize = 1 + 32 + 32

// PeekPayloadLength reads the framing of a single hop's payload from the
// start of a decrypted hop-data stream and returns the number of bytes that
// belong to this hop: the length-prefix bytes, the payload content, and the
// trailing 32-byte HMAC. It never reads past the 9 bytes a BOLT bigsize
// prefix can occupy.
//
// The mapping is exact:
//
//	0x00            -> 65   (legacy realm: 1 + 32 + 32)
//	0x01 .. 0xfc     -> n + 1 + 32
//	0xfd + 2B value -> n + 3 + 32
//	0xfe + 4B value -> n + 5 + 32
//	0xff + 8B value -> n + 9 + 32
func PeekPayloadLength(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("sphinx: empty payload framing")
	}

	if b[0] == legacyRealm {
		return legacyPayloadSize, nil
	}

	var scratch [8]byte
	value, err := tlv.ReadVarInt(bytes.NewReader(b), &scratch)
	if err != nil {
		return 0, fmt.Errorf("sphinx: invalid bigsize length "+
			"prefix: %w", err)
	}

	return bigSizePrefixLen(b[0]) + value + 32, nil
}

// bigSizePrefixLen returns the number of bytes the BOLT bigsize encoding of
// a value occupies, given only the first byte of the encoding.
func bigSizePrefixLen(first byte) uint64 {
	switch {
	case first < 0xfd:
		return 1
	case first == 0xfd:
		return 3
	case first == 0xfe:
		return 5
	default:
		return 9
	}
}

// validateHopPayload checks that a hop payload's own length prefix agrees
// with its actual byte length, per the construction precondition that
// NewOnionPacket enforces on every hop before building a packet.
func validateHopPayload(payload []byte) error {
	frameLen, err := PeekPayloadLength(payload)
	if err != nil {
		return err
	}

	wantLen := uint64(len(payload)) + 32
	if frameLen != wantLen {
		return fmt.Errorf("sphinx: payload declares length prefix "+
			"implying %d total bytes, but payload is %d bytes",
			frameLen, len(payload))
	}

	return nil
}
