package sphinx

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

// legacyPayload builds a valid legacy-framed hop payload (realm byte plus
// 32 bytes of filler content), not including its trailing HMAC.
func legacyPayload(fill byte) []byte {
	buf := make([]byte, legacyPayloadSize-hmacSize)
	for i := range buf {
		buf[i] = fill
	}
	buf[0] = legacyRealm
	return buf
}

// tlvPayload builds a valid TLV-framed hop payload of the requested content
// size, not including its trailing HMAC.
func tlvPayload(contentSize int, fill byte) []byte {
	content := bytes.Repeat([]byte{fill}, contentSize)

	var prefix []byte
	switch {
	case contentSize < 0xfd:
		prefix = []byte{byte(contentSize)}
	default:
		prefix = []byte{
			0xfd, byte(contentSize >> 8), byte(contentSize),
		}
	}

	return append(prefix, content...)
}

func testAssociatedData() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestOnionPacketRoundTripFixedPayloads(t *testing.T) {
	t.Parallel()

	sessionKey := repeatedKey(t, 0x41)
	privKeys := testHopPrivKeys(t)
	pubKeys := testHopPubKeys(t)
	ad := testAssociatedData()

	payloads := make([][]byte, len(pubKeys))
	for i := range payloads {
		payloads[i] = legacyPayload(byte(i))
	}

	packet, sharedSecrets, err := NewOnionPacket(
		pubKeys, sessionKey, payloads, ad, PaymentPacketSize,
	)
	require.NoError(t, err)
	require.Len(t, sharedSecrets, len(pubKeys))

	var encoded bytes.Buffer
	require.NoError(t, packet.Encode(&encoded))
	require.Equal(t, PacketSize(PaymentPacketSize), encoded.Len())

	current := packet
	for i, priv := range privKeys {
		result, err := Peel(priv, ad, current, PaymentPacketSize)
		require.NoError(t, err, "hop %d", i)

		wantPayload := payloads[i]
		require.Equal(t, wantPayload, result.Payload,
			"hop %d payload mismatch, want:\n%s\ngot:\n%s",
			i, spew.Sdump(wantPayload), spew.Sdump(result.Payload))
		require.Equal(t, sharedSecrets[i].Snd(), result.SharedSecret, "hop %d secret", i)

		if i == len(privKeys)-1 {
			require.Equal(t, ExitNode, result.Action)
		} else {
			require.Equal(t, MoreHops, result.Action)
		}

		current = result.NextPacket
	}
}

func TestOnionPacketRoundTripVariablePayloads(t *testing.T) {
	t.Parallel()

	sessionKey := repeatedKey(t, 0x41)
	privKeys := testHopPrivKeys(t)
	pubKeys := testHopPubKeys(t)
	ad := testAssociatedData()

	sizes := []int{10, 150, 1, 500, 33}
	payloads := make([][]byte, len(pubKeys))
	for i, size := range sizes {
		payloads[i] = tlvPayload(size, byte(i+1))
	}

	packet, _, err := NewOnionPacket(
		pubKeys, sessionKey, payloads, ad, PaymentPacketSize,
	)
	require.NoError(t, err)

	current := packet
	for i, priv := range privKeys {
		result, err := Peel(priv, ad, current, PaymentPacketSize)
		require.NoError(t, err, "hop %d", i)
		require.Equal(t, payloads[i], result.Payload, "hop %d payload", i)
		current = result.NextPacket
	}
}

func TestOnionPacketSingleHopFullPayload(t *testing.T) {
	t.Parallel()

	sessionKey := repeatedKey(t, 0x41)
	privKeys := testHopPrivKeys(t)
	pubKeys := testHopPubKeys(t)
	ad := testAssociatedData()

	contentSize := PaymentPacketSize - 3 - hmacSize
	payload := tlvPayload(contentSize, 0x09)

	packet, _, err := NewOnionPacket(
		pubKeys[:1], sessionKey, [][]byte{payload}, ad, PaymentPacketSize,
	)
	require.NoError(t, err)

	result, err := Peel(privKeys[0], ad, packet, PaymentPacketSize)
	require.NoError(t, err)
	require.Equal(t, ExitNode, result.Action)
	require.Equal(t, payload, result.Payload)
}

func TestOnionPacketTrampolineSize(t *testing.T) {
	t.Parallel()

	sessionKey := repeatedKey(t, 0x41)
	privKeys := testHopPrivKeys(t)
	pubKeys := testHopPubKeys(t)
	ad := testAssociatedData()

	payloads := make([][]byte, len(pubKeys))
	for i := range payloads {
		payloads[i] = legacyPayload(byte(0x10 + i))
	}

	packet, _, err := NewOnionPacket(
		pubKeys, sessionKey, payloads, ad, TrampolinePacketSize,
	)
	require.NoError(t, err)

	var encoded bytes.Buffer
	require.NoError(t, packet.Encode(&encoded))
	require.Equal(t, PacketSize(TrampolinePacketSize), encoded.Len())

	current := packet
	for i, priv := range privKeys {
		result, err := Peel(priv, ad, current, TrampolinePacketSize)
		require.NoError(t, err, "hop %d", i)
		require.Equal(t, payloads[i], result.Payload, "hop %d payload", i)
		current = result.NextPacket
	}
}

func TestNewOnionPacketRejectsInvalidPayload(t *testing.T) {
	t.Parallel()

	sessionKey := repeatedKey(t, 0x41)
	pubKeys := testHopPubKeys(t)

	payloads := make([][]byte, len(pubKeys))
	for i := range payloads {
		payloads[i] = legacyPayload(byte(i))
	}
	// Corrupt the last payload's length-prefix/content agreement.
	payloads[len(payloads)-1] = []byte{0x05, 0x01, 0x02}

	_, _, err := NewOnionPacket(
		pubKeys, sessionKey, payloads, testAssociatedData(), PaymentPacketSize,
	)
	require.Error(t, err)
}

func TestPeelRejectsCorruptedHMAC(t *testing.T) {
	t.Parallel()

	sessionKey := repeatedKey(t, 0x41)
	privKeys := testHopPrivKeys(t)
	pubKeys := testHopPubKeys(t)
	ad := testAssociatedData()

	payloads := make([][]byte, len(pubKeys))
	for i := range payloads {
		payloads[i] = legacyPayload(byte(i))
	}

	packet, _, err := NewOnionPacket(
		pubKeys, sessionKey, payloads, ad, PaymentPacketSize,
	)
	require.NoError(t, err)

	packet.RoutingInfo[0] ^= 0xff

	_, err = Peel(privKeys[0], ad, packet, PaymentPacketSize)
	require.Error(t, err)
	require.IsType(t, ErrInvalidOnionHMAC{}, err)
}

func TestPeelRejectsInvalidEphemeralKey(t *testing.T) {
	t.Parallel()

	sessionKey := repeatedKey(t, 0x41)
	privKeys := testHopPrivKeys(t)
	pubKeys := testHopPubKeys(t)
	ad := testAssociatedData()

	payloads := make([][]byte, len(pubKeys))
	for i := range payloads {
		payloads[i] = legacyPayload(byte(i))
	}

	packet, _, err := NewOnionPacket(
		pubKeys, sessionKey, payloads, ad, PaymentPacketSize,
	)
	require.NoError(t, err)

	// Replace the ephemeral key bytes with something that can't parse as
	// a compressed secp256k1 point.
	var bogus [33]byte
	for i := range bogus {
		bogus[i] = 0xff
	}
	packet.EphemeralKeyBytes = bogus
	packet.EphemeralKey, _ = btcec.ParsePubKey(bogus[:])
	require.Nil(t, packet.EphemeralKey)

	_, err = Peel(privKeys[0], ad, packet, PaymentPacketSize)
	require.Error(t, err)
	require.IsType(t, ErrInvalidOnionKey{}, err)
}

func TestPeelRejectsBadVersion(t *testing.T) {
	t.Parallel()

	sessionKey := repeatedKey(t, 0x41)
	privKeys := testHopPrivKeys(t)
	pubKeys := testHopPubKeys(t)
	ad := testAssociatedData()

	payloads := make([][]byte, len(pubKeys))
	for i := range payloads {
		payloads[i] = legacyPayload(byte(i))
	}

	packet, _, err := NewOnionPacket(
		pubKeys, sessionKey, payloads, ad, PaymentPacketSize,
	)
	require.NoError(t, err)

	packet.Version = 0x01

	_, err = Peel(privKeys[0], ad, packet, PaymentPacketSize)
	require.Error(t, err)
	require.IsType(t, ErrInvalidOnionVersion{}, err)
}
