package sphinx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOnionPacketWithOptionsRoundTrip(t *testing.T) {
	t.Parallel()

	sessionKey := repeatedKey(t, 0x41)
	privKeys := testHopPrivKeys(t)
	pubKeys := testHopPubKeys(t)
	ad := testAssociatedData()

	payloads := make([][]byte, len(pubKeys))
	for i := range payloads {
		payloads[i] = legacyPayload(byte(i))
	}

	packet, sharedSecrets, err := NewOnionPacketWithOptions(
		pubKeys, sessionKey, payloads, PaymentPacketSize,
		WithAssociatedData(ad),
	)
	require.NoError(t, err)
	require.Len(t, sharedSecrets, len(pubKeys))

	current := packet
	for i, priv := range privKeys {
		result, err := PeelWithOptions(
			priv, current, PaymentPacketSize,
			WithPeelAssociatedData(ad),
		)
		require.NoError(t, err, "hop %d", i)
		require.Equal(t, payloads[i], result.Payload, "hop %d payload", i)
		current = result.NextPacket
	}
}

func TestOnionPacketWithOptionsNoAssociatedData(t *testing.T) {
	t.Parallel()

	sessionKey := repeatedKey(t, 0x41)
	privKeys := testHopPrivKeys(t)
	pubKeys := testHopPubKeys(t)

	payloads := make([][]byte, len(pubKeys))
	for i := range payloads {
		payloads[i] = legacyPayload(byte(i))
	}

	packet, _, err := NewOnionPacketWithOptions(
		pubKeys, sessionKey, payloads, PaymentPacketSize,
	)
	require.NoError(t, err)

	result, err := PeelWithOptions(privKeys[0], packet, PaymentPacketSize)
	require.NoError(t, err)
	require.Equal(t, payloads[0], result.Payload)
}

func TestPeelWithOptionsMismatchedAssociatedDataFails(t *testing.T) {
	t.Parallel()

	sessionKey := repeatedKey(t, 0x41)
	privKeys := testHopPrivKeys(t)
	pubKeys := testHopPubKeys(t)

	payloads := make([][]byte, len(pubKeys))
	for i := range payloads {
		payloads[i] = legacyPayload(byte(i))
	}

	packet, _, err := NewOnionPacketWithOptions(
		pubKeys, sessionKey, payloads, PaymentPacketSize,
		WithAssociatedData(testAssociatedData()),
	)
	require.NoError(t, err)

	_, err = PeelWithOptions(
		privKeys[0], packet, PaymentPacketSize,
		WithPeelAssociatedData([]byte("wrong associated data")),
	)
	require.Error(t, err)
	require.IsType(t, ErrInvalidOnionHMAC{}, err)
}
