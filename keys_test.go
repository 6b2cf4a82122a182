package sphinx

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

// repeatedKey builds a 32-byte scalar by repeating b 32 times, matching the
// fixture convention used throughout these tests (e.g. sessionScalar is
// 0x41 repeated 32 times).
func repeatedKey(t testing.TB, b byte) *btcec.PrivateKey {
	t.Helper()

	var buf [32]byte
	for i := range buf {
		buf[i] = b
	}

	priv, _ := btcec.PrivKeyFromBytes(buf[:])
	return priv
}

func testHopPrivKeys(t testing.TB) []*btcec.PrivateKey {
	t.Helper()

	bytesVals := []byte{0x41, 0x42, 0x43, 0x44, 0x45}
	keys := make([]*btcec.PrivateKey, len(bytesVals))
	for i, b := range bytesVals {
		keys[i] = repeatedKey(t, b)
	}
	return keys
}

func testHopPubKeys(t testing.TB) []*btcec.PublicKey {
	t.Helper()

	privKeys := testHopPrivKeys(t)
	pubKeys := make([]*btcec.PublicKey, len(privKeys))
	for i, priv := range privKeys {
		pubKeys[i] = priv.PubKey()
	}
	return pubKeys
}

func TestGenerateSharedSecretsFirstHop(t *testing.T) {
	t.Parallel()

	sessionKey := repeatedKey(t, 0x41)
	pubKeys := testHopPubKeys(t)

	pairs, err := generateSharedSecrets(sessionKey, pubKeys)
	require.NoError(t, err)
	require.Len(t, pairs, len(pubKeys))

	wantAlpha, err := hex.DecodeString(
		"02eec7245d6b7d2ccb30380bfbe2a3648cd7a942653f5aa340edcea1f283686619",
	)
	require.NoError(t, err)

	wantSecret, err := hex.DecodeString(
		"53eb63ea8a3fec3b3cd433b85cd62a4b145e1dda09391b348c4e1cd36a03ea66",
	)
	require.NoError(t, err)

	gotAlpha := pairs[0].Fst()
	gotSecret := pairs[0].Snd()

	require.True(t, bytes.Equal(wantAlpha, gotAlpha.SerializeCompressed()))
	require.True(t, bytes.Equal(wantSecret, gotSecret[:]))
}

func TestGenerateSharedSecretsHopAgreement(t *testing.T) {
	t.Parallel()

	sessionKey := repeatedKey(t, 0x41)
	privKeys := testHopPrivKeys(t)
	pubKeys := testHopPubKeys(t)

	pairs, err := generateSharedSecrets(sessionKey, pubKeys)
	require.NoError(t, err)

	// Each hop, given only its own private key and the ephemeral key it
	// was handed, must derive the identical shared secret the originator
	// computed for it.
	for i, priv := range privKeys {
		hopSecret := ecdh(&priv.Key, pairs[i].Fst())
		require.Equal(t, pairs[i].Snd(), hopSecret)
	}
}

func TestGenerateSharedSecretsPathLengthBounds(t *testing.T) {
	t.Parallel()

	sessionKey := repeatedKey(t, 0x41)

	_, err := generateSharedSecrets(sessionKey, nil)
	require.Error(t, err)

	tooMany := make([]*btcec.PublicKey, MaxHops+1)
	pub := sessionKey.PubKey()
	for i := range tooMany {
		tooMany[i] = pub
	}
	_, err = generateSharedSecrets(sessionKey, tooMany)
	require.Error(t, err)
}

func TestWipeSharedSecrets(t *testing.T) {
	t.Parallel()

	sessionKey := repeatedKey(t, 0x41)
	pubKeys := testHopPubKeys(t)

	pairs, err := generateSharedSecrets(sessionKey, pubKeys)
	require.NoError(t, err)

	WipeSharedSecrets(pairs)

	var zero Hash256
	for _, pair := range pairs {
		require.Nil(t, pair.Fst())
		require.Equal(t, zero, pair.Snd())
	}
}
