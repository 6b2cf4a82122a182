package sphinx

import "fmt"

// ErrInvalidOnionVersion is returned by Peel when a packet's version byte is
// not the one this package understands.
type ErrInvalidOnionVersion struct {
	// Hash is the SHA-256 of the full rejected packet.
	Hash [32]byte
}

func (e ErrInvalidOnionVersion) Error() string {
	return fmt.Sprintf("sphinx: invalid onion version, packet hash=%x", e.Hash)
}

// ErrInvalidOnionKey is returned by Peel when a packet's ephemeral key does
// not parse as a valid compressed secp256k1 point.
type ErrInvalidOnionKey struct {
	Hash [32]byte
}

func (e ErrInvalidOnionKey) Error() string {
	return fmt.Sprintf("sphinx: invalid onion ephemeral key, packet hash=%x", e.Hash)
}

// ErrInvalidOnionHMAC is returned by Peel when the recomputed HMAC does not
// match the one carried in the packet.
type ErrInvalidOnionHMAC struct {
	Hash [32]byte
}

func (e ErrInvalidOnionHMAC) Error() string {
	return fmt.Sprintf("sphinx: invalid onion hmac, packet hash=%x", e.Hash)
}

// ErrDecryptionFailed is returned by DecryptFailurePacket when none of
// the caller's stored shared secrets authenticate the returned failure
// onion.
var ErrDecryptionFailed = fmt.Errorf("sphinx: unable to decrypt failure onion " +
	"against any known shared secret")
