package sphinx

// generateHeaderPadding simulates, for the originator, what the last hop's
// slice of the onion's payload region will contain after every upstream hop
// has shifted the packet right by its own hop size. Overlaying this filler
// onto the tail of the initial, pad-filled payload region before the final
// (innermost) HMAC is computed is what lets every intermediate hop
// reconstruct exactly the bytes the builder put there, without knowing how
// many more hops precede it.
//
// keyLabel selects which per-hop sub-key drives the keystream; the forward
// path always uses rho (the payload stream-cipher key). secrets and
// hopSizes must have equal length: one entry per hop except the final one,
// which needs no filler contribution.
func generateHeaderPadding(keyLabel []byte, packetSize int,
	secrets []Hash256, hopSizes []int) []byte {

	numHops := len(secrets)

	totalSize := 0
	for _, size := range hopSizes {
		totalSize += size
	}

	filler := make([]byte, totalSize)

	runningTotal := 0
	for i := 0; i < numHops; i++ {
		runningTotal += hopSizes[i]

		streamKey := generateKey(keyLabel, secrets[i])
		stream := generateStreamCipherBytes(streamKey, 2*packetSize)
		zero(streamKey[:])

		// The window of the 2*packetSize keystream that, once this
		// hop's rho-stream is applied, lands on the portion of the
		// packet already "seen" by hops 0..i starts packetSize minus
		// the cumulative hop size back from the boundary, and runs
		// for exactly that cumulative size.
		windowStart := packetSize - runningTotal + hopSizes[i]
		xorBytes(filler, filler, stream[windowStart:windowStart+runningTotal])
		zero(stream)
	}

	return filler
}
