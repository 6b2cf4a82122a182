// Package sphinx implements the Sphinx mix-net packet format used to route
// Lightning Network payments. It provides layered onion construction and
// per-hop unwrapping with constant packet width regardless of path length,
// plus the backward-travelling, symmetrically encrypted failure onion used
// to report routing errors back to the payment originator.
//
// The package is purely computational: it performs no I/O, keeps no state
// across packets, and has no opinion about what a per-hop payload means.
// Callers supply a source of ephemeral keys, an ordered list of hop public
// keys, and opaque per-hop payloads; the package returns a byte-exact wire
// packet or, on the peeling side, the next packet to forward.
package sphinx
