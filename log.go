package sphinx

import "github.com/btcsuite/btclog"

// log is the package-level logger used throughout the sphinx package. It is
// disabled by default; callers that want sphinx's debug output wired into
// their own logging backend should call UseLogger with a configured
// btclog.Logger, the same pattern used across the rest of the lnd code
// base's subsystems.
var log btclog.Logger = btclog.Disabled

// UseLogger lets a calling application specify which logging subsystem the
// sphinx package should plug its logs into.
//
// NOTE: sphinx never logs secret material (session scalars, shared secrets,
// or derived sub-keys) at any level.
func UseLogger(logger btclog.Logger) {
	log = logger
}
