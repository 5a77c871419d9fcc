// Package protocol implements the TLS wire format: the byte-level Codec
// (§4.1), handshake message bodies (§3), extension parsing, and the
// per-build-mode cipher suite tables.
//
// Protocol coverage: TLS 1.0 (RFC 2246) through TLS 1.3 (RFC 8446).
package protocol

import "github.com/pzverkov/gotls/internal/constants"

// Version re-exports the wire protocol version type so callers working at
// the protocol layer don't need to import internal/constants directly.
type Version = constants.ProtocolVersion

// Min and Max are the version bounds this implementation recognizes.
var (
	Min = constants.SSL30
	Max = constants.TLS13
)

// InRange reports whether v falls within [lo, hi] inclusive.
func InRange(v, lo, hi Version) bool {
	return !v.Less(lo) && !hi.Less(v)
}

// ProtocolID is the identifier used for logging and domain separation of
// engine-internal (non-wire) derivations.
const ProtocolID = "go-tls-engine"
