// Package handshake implements the §4.6 HandshakeHashes transcript and the
// §4.9 HandshakeFSM client/server state machines that drive pkg/record,
// pkg/protocol, and pkg/kex through a full TLS handshake.
//
// One struct per role holds a small state enum plus explicit Create*/
// Process* step methods (HelloRetryRequest re-entry, per-state transition
// table, rekey actions), with top-level RunClient/RunServer functions doing
// the orchestration rather than one type per state.
package handshake

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/pzverkov/gotls/internal/constants"
)

// HandshakeHashes holds a running digest of every handshake message byte
// seen so far (on the wire order, §8's transcript invariant), in parallel
// across every hash algorithm any supported version's PRF/HKDF might need.
// Update must be called with each handshake message's raw 4-byte-header+body
// bytes, in the exact order they were sent or received.
type HandshakeHashes struct {
	md5    hash.Hash
	sha1   hash.Hash
	sha256 hash.Hash
	sha384 hash.Hash
}

// NewHandshakeHashes returns a fresh transcript with all four digests reset.
func NewHandshakeHashes() *HandshakeHashes {
	return &HandshakeHashes{
		md5:    md5.New(),
		sha1:   sha1.New(),
		sha256: sha256.New(),
		sha384: sha512.New384(),
	}
}

// Update feeds raw handshake bytes into every running digest.
func (h *HandshakeHashes) Update(b []byte) {
	h.md5.Write(b)
	h.sha1.Write(b)
	h.sha256.Write(b)
	h.sha384.Write(b)
}

// Digest returns a snapshot of the named algorithm's running hash without
// consuming it (callers may continue feeding bytes afterward).
func (h *HandshakeHashes) Digest(alg constants.HashAlg) []byte {
	switch alg {
	case constants.HashMD5SHA1:
		out := make([]byte, 0, md5.Size+sha1.Size)
		out = append(out, h.md5.Sum(nil)...)
		out = append(out, h.sha1.Sum(nil)...)
		return out
	case constants.HashSHA384:
		return h.sha384.Sum(nil)
	default:
		return h.sha256.Sum(nil)
	}
}

// Intrinsic returns the canonical transcript hash for the negotiated suite:
// TLS 1.3's Transcript-Hash is always the suite's own PRF hash (§4.6); for
// TLS <=1.1 it is the concatenated MD5||SHA1 digest; for TLS 1.2 it is the
// suite's single hash, same as TLS 1.3's convention.
func (h *HandshakeHashes) Intrinsic(version constants.ProtocolVersion, suite constants.CipherSuite) []byte {
	return h.Digest(suite.PRFHashFor(version))
}

// Clone returns an independent copy of the transcript so a caller can take
// a snapshot at one point (e.g. for the legacy Finished label seed) and
// keep accumulating on the original without disturbing it.
func (h *HandshakeHashes) Clone() *HandshakeHashes {
	return &HandshakeHashes{
		md5:    cloneHash(h.md5),
		sha1:   cloneHash(h.sha1),
		sha256: cloneHash(h.sha256),
		sha384: cloneHash(h.sha384),
	}
}

// cloner is implemented by every hash.Hash this package uses (all of
// crypto/md5, crypto/sha1, crypto/sha256, crypto/sha512 satisfy it).
type cloner interface {
	hash.Hash
}

func cloneHash(h hash.Hash) hash.Hash {
	type binaryMarshaler interface {
		MarshalBinary() ([]byte, error)
	}
	type binaryUnmarshaler interface {
		UnmarshalBinary([]byte) error
	}
	bm, ok1 := h.(binaryMarshaler)
	if !ok1 {
		// Every concrete hash.Hash this package constructs implements
		// encoding.BinaryMarshaler; this branch only guards against a
		// future algorithm addition that forgets to.
		panic("handshake: hash implementation does not support cloning")
	}
	state, err := bm.MarshalBinary()
	if err != nil {
		panic("handshake: hash MarshalBinary failed: " + err.Error())
	}
	clone := newSameKind(h)
	if err := clone.(binaryUnmarshaler).UnmarshalBinary(state); err != nil {
		panic("handshake: hash UnmarshalBinary failed: " + err.Error())
	}
	return clone
}

func newSameKind(h hash.Hash) hash.Hash {
	switch h.Size() {
	case md5.Size:
		return md5.New()
	case sha1.Size:
		return sha1.New()
	case sha256.Size:
		return sha256.New()
	case sha512.Size384:
		return sha512.New384()
	default:
		panic("handshake: unrecognized hash size for cloning")
	}
}
