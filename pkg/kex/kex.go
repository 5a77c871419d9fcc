// Package kex implements the §4.8 KeyExchange strategies and the §4.7
// KeySchedule that turns their shared secrets into TLS traffic keys.
//
// Each implemented group (FFDHE 2048/3072, ECDHE P-256/384/521, X25519, and
// the hybrid X25519+ML-KEM-1024 combiner) is a distinct KeyExchange
// implementation registered behind one capability interface (§9's
// "polymorphism over concrete subtypes" guidance), rather than a single
// hardcoded pair. X448, SRP, and the ML-KEM-768 hybrids have no strategy.
package kex

import (
	"crypto/ecdh"
	"crypto/subtle"

	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
	"github.com/pzverkov/gotls/pkg/crypto"
)

// KeyExchange is the §6 external-collaborator contract for one (EC)DHE
// group instance: generate an ephemeral share, then combine it with the
// peer's share into the raw premaster/shared secret. Validation of the
// peer's share (curve membership, DH range checks, non-zero hybrid halves)
// happens inside SharedSecret so callers never see an under-checked value.
type KeyExchange interface {
	Group() constants.NamedGroup
	PublicShare() []byte
	SharedSecret(peerShare []byte) ([]byte, error)
	Zeroize()
}

// GroupFactory constructs a fresh ephemeral KeyExchange for one named group.
type GroupFactory func() (KeyExchange, error)

// registry maps a NamedGroup to the factory that produces a fresh ephemeral
// instance for it. Registered once at init so pkg/handshake never branches
// on the group identifier itself — only on whether a factory exists.
var registry = map[constants.NamedGroup]GroupFactory{
	constants.GroupSecp256r1: func() (KeyExchange, error) { return newECDHE(ecdh.P256(), constants.GroupSecp256r1) },
	constants.GroupSecp384r1: func() (KeyExchange, error) { return newECDHE(ecdh.P384(), constants.GroupSecp384r1) },
	constants.GroupSecp521r1: func() (KeyExchange, error) { return newECDHE(ecdh.P521(), constants.GroupSecp521r1) },
	constants.GroupX25519:    newX25519,
	constants.GroupFFDHE2048: func() (KeyExchange, error) { return newFFDHE(ffdhe2048) },
	constants.GroupFFDHE3072: func() (KeyExchange, error) { return newFFDHE(ffdhe3072) },

	// The hybrid ML-KEM-1024+X25519 combiner (draft-ietf-tls-hybrid-design)
	// is the one post-quantum strategy this engine actually implements, a
	// registry entry like any classical group.
	constants.GroupX25519MLKEM1024: newHybridX25519MLKEM1024,

	// GroupX448, GroupFFDHE4096/6144/8192, and GroupX25519MLKEM768/
	// GroupSecp256MLKEM768 are recognized (constants exist, parsing accepts
	// them in supported_groups/key_share) but have no registered factory:
	// no X448 collaborator, no verified RFC 7919 modulus for the three
	// largest FFDHE groups, and no ML-KEM-768 collaborator are wired.
	// SelectGroup below simply treats them as non-matching and falls
	// through to the next mutually offered group instead of stalling.
}

// Supported reports whether a fresh KeyExchange can be produced for group.
func Supported(group constants.NamedGroup) bool {
	_, ok := registry[group]
	return ok
}

// New produces a fresh ephemeral KeyExchange for group, or ErrNoGroupOverlap
// wrapped with InternalError semantics if nothing is registered for it —
// callers should always check Supported (or walk SelectGroup's result) first.
func New(group constants.NamedGroup) (KeyExchange, error) {
	factory, ok := registry[group]
	if !ok {
		return nil, qerrors.NewProtocolError("kex.New", qerrors.ErrNoGroupOverlap)
	}
	return factory()
}

// SelectGroup implements the §8 scenario-8 negotiation rule: the first
// group in client preference order that the server also offers/supports.
// offeredByClient is iterated in order; acceptedByServer need only contain
// the candidate, not be ordered itself.
func SelectGroup(offeredByClient, acceptedByServer []constants.NamedGroup) (constants.NamedGroup, bool) {
	accepted := make(map[constants.NamedGroup]bool, len(acceptedByServer))
	for _, g := range acceptedByServer {
		accepted[g] = true
	}
	for _, g := range offeredByClient {
		if accepted[g] && Supported(g) {
			return g, true
		}
	}
	return 0, false
}

// --- ECDHE (classic NIST curves, RFC 8422) ---

type ecdheKeyExchange struct {
	curve   ecdh.Curve
	group   constants.NamedGroup
	private *ecdh.PrivateKey
}

func newECDHE(curve ecdh.Curve, group constants.NamedGroup) (KeyExchange, error) {
	priv, err := curve.GenerateKey(crypto.Reader)
	if err != nil {
		return nil, qerrors.NewCryptoError("kex.ECDHE", err)
	}
	return &ecdheKeyExchange{curve: curve, group: group, private: priv}, nil
}

func (e *ecdheKeyExchange) Group() constants.NamedGroup { return e.group }

// PublicShare returns the uncompressed point encoding §4.8 requires.
func (e *ecdheKeyExchange) PublicShare() []byte { return e.private.PublicKey().Bytes() }

func (e *ecdheKeyExchange) SharedSecret(peerShare []byte) ([]byte, error) {
	peerPub, err := e.curve.NewPublicKey(peerShare)
	if err != nil {
		return nil, qerrors.NewProtocolError("kex.ECDHE", qerrors.ErrDecodeError)
	}
	secret, err := e.private.ECDH(peerPub)
	if err != nil {
		return nil, qerrors.NewProtocolError("kex.ECDHE", qerrors.ErrIllegalParameter)
	}
	return secret, nil
}

func (e *ecdheKeyExchange) Zeroize() { e.private = nil }

// --- X25519 (RFC 7748) ---

type x25519KeyExchange struct {
	kp *crypto.X25519KeyPair
}

func newX25519() (KeyExchange, error) {
	kp, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		return nil, err
	}
	return &x25519KeyExchange{kp: kp}, nil
}

func (x *x25519KeyExchange) Group() constants.NamedGroup { return constants.GroupX25519 }
func (x *x25519KeyExchange) PublicShare() []byte         { return x.kp.PublicKeyBytes() }

func (x *x25519KeyExchange) SharedSecret(peerShare []byte) ([]byte, error) {
	peerPub, err := crypto.ParseX25519PublicKey(peerShare)
	if err != nil {
		return nil, err
	}
	secret, err := crypto.X25519(x.kp.PrivateKey, peerPub)
	if err != nil {
		return nil, err
	}
	if allZero(secret) {
		return nil, qerrors.NewProtocolError("kex.X25519", qerrors.ErrZeroSharedSecret)
	}
	return secret, nil
}

func (x *x25519KeyExchange) Zeroize() { x.kp.Zeroize() }

func allZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}

// --- Hybrid X25519+ML-KEM-1024 (draft-ietf-tls-hybrid-design) ---
//
// Share = ML-KEM-1024 encaps key || X25519 public key (classical appended,
// matching the draft's "PQ share first" convention this engine adopts
// throughout, mirrored on decapsulate/combine below). Secret = ML-KEM
// shared secret || X25519 shared secret; §4.8 requires both halves to
// succeed or the whole exchange fails.

type hybridKeyExchange struct {
	mlkemPriv *crypto.MLKEMPrivateKey
	mlkemPub  *crypto.MLKEMPublicKey
	classical *crypto.X25519KeyPair
}

func newHybridX25519MLKEM1024() (KeyExchange, error) {
	kp, err := crypto.GenerateMLKEMKeyPair()
	if err != nil {
		return nil, err
	}
	classical, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		return nil, err
	}
	return &hybridKeyExchange{mlkemPriv: kp.DecapsulationKey, mlkemPub: kp.EncapsulationKey, classical: classical}, nil
}

func (h *hybridKeyExchange) Group() constants.NamedGroup { return constants.GroupX25519MLKEM1024 }

func (h *hybridKeyExchange) PublicShare() []byte {
	out := make([]byte, 0, constants.MLKEMPublicKeySize+constants.X25519PublicKeySize)
	out = append(out, h.mlkemPub.Bytes()...)
	out = append(out, h.classical.PublicKeyBytes()...)
	return out
}

// SharedSecret is only valid on the *initiator* side of this combiner (the
// peer share here is a ciphertext||classical-public pair, i.e. this side
// generated the ML-KEM keypair and the peer encapsulated against it). The
// responder side instead calls Encapsulate, mirroring draft-ietf-tls-hybrid
// where the client's key_share carries the encaps key and the server's
// carries the ciphertext.
func (h *hybridKeyExchange) SharedSecret(peerShare []byte) ([]byte, error) {
	if len(peerShare) != constants.MLKEMCiphertextSize+constants.X25519PublicKeySize {
		return nil, qerrors.NewProtocolError("kex.Hybrid", qerrors.ErrDecodeError)
	}
	ct := peerShare[:constants.MLKEMCiphertextSize]
	classicalPeer := peerShare[constants.MLKEMCiphertextSize:]

	pqSecret, err := crypto.MLKEMDecapsulate(h.mlkemPriv, ct)
	if err != nil {
		return nil, err
	}
	peerPub, err := crypto.ParseX25519PublicKey(classicalPeer)
	if err != nil {
		return nil, err
	}
	classicalSecret, err := crypto.X25519(h.classical.PrivateKey, peerPub)
	if err != nil {
		return nil, err
	}
	if allZero(classicalSecret) {
		return nil, qerrors.NewProtocolError("kex.Hybrid", qerrors.ErrZeroSharedSecret)
	}
	return combine(pqSecret, classicalSecret), nil
}

// Encapsulate is the responder-side half of the hybrid exchange: given the
// initiator's (ML-KEM public key || X25519 public key) share, produce this
// side's (ciphertext || X25519 public key) share and the combined secret in
// one step, since unlike the DH groups the responder never holds a
// standalone private KeyExchange instance for the PQ half.
func Encapsulate(peerShare []byte) (responderShare, sharedSecret []byte, err error) {
	if len(peerShare) != constants.MLKEMPublicKeySize+constants.X25519PublicKeySize {
		return nil, nil, qerrors.NewProtocolError("kex.Hybrid", qerrors.ErrDecodeError)
	}
	pqPub, err := crypto.ParseMLKEMPublicKey(peerShare[:constants.MLKEMPublicKeySize])
	if err != nil {
		return nil, nil, err
	}
	classicalPeerBytes := peerShare[constants.MLKEMPublicKeySize:]
	peerPub, err := crypto.ParseX25519PublicKey(classicalPeerBytes)
	if err != nil {
		return nil, nil, err
	}

	ct, pqSecret, err := crypto.MLKEMEncapsulate(pqPub)
	if err != nil {
		return nil, nil, err
	}
	classicalKP, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		return nil, nil, err
	}
	classicalSecret, err := crypto.X25519(classicalKP.PrivateKey, peerPub)
	if err != nil {
		return nil, nil, err
	}
	if allZero(classicalSecret) {
		return nil, nil, qerrors.NewProtocolError("kex.Hybrid", qerrors.ErrZeroSharedSecret)
	}

	share := make([]byte, 0, constants.MLKEMCiphertextSize+constants.X25519PublicKeySize)
	share = append(share, ct...)
	share = append(share, classicalKP.PublicKeyBytes()...)
	return share, combine(pqSecret, classicalSecret), nil
}

func combine(pqSecret, classicalSecret []byte) []byte {
	out := make([]byte, 0, len(pqSecret)+len(classicalSecret))
	out = append(out, pqSecret...)
	out = append(out, classicalSecret...)
	return out
}

func (h *hybridKeyExchange) Zeroize() {
	h.classical.Zeroize()
	h.mlkemPriv = nil
}

// ConstantTimeEqual exposes subtle.ConstantTimeCompare for verify_data and
// PSK binder checks (§9's constant-time discipline requirement) without
// every caller importing crypto/subtle directly.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
