package kex

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
)

// KeySchedule implements §4.7: the legacy dual MD5/SHA1 PRF (TLS 1.0/1.1,
// RFC 2246 §6.1), the TLS 1.2 single-hash PRF (RFC 5246 §5), and the TLS 1.3
// HKDF-Extract/Expand-Label tree (RFC 8446 §7.1), selected by the suite's
// negotiated version and PRF hash.
type KeySchedule struct {
	version constants.ProtocolVersion
	hashAlg constants.HashAlg
}

// NewKeySchedule binds a KeySchedule to the negotiated version and the
// suite's PRF hash (constants.CipherSuite.PRFHashFor).
func NewKeySchedule(version constants.ProtocolVersion, hashAlg constants.HashAlg) *KeySchedule {
	return &KeySchedule{version: version, hashAlg: hashAlg}
}

func (ks *KeySchedule) hashNew() func() hash.Hash {
	switch ks.hashAlg {
	case constants.HashSHA384:
		return sha512.New384
	default:
		return sha256.New
	}
}

// HashLen returns the negotiated PRF/transcript hash's output length.
func (ks *KeySchedule) HashLen() int {
	return ks.hashNew()().Size()
}

// --- Legacy PRF (TLS 1.0/1.1, RFC 2246 §6.1) ---
//
// P_hash(secret, seed) = HMAC_hash(secret, A(1) || seed) ||
//                         HMAC_hash(secret, A(2) || seed) || ...
// where A(0) = seed, A(i) = HMAC_hash(secret, A(i-1)).
// PRF splits secret into two halves (overlapping by one byte if odd
// length), runs P_MD5 over one half and P_SHA1 over the other, and XORs
// the two output streams together.

func pHash(hashNew func() hash.Hash, secret, seed []byte, length int) []byte {
	out := make([]byte, 0, length)
	a := seed
	for len(out) < length {
		mac := hmac.New(hashNew, secret)
		mac.Write(a)
		a = mac.Sum(nil)

		mac = hmac.New(hashNew, secret)
		mac.Write(a)
		mac.Write(seed)
		out = append(out, mac.Sum(nil)...)
	}
	return out[:length]
}

func splitSecret(secret []byte) (s1, s2 []byte) {
	half := (len(secret) + 1) / 2
	s1 = secret[:half]
	s2 = secret[len(secret)-half:]
	return
}

func prfLegacy(secret []byte, label string, seed []byte, length int) []byte {
	s1, s2 := splitSecret(secret)
	fullSeed := append([]byte(label), seed...)
	md5Stream := pHash(md5.New, s1, fullSeed, length)
	sha1Stream := pHash(sha1.New, s2, fullSeed, length)
	out := make([]byte, length)
	for i := range out {
		out[i] = md5Stream[i] ^ sha1Stream[i]
	}
	return out
}

// --- TLS 1.2 PRF (RFC 5246 §5): single P_hash over the suite's hash. ---

func (ks *KeySchedule) prf12(secret []byte, label string, seed []byte, length int) []byte {
	fullSeed := append([]byte(label), seed...)
	return pHash(ks.hashNew(), secret, fullSeed, length)
}

// PRF dispatches to the version-appropriate pseudo-random function. label
// is the ASCII label ("master secret", "key expansion", "client finished",
// "server finished", ...); seed is the construction-specific seed (random
// concatenation or a transcript hash, depending on caller).
func (ks *KeySchedule) PRF(secret []byte, label string, seed []byte, length int) []byte {
	if ks.version.Less(constants.TLS12) {
		return prfLegacy(secret, label, seed, length)
	}
	return ks.prf12(secret, label, seed, length)
}

// MasterSecret computes the legacy/TLS-1.2 master_secret (RFC 5246 §8.1),
// or its RFC 7627 Extended Master Secret variant when extended is true
// (seed becomes the session_hash transcript digest instead of the two
// client/server randoms).
func (ks *KeySchedule) MasterSecret(preMasterSecret, clientRandom, serverRandom []byte, extended bool, sessionHash []byte) []byte {
	if extended {
		return ks.PRF(preMasterSecret, "extended master secret", sessionHash, 48)
	}
	seed := append(append([]byte(nil), clientRandom...), serverRandom...)
	return ks.PRF(preMasterSecret, "master secret", seed, 48)
}

// KeyBlock computes the RFC 5246 §6.3 key_expansion key block. The caller
// partitions the result into client/server write MAC key, write key, and
// write IV in that order.
func (ks *KeySchedule) KeyBlock(masterSecret, serverRandom, clientRandom []byte, length int) []byte {
	seed := append(append([]byte(nil), serverRandom...), clientRandom...)
	return ks.PRF(masterSecret, "key expansion", seed, length)
}

// LegacyVerifyData computes the TLS <=1.2 Finished verify_data: PRF over
// the 12-byte-truncated output, label "client finished"/"server finished",
// seed = the running transcript hash (single MD5+SHA1 concat for <=1.1,
// the suite's hash for 1.2).
func (ks *KeySchedule) LegacyVerifyData(masterSecret []byte, label string, transcriptHash []byte) []byte {
	return ks.PRF(masterSecret, label, transcriptHash, constants.VerifyDataLen)
}

// --- TLS 1.3 key schedule (RFC 8446 §7.1) ---

// hkdfExtract wraps hkdf.Extract with the suite's hash and a nil-salt
// default of hashLen zero bytes per RFC 5869 §2.2 (also RFC 8446's
// "Extract(0, ...)" convention for the very first early-secret step).
func (ks *KeySchedule) hkdfExtract(salt, ikm []byte) []byte {
	if salt == nil {
		salt = make([]byte, ks.HashLen())
	}
	if ikm == nil {
		ikm = make([]byte, ks.HashLen())
	}
	return hkdf.Extract(ks.hashNew(), ikm, salt)
}

// hkdfLabel encodes the RFC 8446 §7.1 HkdfLabel structure:
//
//	struct {
//	    uint16 length;
//	    opaque label<7..255> = "tls13 " + Label;
//	    opaque context<0..255> = Context;
//	} HkdfLabel;
func hkdfLabel(length int, label string, context []byte) []byte {
	fullLabel := "tls13 " + label
	out := make([]byte, 0, 2+1+len(fullLabel)+1+len(context))
	out = append(out, byte(length>>8), byte(length))
	out = append(out, byte(len(fullLabel)))
	out = append(out, fullLabel...)
	out = append(out, byte(len(context)))
	out = append(out, context...)
	return out
}

// ExpandLabel implements HKDF-Expand-Label(secret, label, context, length).
func (ks *KeySchedule) ExpandLabel(secret []byte, label string, context []byte, length int) []byte {
	info := hkdfLabel(length, label, context)
	out := make([]byte, length)
	r := hkdf.Expand(ks.hashNew(), secret, info)
	if _, err := io.ReadFull(r, out); err != nil {
		panic("kex: hkdf expand-label underflow: " + err.Error())
	}
	return out
}

// DeriveSecret implements Derive-Secret(secret, label, messages) =
// HKDF-Expand-Label(secret, label, Transcript-Hash(messages), hash.length).
func (ks *KeySchedule) DeriveSecret(secret []byte, label string, transcriptHash []byte) []byte {
	return ks.ExpandLabel(secret, label, transcriptHash, ks.HashLen())
}

// EarlySecret is the first node of the TLS 1.3 key schedule tree:
// HKDF-Extract(0, PSK) — the zero vector when no PSK is in use.
func (ks *KeySchedule) EarlySecret(psk []byte) []byte {
	return ks.hkdfExtract(nil, psk)
}

// HandshakeSecret derives the second tree node from the early secret and
// the (EC)DHE/hybrid shared secret: HKDF-Extract(Derive-Secret(early,
// "derived", ""), shared_secret).
func (ks *KeySchedule) HandshakeSecret(earlySecret, sharedSecret []byte) []byte {
	emptyHash := ks.hashNew()().Sum(nil)
	salt := ks.DeriveSecret(earlySecret, "derived", emptyHash)
	return ks.hkdfExtract(salt, sharedSecret)
}

// MasterSecretTLS13 derives the final tree node:
// HKDF-Extract(Derive-Secret(handshake, "derived", ""), 0).
func (ks *KeySchedule) MasterSecretTLS13(handshakeSecret []byte) []byte {
	emptyHash := ks.hashNew()().Sum(nil)
	salt := ks.DeriveSecret(handshakeSecret, "derived", emptyHash)
	return ks.hkdfExtract(salt, nil)
}

// ClientHandshakeTrafficSecret / ServerHandshakeTrafficSecret derive the
// "c hs traffic"/"s hs traffic" secrets from the handshake secret and the
// transcript hash through ServerHello.
func (ks *KeySchedule) ClientHandshakeTrafficSecret(handshakeSecret, transcriptHash []byte) []byte {
	return ks.DeriveSecret(handshakeSecret, "c hs traffic", transcriptHash)
}

func (ks *KeySchedule) ServerHandshakeTrafficSecret(handshakeSecret, transcriptHash []byte) []byte {
	return ks.DeriveSecret(handshakeSecret, "s hs traffic", transcriptHash)
}

// ClientApplicationTrafficSecret / ServerApplicationTrafficSecret derive
// the "c ap traffic"/"s ap traffic" secrets from the master secret and the
// transcript hash through server Finished.
func (ks *KeySchedule) ClientApplicationTrafficSecret(masterSecret, transcriptHash []byte) []byte {
	return ks.DeriveSecret(masterSecret, "c ap traffic", transcriptHash)
}

func (ks *KeySchedule) ServerApplicationTrafficSecret(masterSecret, transcriptHash []byte) []byte {
	return ks.DeriveSecret(masterSecret, "s ap traffic", transcriptHash)
}

// ExporterMasterSecret / ResumptionMasterSecret derive "exp master" and
// "res master" respectively, used for keying material export and the
// PSK resumption the session ticket machinery relies on.
func (ks *KeySchedule) ExporterMasterSecret(masterSecret, transcriptHash []byte) []byte {
	return ks.DeriveSecret(masterSecret, "exp master", transcriptHash)
}

func (ks *KeySchedule) ResumptionMasterSecret(masterSecret, transcriptHash []byte) []byte {
	return ks.DeriveSecret(masterSecret, "res master", transcriptHash)
}

// TrafficKeyIV derives the "key"/"iv" pair from a traffic secret
// (RFC 8446 §7.3), sized to the negotiated AEAD's key/nonce lengths.
func (ks *KeySchedule) TrafficKeyIV(trafficSecret []byte, keyLen, ivLen int) (key, iv []byte) {
	key = ks.ExpandLabel(trafficSecret, "key", nil, keyLen)
	iv = ks.ExpandLabel(trafficSecret, "iv", nil, ivLen)
	return
}

// FinishedKey derives the per-direction "finished" key used to compute and
// verify a TLS 1.3 Finished message's verify_data.
func (ks *KeySchedule) FinishedKey(baseSecret []byte) []byte {
	return ks.ExpandLabel(baseSecret, "finished", nil, ks.HashLen())
}

// VerifyData computes a TLS 1.3 Finished message's verify_data:
// HMAC(finished_key, Transcript-Hash(handshake_context, Certificate*,
// CertificateVerify*)).
func (ks *KeySchedule) VerifyData(finishedKey, transcriptHash []byte) []byte {
	mac := hmac.New(ks.hashNew(), finishedKey)
	mac.Write(transcriptHash)
	return mac.Sum(nil)
}

// NextTrafficSecret implements the KeyUpdate rekey step (RFC 8446 §7.2):
// application_traffic_secret_N+1 = HKDF-Expand-Label(secret_N,
// "traffic upd", "", hash_len).
func (ks *KeySchedule) NextTrafficSecret(current []byte) []byte {
	return ks.ExpandLabel(current, "traffic upd", nil, ks.HashLen())
}

// CalcKey is the §4.7 calcKey facade: given the negotiated version, the
// base secret, the suite (for its PRF hash), a label, and optionally the
// running transcript hash and a requested output length, it dispatches to
// the right derivation without the caller needing to know whether it's
// talking to the legacy PRF tree or the TLS 1.3 HKDF tree.
//
// Recognized labels: "master_secret" (legacy/1.2 master secret; the 64-byte
// transcriptHash argument carries clientRandom||serverRandom, and the RFC
// 7627 extended variant is not available through CalcKey), "key_expansion"
// (legacy/1.2 key block; transcriptHash carries serverRandom||clientRandom),
// "client_finished"/"server_finished" (legacy verify_data under the PRF
// labels "client finished"/"server finished"), or any TLS 1.3 HKDF-Expand-Label
// name ("derived", "c hs traffic", "exp master", "traffic upd", ...) which
// is passed straight through to ExpandLabel against the suite's hash.
func CalcKey(version constants.ProtocolVersion, suite constants.CipherSuite, baseSecret []byte, label string, transcriptHash []byte, outputLength int) ([]byte, error) {
	ks := NewKeySchedule(version, suite.PRFHashFor(version))
	if version.AtLeast(constants.TLS13) {
		return ks.ExpandLabel(baseSecret, label, transcriptHash, outputLength), nil
	}
	switch label {
	case "master_secret":
		if len(transcriptHash) != 64 {
			return nil, qerrors.NewProtocolError("kex.CalcKey", qerrors.ErrInternalError)
		}
		return ks.MasterSecret(baseSecret, transcriptHash[:32], transcriptHash[32:], false, nil), nil
	case "key_expansion":
		if len(transcriptHash) != 64 {
			return nil, qerrors.NewProtocolError("kex.CalcKey", qerrors.ErrInternalError)
		}
		return ks.KeyBlock(baseSecret, transcriptHash[:32], transcriptHash[32:], outputLength), nil
	case "client_finished":
		return ks.LegacyVerifyData(baseSecret, "client finished", transcriptHash), nil
	case "server_finished":
		return ks.LegacyVerifyData(baseSecret, "server finished", transcriptHash), nil
	default:
		return nil, qerrors.NewProtocolError("kex.CalcKey", qerrors.ErrInternalError)
	}
}
