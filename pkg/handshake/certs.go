package handshake

import (
	"bytes"
	gocrypto "crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"

	qerrors "github.com/pzverkov/gotls/internal/errors"
)

// SignatureScheme is the IANA TLS SignatureScheme identifier (RFC 8446
// §4.2.3); X.509 chain validation is out of scope (§1), so this engine
// treats a peer's Certificate.cert_data as an opaque raw public key usable
// directly with crypto/ecdsa, crypto/ed25519, or crypto/rsa rather than
// parsing a SubjectPublicKeyInfo structure out of a DER-encoded cert.
type SignatureScheme uint16

const (
	SignatureSchemeRSAPSSRSAESHA256       SignatureScheme = 0x0804
	SignatureSchemeECDSASecp256r1SHA256   SignatureScheme = 0x0403
	SignatureSchemeECDSASecp384r1SHA384   SignatureScheme = 0x0503
	SignatureSchemeEd25519                SignatureScheme = 0x0807
	SignatureSchemeRSAPKCS1SHA256         SignatureScheme = 0x0401
)

// Signer is the §6 external sign collaborator: a certificate's private key
// paired with the scheme it signs under.
type Signer interface {
	Scheme() SignatureScheme
	Public() gocrypto.PublicKey
	Sign(digest []byte) ([]byte, error)
}

// Ed25519Signer is the stock Signer this engine ships: CertData is the raw
// 32-byte Ed25519 public key, matching parseRawPublicKey's Ed25519 case.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

// NewEd25519Signer wraps an Ed25519 private key as a Signer. priv.Public()
// (ed25519.PublicKey) is exactly the CertData a peer expects to receive.
func NewEd25519Signer(priv ed25519.PrivateKey) *Ed25519Signer {
	return &Ed25519Signer{priv: priv}
}

func (s *Ed25519Signer) Scheme() SignatureScheme  { return SignatureSchemeEd25519 }
func (s *Ed25519Signer) Public() gocrypto.PublicKey { return s.priv.Public() }
func (s *Ed25519Signer) Sign(digest []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, digest), nil
}

// certContext builds the TLS 1.3 CertificateVerify signature input (RFC
// 8446 §4.4.3): 64 spaces, a context string naming the signer's role, a
// zero separator byte, then the transcript hash.
func certContext(isServer bool, transcriptHash []byte) []byte {
	var ctxString string
	if isServer {
		ctxString = "TLS 1.3, server CertificateVerify"
	} else {
		ctxString = "TLS 1.3, client CertificateVerify"
	}
	buf := bytes.Repeat([]byte{0x20}, 64)
	buf = append(buf, ctxString...)
	buf = append(buf, 0)
	buf = append(buf, transcriptHash...)
	return buf
}

// SignCertificateVerify produces a TLS 1.3 CertificateVerify signature.
func SignCertificateVerify(signer Signer, isServer bool, transcriptHash []byte) ([]byte, error) {
	content := certContext(isServer, transcriptHash)
	switch signer.Scheme() {
	case SignatureSchemeEd25519:
		return signer.Sign(content)
	default:
		digest := schemeHash(signer.Scheme())(content)
		return signer.Sign(digest)
	}
}

// VerifyCertificateVerify checks a TLS 1.3 CertificateVerify signature
// against the peer's raw public key.
func VerifyCertificateVerify(pub gocrypto.PublicKey, scheme SignatureScheme, isServer bool, transcriptHash, sig []byte) error {
	content := certContext(isServer, transcriptHash)
	return verifyWithScheme(pub, scheme, content, sig)
}

// SignLegacyParams signs the RFC 5246 §7.4.3 digitally-signed struct used
// by a TLS <=1.2 ServerKeyExchange: the hash runs directly over
// client_random||server_random||params with no context wrapper.
func SignLegacyParams(signer Signer, clientRandom, serverRandom, params []byte) ([]byte, error) {
	content := concat(clientRandom, serverRandom, params)
	switch signer.Scheme() {
	case SignatureSchemeEd25519:
		return signer.Sign(content)
	default:
		digest := schemeHash(signer.Scheme())(content)
		return signer.Sign(digest)
	}
}

// VerifyLegacyParams checks a TLS <=1.2 ServerKeyExchange signature.
func VerifyLegacyParams(pub gocrypto.PublicKey, scheme SignatureScheme, clientRandom, serverRandom, params, sig []byte) error {
	content := concat(clientRandom, serverRandom, params)
	return verifyWithScheme(pub, scheme, content, sig)
}

func verifyWithScheme(pub gocrypto.PublicKey, scheme SignatureScheme, content, sig []byte) error {
	switch scheme {
	case SignatureSchemeEd25519:
		key, ok := pub.(ed25519.PublicKey)
		if !ok {
			return qerrors.NewProtocolError("handshake.verify", qerrors.ErrDecodeError)
		}
		if !ed25519.Verify(key, content, sig) {
			return qerrors.NewProtocolError("handshake.verify", qerrors.ErrAuthenticationFailed)
		}
		return nil
	case SignatureSchemeECDSASecp256r1SHA256, SignatureSchemeECDSASecp384r1SHA384:
		key, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return qerrors.NewProtocolError("handshake.verify", qerrors.ErrDecodeError)
		}
		digest := schemeHash(scheme)(content)
		if !ecdsa.VerifyASN1(key, digest, sig) {
			return qerrors.NewProtocolError("handshake.verify", qerrors.ErrAuthenticationFailed)
		}
		return nil
	case SignatureSchemeRSAPSSRSAESHA256:
		key, ok := pub.(*rsa.PublicKey)
		if !ok {
			return qerrors.NewProtocolError("handshake.verify", qerrors.ErrDecodeError)
		}
		digest := schemeHash(scheme)(content)
		if err := rsa.VerifyPSS(key, gocrypto.SHA256, digest, sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}); err != nil {
			return qerrors.NewProtocolError("handshake.verify", qerrors.ErrAuthenticationFailed)
		}
		return nil
	case SignatureSchemeRSAPKCS1SHA256:
		key, ok := pub.(*rsa.PublicKey)
		if !ok {
			return qerrors.NewProtocolError("handshake.verify", qerrors.ErrDecodeError)
		}
		digest := schemeHash(scheme)(content)
		if err := rsa.VerifyPKCS1v15(key, gocrypto.SHA256, digest, sig); err != nil {
			return qerrors.NewProtocolError("handshake.verify", qerrors.ErrAuthenticationFailed)
		}
		return nil
	default:
		return qerrors.NewProtocolError("handshake.verify", qerrors.ErrInsufficientSecurity)
	}
}

func schemeHash(scheme SignatureScheme) func([]byte) []byte {
	switch scheme {
	case SignatureSchemeECDSASecp384r1SHA384:
		return func(b []byte) []byte { s := sha512.Sum384(b); return s[:] }
	default:
		return func(b []byte) []byte { s := sha256.Sum256(b); return s[:] }
	}
}

// parseRawPublicKey interprets a Certificate.cert_data entry as the raw
// public key bytes its signature scheme expects, since ASN.1/SubjectPublic-
// KeyInfo parsing is out of scope (§1): Ed25519 is the 32-byte key itself,
// ECDSA is the uncompressed curve point (RFC 8422 §5.4). RSA schemes are not
// supported here — a modulus/exponent pair has no single fixed-width raw
// encoding to stand in for a SubjectPublicKeyInfo, so this engine simply
// doesn't offer RSA signature schemes in its default configuration.
func parseRawPublicKey(certData []byte, scheme SignatureScheme) (gocrypto.PublicKey, error) {
	switch scheme {
	case SignatureSchemeEd25519:
		if len(certData) != ed25519.PublicKeySize {
			return nil, qerrors.NewProtocolError("handshake.cert", qerrors.ErrDecodeError)
		}
		return ed25519.PublicKey(certData), nil
	case SignatureSchemeECDSASecp256r1SHA256:
		return unmarshalECPublicKey(elliptic.P256(), certData)
	case SignatureSchemeECDSASecp384r1SHA384:
		return unmarshalECPublicKey(elliptic.P384(), certData)
	default:
		return nil, qerrors.NewProtocolError("handshake.cert", qerrors.ErrInsufficientSecurity)
	}
}

func unmarshalECPublicKey(curve elliptic.Curve, data []byte) (*ecdsa.PublicKey, error) {
	x, y := elliptic.Unmarshal(curve, data)
	if x == nil {
		return nil, qerrors.NewProtocolError("handshake.cert", qerrors.ErrDecodeError)
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
