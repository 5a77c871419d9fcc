// Package constants defines wire-level protocol constants for the TLS engine:
// protocol versions, content types, handshake message types, alert descriptions,
// extension types, named groups and cipher suite identifiers.
//
// Values follow RFC 2246 (TLS 1.0), RFC 4346 (TLS 1.1), RFC 5246 (TLS 1.2) and
// RFC 8446 (TLS 1.3), plus the extensions named in the external interface list
// (RFC 7905, RFC 7627, RFC 7301, RFC 6066, RFC 7919, RFC 7748, RFC 8422,
// RFC 6520) and the hybrid ML-KEM group IDs from draft-ietf-tls-hybrid-design.
package constants

// ProtocolVersion is the 2-byte (major, minor) version pair carried on every
// record and in legacy_version / supported_versions fields.
type ProtocolVersion struct {
	Major uint8
	Minor uint8
}

// Recognized protocol versions, in ascending order.
var (
	SSL30 = ProtocolVersion{3, 0}
	TLS10 = ProtocolVersion{3, 1}
	TLS11 = ProtocolVersion{3, 2}
	TLS12 = ProtocolVersion{3, 3}
	TLS13 = ProtocolVersion{3, 4}
)

// Uint16 returns the version as a single big-endian 16-bit value.
func (v ProtocolVersion) Uint16() uint16 {
	return uint16(v.Major)<<8 | uint16(v.Minor)
}

// Less reports whether v is ordered strictly before other.
func (v ProtocolVersion) Less(other ProtocolVersion) bool {
	return v.Uint16() < other.Uint16()
}

// AtLeast reports whether v is the same as, or newer than, other.
func (v ProtocolVersion) AtLeast(other ProtocolVersion) bool {
	return v.Uint16() >= other.Uint16()
}

func (v ProtocolVersion) String() string {
	switch v {
	case SSL30:
		return "SSL3.0"
	case TLS10:
		return "TLS1.0"
	case TLS11:
		return "TLS1.1"
	case TLS12:
		return "TLS1.2"
	case TLS13:
		return "TLS1.3"
	default:
		return "Unknown"
	}
}

// ParseVersion decodes a 2-byte big-endian version field.
func ParseVersion(major, minor uint8) ProtocolVersion {
	return ProtocolVersion{Major: major, Minor: minor}
}

// ContentType identifies the payload carried by a TLS record.
type ContentType uint8

const (
	ContentTypeChangeCipherSpec ContentType = 20
	ContentTypeAlert            ContentType = 21
	ContentTypeHandshake        ContentType = 22
	ContentTypeApplicationData  ContentType = 23
	ContentTypeHeartbeat        ContentType = 24
)

func (ct ContentType) String() string {
	switch ct {
	case ContentTypeChangeCipherSpec:
		return "change_cipher_spec"
	case ContentTypeAlert:
		return "alert"
	case ContentTypeHandshake:
		return "handshake"
	case ContentTypeApplicationData:
		return "application_data"
	case ContentTypeHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// HandshakeType tags the handshake message variants of §3's tagged union.
type HandshakeType uint8

const (
	HandshakeTypeHelloRequest       HandshakeType = 0
	HandshakeTypeClientHello        HandshakeType = 1
	HandshakeTypeServerHello        HandshakeType = 2
	HandshakeTypeHelloRetryRequest  HandshakeType = 6 // TLS 1.3 overloads ServerHello.random
	HandshakeTypeNewSessionTicket   HandshakeType = 4
	HandshakeTypeEndOfEarlyData     HandshakeType = 5
	HandshakeTypeEncryptedExtensions HandshakeType = 8
	HandshakeTypeCertificate        HandshakeType = 11
	HandshakeTypeServerKeyExchange  HandshakeType = 12
	HandshakeTypeCertificateRequest HandshakeType = 13
	HandshakeTypeServerHelloDone    HandshakeType = 14
	HandshakeTypeCertificateVerify  HandshakeType = 15
	HandshakeTypeClientKeyExchange  HandshakeType = 16
	HandshakeTypeFinished           HandshakeType = 20
	HandshakeTypeKeyUpdate          HandshakeType = 24
)

func (t HandshakeType) String() string {
	switch t {
	case HandshakeTypeHelloRequest:
		return "hello_request"
	case HandshakeTypeClientHello:
		return "client_hello"
	case HandshakeTypeServerHello:
		return "server_hello"
	case HandshakeTypeHelloRetryRequest:
		return "hello_retry_request"
	case HandshakeTypeNewSessionTicket:
		return "new_session_ticket"
	case HandshakeTypeEndOfEarlyData:
		return "end_of_early_data"
	case HandshakeTypeEncryptedExtensions:
		return "encrypted_extensions"
	case HandshakeTypeCertificate:
		return "certificate"
	case HandshakeTypeServerKeyExchange:
		return "server_key_exchange"
	case HandshakeTypeCertificateRequest:
		return "certificate_request"
	case HandshakeTypeServerHelloDone:
		return "server_hello_done"
	case HandshakeTypeCertificateVerify:
		return "certificate_verify"
	case HandshakeTypeClientKeyExchange:
		return "client_key_exchange"
	case HandshakeTypeFinished:
		return "finished"
	case HandshakeTypeKeyUpdate:
		return "key_update"
	default:
		return "unknown"
	}
}

// AlertLevel is the severity of an Alert record.
type AlertLevel uint8

const (
	AlertLevelWarning AlertLevel = 1
	AlertLevelFatal   AlertLevel = 2
)

// AlertDescription enumerates the §7 error taxonomy's wire representation.
type AlertDescription uint8

const (
	AlertCloseNotify            AlertDescription = 0
	AlertUnexpectedMessage      AlertDescription = 10
	AlertBadRecordMac           AlertDescription = 20
	AlertDecryptionFailed       AlertDescription = 21
	AlertRecordOverflow         AlertDescription = 22
	AlertDecompressionFailure   AlertDescription = 30
	AlertHandshakeFailure       AlertDescription = 40
	AlertNoCertificate          AlertDescription = 41
	AlertBadCertificate         AlertDescription = 42
	AlertUnsupportedCertificate AlertDescription = 43
	AlertCertificateRevoked     AlertDescription = 44
	AlertCertificateExpired     AlertDescription = 45
	AlertCertificateUnknown     AlertDescription = 46
	AlertIllegalParameter       AlertDescription = 47
	AlertUnknownCA              AlertDescription = 48
	AlertAccessDenied           AlertDescription = 49
	AlertDecodeError            AlertDescription = 50
	AlertDecryptError           AlertDescription = 51
	AlertProtocolVersion        AlertDescription = 70
	AlertInsufficientSecurity   AlertDescription = 71
	AlertInternalError          AlertDescription = 80
	AlertInappropriateFallback  AlertDescription = 86
	AlertUserCanceled           AlertDescription = 90
	AlertNoRenegotiation        AlertDescription = 100
	AlertMissingExtension       AlertDescription = 109
	AlertUnsupportedExtension   AlertDescription = 110
	AlertUnrecognizedName       AlertDescription = 112
	AlertNoApplicationProtocol  AlertDescription = 120
)

func (d AlertDescription) String() string {
	switch d {
	case AlertCloseNotify:
		return "close_notify"
	case AlertUnexpectedMessage:
		return "unexpected_message"
	case AlertBadRecordMac:
		return "bad_record_mac"
	case AlertDecryptionFailed:
		return "decryption_failed"
	case AlertRecordOverflow:
		return "record_overflow"
	case AlertHandshakeFailure:
		return "handshake_failure"
	case AlertBadCertificate:
		return "bad_certificate"
	case AlertIllegalParameter:
		return "illegal_parameter"
	case AlertDecodeError:
		return "decode_error"
	case AlertDecryptError:
		return "decrypt_error"
	case AlertProtocolVersion:
		return "protocol_version"
	case AlertInsufficientSecurity:
		return "insufficient_security"
	case AlertInternalError:
		return "internal_error"
	case AlertUserCanceled:
		return "user_canceled"
	case AlertNoRenegotiation:
		return "no_renegotiation"
	case AlertMissingExtension:
		return "missing_extension"
	case AlertUnsupportedExtension:
		return "unsupported_extension"
	case AlertUnrecognizedName:
		return "unrecognized_name"
	case AlertNoApplicationProtocol:
		return "no_application_protocol"
	default:
		return "unknown"
	}
}

// ExtensionType tags entries of an ExtensionBlock.
type ExtensionType uint16

const (
	ExtensionServerName                ExtensionType = 0
	ExtensionStatusRequest             ExtensionType = 5
	ExtensionSupportedGroups           ExtensionType = 10
	ExtensionECPointFormats            ExtensionType = 11
	ExtensionSignatureAlgorithms       ExtensionType = 13
	ExtensionHeartbeat                 ExtensionType = 15
	ExtensionALPN                      ExtensionType = 16
	ExtensionCompressCertificate       ExtensionType = 27
	ExtensionPreSharedKey              ExtensionType = 41
	ExtensionEarlyData                 ExtensionType = 42
	ExtensionSupportedVersions         ExtensionType = 43
	ExtensionCookie                    ExtensionType = 44
	ExtensionPSKKeyExchangeModes       ExtensionType = 45
	ExtensionCertificateAuthorities    ExtensionType = 47
	ExtensionSignatureAlgorithmsCert   ExtensionType = 50
	ExtensionKeyShare                  ExtensionType = 51
	ExtensionExtendedMasterSecret      ExtensionType = 23
	ExtensionEncryptThenMAC            ExtensionType = 22
	ExtensionRenegotiationInfo         ExtensionType = 0xff01
)

// NamedGroup identifies a key-exchange group for supported_groups/key_share.
type NamedGroup uint16

const (
	GroupSecp256r1 NamedGroup = 0x0017
	GroupSecp384r1 NamedGroup = 0x0018
	GroupSecp521r1 NamedGroup = 0x0019
	GroupX25519    NamedGroup = 0x001D
	GroupX448      NamedGroup = 0x001E
	GroupFFDHE2048 NamedGroup = 0x0100
	GroupFFDHE3072 NamedGroup = 0x0101
	GroupFFDHE4096 NamedGroup = 0x0102
	GroupFFDHE6144 NamedGroup = 0x0103
	GroupFFDHE8192 NamedGroup = 0x0104

	// Hybrid post-quantum groups (draft-ietf-tls-hybrid-design), as recognized
	// by this implementation per the external interface list. Only
	// GroupX25519MLKEM1024 is backed by a pkg/kex strategy; the other two are
	// parsed in supported_groups/key_share but never selected (no ML-KEM-768
	// collaborator is wired), so negotiation falls through to the next
	// mutually offered group instead of stalling on an unimplemented one.
	GroupX25519MLKEM768   NamedGroup = 0x11EC
	GroupSecp256MLKEM768  NamedGroup = 0x11ED
	GroupX25519MLKEM1024  NamedGroup = 0x11EE
)

// HeartbeatMode selects which end may originate heartbeat requests (RFC 6520).
type HeartbeatMode uint8

const (
	HeartbeatDisabled HeartbeatMode = iota
	HeartbeatAllowSend
	HeartbeatAllowReceive
	HeartbeatAllowBoth
)

// MinHeartbeatPaddingSize is the RFC 6520-mandated minimum random padding
// length on a heartbeat message; §9 open question (a) mandates enforcing it.
const MinHeartbeatPaddingSize = 16

// MaxHeartbeatPayloadSize bounds an accepted heartbeat_request payload.
const MaxHeartbeatPayloadSize = 1 << 16

// CipherSuite is the 2-byte wire identifier of a TLS cipher suite.
type CipherSuite uint16

// Cipher suites this engine negotiates. IDs are the IANA-registered values.
const (
	// TLS 1.3 AEAD suites (RFC 8446 §B.4).
	CipherSuiteTLS13AES128GCMSHA256       CipherSuite = 0x1301
	CipherSuiteTLS13AES256GCMSHA384       CipherSuite = 0x1302
	CipherSuiteTLS13ChaCha20Poly1305SHA256 CipherSuite = 0x1303

	// TLS 1.2 ECDHE AEAD suites.
	CipherSuiteECDHERSAAES128GCMSHA256       CipherSuite = 0xC02F
	CipherSuiteECDHERSAAES256GCMSHA384       CipherSuite = 0xC030
	CipherSuiteECDHERSAChaCha20Poly1305SHA256 CipherSuite = 0xCCA8
	CipherSuiteECDHEECDSAAES128GCMSHA256     CipherSuite = 0xC02B
	CipherSuiteECDHEECDSAAES256GCMSHA384     CipherSuite = 0xC02C

	// TLS 1.2 legacy CBC suites, kept for the legacy PRF/MAC-then-encrypt path.
	CipherSuiteRSAAES128CBCSHA    CipherSuite = 0x002F
	CipherSuiteRSAAES256CBCSHA    CipherSuite = 0x0035
	CipherSuiteRSAAES128CBCSHA256 CipherSuite = 0x003C
	CipherSuiteECDHERSAAES128CBCSHA CipherSuite = 0xC013
	CipherSuiteECDHERSAAES256CBCSHA CipherSuite = 0xC014

	// Hybrid post-quantum AEAD suite, carrying the same record cipher as
	// CipherSuiteTLS13AES256GCMSHA384 but negotiated only with a hybrid
	// NamedGroup key share.
	CipherSuiteTLS13X25519MLKEM1024AES256GCMSHA384 CipherSuite = 0x1305
)

// HashAlg names the transcript/PRF hash a cipher suite binds to.
type HashAlg uint8

const (
	HashNone HashAlg = iota
	HashMD5SHA1
	HashSHA256
	HashSHA384
)

// PRFHashFor returns the hash algorithm that drives this suite's PRF/HKDF and
// HandshakeHashes.digest('intrinsic').
func (cs CipherSuite) PRFHashFor(version ProtocolVersion) HashAlg {
	switch cs {
	case CipherSuiteTLS13AES256GCMSHA384, CipherSuiteECDHEECDSAAES256GCMSHA384,
		CipherSuiteECDHERSAAES256GCMSHA384, CipherSuiteTLS13X25519MLKEM1024AES256GCMSHA384:
		return HashSHA384
	case CipherSuiteTLS13AES128GCMSHA256, CipherSuiteTLS13ChaCha20Poly1305SHA256,
		CipherSuiteECDHERSAAES128GCMSHA256, CipherSuiteECDHEECDSAAES128GCMSHA256,
		CipherSuiteECDHERSAChaCha20Poly1305SHA256, CipherSuiteRSAAES128CBCSHA256:
		return HashSHA256
	default:
		if version.Less(TLS12) {
			return HashMD5SHA1
		}
		return HashSHA256
	}
}

func (cs CipherSuite) String() string {
	switch cs {
	case CipherSuiteTLS13AES128GCMSHA256:
		return "TLS_AES_128_GCM_SHA256"
	case CipherSuiteTLS13AES256GCMSHA384:
		return "TLS_AES_256_GCM_SHA384"
	case CipherSuiteTLS13ChaCha20Poly1305SHA256:
		return "TLS_CHACHA20_POLY1305_SHA256"
	case CipherSuiteECDHERSAAES128GCMSHA256:
		return "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256"
	case CipherSuiteECDHERSAAES256GCMSHA384:
		return "TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384"
	case CipherSuiteECDHERSAChaCha20Poly1305SHA256:
		return "TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256"
	case CipherSuiteECDHEECDSAAES128GCMSHA256:
		return "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256"
	case CipherSuiteECDHEECDSAAES256GCMSHA384:
		return "TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384"
	case CipherSuiteRSAAES128CBCSHA:
		return "TLS_RSA_WITH_AES_128_CBC_SHA"
	case CipherSuiteRSAAES256CBCSHA:
		return "TLS_RSA_WITH_AES_256_CBC_SHA"
	case CipherSuiteRSAAES128CBCSHA256:
		return "TLS_RSA_WITH_AES_128_CBC_SHA256"
	case CipherSuiteECDHERSAAES128CBCSHA:
		return "TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA"
	case CipherSuiteECDHERSAAES256CBCSHA:
		return "TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA"
	case CipherSuiteTLS13X25519MLKEM1024AES256GCMSHA384:
		return "TLS_X25519MLKEM1024_WITH_AES_256_GCM_SHA384"
	default:
		return "Unknown"
	}
}

// IsTLS13 reports whether this is one of the TLS 1.3 AEAD-only suites.
func (cs CipherSuite) IsTLS13() bool {
	switch cs {
	case CipherSuiteTLS13AES128GCMSHA256, CipherSuiteTLS13AES256GCMSHA384,
		CipherSuiteTLS13ChaCha20Poly1305SHA256, CipherSuiteTLS13X25519MLKEM1024AES256GCMSHA384:
		return true
	default:
		return false
	}
}

// IsCBC reports whether this suite uses the legacy MAC-then-encrypt CBC
// composition rather than an AEAD.
func (cs CipherSuite) IsCBC() bool {
	switch cs {
	case CipherSuiteRSAAES128CBCSHA, CipherSuiteRSAAES256CBCSHA, CipherSuiteRSAAES128CBCSHA256,
		CipherSuiteECDHERSAAES128CBCSHA, CipherSuiteECDHERSAAES256CBCSHA:
		return true
	default:
		return false
	}
}

// IsFIPSApproved reports whether a cipher suite is FIPS 140-3 approved. Only
// AES-GCM/CBC constructions qualify; ChaCha20-Poly1305 is not FIPS approved.
func (cs CipherSuite) IsFIPSApproved() bool {
	switch cs {
	case CipherSuiteTLS13AES128GCMSHA256, CipherSuiteTLS13AES256GCMSHA384,
		CipherSuiteECDHERSAAES128GCMSHA256, CipherSuiteECDHERSAAES256GCMSHA384,
		CipherSuiteECDHEECDSAAES128GCMSHA256, CipherSuiteECDHEECDSAAES256GCMSHA384,
		CipherSuiteRSAAES128CBCSHA, CipherSuiteRSAAES256CBCSHA, CipherSuiteRSAAES128CBCSHA256,
		CipherSuiteECDHERSAAES128CBCSHA, CipherSuiteECDHERSAAES256CBCSHA,
		CipherSuiteTLS13X25519MLKEM1024AES256GCMSHA384:
		return true
	default:
		return false
	}
}

// Record and session sizing limits.
const (
	// MaxPlaintextLen is the maximum TLSPlaintext.fragment length on egress.
	MaxPlaintextLen = 1 << 14

	// MaxCiphertextLen bounds TLSCiphertext.fragment length on ingress
	// (plaintext limit plus the largest allowed AEAD/CBC expansion).
	MaxCiphertextLen = MaxPlaintextLen + 256

	// RecordHeaderLen is the length of a TLSPlaintext/TLSCiphertext header.
	RecordHeaderLen = 5

	// SequenceNumberLen is the width of the implicit record sequence number.
	SequenceNumberLen = 8

	// VerifyDataLen is the length of the legacy (TLS <=1.2) Finished
	// verify_data; TLS 1.3's is the suite's hash length.
	VerifyDataLen = 12

	// ClientHelloPaddingThreshold and ClientHelloPaddingBoundary implement
	// the F5 BIG-IP padding workaround of §4.9.
	ClientHelloPaddingThreshold = 256
	ClientHelloPaddingBoundary  = 512

	// SessionIDSize is the size of a legacy session_id / TLS 1.3 session
	// ticket-derived identifier used as a SessionCache key.
	SessionIDSize = 32
)

// Primitive sizing constants for pkg/crypto and pkg/kex group strategies.
const (
	AESKeySize128 = 16
	AESKeySize256 = 32
	AESNonceSize  = 12
	AESTagSize    = 16

	X25519PrivateKeySize  = 32
	X25519PublicKeySize   = 32
	X25519SharedSecretSize = 32

	X448PrivateKeySize  = 56
	X448PublicKeySize   = 56
	X448SharedSecretSize = 56

	MLKEMPublicKeySize    = 1568
	MLKEMCiphertextSize   = 1568
	MLKEMSharedSecretSize = 32

	// HybridSharedSecretSize is the length of the combined secret handed to
	// the key schedule for group 0x11EE (X25519MLKEM1024): the classical and
	// post-quantum shared secrets concatenated per §4.8.
	HybridSharedSecretSize = X25519SharedSecretSize + MLKEMSharedSecretSize

	TranscriptHashSize256 = 32
	TranscriptHashSize384 = 48

	// MinPacketSize is the smallest plausible AEAD-protected record body
	// (explicit nonce absent, tag only) accepted before attempting to open it.
	MinPacketSize = AESTagSize
)
