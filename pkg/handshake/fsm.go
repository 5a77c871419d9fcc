package handshake

import (
	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
	"github.com/pzverkov/gotls/pkg/cipherstate"
	"github.com/pzverkov/gotls/pkg/crypto"
	"github.com/pzverkov/gotls/pkg/kex"
	"github.com/pzverkov/gotls/pkg/protocol"
	"github.com/pzverkov/gotls/pkg/record"
)

// State is the §4.9 HandshakeFSM state, shared by the client and server
// enumerations below (a given state only appears in the role that reaches
// it; State() on a finished/failed handshake is for observability, not
// dispatch).
type State int

const (
	StateStart State = iota
	StateHelloSent
	StateAwaitingServerHello
	StateAwaitingEncryptedExtensions // TLS 1.3 only
	StateAwaitingCertificateRequest
	StateAwaitingCertificate
	StateAwaitingCertificateVerify
	StateAwaitingServerKeyExchange // TLS <=1.2 only
	StateAwaitingServerHelloDone   // TLS <=1.2 only
	StateAwaitingFinished
	StateSentClientFlight // TLS <=1.2 only
	StateEstablished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "Start"
	case StateHelloSent:
		return "HelloSent"
	case StateAwaitingServerHello:
		return "AwaitingServerHello"
	case StateAwaitingEncryptedExtensions:
		return "AwaitingEncryptedExtensions"
	case StateAwaitingCertificateRequest:
		return "AwaitingCertificateRequest"
	case StateAwaitingCertificate:
		return "AwaitingCertificate"
	case StateAwaitingCertificateVerify:
		return "AwaitingCertificateVerify"
	case StateAwaitingServerKeyExchange:
		return "AwaitingServerKeyExchange"
	case StateAwaitingServerHelloDone:
		return "AwaitingServerHelloDone"
	case StateAwaitingFinished:
		return "AwaitingFinished"
	case StateSentClientFlight:
		return "SentClientFlight"
	case StateEstablished:
		return "Established"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Config is the §6 Configuration object both roles consult.
type Config struct {
	MinVersion, MaxVersion      constants.ProtocolVersion
	CipherSuites                []constants.CipherSuite
	Groups                      []constants.NamedGroup
	SignatureSchemes            []SignatureScheme
	ALPNProtocols               []string
	RequireExtendedMasterSecret bool
	SessionTicketsEnabled       bool
	RecordSizeLimit             int
	MinKeySize, MaxKeySize      int
	ServerName                  string

	// CertData is this side's certificate presented to the peer, treated as
	// an opaque raw public key (§1: X.509 chain validation out of scope).
	// Signer is the matching private key; nil means this side does not
	// authenticate (anonymous/PSK-only configurations).
	CertData []byte
	Signer   Signer

	// PeerCertData, when set, pins the expected peer public key (the
	// mTLS / server-auth verification this engine performs instead of a
	// chain walk): the handshake fails IllegalParameter if the peer's
	// Certificate doesn't match.
	PeerCertData []byte

	HeartbeatMode     constants.HeartbeatMode
	IgnoreAbruptClose bool
}

// Result is everything pkg/conn.Connection needs once a handshake reaches
// StateEstablished: negotiated parameters, the final secrets to install into
// the RecordLayer, and the transcript for any post-handshake NewSessionTicket
// / KeyUpdate derivation.
type Result struct {
	Version         constants.ProtocolVersion
	CipherSuite     constants.CipherSuite
	NegotiatedALPN  string
	PeerCertData    []byte
	ClientRandom    []byte
	ServerRandom    []byte
	SessionID       []byte
	Hashes          *HandshakeHashes
	KeySchedule     *kex.KeySchedule
	MasterSecret    []byte // legacy/TLS1.2 master_secret, or TLS1.3's master_secret tree node
	ResumptionMaster []byte // TLS1.3 res_master, nil for <=1.2
	ClientAppSecret  []byte // TLS1.3 traffic secrets, used by pkg/conn to seed RecordLayer
	ServerAppSecret  []byte
	IsClient         bool
}

func frameBytes(t constants.HandshakeType, body []byte) []byte {
	out := make([]byte, 4+len(body))
	out[0] = byte(t)
	out[1] = byte(len(body) >> 16)
	out[2] = byte(len(body) >> 8)
	out[3] = byte(len(body))
	copy(out[4:], body)
	return out
}

// transcript bundles the RecordLayer and HandshakeHashes so every FSM step
// hashes exactly the bytes it sends/receives, satisfying §8's "HandshakeHashes
// equals the running hash of all handshake bytes in on-the-wire order"
// invariant without each call site re-deriving the framing by hand.
type transcript struct {
	rl     *record.RecordLayer
	hashes *HandshakeHashes
}

func (t *transcript) send(body protocol.HandshakeMessageBody) error {
	framed, err := protocol.HandshakeMessageFromBody(body)
	if err != nil {
		return err
	}
	t.hashes.Update(framed)
	return t.rl.WriteRecord(constants.ContentTypeHandshake, framed)
}

// sendRaw is used for the one handshake message whose wire form this
// engine treats as pre-serialized opaque bytes (ServerKeyExchange/
// ClientKeyExchange params produced by pkg/kex rather than a
// HandshakeMessageBody).
func (t *transcript) sendRaw(typ constants.HandshakeType, body []byte) error {
	framed := frameBytes(typ, body)
	t.hashes.Update(framed)
	return t.rl.WriteRecord(constants.ContentTypeHandshake, framed)
}

func (t *transcript) recv(want constants.HandshakeType) ([]byte, error) {
	typ, body, err := t.rl.ReadHandshakeMessage()
	if err != nil {
		return nil, err
	}
	if typ != want {
		return nil, qerrors.NewProtocolError("handshake", qerrors.ErrUnexpectedMessage)
	}
	t.hashes.Update(frameBytes(typ, body))
	return body, nil
}

// recvAny is used where the next message's type depends on negotiation
// (e.g. Certificate vs. ServerKeyExchange vs. ServerHelloDone).
func (t *transcript) recvAny() (constants.HandshakeType, []byte, error) {
	typ, body, err := t.rl.ReadHandshakeMessage()
	if err != nil {
		return 0, nil, err
	}
	t.hashes.Update(frameBytes(typ, body))
	return typ, body, nil
}

// negotiateVersion applies §4.9's version rules: the server's chosen
// version must lie within what the client offered, and must not fall below
// the client's configured minimum.
func negotiateVersion(offeredMin, offeredMax, serverVersion constants.ProtocolVersion) error {
	if serverVersion.Less(offeredMin) {
		return qerrors.NewProtocolError("handshake.version", qerrors.ErrProtocolVersion)
	}
	if offeredMax.Less(serverVersion) {
		return qerrors.NewProtocolError("handshake.version", qerrors.ErrIllegalParameter)
	}
	return nil
}

// validateCipherSuite reports whether the server's chosen suite appears in
// the client's configured list (server chooses from the client's offered
// set; here we're validating the server's pick, so the lookup direction is
// "is serverChoice in clientOffered").
func validateCipherSuite(clientOffered []constants.CipherSuite, serverChoice constants.CipherSuite) bool {
	for _, cs := range clientOffered {
		if cs == serverChoice {
			return true
		}
	}
	return false
}

// negotiateCipherSuite implements the server's selection: first of its own
// preference list that the client also offered.
func negotiateCipherSuite(serverPreference, clientOffered []constants.CipherSuite) (constants.CipherSuite, error) {
	offered := make(map[constants.CipherSuite]bool, len(clientOffered))
	for _, cs := range clientOffered {
		offered[cs] = true
	}
	for _, cs := range serverPreference {
		if offered[cs] {
			return cs, nil
		}
	}
	return 0, qerrors.NewProtocolError("handshake.suite", qerrors.ErrNoCipherSuiteOverlap)
}

// padClientHello implements the F5 BIG-IP workaround (§4.9): once a
// serialized ClientHello exceeds ClientHelloPaddingThreshold bytes, a
// padding extension brings the total up to the next ClientHelloPaddingBoundary.
func padClientHello(extensions protocol.ExtensionList, currentLen int) protocol.ExtensionList {
	if currentLen <= constants.ClientHelloPaddingThreshold {
		return extensions
	}
	// Each padding extension costs 4 header bytes (type+length) beyond its
	// body; solve for the body length that lands exactly on the boundary.
	target := ((currentLen/constants.ClientHelloPaddingBoundary + 1) * constants.ClientHelloPaddingBoundary)
	padLen := target - currentLen - 4
	if padLen < 0 {
		// Too close to the boundary for a 4-byte header: aim for the next one.
		padLen += constants.ClientHelloPaddingBoundary
	}
	return append(extensions, protocol.Extension{Type: constants.ExtensionType(21), Data: make([]byte, padLen)})
}

// AEADParams returns the key/nonce lengths the negotiated suite's AEAD
// needs, so the key schedule's TrafficKeyIV/KeyBlock calls are sized right.
// Exported for pkg/conn's post-handshake KeyUpdate rekeying, which re-derives
// traffic keys the same way the handshake's own Established transition does.
func AEADParams(suite constants.CipherSuite) (keyLen, ivLen int) {
	switch suite {
	case constants.CipherSuiteTLS13AES128GCMSHA256, constants.CipherSuiteECDHERSAAES128GCMSHA256,
		constants.CipherSuiteECDHEECDSAAES128GCMSHA256:
		return constants.AESKeySize128, constants.AESNonceSize
	case constants.CipherSuiteTLS13ChaCha20Poly1305SHA256, constants.CipherSuiteECDHERSAChaCha20Poly1305SHA256:
		return 32, constants.AESNonceSize
	default:
		return constants.AESKeySize256, constants.AESNonceSize
	}
}

// cipherForSuite builds the cipherstate.AEAD a negotiated suite needs from a
// derived traffic key/IV (or key/MAC-key, for CBC) pair, dispatching to the
// legacy CBC+MAC construction for suites flagged IsCBC and to the AEAD
// construction otherwise (both already implemented in pkg/cipherstate). The
// CBC branch is exercised by the legacy TLS <=1.2 continuation of the
// handshake (not yet wired into RunClient/RunServer, which only drive the
// TLS 1.3 AEAD suites through to Established).
func cipherForSuite(version constants.ProtocolVersion, suite constants.CipherSuite, key, ivOrMacKey []byte) (cipherstate.AEAD, error) {
	if suite.IsCBC() {
		return cipherstate.NewCBCCipherState(version, macHashAlgFor(suite), key, ivOrMacKey)
	}
	return cipherstate.NewAEADCipherState(suite, key, ivOrMacKey)
}

// macHashAlgFor returns the HMAC hash a legacy CBC suite's "_SHA"/"_SHA256"
// name suffix specifies, independent of CipherSuite.PRFHashFor (whose TLS 1.2
// branch always reports the PRF hash, SHA-256, which is wrong for the
// non-256 CBC suites' SHA-1 MAC).
func macHashAlgFor(suite constants.CipherSuite) constants.HashAlg {
	if suite == constants.CipherSuiteRSAAES128CBCSHA256 {
		return constants.HashSHA256
	}
	return constants.HashMD5SHA1 // NewCBCCipherState's default branch resolves this to sha1.New
}

// generateRandom32 produces a ClientHello.random/ServerHello.random.
func generateRandom32() ([32]byte, error) {
	var r [32]byte
	if err := crypto.SecureRandom(r[:]); err != nil {
		return r, err
	}
	return r, nil
}
