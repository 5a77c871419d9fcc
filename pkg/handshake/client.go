package handshake

import (
	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
	"github.com/pzverkov/gotls/pkg/crypto"
	"github.com/pzverkov/gotls/pkg/kex"
	"github.com/pzverkov/gotls/pkg/protocol"
	"github.com/pzverkov/gotls/pkg/record"
)

// ClientHandshake drives the initiating side of §4.9's state machine. Each
// Create*/Process* method performs one state transition; RunClient
// sequences them in order to Established.
type ClientHandshake struct {
	cfg   *Config
	t     *transcript
	state State

	clientRandom    [32]byte
	legacySessionID []byte
	offeredGroups   []constants.NamedGroup
	shares          map[constants.NamedGroup]kex.KeyExchange

	version constants.ProtocolVersion
	suite   constants.CipherSuite
	ks      *kex.KeySchedule

	serverRandom     [32]byte
	sharedSecret     []byte
	earlySecret      []byte
	handshakeSecret  []byte
	masterSecret     []byte
	clientHSSecret   []byte
	serverHSSecret   []byte
	negotiatedALPN   string
	peerCertData     []byte
}

// NewClientHandshake prepares an initiator bound to rl under cfg.
func NewClientHandshake(rl *record.RecordLayer, cfg *Config) *ClientHandshake {
	return &ClientHandshake{
		cfg:    cfg,
		t:      &transcript{rl: rl, hashes: NewHandshakeHashes()},
		state:  StateStart,
		shares: make(map[constants.NamedGroup]kex.KeyExchange),
	}
}

// CreateClientHello builds and sends the opening flight.
func (c *ClientHandshake) CreateClientHello() error {
	random, err := generateRandom32()
	if err != nil {
		return err
	}
	c.clientRandom = random

	sessionID, err := randomSessionID()
	if err != nil {
		return err
	}
	c.legacySessionID = sessionID

	c.offeredGroups = c.cfg.Groups
	var keyShares []KeyShareEntry
	for _, g := range c.offeredGroups {
		if !kex.Supported(g) {
			continue
		}
		ke, err := kex.New(g)
		if err != nil {
			return err
		}
		c.shares[g] = ke
		keyShares = append(keyShares, KeyShareEntry{Group: g, Data: ke.PublicShare()})
	}

	var exts protocol.ExtensionList
	exts = append(exts, buildSupportedVersionsClient([]constants.ProtocolVersion{c.cfg.MaxVersion, c.cfg.MinVersion}))
	exts = append(exts, buildSupportedGroups(c.offeredGroups))
	schemeIDs := make([]uint16, 0, len(c.cfg.SignatureSchemes))
	for _, s := range c.cfg.SignatureSchemes {
		schemeIDs = append(schemeIDs, uint16(s))
	}
	exts = append(exts, buildSignatureAlgorithms(schemeIDs))
	if len(keyShares) > 0 {
		ksExt, err := buildKeyShareList(keyShares)
		if err != nil {
			return err
		}
		exts = append(exts, ksExt)
	}
	if c.cfg.ServerName != "" {
		exts = append(exts, buildServerName(c.cfg.ServerName))
	}
	if len(c.cfg.ALPNProtocols) > 0 {
		exts = append(exts, buildALPNOffer(c.cfg.ALPNProtocols))
	}
	if c.cfg.RequireExtendedMasterSecret {
		exts = append(exts, emptyExtension(constants.ExtensionExtendedMasterSecret))
	}

	hello := protocol.ClientHelloBody{
		Random:          c.clientRandom,
		LegacySessionID: c.legacySessionID,
		CipherSuites:    c.cfg.CipherSuites,
		Extensions:      exts,
	}
	if err := c.t.send(hello); err != nil {
		return err
	}
	c.state = StateHelloSent
	return nil
}

// ProcessServerHello reads the ServerHello (or HelloRetryRequest), completes
// version/suite/group negotiation, and for TLS 1.3 derives the handshake
// traffic secrets and rekeys the record layer for the rest of the flight.
func (c *ClientHandshake) ProcessServerHello() error {
	body, err := c.t.recv(constants.HandshakeTypeServerHello)
	if err != nil {
		return err
	}
	var sh protocol.ServerHelloBody
	if _, err := sh.Unmarshal(body); err != nil {
		return err
	}
	if sh.IsHelloRetryRequest() {
		return c.processHelloRetryRequest(sh)
	}

	version := sh.Version
	if sve, ok := sh.Extensions.Get(constants.ExtensionSupportedVersions); ok {
		if v, err := parseSupportedVersionsServer(sve.Data); err == nil {
			version = v
		}
	}
	if err := negotiateVersion(c.cfg.MinVersion, c.cfg.MaxVersion, version); err != nil {
		return err
	}
	if !validateCipherSuite(c.cfg.CipherSuites, sh.CipherSuite) {
		return qerrors.NewProtocolError("handshake.client", qerrors.ErrIllegalParameter)
	}
	c.version = version
	c.suite = sh.CipherSuite
	c.serverRandom = sh.Random
	c.ks = kex.NewKeySchedule(c.version, c.suite.PRFHashFor(c.version))

	if !c.version.AtLeast(constants.TLS13) {
		c.state = StateAwaitingServerKeyExchange
		return nil
	}

	kse, ok := sh.Extensions.Get(constants.ExtensionKeyShare)
	if !ok {
		return qerrors.NewProtocolError("handshake.client", qerrors.ErrIllegalParameter)
	}
	entry, err := parseKeyShareOne(kse.Data)
	if err != nil {
		return err
	}
	ke, ok := c.shares[entry.Group]
	if !ok {
		return qerrors.NewProtocolError("handshake.client", qerrors.ErrIllegalParameter)
	}
	shared, err := ke.SharedSecret(entry.Data)
	if err != nil {
		return err
	}
	for g, other := range c.shares {
		if g != entry.Group {
			other.Zeroize()
		}
	}
	c.sharedSecret = shared

	c.earlySecret = c.ks.EarlySecret(nil)
	c.handshakeSecret = c.ks.HandshakeSecret(c.earlySecret, c.sharedSecret)
	transcriptHash := c.t.hashes.Intrinsic(c.version, c.suite)
	c.clientHSSecret = c.ks.ClientHandshakeTrafficSecret(c.handshakeSecret, transcriptHash)
	c.serverHSSecret = c.ks.ServerHandshakeTrafficSecret(c.handshakeSecret, transcriptHash)

	keyLen, ivLen := AEADParams(c.suite)
	readKey, readIV := c.ks.TrafficKeyIV(c.serverHSSecret, keyLen, ivLen)
	readCipher, err := cipherForSuite(c.version, c.suite, readKey, readIV)
	if err != nil {
		return err
	}
	c.t.rl.SetReadCipher(readCipher)

	writeKey, writeIV := c.ks.TrafficKeyIV(c.clientHSSecret, keyLen, ivLen)
	writeCipher, err := cipherForSuite(c.version, c.suite, writeKey, writeIV)
	if err != nil {
		return err
	}
	c.t.rl.SetWriteCipher(writeCipher)

	c.state = StateAwaitingEncryptedExtensions
	return nil
}

func (c *ClientHandshake) processHelloRetryRequest(hrr protocol.ServerHelloBody) error {
	kse, ok := hrr.Extensions.Get(constants.ExtensionKeyShare)
	if !ok {
		return qerrors.NewProtocolError("handshake.client", qerrors.ErrIllegalParameter)
	}
	group, err := parseSelectedGroup(kse.Data)
	if err != nil {
		return err
	}
	if !kex.Supported(group) {
		return qerrors.NewProtocolError("handshake.client", qerrors.ErrNoGroupOverlap)
	}
	ke, err := kex.New(group)
	if err != nil {
		return err
	}
	c.shares[group] = ke
	c.offeredGroups = []constants.NamedGroup{group}

	entry := KeyShareEntry{Group: group, Data: ke.PublicShare()}
	ksExt, err := buildKeyShareList([]KeyShareEntry{entry})
	if err != nil {
		return err
	}
	hello := protocol.ClientHelloBody{
		Random:          c.clientRandom,
		LegacySessionID: c.legacySessionID,
		CipherSuites:    c.cfg.CipherSuites,
		Extensions: protocol.ExtensionList{
			buildSupportedVersionsClient([]constants.ProtocolVersion{c.cfg.MaxVersion}),
			buildSupportedGroups(c.offeredGroups),
			ksExt,
		},
	}
	if err := c.t.send(hello); err != nil {
		return err
	}
	return c.ProcessServerHello()
}

func parseSelectedGroup(data []byte) (constants.NamedGroup, error) {
	r := protocol.NewReader(data)
	v, err := r.ReadUint16()
	if err != nil {
		return 0, err
	}
	return constants.NamedGroup(v), nil
}

// ProcessEncryptedExtensions, ProcessCertificateFlight, and ProcessFinished
// complete the TLS 1.3 server's flight and verify its authentication.
func (c *ClientHandshake) ProcessEncryptedExtensions() error {
	body, err := c.t.recv(constants.HandshakeTypeEncryptedExtensions)
	if err != nil {
		return err
	}
	var ee protocol.EncryptedExtensionsBody
	if _, err := ee.Unmarshal(body); err != nil {
		return err
	}
	if ale, ok := ee.Extensions.Get(constants.ExtensionALPN); ok {
		list, err := parseALPNList(ale.Data)
		if err != nil {
			return err
		}
		if len(list) != 1 {
			return qerrors.NewProtocolError("handshake.client", qerrors.ErrIllegalParameter)
		}
		c.negotiatedALPN = list[0]
	}
	c.state = StateAwaitingCertificate
	return nil
}

func (c *ClientHandshake) ProcessServerAuth() error {
	typ, body, err := c.t.recvAny()
	if err != nil {
		return err
	}
	if typ == constants.HandshakeTypeCertificateRequest {
		// mTLS request; CreateClientFinished sends Certificate and
		// CertificateVerify only when cfg.Signer and cfg.CertData are set,
		// and otherwise sends neither (no empty Certificate is sent).
		typ, body, err = c.t.recvAny()
		if err != nil {
			return err
		}
	}
	if typ != constants.HandshakeTypeCertificate {
		return qerrors.NewProtocolError("handshake.client", qerrors.ErrUnexpectedMessage)
	}
	var cert protocol.CertificateBody
	if _, err := cert.Unmarshal(body); err != nil {
		return err
	}
	if len(cert.CertList) == 0 {
		return qerrors.NewProtocolError("handshake.client", qerrors.ErrIllegalParameter)
	}
	c.peerCertData = cert.CertList[0].CertData
	if c.cfg.PeerCertData != nil && !bytesEqual(c.cfg.PeerCertData, c.peerCertData) {
		return qerrors.NewProtocolError("handshake.client", qerrors.ErrIllegalParameter)
	}

	cvBody, err := c.t.recv(constants.HandshakeTypeCertificateVerify)
	if err != nil {
		return err
	}
	var cv protocol.CertificateVerifyBody
	if _, err := cv.Unmarshal(cvBody); err != nil {
		return err
	}
	pub, err := parseRawPublicKey(c.peerCertData, SignatureScheme(cv.Algorithm))
	if err != nil {
		return err
	}
	transcriptHash := c.t.hashes.Intrinsic(c.version, c.suite)
	if err := VerifyCertificateVerify(pub, SignatureScheme(cv.Algorithm), true, transcriptHash, cv.Signature); err != nil {
		return err
	}

	c.state = StateAwaitingFinished
	return nil
}

func (c *ClientHandshake) ProcessServerFinished() error {
	body, err := c.t.recv(constants.HandshakeTypeFinished)
	if err != nil {
		return err
	}
	serverFinishedKey := c.ks.FinishedKey(c.serverHSSecret)
	transcriptHash := c.t.hashes.Intrinsic(c.version, c.suite)
	expected := c.ks.VerifyData(serverFinishedKey, transcriptHash)
	if !kex.ConstantTimeEqual(expected, body) {
		return qerrors.NewProtocolError("handshake.client", qerrors.ErrBadRecordMac)
	}
	return nil
}

func (c *ClientHandshake) CreateClientFinished() error {
	if c.cfg.Signer != nil && c.cfg.CertData != nil {
		certBody := protocol.CertificateBody{CertList: []protocol.CertificateEntry{{CertData: c.cfg.CertData}}}
		if err := c.t.send(certBody); err != nil {
			return err
		}
		transcriptHash := c.t.hashes.Intrinsic(c.version, c.suite)
		sig, err := SignCertificateVerify(c.cfg.Signer, false, transcriptHash)
		if err != nil {
			return err
		}
		cv := protocol.CertificateVerifyBody{Algorithm: uint16(c.cfg.Signer.Scheme()), Signature: sig}
		if err := c.t.send(cv); err != nil {
			return err
		}
	}

	clientFinishedKey := c.ks.FinishedKey(c.clientHSSecret)
	transcriptHash := c.t.hashes.Intrinsic(c.version, c.suite)
	verifyData := c.ks.VerifyData(clientFinishedKey, transcriptHash)
	fin := protocol.FinishedBody{VerifyDataLen: len(verifyData), VerifyData: verifyData}
	if err := c.t.send(fin); err != nil {
		return err
	}

	c.masterSecret = c.ks.MasterSecretTLS13(c.handshakeSecret)
	finalTranscript := c.t.hashes.Intrinsic(c.version, c.suite)
	clientAppSecret := c.ks.ClientApplicationTrafficSecret(c.masterSecret, finalTranscript)
	serverAppSecret := c.ks.ServerApplicationTrafficSecret(c.masterSecret, finalTranscript)

	keyLen, ivLen := AEADParams(c.suite)
	writeKey, writeIV := c.ks.TrafficKeyIV(clientAppSecret, keyLen, ivLen)
	writeCipher, err := cipherForSuite(c.version, c.suite, writeKey, writeIV)
	if err != nil {
		return err
	}
	c.t.rl.SetWriteCipher(writeCipher)

	readKey, readIV := c.ks.TrafficKeyIV(serverAppSecret, keyLen, ivLen)
	readCipher, err := cipherForSuite(c.version, c.suite, readKey, readIV)
	if err != nil {
		return err
	}
	c.t.rl.SetReadCipher(readCipher)

	c.state = StateEstablished
	return nil
}

// Result packages the negotiated parameters once Established.
func (c *ClientHandshake) Result() *Result {
	return &Result{
		Version:        c.version,
		CipherSuite:    c.suite,
		NegotiatedALPN: c.negotiatedALPN,
		PeerCertData:   c.peerCertData,
		ClientRandom:   c.clientRandom[:],
		ServerRandom:   c.serverRandom[:],
		SessionID:      c.legacySessionID,
		Hashes:         c.t.hashes,
		KeySchedule:    c.ks,
		MasterSecret:   c.masterSecret,
		IsClient:       true,
	}
}

// RunClient drives a full TLS 1.3 client handshake over rl under cfg. TLS
// <=1.2 negotiation stops at StateAwaitingServerKeyExchange; pkg/conn's
// legacy path (not yet wired) would continue from there using the same
// transcript and KeySchedule.
func RunClient(rl *record.RecordLayer, cfg *Config) (*Result, error) {
	c := NewClientHandshake(rl, cfg)
	if err := c.CreateClientHello(); err != nil {
		return nil, err
	}
	if err := c.ProcessServerHello(); err != nil {
		return nil, err
	}
	if c.state != StateAwaitingEncryptedExtensions {
		return nil, qerrors.NewProtocolError("handshake.client", qerrors.ErrProtocolVersion)
	}
	if err := c.ProcessEncryptedExtensions(); err != nil {
		return nil, err
	}
	if err := c.ProcessServerAuth(); err != nil {
		return nil, err
	}
	if err := c.ProcessServerFinished(); err != nil {
		return nil, err
	}
	if err := c.CreateClientFinished(); err != nil {
		return nil, err
	}
	return c.Result(), nil
}

func randomSessionID() ([]byte, error) {
	id := make([]byte, 32)
	if err := crypto.SecureRandom(id); err != nil {
		return nil, err
	}
	return id, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
