package handshake

import (
	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
	"github.com/pzverkov/gotls/pkg/kex"
	"github.com/pzverkov/gotls/pkg/protocol"
	"github.com/pzverkov/gotls/pkg/record"
)

// ServerHandshake drives the responding side of §4.9's state machine,
// mirroring ClientHandshake's Create*/Process* step shape.
type ServerHandshake struct {
	cfg *Config
	t   *transcript

	clientRandom [32]byte
	sessionID    []byte
	offered      protocol.ClientHelloBody

	version constants.ProtocolVersion
	suite   constants.CipherSuite
	ks      *kex.KeySchedule

	serverRandom    [32]byte
	sharedSecret    []byte
	earlySecret     []byte
	handshakeSecret []byte
	masterSecret    []byte
	clientHSSecret  []byte
	serverHSSecret  []byte
	negotiatedALPN  string
	peerCertData    []byte
}

// NewServerHandshake prepares a responder bound to rl under cfg.
func NewServerHandshake(rl *record.RecordLayer, cfg *Config) *ServerHandshake {
	return &ServerHandshake{
		cfg: cfg,
		t:   &transcript{rl: rl, hashes: NewHandshakeHashes()},
	}
}

// ProcessClientHello reads the opening ClientHello and negotiates version,
// cipher suite, and (for TLS 1.3) key-exchange group.
func (s *ServerHandshake) ProcessClientHello() error {
	body, err := s.t.recv(constants.HandshakeTypeClientHello)
	if err != nil {
		return err
	}
	var ch protocol.ClientHelloBody
	if _, err := ch.Unmarshal(body); err != nil {
		return err
	}
	s.offered = ch
	s.clientRandom = ch.Random
	s.sessionID = ch.LegacySessionID

	offeredVersions := []constants.ProtocolVersion{constants.ProtocolVersion{}}
	if sve, ok := ch.Extensions.Get(constants.ExtensionSupportedVersions); ok {
		if vs, err := parseSupportedVersionsClient(sve.Data); err == nil {
			offeredVersions = vs
		}
	}
	version, ok := s.pickVersion(offeredVersions)
	if !ok {
		return qerrors.NewProtocolError("handshake.server", qerrors.ErrProtocolVersion)
	}
	s.version = version

	suite, err := negotiateCipherSuite(s.cfg.CipherSuites, ch.CipherSuites)
	if err != nil {
		return err
	}
	s.suite = suite
	s.ks = kex.NewKeySchedule(s.version, s.suite.PRFHashFor(s.version))

	if ale, ok := ch.Extensions.Get(constants.ExtensionALPN); ok {
		if list, err := parseALPNList(ale.Data); err == nil {
			if picked, ok := selectMutualALPN(list, s.cfg.ALPNProtocols); ok {
				s.negotiatedALPN = picked
			}
		}
	}
	return nil
}

func (s *ServerHandshake) pickVersion(offered []constants.ProtocolVersion) (constants.ProtocolVersion, bool) {
	for _, v := range offered {
		if v == (constants.ProtocolVersion{}) {
			continue
		}
		if !v.Less(s.cfg.MinVersion) && !s.cfg.MaxVersion.Less(v) {
			return v, true
		}
	}
	if !s.cfg.MaxVersion.Less(constants.TLS12) {
		return constants.TLS12, true
	}
	return constants.ProtocolVersion{}, false
}

// CreateServerHello picks a mutual key-exchange group, completes the TLS 1.3
// key schedule through the handshake traffic secrets, and sends ServerHello.
func (s *ServerHandshake) CreateServerHello() error {
	random, err := generateRandom32()
	if err != nil {
		return err
	}
	s.serverRandom = random

	if !s.version.AtLeast(constants.TLS13) {
		return qerrors.NewProtocolError("handshake.server", qerrors.ErrProtocolVersion)
	}

	kse, ok := s.offered.Extensions.Get(constants.ExtensionKeyShare)
	if !ok {
		return qerrors.NewProtocolError("handshake.server", qerrors.ErrIllegalParameter)
	}
	offeredShares, err := parseKeyShareList(kse.Data)
	if err != nil {
		return err
	}
	offeredGroups, err := parseSupportedGroups(mustGet(s.offered.Extensions, constants.ExtensionSupportedGroups))
	if err != nil {
		return err
	}
	group, ok := kex.SelectGroup(offeredGroups, s.cfg.Groups)
	if !ok {
		return qerrors.NewProtocolError("handshake.server", qerrors.ErrNoGroupOverlap)
	}
	var peerShare []byte
	for _, e := range offeredShares {
		if e.Group == group {
			peerShare = e.Data
			break
		}
	}
	if peerShare == nil {
		return qerrors.NewProtocolError("handshake.server", qerrors.ErrIllegalParameter)
	}

	var responderShareData []byte
	if group == constants.GroupX25519MLKEM1024 {
		share, secret, err := kex.Encapsulate(peerShare)
		if err != nil {
			return err
		}
		responderShareData = share
		s.sharedSecret = secret
	} else {
		ke, err := kex.New(group)
		if err != nil {
			return err
		}
		secret, err := ke.SharedSecret(peerShare)
		if err != nil {
			ke.Zeroize()
			return err
		}
		responderShareData = ke.PublicShare()
		s.sharedSecret = secret
		ke.Zeroize()
	}

	keyShareExt := buildKeyShareOne(KeyShareEntry{Group: group, Data: responderShareData})
	exts := protocol.ExtensionList{
		buildSupportedVersionsServer(s.version),
		keyShareExt,
	}
	sh := protocol.ServerHelloBody{
		Version:             constants.TLS12,
		Random:              s.serverRandom,
		LegacySessionIDEcho: s.sessionID,
		CipherSuite:         s.suite,
		Extensions:          exts,
	}
	if err := s.t.send(sh); err != nil {
		return err
	}

	s.earlySecret = s.ks.EarlySecret(nil)
	s.handshakeSecret = s.ks.HandshakeSecret(s.earlySecret, s.sharedSecret)
	transcriptHash := s.t.hashes.Intrinsic(s.version, s.suite)
	s.clientHSSecret = s.ks.ClientHandshakeTrafficSecret(s.handshakeSecret, transcriptHash)
	s.serverHSSecret = s.ks.ServerHandshakeTrafficSecret(s.handshakeSecret, transcriptHash)

	keyLen, ivLen := AEADParams(s.suite)
	writeKey, writeIV := s.ks.TrafficKeyIV(s.serverHSSecret, keyLen, ivLen)
	writeCipher, err := cipherForSuite(s.version, s.suite, writeKey, writeIV)
	if err != nil {
		return err
	}
	s.t.rl.SetWriteCipher(writeCipher)

	readKey, readIV := s.ks.TrafficKeyIV(s.clientHSSecret, keyLen, ivLen)
	readCipher, err := cipherForSuite(s.version, s.suite, readKey, readIV)
	if err != nil {
		return err
	}
	s.t.rl.SetReadCipher(readCipher)
	return nil
}

func mustGet(list protocol.ExtensionList, t constants.ExtensionType) []byte {
	if e, ok := list.Get(t); ok {
		return e.Data
	}
	return nil
}

// CreateServerFlight sends EncryptedExtensions, Certificate, CertificateVerify,
// and Finished — the server's entire TLS 1.3 authentication flight.
func (s *ServerHandshake) CreateServerFlight() error {
	var eeExts protocol.ExtensionList
	if s.negotiatedALPN != "" {
		eeExts = append(eeExts, buildALPNSelected(s.negotiatedALPN))
	}
	ee := protocol.EncryptedExtensionsBody{Extensions: eeExts}
	if err := s.t.send(ee); err != nil {
		return err
	}

	if s.cfg.Signer == nil || s.cfg.CertData == nil {
		return qerrors.NewProtocolError("handshake.server", qerrors.ErrInternalError)
	}
	cert := protocol.CertificateBody{CertList: []protocol.CertificateEntry{{CertData: s.cfg.CertData}}}
	if err := s.t.send(cert); err != nil {
		return err
	}

	transcriptHash := s.t.hashes.Intrinsic(s.version, s.suite)
	sig, err := SignCertificateVerify(s.cfg.Signer, true, transcriptHash)
	if err != nil {
		return err
	}
	cv := protocol.CertificateVerifyBody{Algorithm: uint16(s.cfg.Signer.Scheme()), Signature: sig}
	if err := s.t.send(cv); err != nil {
		return err
	}

	finishedKey := s.ks.FinishedKey(s.serverHSSecret)
	transcriptHash = s.t.hashes.Intrinsic(s.version, s.suite)
	verifyData := s.ks.VerifyData(finishedKey, transcriptHash)
	fin := protocol.FinishedBody{VerifyDataLen: len(verifyData), VerifyData: verifyData}
	return s.t.send(fin)
}

// ProcessClientFinished reads (and, if a CertificateRequest was never sent,
// simply expects) the client's Finished, completing the TLS 1.3 key
// schedule and installing application traffic keys.
func (s *ServerHandshake) ProcessClientFinished() error {
	typ, body, err := s.t.recvAny()
	if err != nil {
		return err
	}
	if typ == constants.HandshakeTypeCertificate {
		var cert protocol.CertificateBody
		if _, err := cert.Unmarshal(body); err != nil {
			return err
		}
		if len(cert.CertList) > 0 {
			s.peerCertData = cert.CertList[0].CertData
			if s.cfg.PeerCertData != nil && !bytesEqual(s.cfg.PeerCertData, s.peerCertData) {
				return qerrors.NewProtocolError("handshake.server", qerrors.ErrIllegalParameter)
			}
			cvBody, err := s.t.recv(constants.HandshakeTypeCertificateVerify)
			if err != nil {
				return err
			}
			var cv protocol.CertificateVerifyBody
			if _, err := cv.Unmarshal(cvBody); err != nil {
				return err
			}
			pub, err := parseRawPublicKey(s.peerCertData, SignatureScheme(cv.Algorithm))
			if err != nil {
				return err
			}
			th := s.t.hashes.Intrinsic(s.version, s.suite)
			if err := VerifyCertificateVerify(pub, SignatureScheme(cv.Algorithm), false, th, cv.Signature); err != nil {
				return err
			}
		}
		typ, body, err = s.t.recvAny()
		if err != nil {
			return err
		}
	}
	if typ != constants.HandshakeTypeFinished {
		return qerrors.NewProtocolError("handshake.server", qerrors.ErrUnexpectedMessage)
	}
	clientFinishedKey := s.ks.FinishedKey(s.clientHSSecret)
	transcriptHash := s.t.hashes.Intrinsic(s.version, s.suite)
	expected := s.ks.VerifyData(clientFinishedKey, transcriptHash)
	if !kex.ConstantTimeEqual(expected, body) {
		return qerrors.NewProtocolError("handshake.server", qerrors.ErrBadRecordMac)
	}

	s.masterSecret = s.ks.MasterSecretTLS13(s.handshakeSecret)
	finalTranscript := s.t.hashes.Intrinsic(s.version, s.suite)
	clientAppSecret := s.ks.ClientApplicationTrafficSecret(s.masterSecret, finalTranscript)
	serverAppSecret := s.ks.ServerApplicationTrafficSecret(s.masterSecret, finalTranscript)

	keyLen, ivLen := AEADParams(s.suite)
	readKey, readIV := s.ks.TrafficKeyIV(clientAppSecret, keyLen, ivLen)
	readCipher, err := cipherForSuite(s.version, s.suite, readKey, readIV)
	if err != nil {
		return err
	}
	s.t.rl.SetReadCipher(readCipher)

	writeKey, writeIV := s.ks.TrafficKeyIV(serverAppSecret, keyLen, ivLen)
	writeCipher, err := cipherForSuite(s.version, s.suite, writeKey, writeIV)
	if err != nil {
		return err
	}
	s.t.rl.SetWriteCipher(writeCipher)
	return nil
}

// Result packages the negotiated parameters once the handshake completes.
func (s *ServerHandshake) Result() *Result {
	return &Result{
		Version:        s.version,
		CipherSuite:    s.suite,
		NegotiatedALPN: s.negotiatedALPN,
		PeerCertData:   s.peerCertData,
		ClientRandom:   s.clientRandom[:],
		ServerRandom:   s.serverRandom[:],
		SessionID:      s.sessionID,
		Hashes:         s.t.hashes,
		KeySchedule:    s.ks,
		MasterSecret:   s.masterSecret,
		IsClient:       false,
	}
}

// RunServer drives a full TLS 1.3 server handshake over rl under cfg.
func RunServer(rl *record.RecordLayer, cfg *Config) (*Result, error) {
	s := NewServerHandshake(rl, cfg)
	if err := s.ProcessClientHello(); err != nil {
		return nil, err
	}
	if err := s.CreateServerHello(); err != nil {
		return nil, err
	}
	if err := s.CreateServerFlight(); err != nil {
		return nil, err
	}
	if err := s.ProcessClientFinished(); err != nil {
		return nil, err
	}
	return s.Result(), nil
}
