// messages.go implements the §3 HandshakeMessage tagged union: the wire
// body of every handshake message type, each with a 4-byte header (1-byte
// type, 3-byte big-endian length) per the TLS handshake record layer.
//
// Extension parsing is context-sensitive (§4.9): the same ExtensionType can
// carry a different body shape in a ClientHello than in a ServerHello or
// EncryptedExtensions. Unknown extension types are preserved as opaque
// Extension{Type, Data} so callers can echo or forward them (§3).
package protocol

import (
	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
)

// HandshakeMessageBody is the capability interface every handshake message
// type implements: its wire tag, and symmetric marshal/unmarshal.
type HandshakeMessageBody interface {
	Type() constants.HandshakeType
	Marshal() ([]byte, error)
	Unmarshal(data []byte) (int, error)
}

// Extension is one (type, opaque body) pair of an ExtensionBlock.
type Extension struct {
	Type constants.ExtensionType
	Data []byte
}

// ExtensionList is an ordered ExtensionBlock (§3), encoded as a 2-byte
// length-prefixed vector of (2-byte type, 2-byte length, body) triples.
type ExtensionList []Extension

// Marshal serializes the extension list with its own 2-byte length prefix.
func (el ExtensionList) Marshal() ([]byte, error) {
	w := NewWriter()
	err := w.WithLengthPrefix(2, func(body *Writer) error {
		for _, ext := range el {
			body.WriteUint16(uint16(ext.Type))
			if err := body.WriteVector(2, ext.Data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// UnmarshalExtensionList parses a 2-byte length-prefixed extension vector,
// returning the list and the number of bytes consumed.
func UnmarshalExtensionList(data []byte) (ExtensionList, int, error) {
	r := NewReader(data)
	body, err := r.ReadVector(2)
	if err != nil {
		return nil, 0, err
	}
	inner := NewReader(body)
	var list ExtensionList
	for inner.Len() > 0 {
		typ, err := inner.ReadUint16()
		if err != nil {
			return nil, 0, err
		}
		extData, err := inner.ReadVector(2)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, Extension{Type: constants.ExtensionType(typ), Data: extData})
	}
	return list, r.Pos(), nil
}

// Get returns the first extension of the given type, if present.
func (el ExtensionList) Get(t constants.ExtensionType) (Extension, bool) {
	for _, e := range el {
		if e.Type == t {
			return e, true
		}
	}
	return Extension{}, false
}

// --- ClientHello ---

// ClientHelloBody is:
//
//	struct {
//	    ProtocolVersion legacy_version = 0x0303;
//	    Random random;
//	    opaque legacy_session_id<0..32>;
//	    CipherSuite cipher_suites<2..2^16-2>;
//	    opaque legacy_compression_methods<1..2^8-1>;
//	    Extension extensions<0..2^16-1>;
//	} ClientHello;
type ClientHelloBody struct {
	Random          [32]byte
	LegacySessionID []byte
	CipherSuites    []constants.CipherSuite
	Extensions      ExtensionList
}

func (ch ClientHelloBody) Type() constants.HandshakeType { return constants.HandshakeTypeClientHello }

func (ch ClientHelloBody) Marshal() ([]byte, error) {
	w := NewWriter()
	w.WriteUint16(constants.TLS12.Uint16()) // legacy_version is always (3,3)
	w.WriteFixed(ch.Random[:])
	if err := w.WriteVector(1, ch.LegacySessionID); err != nil {
		return nil, err
	}
	if err := w.WithLengthPrefix(2, func(b *Writer) error {
		for _, cs := range ch.CipherSuites {
			b.WriteUint16(uint16(cs))
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if err := w.WriteVector(1, []byte{0}); err != nil { // legacy_compression_methods = [null]
		return nil, err
	}
	extBytes, err := ch.Extensions.Marshal()
	if err != nil {
		return nil, err
	}
	w.WriteFixed(extBytes)
	return w.Bytes(), nil
}

func (ch *ClientHelloBody) Unmarshal(data []byte) (int, error) {
	r := NewReader(data)
	if _, err := r.ReadUint16(); err != nil { // legacy_version, not re-validated here
		return 0, err
	}
	random, err := r.ReadFixed(32)
	if err != nil {
		return 0, err
	}
	copy(ch.Random[:], random)

	ch.LegacySessionID, err = r.ReadVector(1)
	if err != nil {
		return 0, err
	}

	suiteBytes, err := r.ReadVector(2)
	if err != nil {
		return 0, err
	}
	if len(suiteBytes)%2 != 0 {
		return 0, qerrors.ErrDecodeError
	}
	ch.CipherSuites = make([]constants.CipherSuite, 0, len(suiteBytes)/2)
	sr := NewReader(suiteBytes)
	for sr.Len() > 0 {
		v, _ := sr.ReadUint16()
		ch.CipherSuites = append(ch.CipherSuites, constants.CipherSuite(v))
	}

	compression, err := r.ReadVector(1)
	if err != nil {
		return 0, err
	}
	if len(compression) != 1 || compression[0] != 0 {
		return 0, qerrors.ErrIllegalParameter
	}

	list, n, err := UnmarshalExtensionList(r.PeekRemaining())
	if err != nil {
		return 0, err
	}
	ch.Extensions = list
	return r.Pos() + n, nil
}

// --- ServerHello (and, overloaded per RFC 8446 §4.1.4, HelloRetryRequest) ---

// ServerHelloBody is:
//
//	struct {
//	    ProtocolVersion version;
//	    Random random;
//	    opaque legacy_session_id_echo<0..32>;
//	    CipherSuite cipher_suite;
//	    uint8 legacy_compression_method = 0;
//	    Extension extensions<0..2^16-1>;
//	} ServerHello;
type ServerHelloBody struct {
	Version             constants.ProtocolVersion
	Random              [32]byte
	LegacySessionIDEcho []byte
	CipherSuite         constants.CipherSuite
	Extensions          ExtensionList
}

func (sh ServerHelloBody) Type() constants.HandshakeType { return constants.HandshakeTypeServerHello }

func (sh ServerHelloBody) Marshal() ([]byte, error) {
	w := NewWriter()
	w.WriteUint16(constants.TLS12.Uint16()) // legacy record-layer version stays (3,3); real version is in supported_versions
	w.WriteFixed(sh.Random[:])
	if err := w.WriteVector(1, sh.LegacySessionIDEcho); err != nil {
		return nil, err
	}
	w.WriteUint16(uint16(sh.CipherSuite))
	w.WriteUint8(0)
	extBytes, err := sh.Extensions.Marshal()
	if err != nil {
		return nil, err
	}
	w.WriteFixed(extBytes)
	return w.Bytes(), nil
}

func (sh *ServerHelloBody) Unmarshal(data []byte) (int, error) {
	r := NewReader(data)
	major, err := r.ReadUint8()
	if err != nil {
		return 0, err
	}
	minor, err := r.ReadUint8()
	if err != nil {
		return 0, err
	}
	sh.Version = constants.ParseVersion(major, minor)

	random, err := r.ReadFixed(32)
	if err != nil {
		return 0, err
	}
	copy(sh.Random[:], random)

	sh.LegacySessionIDEcho, err = r.ReadVector(1)
	if err != nil {
		return 0, err
	}

	cs, err := r.ReadUint16()
	if err != nil {
		return 0, err
	}
	sh.CipherSuite = constants.CipherSuite(cs)

	if _, err := r.ReadUint8(); err != nil { // legacy_compression_method
		return 0, err
	}

	list, n, err := UnmarshalExtensionList(r.PeekRemaining())
	if err != nil {
		return 0, err
	}
	sh.Extensions = list
	return r.Pos() + n, nil
}

// HelloRetryRequestRandom is the special random value a TLS 1.3 ServerHello
// carries to signal that it is in fact a HelloRetryRequest (RFC 8446 §4.1.3).
var HelloRetryRequestRandom = [32]byte{
	0xCF, 0x21, 0xAD, 0x74, 0xE5, 0x9A, 0x61, 0x11, 0xBE, 0x1D, 0x8C, 0x02, 0x1E, 0x65, 0xB8, 0x91,
	0xC2, 0xA2, 0x11, 0x16, 0x7A, 0xBB, 0x8C, 0x5E, 0x07, 0x9E, 0x09, 0xE2, 0xC8, 0xA8, 0x33, 0x9C,
}

// IsHelloRetryRequest reports whether a ServerHelloBody's random marks it as
// a HelloRetryRequest rather than an ordinary ServerHello.
func (sh ServerHelloBody) IsHelloRetryRequest() bool {
	return sh.Random == HelloRetryRequestRandom
}

// --- EncryptedExtensions ---

type EncryptedExtensionsBody struct {
	Extensions ExtensionList
}

func (ee EncryptedExtensionsBody) Type() constants.HandshakeType {
	return constants.HandshakeTypeEncryptedExtensions
}

func (ee EncryptedExtensionsBody) Marshal() ([]byte, error) {
	return ee.Extensions.Marshal()
}

func (ee *EncryptedExtensionsBody) Unmarshal(data []byte) (int, error) {
	list, n, err := UnmarshalExtensionList(data)
	if err != nil {
		return 0, err
	}
	ee.Extensions = list
	return n, nil
}

// --- Certificate ---

// CertificateEntry is one ASN.1Cert||extensions pair of a Certificate
// message (RFC 8446 §4.4.2). X.509 parsing itself is out of scope (§1); the
// engine treats cert_data as opaque DER bytes.
type CertificateEntry struct {
	CertData   []byte
	Extensions ExtensionList
}

type CertificateBody struct {
	// CertificateRequestContext is empty for server Certificate messages and
	// echoes the CertificateRequest's context for client ones (TLS 1.3).
	CertificateRequestContext []byte
	CertList                  []CertificateEntry
}

func (c CertificateBody) Type() constants.HandshakeType { return constants.HandshakeTypeCertificate }

func (c CertificateBody) Marshal() ([]byte, error) {
	w := NewWriter()
	if err := w.WriteVector(1, c.CertificateRequestContext); err != nil {
		return nil, err
	}
	err := w.WithLengthPrefix(3, func(body *Writer) error {
		for _, entry := range c.CertList {
			if err := body.WriteVector(3, entry.CertData); err != nil {
				return err
			}
			extBytes, err := entry.Extensions.Marshal()
			if err != nil {
				return err
			}
			body.WriteFixed(extBytes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (c *CertificateBody) Unmarshal(data []byte) (int, error) {
	r := NewReader(data)
	var err error
	c.CertificateRequestContext, err = r.ReadVector(1)
	if err != nil {
		return 0, err
	}
	listBytes, err := r.ReadVector(3)
	if err != nil {
		return 0, err
	}
	lr := NewReader(listBytes)
	c.CertList = nil
	for lr.Len() > 0 {
		certData, err := lr.ReadVector(3)
		if err != nil {
			return 0, err
		}
		list, n, err := UnmarshalExtensionList(lr.PeekRemaining())
		if err != nil {
			return 0, err
		}
		if _, err := lr.ReadFixed(n); err != nil {
			return 0, err
		}
		c.CertList = append(c.CertList, CertificateEntry{CertData: certData, Extensions: list})
	}
	return r.Pos(), nil
}

// --- CertificateRequest ---

type CertificateRequestBody struct {
	CertificateRequestContext []byte
	Extensions                ExtensionList
}

func (cr CertificateRequestBody) Type() constants.HandshakeType {
	return constants.HandshakeTypeCertificateRequest
}

func (cr CertificateRequestBody) Marshal() ([]byte, error) {
	w := NewWriter()
	if err := w.WriteVector(1, cr.CertificateRequestContext); err != nil {
		return nil, err
	}
	extBytes, err := cr.Extensions.Marshal()
	if err != nil {
		return nil, err
	}
	w.WriteFixed(extBytes)
	return w.Bytes(), nil
}

func (cr *CertificateRequestBody) Unmarshal(data []byte) (int, error) {
	r := NewReader(data)
	var err error
	cr.CertificateRequestContext, err = r.ReadVector(1)
	if err != nil {
		return 0, err
	}
	list, n, err := UnmarshalExtensionList(r.PeekRemaining())
	if err != nil {
		return 0, err
	}
	cr.Extensions = list
	return r.Pos() + n, nil
}

// --- CertificateVerify ---

type CertificateVerifyBody struct {
	Algorithm uint16 // SignatureScheme
	Signature []byte
}

func (cv CertificateVerifyBody) Type() constants.HandshakeType {
	return constants.HandshakeTypeCertificateVerify
}

func (cv CertificateVerifyBody) Marshal() ([]byte, error) {
	w := NewWriter()
	w.WriteUint16(cv.Algorithm)
	if err := w.WriteVector(2, cv.Signature); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (cv *CertificateVerifyBody) Unmarshal(data []byte) (int, error) {
	r := NewReader(data)
	alg, err := r.ReadUint16()
	if err != nil {
		return 0, err
	}
	cv.Algorithm = alg
	cv.Signature, err = r.ReadVector(2)
	if err != nil {
		return 0, err
	}
	return r.Pos(), nil
}

// --- ServerKeyExchange / ClientKeyExchange ---
//
// These carry key-exchange-method-specific params (§4.8); the engine treats
// the body as opaque bytes produced/consumed by pkg/kex, which knows how to
// parse the DHE/ECDHE/hybrid variant currently negotiated.

type ServerKeyExchangeBody struct {
	Params []byte
}

func (m ServerKeyExchangeBody) Type() constants.HandshakeType {
	return constants.HandshakeTypeServerKeyExchange
}
func (m ServerKeyExchangeBody) Marshal() ([]byte, error) { return m.Params, nil }
func (m *ServerKeyExchangeBody) Unmarshal(data []byte) (int, error) {
	m.Params = append([]byte(nil), data...)
	return len(data), nil
}

type ClientKeyExchangeBody struct {
	Params []byte
}

func (m ClientKeyExchangeBody) Type() constants.HandshakeType {
	return constants.HandshakeTypeClientKeyExchange
}
func (m ClientKeyExchangeBody) Marshal() ([]byte, error) { return m.Params, nil }
func (m *ClientKeyExchangeBody) Unmarshal(data []byte) (int, error) {
	m.Params = append([]byte(nil), data...)
	return len(data), nil
}

// --- ServerHelloDone / HelloRequest / EndOfEarlyData (empty bodies) ---

type ServerHelloDoneBody struct{}

func (ServerHelloDoneBody) Type() constants.HandshakeType { return constants.HandshakeTypeServerHelloDone }
func (ServerHelloDoneBody) Marshal() ([]byte, error)      { return nil, nil }
func (*ServerHelloDoneBody) Unmarshal(data []byte) (int, error) {
	if len(data) != 0 {
		return 0, qerrors.ErrDecodeError
	}
	return 0, nil
}

type HelloRequestBody struct{}

func (HelloRequestBody) Type() constants.HandshakeType { return constants.HandshakeTypeHelloRequest }
func (HelloRequestBody) Marshal() ([]byte, error)      { return nil, nil }
func (*HelloRequestBody) Unmarshal(data []byte) (int, error) {
	if len(data) != 0 {
		return 0, qerrors.ErrDecodeError
	}
	return 0, nil
}

type EndOfEarlyDataBody struct{}

func (EndOfEarlyDataBody) Type() constants.HandshakeType { return constants.HandshakeTypeEndOfEarlyData }
func (EndOfEarlyDataBody) Marshal() ([]byte, error)      { return nil, nil }
func (*EndOfEarlyDataBody) Unmarshal(data []byte) (int, error) {
	if len(data) != 0 {
		return 0, qerrors.ErrDecodeError
	}
	return 0, nil
}

// --- Finished ---

// FinishedBody carries verify_data whose length is determined externally
// (12 bytes for TLS <=1.2; the suite's hash length for TLS 1.3) since the
// wire encoding has no explicit length field of its own.
type FinishedBody struct {
	VerifyDataLen int
	VerifyData    []byte
}

func (f FinishedBody) Type() constants.HandshakeType { return constants.HandshakeTypeFinished }

func (f FinishedBody) Marshal() ([]byte, error) {
	if len(f.VerifyData) != f.VerifyDataLen {
		return nil, qerrors.ErrInternalError
	}
	out := make([]byte, len(f.VerifyData))
	copy(out, f.VerifyData)
	return out, nil
}

func (f *FinishedBody) Unmarshal(data []byte) (int, error) {
	if len(data) < f.VerifyDataLen {
		return 0, qerrors.ErrDecodeError
	}
	f.VerifyData = make([]byte, f.VerifyDataLen)
	copy(f.VerifyData, data[:f.VerifyDataLen])
	return f.VerifyDataLen, nil
}

// --- NewSessionTicket ---

type NewSessionTicketBody struct {
	LifetimeSeconds uint32
	AgeAdd          uint32
	Nonce           []byte
	Ticket          []byte
	Extensions      ExtensionList
}

func (t NewSessionTicketBody) Type() constants.HandshakeType {
	return constants.HandshakeTypeNewSessionTicket
}

func (t NewSessionTicketBody) Marshal() ([]byte, error) {
	w := NewWriter()
	w.WriteUint32(t.LifetimeSeconds)
	w.WriteUint32(t.AgeAdd)
	if err := w.WriteVector(1, t.Nonce); err != nil {
		return nil, err
	}
	if err := w.WriteVector(2, t.Ticket); err != nil {
		return nil, err
	}
	extBytes, err := t.Extensions.Marshal()
	if err != nil {
		return nil, err
	}
	w.WriteFixed(extBytes)
	return w.Bytes(), nil
}

func (t *NewSessionTicketBody) Unmarshal(data []byte) (int, error) {
	r := NewReader(data)
	var err error
	t.LifetimeSeconds, err = r.ReadUint32()
	if err != nil {
		return 0, err
	}
	t.AgeAdd, err = r.ReadUint32()
	if err != nil {
		return 0, err
	}
	t.Nonce, err = r.ReadVector(1)
	if err != nil {
		return 0, err
	}
	t.Ticket, err = r.ReadVector(2)
	if err != nil {
		return 0, err
	}
	list, n, err := UnmarshalExtensionList(r.PeekRemaining())
	if err != nil {
		return 0, err
	}
	t.Extensions = list
	return r.Pos() + n, nil
}

// --- KeyUpdate ---

type KeyUpdateBody struct {
	RequestUpdate bool
}

func (k KeyUpdateBody) Type() constants.HandshakeType { return constants.HandshakeTypeKeyUpdate }

func (k KeyUpdateBody) Marshal() ([]byte, error) {
	v := byte(0)
	if k.RequestUpdate {
		v = 1
	}
	return []byte{v}, nil
}

func (k *KeyUpdateBody) Unmarshal(data []byte) (int, error) {
	if len(data) != 1 {
		return 0, qerrors.ErrDecodeError
	}
	if data[0] != 0 && data[0] != 1 {
		return 0, qerrors.ErrIllegalParameter
	}
	k.RequestUpdate = data[0] == 1
	return 1, nil
}

// HandshakeMessageFromBody wraps a body with its 4-byte wire header.
func HandshakeMessageFromBody(body HandshakeMessageBody) ([]byte, error) {
	payload, err := body.Marshal()
	if err != nil {
		return nil, err
	}
	w := NewWriter()
	w.WriteUint8(uint8(body.Type()))
	w.WriteUint24(uint32(len(payload)))
	w.WriteFixed(payload)
	return w.Bytes(), nil
}
