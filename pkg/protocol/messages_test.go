package protocol

import (
	"bytes"
	"testing"

	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
)

func sampleExtensions() ExtensionList {
	return ExtensionList{
		{Type: constants.ExtensionSupportedVersions, Data: []byte{0x02, 0x03, 0x04}},
		{Type: constants.ExtensionServerName, Data: []byte{}},
	}
}

func TestExtensionListRoundTrip(t *testing.T) {
	el := sampleExtensions()
	encoded, err := el.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	got, n, err := UnmarshalExtensionList(encoded)
	if err != nil {
		t.Fatalf("UnmarshalExtensionList error: %v", err)
	}
	if n != len(encoded) {
		t.Errorf("consumed %d bytes, want %d", n, len(encoded))
	}
	if len(got) != len(el) {
		t.Fatalf("got %d extensions, want %d", len(got), len(el))
	}
	for i := range el {
		if got[i].Type != el[i].Type || !bytes.Equal(got[i].Data, el[i].Data) {
			t.Errorf("extension %d = %+v, want %+v", i, got[i], el[i])
		}
	}
}

func TestExtensionListGet(t *testing.T) {
	el := sampleExtensions()
	ext, ok := el.Get(constants.ExtensionServerName)
	if !ok {
		t.Fatal("expected ExtensionServerName to be present")
	}
	if ext.Type != constants.ExtensionServerName {
		t.Errorf("Get returned extension of type %v", ext.Type)
	}
	if _, ok := el.Get(constants.ExtensionALPN); ok {
		t.Error("Get should not find an extension that was not added")
	}
}

func TestClientHelloRoundTrip(t *testing.T) {
	ch := ClientHelloBody{
		LegacySessionID: []byte{1, 2, 3, 4},
		CipherSuites: []constants.CipherSuite{
			constants.CipherSuiteTLS13AES256GCMSHA384,
			constants.CipherSuiteTLS13X25519MLKEM1024AES256GCMSHA384,
		},
		Extensions: sampleExtensions(),
	}
	for i := range ch.Random {
		ch.Random[i] = byte(i)
	}

	encoded, err := ch.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var got ClientHelloBody
	n, err := got.Unmarshal(encoded)
	if err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if n != len(encoded) {
		t.Errorf("consumed %d bytes, want %d", n, len(encoded))
	}
	if got.Random != ch.Random {
		t.Error("Random mismatch")
	}
	if !bytes.Equal(got.LegacySessionID, ch.LegacySessionID) {
		t.Error("LegacySessionID mismatch")
	}
	if len(got.CipherSuites) != len(ch.CipherSuites) {
		t.Fatalf("got %d cipher suites, want %d", len(got.CipherSuites), len(ch.CipherSuites))
	}
	for i := range ch.CipherSuites {
		if got.CipherSuites[i] != ch.CipherSuites[i] {
			t.Errorf("cipher suite %d = %v, want %v", i, got.CipherSuites[i], ch.CipherSuites[i])
		}
	}
	if ch.Type() != constants.HandshakeTypeClientHello {
		t.Errorf("Type() = %v, want client_hello", ch.Type())
	}
}

func TestClientHelloUnmarshalRejectsNonNullCompression(t *testing.T) {
	ch := ClientHelloBody{CipherSuites: []constants.CipherSuite{constants.CipherSuiteTLS13AES128GCMSHA256}}
	encoded, err := ch.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	// Flip the compression-methods vector ([len=1][0x00]) to a non-null method.
	idx := bytes.Index(encoded, []byte{0x01, 0x00})
	if idx < 0 {
		t.Fatal("could not locate compression methods field in encoding")
	}
	corrupted := append([]byte(nil), encoded...)
	corrupted[idx+1] = 0x01

	var got ClientHelloBody
	if _, err := got.Unmarshal(corrupted); err == nil {
		t.Error("expected error for non-null legacy_compression_methods")
	}
}

func TestServerHelloRoundTrip(t *testing.T) {
	sh := ServerHelloBody{
		Version:             constants.TLS13,
		CipherSuite:         constants.CipherSuiteTLS13AES256GCMSHA384,
		LegacySessionIDEcho: []byte{9, 9},
		Extensions:          sampleExtensions(),
	}
	for i := range sh.Random {
		sh.Random[i] = byte(0xF0 + i%16)
	}

	encoded, err := sh.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var got ServerHelloBody
	n, err := got.Unmarshal(encoded)
	if err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if n != len(encoded) {
		t.Errorf("consumed %d, want %d", n, len(encoded))
	}
	if got.CipherSuite != sh.CipherSuite {
		t.Errorf("CipherSuite = %v, want %v", got.CipherSuite, sh.CipherSuite)
	}
	if got.Random != sh.Random {
		t.Error("Random mismatch")
	}
	if got.IsHelloRetryRequest() {
		t.Error("ordinary ServerHello should not report IsHelloRetryRequest")
	}
}

func TestServerHelloHelloRetryRequestMarker(t *testing.T) {
	sh := ServerHelloBody{Random: HelloRetryRequestRandom}
	if !sh.IsHelloRetryRequest() {
		t.Error("expected IsHelloRetryRequest to be true for the RFC 8446 marker random")
	}
}

func TestEncryptedExtensionsRoundTrip(t *testing.T) {
	ee := EncryptedExtensionsBody{Extensions: sampleExtensions()}
	encoded, err := ee.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var got EncryptedExtensionsBody
	if _, err := got.Unmarshal(encoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if len(got.Extensions) != len(ee.Extensions) {
		t.Errorf("got %d extensions, want %d", len(got.Extensions), len(ee.Extensions))
	}
}

func TestCertificateRoundTrip(t *testing.T) {
	cert := CertificateBody{
		CertificateRequestContext: []byte{},
		CertList: []CertificateEntry{
			{CertData: []byte("leaf-der-bytes"), Extensions: nil},
			{CertData: []byte("intermediate-der-bytes"), Extensions: sampleExtensions()},
		},
	}
	encoded, err := cert.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var got CertificateBody
	n, err := got.Unmarshal(encoded)
	if err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if n != len(encoded) {
		t.Errorf("consumed %d, want %d", n, len(encoded))
	}
	if len(got.CertList) != 2 {
		t.Fatalf("got %d cert entries, want 2", len(got.CertList))
	}
	if !bytes.Equal(got.CertList[0].CertData, cert.CertList[0].CertData) {
		t.Error("first cert data mismatch")
	}
	if !bytes.Equal(got.CertList[1].CertData, cert.CertList[1].CertData) {
		t.Error("second cert data mismatch")
	}
	if len(got.CertList[1].Extensions) != len(cert.CertList[1].Extensions) {
		t.Error("second cert extensions mismatch")
	}
}

func TestCertificateVerifyRoundTrip(t *testing.T) {
	cv := CertificateVerifyBody{Algorithm: 0x0804, Signature: []byte("sig-bytes")}
	encoded, err := cv.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var got CertificateVerifyBody
	if _, err := got.Unmarshal(encoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if got.Algorithm != cv.Algorithm || !bytes.Equal(got.Signature, cv.Signature) {
		t.Errorf("got %+v, want %+v", got, cv)
	}
}

func TestFinishedRoundTrip(t *testing.T) {
	f := FinishedBody{VerifyDataLen: 12, VerifyData: bytes.Repeat([]byte{0xAA}, 12)}
	encoded, err := f.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var got FinishedBody
	got.VerifyDataLen = 12
	if _, err := got.Unmarshal(encoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if !bytes.Equal(got.VerifyData, f.VerifyData) {
		t.Error("VerifyData mismatch")
	}
}

func TestFinishedMarshalRejectsWrongLength(t *testing.T) {
	f := FinishedBody{VerifyDataLen: 32, VerifyData: []byte{1, 2, 3}}
	if _, err := f.Marshal(); err == nil {
		t.Error("expected error when VerifyData length does not match VerifyDataLen")
	}
}

func TestNewSessionTicketRoundTrip(t *testing.T) {
	nst := NewSessionTicketBody{
		LifetimeSeconds: 7200,
		AgeAdd:          0xDEADBEEF,
		Nonce:           []byte{1},
		Ticket:          []byte("opaque-ticket-bytes"),
		Extensions:      nil,
	}
	encoded, err := nst.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var got NewSessionTicketBody
	if _, err := got.Unmarshal(encoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if got.LifetimeSeconds != nst.LifetimeSeconds || got.AgeAdd != nst.AgeAdd {
		t.Errorf("got %+v, want %+v", got, nst)
	}
	if !bytes.Equal(got.Ticket, nst.Ticket) {
		t.Error("Ticket mismatch")
	}
}

func TestKeyUpdateRoundTrip(t *testing.T) {
	for _, req := range []bool{true, false} {
		ku := KeyUpdateBody{RequestUpdate: req}
		encoded, err := ku.Marshal()
		if err != nil {
			t.Fatal(err)
		}
		var got KeyUpdateBody
		if _, err := got.Unmarshal(encoded); err != nil {
			t.Fatalf("Unmarshal error: %v", err)
		}
		if got.RequestUpdate != req {
			t.Errorf("RequestUpdate = %v, want %v", got.RequestUpdate, req)
		}
	}
}

func TestKeyUpdateRejectsInvalidValue(t *testing.T) {
	var ku KeyUpdateBody
	if _, err := ku.Unmarshal([]byte{2}); err != qerrors.ErrIllegalParameter {
		t.Errorf("error = %v, want ErrIllegalParameter", err)
	}
}

func TestEmptyBodyMessages(t *testing.T) {
	empties := []HandshakeMessageBody{
		&ServerHelloDoneBody{},
		&HelloRequestBody{},
		&EndOfEarlyDataBody{},
	}
	for _, body := range empties {
		encoded, err := body.Marshal()
		if err != nil {
			t.Fatalf("%T: Marshal error: %v", body, err)
		}
		if len(encoded) != 0 {
			t.Errorf("%T: Marshal = %v, want empty", body, encoded)
		}
	}

	var shd ServerHelloDoneBody
	if _, err := shd.Unmarshal([]byte{1}); err == nil {
		t.Error("ServerHelloDoneBody.Unmarshal should reject non-empty input")
	}
}

func TestHandshakeMessageFromBody(t *testing.T) {
	body := KeyUpdateBody{RequestUpdate: true}
	framed, err := HandshakeMessageFromBody(&body)
	if err != nil {
		t.Fatalf("HandshakeMessageFromBody error: %v", err)
	}
	if framed[0] != uint8(constants.HandshakeTypeKeyUpdate) {
		t.Errorf("frame type byte = %d, want %d", framed[0], constants.HandshakeTypeKeyUpdate)
	}
	length := int(framed[1])<<16 | int(framed[2])<<8 | int(framed[3])
	if length != 1 {
		t.Errorf("frame length = %d, want 1", length)
	}
}

func TestServerKeyExchangeAndClientKeyExchangeOpaqueRoundTrip(t *testing.T) {
	ske := ServerKeyExchangeBody{Params: []byte{1, 2, 3, 4}}
	encoded, _ := ske.Marshal()
	var gotSKE ServerKeyExchangeBody
	if _, err := gotSKE.Unmarshal(encoded); err != nil {
		t.Fatalf("ServerKeyExchange Unmarshal error: %v", err)
	}
	if !bytes.Equal(gotSKE.Params, ske.Params) {
		t.Error("ServerKeyExchange Params mismatch")
	}

	cke := ClientKeyExchangeBody{Params: []byte{5, 6, 7}}
	encoded, _ = cke.Marshal()
	var gotCKE ClientKeyExchangeBody
	if _, err := gotCKE.Unmarshal(encoded); err != nil {
		t.Fatalf("ClientKeyExchange Unmarshal error: %v", err)
	}
	if !bytes.Equal(gotCKE.Params, cke.Params) {
		t.Error("ClientKeyExchange Params mismatch")
	}
}
