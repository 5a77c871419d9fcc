package constants

import "testing"

func TestProtocolVersionOrdering(t *testing.T) {
	tests := []struct {
		a, b ProtocolVersion
		want bool
	}{
		{SSL30, TLS10, true},
		{TLS10, TLS11, true},
		{TLS11, TLS12, true},
		{TLS12, TLS13, true},
		{TLS13, TLS12, false},
		{TLS12, TLS12, false},
	}
	for _, tt := range tests {
		if got := tt.a.Less(tt.b); got != tt.want {
			t.Errorf("%v.Less(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestProtocolVersionAtLeast(t *testing.T) {
	if !TLS13.AtLeast(TLS12) {
		t.Error("TLS1.3 should be at least TLS1.2")
	}
	if TLS10.AtLeast(TLS12) {
		t.Error("TLS1.0 should not be at least TLS1.2")
	}
	if !TLS12.AtLeast(TLS12) {
		t.Error("a version should be at least itself")
	}
}

func TestProtocolVersionUint16(t *testing.T) {
	if TLS12.Uint16() != 0x0303 {
		t.Errorf("TLS12.Uint16() = %#04x, want 0x0303", TLS12.Uint16())
	}
	if TLS13.Uint16() != 0x0304 {
		t.Errorf("TLS13.Uint16() = %#04x, want 0x0304", TLS13.Uint16())
	}
}

func TestParseVersion(t *testing.T) {
	if v := ParseVersion(3, 3); v != TLS12 {
		t.Errorf("ParseVersion(3,3) = %v, want TLS12", v)
	}
}

func TestContentTypeString(t *testing.T) {
	tests := []struct {
		ct   ContentType
		want string
	}{
		{ContentTypeHandshake, "handshake"},
		{ContentTypeAlert, "alert"},
		{ContentTypeApplicationData, "application_data"},
		{ContentType(0x99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.ct.String(); got != tt.want {
			t.Errorf("ContentType(%d).String() = %q, want %q", tt.ct, got, tt.want)
		}
	}
}

func TestCipherSuiteString(t *testing.T) {
	tests := []struct {
		suite CipherSuite
		want  string
	}{
		{CipherSuiteTLS13AES256GCMSHA384, "TLS_AES_256_GCM_SHA384"},
		{CipherSuiteTLS13ChaCha20Poly1305SHA256, "TLS_CHACHA20_POLY1305_SHA256"},
		{CipherSuite(0x9999), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.suite.String(); got != tt.want {
			t.Errorf("CipherSuite(%d).String() = %q, want %q", tt.suite, got, tt.want)
		}
	}
}

func TestCipherSuiteIsTLS13(t *testing.T) {
	if !CipherSuiteTLS13AES128GCMSHA256.IsTLS13() {
		t.Error("expected TLS13 suite to report IsTLS13")
	}
	if CipherSuiteECDHERSAAES128GCMSHA256.IsTLS13() {
		t.Error("TLS 1.2 suite should not report IsTLS13")
	}
}

func TestCipherSuiteIsCBC(t *testing.T) {
	if !CipherSuiteRSAAES128CBCSHA.IsCBC() {
		t.Error("expected CBC suite to report IsCBC")
	}
	if CipherSuiteECDHERSAAES128GCMSHA256.IsCBC() {
		t.Error("AEAD suite should not report IsCBC")
	}
}

func TestCipherSuiteIsFIPSApproved(t *testing.T) {
	tests := []struct {
		suite CipherSuite
		want  bool
	}{
		{CipherSuiteTLS13AES256GCMSHA384, true},
		{CipherSuiteTLS13ChaCha20Poly1305SHA256, false},
		{CipherSuite(0x0000), false},
	}
	for _, tt := range tests {
		if got := tt.suite.IsFIPSApproved(); got != tt.want {
			t.Errorf("CipherSuite(%d).IsFIPSApproved() = %v, want %v", tt.suite, got, tt.want)
		}
	}
}

func TestCipherSuitePRFHashFor(t *testing.T) {
	if got := CipherSuiteTLS13AES256GCMSHA384.PRFHashFor(TLS13); got != HashSHA384 {
		t.Errorf("PRFHashFor = %v, want HashSHA384", got)
	}
	if got := CipherSuiteRSAAES128CBCSHA.PRFHashFor(TLS10); got != HashMD5SHA1 {
		t.Errorf("PRFHashFor = %v, want HashMD5SHA1", got)
	}
}

func TestAlertDescriptionString(t *testing.T) {
	tests := []struct {
		d    AlertDescription
		want string
	}{
		{AlertBadRecordMac, "bad_record_mac"},
		{AlertIllegalParameter, "illegal_parameter"},
		{AlertProtocolVersion, "protocol_version"},
		{AlertDescription(0xAB), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.d.String(); got != tt.want {
			t.Errorf("AlertDescription(%d).String() = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestRecordSizeLimits(t *testing.T) {
	if MaxPlaintextLen != 1<<14 {
		t.Errorf("MaxPlaintextLen = %d, want %d", MaxPlaintextLen, 1<<14)
	}
	if MaxCiphertextLen != MaxPlaintextLen+256 {
		t.Errorf("MaxCiphertextLen = %d, want %d", MaxCiphertextLen, MaxPlaintextLen+256)
	}
}

func TestClientHelloPaddingBoundary(t *testing.T) {
	if ClientHelloPaddingBoundary%64 != 0 {
		t.Errorf("ClientHelloPaddingBoundary = %d, want a multiple of 64", ClientHelloPaddingBoundary)
	}
	if ClientHelloPaddingThreshold >= ClientHelloPaddingBoundary {
		t.Error("padding threshold must be below the padding boundary")
	}
}
