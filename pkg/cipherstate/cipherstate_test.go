package cipherstate

import (
	"bytes"
	"testing"

	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
)

func TestAEADSealOpenRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x01}, 32)
	iv := bytes.Repeat([]byte{0x02}, 12)
	cs, err := NewAEADCipherState(constants.CipherSuiteTLS13AES256GCMSHA384, key, iv)
	if err != nil {
		t.Fatalf("NewAEADCipherState error: %v", err)
	}

	aad := []byte{0x17, 0x03, 0x03, 0x00, 0x10}
	plaintext := []byte("application data payload")

	ct, err := cs.Seal(0, aad, plaintext)
	if err != nil {
		t.Fatalf("Seal error: %v", err)
	}
	pt, err := cs.Open(0, aad, ct)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Errorf("Open = %q, want %q", pt, plaintext)
	}
}

func TestAEADDifferentSequenceNumbersProduceDifferentCiphertext(t *testing.T) {
	key := bytes.Repeat([]byte{0x03}, 32)
	iv := bytes.Repeat([]byte{0x04}, 12)
	cs, _ := NewAEADCipherState(constants.CipherSuiteTLS13AES128GCMSHA256, key, iv)

	plaintext := []byte("same plaintext each time")
	ct0, _ := cs.Seal(0, nil, plaintext)
	ct1, _ := cs.Seal(1, nil, plaintext)
	if bytes.Equal(ct0, ct1) {
		t.Error("different sequence numbers must not produce identical ciphertext")
	}
}

func TestAEADOpenRejectsTamperedCiphertext(t *testing.T) {
	key := bytes.Repeat([]byte{0x05}, 32)
	iv := bytes.Repeat([]byte{0x06}, 12)
	cs, _ := NewAEADCipherState(constants.CipherSuiteTLS13ChaCha20Poly1305SHA256, key, iv)

	ct, _ := cs.Seal(0, nil, []byte("secret"))
	ct[len(ct)-1] ^= 0xFF

	if _, err := cs.Open(0, nil, ct); err != qerrors.ErrBadRecordMac {
		t.Errorf("Open on tampered ciphertext error = %v, want ErrBadRecordMac", err)
	}
}

func TestAEADOpenRejectsWrongSequenceNumber(t *testing.T) {
	key := bytes.Repeat([]byte{0x07}, 32)
	iv := bytes.Repeat([]byte{0x08}, 12)
	cs, _ := NewAEADCipherState(constants.CipherSuiteTLS13AES256GCMSHA384, key, iv)

	ct, _ := cs.Seal(5, nil, []byte("secret"))
	if _, err := cs.Open(6, nil, ct); err != qerrors.ErrBadRecordMac {
		t.Errorf("Open with mismatched seq error = %v, want ErrBadRecordMac", err)
	}
}

func TestNewAEADCipherStateRejectsUnknownSuite(t *testing.T) {
	key := bytes.Repeat([]byte{0x09}, 32)
	iv := bytes.Repeat([]byte{0x0A}, 12)
	if _, err := NewAEADCipherState(constants.CipherSuiteRSAAES128CBCSHA, key, iv); err == nil {
		t.Error("expected error for a non-AEAD suite")
	}
}

func TestCBCCipherStateRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x0B}, 16)
	macKey := bytes.Repeat([]byte{0x0C}, 20)
	cs, err := NewCBCCipherState(constants.TLS12, constants.HashSHA256, key, macKey)
	if err != nil {
		t.Fatalf("NewCBCCipherState error: %v", err)
	}

	aad := []byte{0x16, 0x03, 0x03, 0x00, 0x00}
	plaintext := []byte("legacy CBC record content")

	ct, err := cs.Seal(3, aad, plaintext)
	if err != nil {
		t.Fatalf("Seal error: %v", err)
	}
	pt, err := cs.Open(3, aad, ct)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Errorf("Open = %q, want %q", pt, plaintext)
	}
}

func TestCBCCipherStateRejectsCorruptedMAC(t *testing.T) {
	key := bytes.Repeat([]byte{0x0D}, 16)
	macKey := bytes.Repeat([]byte{0x0E}, 20)
	cs, _ := NewCBCCipherState(constants.TLS12, constants.HashSHA256, key, macKey)

	ct, _ := cs.Seal(0, nil, []byte("message"))
	ct[len(ct)-1] ^= 0x01

	if _, err := cs.Open(0, nil, ct); err != qerrors.ErrBadRecordMac {
		t.Errorf("Open on corrupted record error = %v, want ErrBadRecordMac", err)
	}
}

func TestCBCCipherStateEmptyCiphertextRejected(t *testing.T) {
	key := bytes.Repeat([]byte{0x0F}, 16)
	macKey := bytes.Repeat([]byte{0x10}, 20)
	cs, _ := NewCBCCipherState(constants.TLS12, constants.HashSHA256, key, macKey)

	if _, err := cs.Open(0, nil, []byte{}); err != qerrors.ErrBadRecordMac {
		t.Errorf("Open on empty ciphertext error = %v, want ErrBadRecordMac", err)
	}
}

func TestNullCipherStatePassesThrough(t *testing.T) {
	n := Null()
	plaintext := []byte("unencrypted handshake bytes")
	ct, err := n.Seal(0, nil, plaintext)
	if err != nil {
		t.Fatalf("Seal error: %v", err)
	}
	if !bytes.Equal(ct, plaintext) {
		t.Error("null cipher state Seal should be identity")
	}
	pt, err := n.Open(0, nil, ct)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Error("null cipher state Open should be identity")
	}
	if n.Overhead() != 0 {
		t.Errorf("null cipher state Overhead() = %d, want 0", n.Overhead())
	}
}

func TestExtractCBCPaddingRejectsOversizedPadding(t *testing.T) {
	buf := bytes.Repeat([]byte{0x00}, 8)
	buf[len(buf)-1] = 200 // padding length far exceeds buffer size
	if _, ok := extractCBCPadding(buf, 16); ok {
		t.Error("expected oversized padding to be rejected")
	}
}

func TestConstantTimeEqual(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{1, 2, 3}
	c := []byte{1, 2, 4}
	if !constantTimeEqual(a, b) {
		t.Error("equal slices should compare equal")
	}
	if constantTimeEqual(a, c) {
		t.Error("differing slices should not compare equal")
	}
	if constantTimeEqual(a, []byte{1, 2}) {
		t.Error("differing lengths should not compare equal")
	}
}
