package crypto

import (
	"errors"
	"testing"

	qerrors "github.com/pzverkov/gotls/internal/errors"
)

func TestNewAEADInvalidSuite(t *testing.T) {
	key := make([]byte, 32)
	_, err := NewAEAD(BulkCipher(0xFF), key)
	// In FIPS mode, an invalid suite returns ErrCipherSuiteNotFIPSApproved (checked first)
	// In standard mode, it returns ErrUnsupportedCipherSuite
	if FIPSMode() {
		if !errors.Is(err, qerrors.ErrCipherSuiteNotFIPSApproved) {
			t.Errorf("FIPS mode: expected ErrCipherSuiteNotFIPSApproved, got %v", err)
		}
	} else {
		if !errors.Is(err, qerrors.ErrUnsupportedCipherSuite) {
			t.Errorf("Standard mode: expected ErrUnsupportedCipherSuite, got %v", err)
		}
	}
}

func TestAEADSealOpenErrors(t *testing.T) {
	key := make([]byte, 32)
	aead, _ := NewAEAD(BulkCipherAES256GCM, key)

	// Short ciphertext for Open
	_, err := aead.Open(make([]byte, 5), nil)
	if err == nil {
		t.Error("expected error for short ciphertext in Open")
	}

	// Invalid nonce size for SealWithNonce
	_, err = aead.SealWithNonce(make([]byte, 5), nil, nil)
	if err == nil {
		t.Error("expected error for invalid nonce size in SealWithNonce")
	}
}

