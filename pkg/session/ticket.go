package session

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
	"github.com/pzverkov/gotls/pkg/cipherstate"
	"github.com/pzverkov/gotls/pkg/crypto"
)

// TicketEncrypter seals a Session into the opaque NewSessionTicketBody.Ticket
// blob a server hands a client, and opens one back into the session state it
// came from (RFC 8446 §4.6.1's "self-encrypted" ticket option). Current/
// previous key rotation means tickets issued just before a RotateKey call
// still decrypt.
type TicketEncrypter struct {
	mu          sync.RWMutex
	currentKey  []byte
	previousKey []byte
}

// NewTicketEncrypter builds an encrypter from a 32-byte key. Seal and Open
// use AES-128-GCM keyed with the key's first 16 bytes; the remaining 16
// bytes are not used.
func NewTicketEncrypter(key []byte) (*TicketEncrypter, error) {
	if len(key) != constants.AESKeySize256 {
		return nil, qerrors.ErrInvalidKeySize
	}
	return &TicketEncrypter{currentKey: append([]byte(nil), key...)}, nil
}

// RotateKey demotes the current key to previous and installs newKey as
// current; tickets sealed under the previous key remain openable until the
// next rotation.
func (te *TicketEncrypter) RotateKey(newKey []byte) error {
	if len(newKey) != constants.AESKeySize256 {
		return qerrors.ErrInvalidKeySize
	}
	te.mu.Lock()
	defer te.mu.Unlock()
	te.previousKey = te.currentKey
	te.currentKey = append([]byte(nil), newKey...)
	return nil
}

// Seal serializes sess and issuedAt into an encrypted blob:
// iv(12) || AEAD(version(2) || suite(2) || masterSecretLen(1) || masterSecret || issuedAt(8)).
func (te *TicketEncrypter) Seal(sess *Session, issuedAt time.Time) ([]byte, error) {
	te.mu.RLock()
	key := te.currentKey
	te.mu.RUnlock()

	plaintext := make([]byte, 0, 4+1+len(sess.MasterSecret)+8)
	plaintext = append(plaintext, sess.Version.Major, sess.Version.Minor)
	suiteBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(suiteBytes, uint16(sess.CipherSuite))
	plaintext = append(plaintext, suiteBytes...)
	plaintext = append(plaintext, byte(len(sess.MasterSecret)))
	plaintext = append(plaintext, sess.MasterSecret...)

	unixTime := issuedAt.Unix()
	if unixTime < 0 {
		return nil, qerrors.ErrInvalidTicket
	}
	tsBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(tsBytes, uint64(unixTime))
	plaintext = append(plaintext, tsBytes...)

	iv, err := crypto.SecureRandomBytes(constants.AESNonceSize)
	if err != nil {
		return nil, err
	}
	aead, err := cipherstate.NewAEADCipherState(constants.CipherSuiteTLS13AES128GCMSHA256, key[:constants.AESKeySize128], iv)
	if err != nil {
		return nil, err
	}
	ciphertext, err := aead.Seal(0, nil, plaintext)
	if err != nil {
		return nil, err
	}
	// The per-seal IV is random (not sequence-derived, since tickets aren't
	// part of a record stream), so it travels with the blob for Open to reuse.
	return append(append([]byte(nil), iv...), ciphertext...), nil
}

// TicketClaims is the state recovered from an opened ticket.
type TicketClaims struct {
	Version      constants.ProtocolVersion
	CipherSuite  constants.CipherSuite
	MasterSecret []byte
	IssuedAt     time.Time
}

// Open reverses Seal, trying the current key and falling back to the
// previous key (teacher's same two-key rotation tolerance), then rejects
// the ticket if issuedAt is older than maxAge.
func (te *TicketEncrypter) Open(blob []byte, maxAge time.Duration) (*TicketClaims, error) {
	te.mu.RLock()
	current, previous := te.currentKey, te.previousKey
	te.mu.RUnlock()

	plaintext, err := te.openWithKey(blob, current)
	if err != nil && previous != nil {
		plaintext, err = te.openWithKey(blob, previous)
	}
	if err != nil {
		return nil, qerrors.ErrInvalidTicket
	}
	if len(plaintext) < 4+1+8 {
		return nil, qerrors.ErrInvalidTicket
	}

	version := constants.ParseVersion(plaintext[0], plaintext[1])
	suite := constants.CipherSuite(binary.BigEndian.Uint16(plaintext[2:4]))
	secretLen := int(plaintext[4])
	if len(plaintext) != 4+1+secretLen+8 {
		return nil, qerrors.ErrInvalidTicket
	}
	secret := append([]byte(nil), plaintext[5:5+secretLen]...)
	unixTime := binary.BigEndian.Uint64(plaintext[5+secretLen:])
	if unixTime > 1<<63-1 {
		return nil, qerrors.ErrInvalidTicket
	}
	issuedAt := time.Unix(int64(unixTime), 0)

	if maxAge > 0 && time.Since(issuedAt) > maxAge {
		return nil, qerrors.ErrSessionExpired
	}

	return &TicketClaims{
		Version:      version,
		CipherSuite:  suite,
		MasterSecret: secret,
		IssuedAt:     issuedAt,
	}, nil
}

func (te *TicketEncrypter) openWithKey(blob, key []byte) ([]byte, error) {
	if key == nil || len(blob) < constants.AESNonceSize {
		return nil, qerrors.ErrInvalidTicket
	}
	iv := blob[:constants.AESNonceSize]
	ciphertext := blob[constants.AESNonceSize:]
	aead, err := cipherstate.NewAEADCipherState(constants.CipherSuiteTLS13AES128GCMSHA256, key[:constants.AESKeySize128], iv)
	if err != nil {
		return nil, err
	}
	return aead.Open(0, nil, ciphertext)
}
