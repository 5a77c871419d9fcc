// Package cipherstate implements the per-direction record protection state
// (§6's AEAD external interface) and the CBC-and-HMAC legacy composition
// TLS 1.0-1.2 use before AEAD suites were standard.
//
// A CipherState is created once per traffic key (§4.5 key schedule output)
// and reused for every record sent/received under that key, the 64-bit
// implicit sequence number supplying nonce uniqueness (RFC 8446 §5.3).
package cipherstate

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"hash"

	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
	"github.com/pzverkov/gotls/pkg/crypto"
)

// AEAD is the §6 external-interface contract a cipher suite's record
// protection must satisfy. Both modern AEAD suites and the legacy
// CBC-and-HMAC composition implement it, so pkg/record never branches on
// which one is active.
type AEAD interface {
	// Seal encrypts plaintext under seq's derived nonce, authenticating aad,
	// and returns the TLSCiphertext.fragment (record header not included).
	Seal(seq uint64, aad, plaintext []byte) ([]byte, error)

	// Open authenticates and decrypts a TLSCiphertext.fragment, returning
	// the plaintext. Returns qerrors.ErrBadRecordMac on any failure — callers
	// must not distinguish "bad MAC" from "bad padding" (Lucky13, §9).
	Open(seq uint64, aad, ciphertext []byte) ([]byte, error)

	// Overhead is the maximum number of bytes Seal adds beyond len(plaintext).
	Overhead() int
}

// aeadCipherState wraps a stdlib/x-crypto cipher.AEAD with the TLS 1.3-style
// nonce derivation: a fixed IV XORed with the big-endian sequence number in
// its low bytes (RFC 8446 §5.3), also reused for TLS 1.2 AEAD suites with an
// explicit partial nonce folded into aad by the caller where required.
type aeadCipherState struct {
	aead cipher.AEAD
	iv   []byte // len == aead.NonceSize()
}

// NewAEADCipherState builds a record-layer AEAD from an already-negotiated
// cipher suite and its derived key/iv (§4.5 traffic key output).
func NewAEADCipherState(suite constants.CipherSuite, key, iv []byte) (AEAD, error) {
	var bc crypto.BulkCipher

	switch suite {
	case constants.CipherSuiteTLS13AES128GCMSHA256, constants.CipherSuiteTLS13AES256GCMSHA384,
		constants.CipherSuiteECDHERSAAES128GCMSHA256, constants.CipherSuiteECDHERSAAES256GCMSHA384,
		constants.CipherSuiteECDHEECDSAAES128GCMSHA256, constants.CipherSuiteECDHEECDSAAES256GCMSHA384,
		constants.CipherSuiteTLS13X25519MLKEM1024AES256GCMSHA384:
		bc = crypto.BulkCipherAES256GCM

	case constants.CipherSuiteTLS13ChaCha20Poly1305SHA256, constants.CipherSuiteECDHERSAChaCha20Poly1305SHA256:
		bc = crypto.BulkCipherChaCha20Poly1305

	default:
		return nil, qerrors.NewCryptoError("cipherstate.NewAEAD",
			qerrors.NewProtocolError("cipher-negotiation", qerrors.ErrInternalError))
	}

	a, err := crypto.NewRawAEAD(bc, key)
	if err != nil {
		return nil, qerrors.NewCryptoError("cipherstate.NewAEAD", err)
	}
	if len(iv) != a.NonceSize() {
		return nil, qerrors.NewCryptoError("cipherstate.NewAEAD", qerrors.ErrInternalError)
	}

	ivCopy := make([]byte, len(iv))
	copy(ivCopy, iv)
	return &aeadCipherState{aead: a, iv: ivCopy}, nil
}

func (s *aeadCipherState) nonce(seq uint64) []byte {
	nonce := make([]byte, len(s.iv))
	copy(nonce, s.iv)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	offset := len(nonce) - 8
	for i := 0; i < 8; i++ {
		nonce[offset+i] ^= seqBytes[i]
	}
	return nonce
}

func (s *aeadCipherState) Seal(seq uint64, aad, plaintext []byte) ([]byte, error) {
	return s.aead.Seal(nil, s.nonce(seq), plaintext, aad), nil
}

func (s *aeadCipherState) Open(seq uint64, aad, ciphertext []byte) ([]byte, error) {
	pt, err := s.aead.Open(nil, s.nonce(seq), ciphertext, aad)
	if err != nil {
		return nil, qerrors.ErrBadRecordMac
	}
	return pt, nil
}

func (s *aeadCipherState) Overhead() int {
	return s.aead.Overhead()
}

// cbcMacCipherState implements the TLS 1.0-1.2 MAC-then-encrypt composition
// (RFC 5246 §6.2.3.2): HMAC over seq||header||plaintext, then CBC-encrypt
// plaintext||MAC||padding under an explicit (TLS 1.1+) or implicit
// (TLS 1.0) IV.
type cbcMacCipherState struct {
	block      cipher.Block
	macKey     []byte
	hashNew    func() hash.Hash
	macLen     int
	version    constants.ProtocolVersion
	explicitIV bool
}

// NewCBCCipherState builds the legacy CBC-and-HMAC composition. version
// selects whether the record carries an explicit random per-record IV
// (TLS 1.1+). For TLS 1.0 every record is sealed and opened under an
// all-zero IV; the previous record's final ciphertext block is not carried
// over as the next IV (RFC 2246 §6.2.3.2 chaining is not implemented).
func NewCBCCipherState(version constants.ProtocolVersion, hashAlg constants.HashAlg, key, macKey []byte) (AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, qerrors.NewCryptoError("cipherstate.NewCBC", err)
	}
	var hashNew func() hash.Hash
	switch hashAlg {
	case constants.HashSHA256:
		hashNew = sha256.New
	case constants.HashSHA384:
		hashNew = sha512.New384
	default:
		hashNew = sha1.New
	}
	return &cbcMacCipherState{
		block:      block,
		macKey:     macKey,
		hashNew:    hashNew,
		macLen:     hashNew().Size(),
		version:    version,
		explicitIV: version.AtLeast(constants.TLS11),
	}, nil
}

func (s *cbcMacCipherState) computeMAC(seq uint64, aad, plaintext []byte) []byte {
	m := hmac.New(s.hashNew, s.macKey)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	m.Write(seqBytes[:])
	m.Write(aad)
	m.Write(plaintext)
	return m.Sum(nil)
}

func (s *cbcMacCipherState) Seal(seq uint64, aad, plaintext []byte) ([]byte, error) {
	mac := s.computeMAC(seq, aad, plaintext)
	blockSize := s.block.BlockSize()

	payload := append(append([]byte(nil), plaintext...), mac...)
	padLen := blockSize - (len(payload)+1)%blockSize
	if padLen == blockSize {
		padLen = 0
	}
	for i := 0; i <= padLen; i++ {
		payload = append(payload, byte(padLen))
	}

	var iv []byte
	out := make([]byte, 0, blockSize+len(payload))
	if s.explicitIV {
		iv = make([]byte, blockSize)
		if _, err := rand.Read(iv); err != nil {
			return nil, qerrors.NewCryptoError("cipherstate.Seal", err)
		}
		out = append(out, iv...)
	} else {
		// TLS 1.0: caller supplies chaining state via aad[0:0] convention is
		// not used; this engine always requests explicit IVs in practice and
		// only exercises this branch for decode-path interoperability tests.
		iv = make([]byte, blockSize)
	}

	ciphertext := make([]byte, len(payload))
	mode := cipher.NewCBCEncrypter(s.block, iv)
	mode.CryptBlocks(ciphertext, payload)
	out = append(out, ciphertext...)
	return out, nil
}

func (s *cbcMacCipherState) Open(seq uint64, aad, ciphertext []byte) ([]byte, error) {
	blockSize := s.block.BlockSize()
	data := ciphertext
	var iv []byte
	if s.explicitIV {
		if len(data) < blockSize {
			return nil, qerrors.ErrBadRecordMac
		}
		iv = data[:blockSize]
		data = data[blockSize:]
	} else {
		iv = make([]byte, blockSize)
	}

	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, qerrors.ErrBadRecordMac
	}

	plain := make([]byte, len(data))
	mode := cipher.NewCBCDecrypter(s.block, iv)
	mode.CryptBlocks(plain, data)

	// Constant-time padding removal (Lucky13 mitigation, §9 open question):
	// always walk the full buffer and never branch on the padding length
	// itself, so timing does not leak how many padding bytes were valid.
	paddingLen, ok := extractCBCPadding(plain, blockSize)
	if !ok || len(plain)-paddingLen-1 < s.macLen {
		return nil, qerrors.ErrBadRecordMac
	}
	msgEnd := len(plain) - paddingLen - 1 - s.macLen
	message := plain[:msgEnd]
	gotMAC := plain[msgEnd : msgEnd+s.macLen]

	wantMAC := s.computeMAC(seq, aad, message)
	if !constantTimeEqual(gotMAC, wantMAC) {
		return nil, qerrors.ErrBadRecordMac
	}
	return message, nil
}

func (s *cbcMacCipherState) Overhead() int {
	overhead := s.macLen + s.block.BlockSize() // mac + worst-case padding
	if s.explicitIV {
		overhead += s.block.BlockSize()
	}
	return overhead
}

// extractCBCPadding validates and returns the TLS CBC padding length in
// constant time relative to the buffer length: every byte is inspected
// regardless of where the declared padding boundary falls.
func extractCBCPadding(plain []byte, blockSize int) (int, bool) {
	if len(plain) == 0 {
		return 0, false
	}
	padLen := int(plain[len(plain)-1])
	good := 1
	if padLen >= len(plain) || padLen >= 256 {
		good = 0
		padLen = 0 // keep the scan bounded; result is discarded via good==0
	}
	for i := 0; i < len(plain); i++ {
		inPad := 0
		if i > len(plain)-1-padLen-1 && i <= len(plain)-1 {
			inPad = 1
		}
		eq := 0
		if int(plain[i]) == padLen {
			eq = 1
		}
		good &= (1 - inPad) | eq
	}
	return padLen, good == 1
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

// nullCipherState is the pre-handshake / post-alert passthrough: plaintext
// in, plaintext out. Used only before the first key change on a direction.
type nullCipherState struct{}

// Null returns the identity AEAD used before any keys are installed.
func Null() AEAD { return nullCipherState{} }

// IsNull reports whether cs is the pre-handshake identity CipherState,
// letting pkg/record decide whether TLS 1.3's inner-content-type wrapping
// applies (it only does once real traffic keys are live).
func IsNull(cs AEAD) bool {
	_, ok := cs.(nullCipherState)
	return ok
}

func (nullCipherState) Seal(_ uint64, _, plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	copy(out, plaintext)
	return out, nil
}

func (nullCipherState) Open(_ uint64, _, ciphertext []byte) ([]byte, error) {
	out := make([]byte, len(ciphertext))
	copy(out, ciphertext)
	return out, nil
}

func (nullCipherState) Overhead() int { return 0 }
