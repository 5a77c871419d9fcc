// Package errors defines the TLS engine's error taxonomy (§7): sentinel
// errors for the named failure classes, plus LocalAlertError/RemoteAlertError
// wrappers that carry the alert level/description a failure maps to on the
// wire.
package errors

import (
	"errors"
	"fmt"

	"github.com/pzverkov/gotls/internal/constants"
)

// Sentinel errors for the §7 error taxonomy. NewLocalAlert wraps one in a
// LocalAlertError carrying the exact alert to send; a received alert is
// reported as a RemoteAlertError.
var (
	// ErrDecodeError indicates malformed on-the-wire bytes.
	ErrDecodeError = errors.New("tls: decode error")

	// ErrIllegalParameter indicates the peer violated a negotiation rule.
	ErrIllegalParameter = errors.New("tls: illegal parameter")

	// ErrUnexpectedMessage indicates a message type invalid for the current state.
	ErrUnexpectedMessage = errors.New("tls: unexpected message")

	// ErrBadRecordMac indicates AEAD tag or legacy MAC verification failed.
	ErrBadRecordMac = errors.New("tls: bad record mac")

	// ErrProtocolVersion indicates an unsupported or disallowed peer version.
	ErrProtocolVersion = errors.New("tls: protocol version not supported")

	// ErrInsufficientSecurity indicates a negotiated parameter (key size, group) is too weak.
	ErrInsufficientSecurity = errors.New("tls: insufficient security")

	// ErrInternalError indicates an invariant violation local to this engine.
	ErrInternalError = errors.New("tls: internal error")

	// ErrClosedConnection indicates an operation attempted after Close.
	ErrClosedConnection = errors.New("tls: connection closed")

	// ErrHandshakeTimeout indicates a handshake suspension point exceeded its deadline.
	ErrHandshakeTimeout = errors.New("tls: handshake timed out")

	// ErrSessionExpired indicates a session cache lookup found an entry past its TTL.
	ErrSessionExpired = errors.New("tls: session expired")

	// ErrInvalidTicket indicates a session ticket failed to decrypt or parse.
	ErrInvalidTicket = errors.New("tls: invalid ticket")

	// ErrSequenceNumberOverflow indicates a record sequence number would wrap.
	ErrSequenceNumberOverflow = errors.New("tls: sequence number overflow")

	// ErrNoCipherSuiteOverlap indicates client and server offered no common suite.
	ErrNoCipherSuiteOverlap = errors.New("tls: no cipher suite overlap")

	// ErrNoGroupOverlap indicates client and server offered no common key-exchange group.
	ErrNoGroupOverlap = errors.New("tls: no supported_groups overlap")

	// ErrCipherSuiteNotFIPSApproved indicates a suite was rejected under fips build mode.
	ErrCipherSuiteNotFIPSApproved = errors.New("tls: cipher suite not FIPS 140-3 approved")

	// ErrHeartbeatPaddingTooShort indicates a received heartbeat's padding was below
	// the RFC 6520 minimum (§9 open question (a)).
	ErrHeartbeatPaddingTooShort = errors.New("tls: heartbeat padding too short")

	// ErrHeartbeatPayloadTooLarge indicates a received heartbeat_request exceeded the
	// maximum accepted payload size.
	ErrHeartbeatPayloadTooLarge = errors.New("tls: heartbeat payload too large")

	// ErrRecordOverflow indicates a TLSCiphertext's declared length exceeded the
	// record-layer maximum (§4.2).
	ErrRecordOverflow = errors.New("tls: record overflow")

	// ErrPoolClosed indicates an operation on a connection pool after Close.
	ErrPoolClosed = errors.New("tls: connection pool closed")

	// ErrPoolExhausted indicates TryAcquire found the pool at MaxConns with
	// no idle connection to hand out.
	ErrPoolExhausted = errors.New("tls: connection pool exhausted")

	// ErrPoolTimeout indicates Acquire's WaitTimeout elapsed with no
	// connection released back to the pool.
	ErrPoolTimeout = errors.New("tls: connection pool acquire timed out")

	// ErrPoolConnReleased indicates an operation on a PoolConn already
	// returned to its pool via Release or Close.
	ErrPoolConnReleased = errors.New("tls: pooled connection already released")

	// Crypto-primitive sentinels (§6 external collaborator interfaces). These
	// surface from pkg/crypto/pkg/kex and are generally wrapped in a
	// CryptoError naming the failing operation before reaching the handshake
	// layer, which maps them onto the §7 taxonomy above (typically
	// insufficient_security or internal_error).
	ErrInvalidKeySize          = errors.New("tls: invalid key size")
	ErrInvalidNonce            = errors.New("tls: invalid nonce size")
	ErrInvalidPublicKey        = errors.New("tls: invalid public key")
	ErrInvalidPrivateKey       = errors.New("tls: invalid private key")
	ErrInvalidCiphertext       = errors.New("tls: invalid ciphertext")
	ErrCiphertextTooShort      = errors.New("tls: ciphertext too short")
	ErrAuthenticationFailed    = errors.New("tls: authentication failed")
	ErrNonceExhausted          = errors.New("tls: nonce space exhausted")
	ErrUnsupportedCipherSuite  = errors.New("tls: unsupported cipher suite")
	ErrZeroSharedSecret        = errors.New("tls: shared secret is all-zero")
	ErrDHParameterOutOfRange   = errors.New("tls: dh public value out of range")
)

// RemoteAlertError is raised when the peer sends a fatal alert; it carries
// the alert description the peer chose.
type RemoteAlertError struct {
	Level       constants.AlertLevel
	Description constants.AlertDescription
}

func (e *RemoteAlertError) Error() string {
	return fmt.Sprintf("tls: received alert %s", e.Description)
}

// LocalAlertError is raised when this engine is about to send (or has sent)
// a fatal alert in response to a local failure; it wraps the underlying
// sentinel error from the list above.
type LocalAlertError struct {
	Level       constants.AlertLevel
	Description constants.AlertDescription
	Err         error
}

func (e *LocalAlertError) Error() string {
	return fmt.Sprintf("tls: sending alert %s: %v", e.Description, e.Err)
}

func (e *LocalAlertError) Unwrap() error {
	return e.Err
}

// alertFor maps a §7 sentinel error to the AlertDescription it produces.
// Errors not in this table default to internal_error.
var alertFor = map[error]constants.AlertDescription{
	ErrDecodeError:                constants.AlertDecodeError,
	ErrIllegalParameter:           constants.AlertIllegalParameter,
	ErrUnexpectedMessage:          constants.AlertUnexpectedMessage,
	ErrBadRecordMac:               constants.AlertBadRecordMac,
	ErrProtocolVersion:            constants.AlertProtocolVersion,
	ErrInsufficientSecurity:       constants.AlertInsufficientSecurity,
	ErrInternalError:              constants.AlertInternalError,
	ErrSequenceNumberOverflow:     constants.AlertInternalError,
	ErrNoCipherSuiteOverlap:       constants.AlertHandshakeFailure,
	ErrNoGroupOverlap:             constants.AlertHandshakeFailure,
	ErrCipherSuiteNotFIPSApproved: constants.AlertInsufficientSecurity,
	ErrRecordOverflow:             constants.AlertRecordOverflow,
	ErrUnsupportedCipherSuite:     constants.AlertHandshakeFailure,
	ErrZeroSharedSecret:           constants.AlertInsufficientSecurity,
	ErrDHParameterOutOfRange:      constants.AlertInsufficientSecurity,
	ErrAuthenticationFailed:       constants.AlertBadRecordMac,
}

// NewLocalAlert wraps err in a LocalAlertError, resolving the alert
// description from the §7 taxonomy table (internal_error if err is not a
// recognized sentinel).
func NewLocalAlert(err error) *LocalAlertError {
	desc := constants.AlertInternalError
	for sentinel, d := range alertFor {
		if errors.Is(err, sentinel) {
			desc = d
			break
		}
	}
	return &LocalAlertError{Level: constants.AlertLevelFatal, Description: desc, Err: err}
}

// CryptoError wraps a cryptographic primitive failure with the operation
// name that failed.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// NewCryptoError creates a new CryptoError.
func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}

// ProtocolError wraps a protocol-phase failure with the handshake/record
// phase name it occurred in.
type ProtocolError struct {
	Phase string
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("tls %s: %v", e.Phase, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(phase string, err error) *ProtocolError {
	return &ProtocolError{Phase: phase, Err: err}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
