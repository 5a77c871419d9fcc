// Package record implements the TLS record layer (§4.2-4.5): TLSPlaintext
// fragmentation and reassembly, per-direction CipherState application, the
// implicit sequence number, and the handshake-message Defragmenter that
// reassembles a logical HandshakeMessage from one or more coalesced or
// split records.
package record

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
	"github.com/pzverkov/gotls/pkg/cipherstate"
)

// RecordIO is the minimal read/write contract a RecordLayer needs from its
// transport; net.Conn satisfies it directly, letting tests substitute an
// in-memory pipe.
type RecordIO interface {
	io.Reader
	io.Writer
}

// cipherSlot holds one direction's active protection state plus the
// sequence number scoped to it. Swapped atomically on rekey/KeyUpdate so a
// concurrent reader/writer never observes a half-updated pair.
type cipherSlot struct {
	cipher cipherstate.AEAD
	seq    uint64
}

// RecordLayer multiplexes the five ContentTypes over one connection,
// maintaining independent read and write CipherStates so a KeyUpdate in one
// direction never disturbs the other (RFC 8446 §4.6.3).
type RecordLayer struct {
	conn    RecordIO
	version constants.ProtocolVersion

	writeMu    sync.Mutex
	writeSlot  atomic.Pointer[cipherSlot]
	readSlot   atomic.Pointer[cipherSlot]
	legacyMode bool // TLS <=1.2: a ChangeCipherSpec record, not KeyUpdate, activates pending keys

	handshakeDefrag *Defragmenter

	readDeadline  time.Duration
	writeDeadline time.Duration
}

// New wraps conn for record-layer I/O at the given negotiated version. Both
// directions start with the null (plaintext) CipherState; callers install
// real keys via SetReadCipher/SetWriteCipher once the key schedule produces
// them.
func New(conn RecordIO, version constants.ProtocolVersion) *RecordLayer {
	rl := &RecordLayer{conn: conn, version: version, legacyMode: version.Less(constants.TLS13)}
	rl.readSlot.Store(&cipherSlot{cipher: cipherstate.Null()})
	rl.writeSlot.Store(&cipherSlot{cipher: cipherstate.Null()})

	// Handshake takes priority over Alert when both happen to complete at
	// once: a peer that sends its last flight immediately followed by a
	// fatal alert (e.g. on our own malformed message) still gets that last
	// flight delivered to the FSM first, matching RFC 8446 §5.1's framing,
	// which never implies an ordering preference between content types but
	// does mean a well-formed peer's alert cannot outrun its own handshake
	// bytes on the wire.
	rl.handshakeDefrag = NewDefragmenter()
	rl.handshakeDefrag.Register(constants.ContentTypeHandshake, DynamicDescriptor(4, 1, 3))
	rl.handshakeDefrag.Register(constants.ContentTypeAlert, StaticDescriptor(2))
	return rl
}

// SetReadDeadline/SetWriteDeadline configure per-operation I/O timeouts on
// connections that support net.Conn's deadline methods.
func (rl *RecordLayer) SetReadDeadline(d time.Duration)  { rl.readDeadline = d }
func (rl *RecordLayer) SetWriteDeadline(d time.Duration) { rl.writeDeadline = d }

func (rl *RecordLayer) applyReadDeadline() {
	if rl.readDeadline <= 0 {
		return
	}
	if nc, ok := rl.conn.(net.Conn); ok {
		_ = nc.SetReadDeadline(time.Now().Add(rl.readDeadline))
	}
}

func (rl *RecordLayer) applyWriteDeadline() {
	if rl.writeDeadline <= 0 {
		return
	}
	if nc, ok := rl.conn.(net.Conn); ok {
		_ = nc.SetWriteDeadline(time.Now().Add(rl.writeDeadline))
	}
}

// SetReadCipher installs a new read-direction CipherState and resets its
// sequence number to zero (every key change starts a fresh sequence space,
// §4.6.3's KeyUpdate and the TLS 1.2 ChangeCipherSpec epoch bump alike). In
// legacyMode this also clears the handshake defragmenter, so a partial
// message buffered under the old epoch can never be completed with bytes
// decrypted under the new one (§4.2).
func (rl *RecordLayer) SetReadCipher(cs cipherstate.AEAD) {
	rl.readSlot.Store(&cipherSlot{cipher: cs})
	if rl.legacyMode {
		rl.handshakeDefrag.Clear()
	}
}

// SetWriteCipher installs a new write-direction CipherState.
func (rl *RecordLayer) SetWriteCipher(cs cipherstate.AEAD) {
	rl.writeSlot.Store(&cipherSlot{cipher: cs})
}

// nextWriteSeq atomically increments and returns the previous write sequence
// number for the currently-installed write cipher slot.
func (rl *RecordLayer) nextWriteSeq() (cipherstate.AEAD, uint64) {
	slot := rl.writeSlot.Load()
	seq := atomic.AddUint64(&slot.seq, 1) - 1
	return slot.cipher, seq
}

func (rl *RecordLayer) nextReadSeq() (cipherstate.AEAD, uint64) {
	slot := rl.readSlot.Load()
	seq := atomic.AddUint64(&slot.seq, 1) - 1
	return slot.cipher, seq
}

// WriteRecord encrypts and transmits payload as one or more TLSPlaintext
// records of the given ContentType, splitting it into MaxPlaintextLen
// fragments per §4.2.
func (rl *RecordLayer) WriteRecord(ct constants.ContentType, payload []byte) error {
	rl.writeMu.Lock()
	defer rl.writeMu.Unlock()

	if len(payload) == 0 {
		return rl.writeFragment(ct, nil)
	}
	for off := 0; off < len(payload); off += constants.MaxPlaintextLen {
		end := off + constants.MaxPlaintextLen
		if end > len(payload) {
			end = len(payload)
		}
		if err := rl.writeFragment(ct, payload[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func (rl *RecordLayer) writeFragment(ct constants.ContentType, fragment []byte) error {
	cipher, seq := rl.nextWriteSeq()

	// The record header's wire ContentType/length describe the *outer*
	// ciphertext; TLS 1.3 always advertises application_data once keys are
	// live (RFC 8446 §5.1), with the true type appended inside the AEAD
	// plaintext before encryption.
	outerType := ct
	plaintext := fragment
	if !rl.legacyMode && !cipherstate.IsNull(cipher) {
		outerType = constants.ContentTypeApplicationData
		plaintext = append(append([]byte(nil), fragment...), byte(ct))
	}

	aad := recordAAD(outerType, rl.version, len(plaintext)+cipher.Overhead())
	ciphertext, err := cipher.Seal(seq, aad, plaintext)
	if err != nil {
		return err
	}
	if len(ciphertext) > constants.MaxCiphertextLen {
		return qerrors.ErrInternalError
	}

	header := make([]byte, constants.RecordHeaderLen)
	header[0] = byte(outerType)
	binary.BigEndian.PutUint16(header[1:3], rl.version.Uint16())
	binary.BigEndian.PutUint16(header[3:5], uint16(len(ciphertext)))

	rl.applyWriteDeadline()
	if _, err := rl.conn.Write(header); err != nil {
		return err
	}
	if _, err := rl.conn.Write(ciphertext); err != nil {
		return err
	}
	return nil
}

// recordAAD builds the additional authenticated data for one record's AEAD
// operation. TLS 1.3 authenticates only the outer header (RFC 8446 §5.2);
// TLS 1.2 additionally authenticates the sequence number and content type
// via this same byte layout applied by the caller's cipherstate MAC.
func recordAAD(ct constants.ContentType, version constants.ProtocolVersion, ciphertextLen int) []byte {
	aad := make([]byte, 5)
	aad[0] = byte(ct)
	binary.BigEndian.PutUint16(aad[1:3], version.Uint16())
	binary.BigEndian.PutUint16(aad[3:5], uint16(ciphertextLen))
	return aad
}

// ReadRecord reads, decrypts, and returns the next TLSPlaintext fragment's
// ContentType and payload. For TLS 1.3 post-handshake records it unwraps
// the inner content type trailer and skips zero-length padding records.
func (rl *RecordLayer) ReadRecord() (constants.ContentType, []byte, error) {
	for {
		ct, payload, err := rl.readOneRecord()
		if err != nil {
			return 0, nil, err
		}
		if rl.legacyMode || ct != constants.ContentTypeApplicationData {
			return ct, payload, nil
		}

		innerType, inner, err := unwrapInnerType(ct, payload)
		if err != nil {
			return 0, nil, err
		}
		if innerType == constants.ContentTypeHandshake && len(inner) == 0 {
			continue // zero-length padding-only record
		}
		return innerType, inner, nil
	}
}

func unwrapInnerType(_ constants.ContentType, payload []byte) (constants.ContentType, []byte, error) {
	i := len(payload) - 1
	for i >= 0 && payload[i] == 0 {
		i--
	}
	if i < 0 {
		return 0, nil, qerrors.ErrDecodeError
	}
	return constants.ContentType(payload[i]), payload[:i], nil
}

func (rl *RecordLayer) readOneRecord() (constants.ContentType, []byte, error) {
	rl.applyReadDeadline()

	header := make([]byte, constants.RecordHeaderLen)
	if _, err := io.ReadFull(rl.conn, header); err != nil {
		return 0, nil, err
	}
	ct := constants.ContentType(header[0])
	length := binary.BigEndian.Uint16(header[3:5])
	if int(length) > constants.MaxCiphertextLen {
		return 0, nil, qerrors.ErrRecordOverflow
	}

	ciphertext := make([]byte, length)
	if _, err := io.ReadFull(rl.conn, ciphertext); err != nil {
		return 0, nil, err
	}

	cipher, seq := rl.nextReadSeq()
	aad := recordAAD(ct, rl.version, len(ciphertext))
	plaintext, err := cipher.Open(seq, aad, ciphertext)
	if err != nil {
		return 0, nil, err
	}
	return ct, plaintext, nil
}
