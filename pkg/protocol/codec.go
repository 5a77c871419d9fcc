// codec.go implements the byte-level reader/writer for TLS wire primitives
// (§4.1): fixed-width big-endian integers, length-prefixed variable-length
// byte strings (1/2/3-byte length prefixes, matching TLS presentation
// language's <floor..ceiling> vectors), and fixed-width byte strings.
//
// Reader operations fail with qerrors.ErrDecodeError whenever the buffer is
// exhausted or a nested length exceeds its container, per §4.1 and the §7
// DecodeError taxonomy entry.
package protocol

import (
	"encoding/binary"
	"io"

	qerrors "github.com/pzverkov/gotls/internal/errors"
)

// Reader is a cursor over an immutable byte buffer, implementing the TLS
// wire-primitive read operations of §4.1.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential, cursor-tracked reads. buf is not
// copied; callers must not mutate it while the Reader is in use.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Len returns the number of unread bytes remaining.
func (r *Reader) Len() int {
	return len(r.buf) - r.pos
}

// Pos returns the current cursor offset.
func (r *Reader) Pos() int {
	return r.pos
}

func (r *Reader) require(n int) error {
	if n < 0 || r.Len() < n {
		return qerrors.ErrDecodeError
	}
	return nil
}

// ReadUint reads a big-endian unsigned integer of width bytes (1, 2, 3, 4,
// or 8) and returns it widened to uint64.
func (r *Reader) ReadUint(width int) (uint64, error) {
	if width != 1 && width != 2 && width != 3 && width != 4 && width != 8 {
		return 0, qerrors.ErrInternalError
	}
	if err := r.require(width); err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < width; i++ {
		v = v<<8 | uint64(r.buf[r.pos+i])
	}
	r.pos += width
	return v, nil
}

// ReadUint8, ReadUint16, ReadUint24, ReadUint64 are convenience wrappers
// around ReadUint for the widths TLS actually uses.
func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.ReadUint(1)
	return uint8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadUint(2)
	return uint16(v), err
}

func (r *Reader) ReadUint24() (uint32, error) {
	v, err := r.ReadUint(3)
	return uint32(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadUint(4)
	return uint32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	return r.ReadUint(8)
}

// ReadFixed reads exactly n raw bytes.
func (r *Reader) ReadFixed(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// ReadVector reads a length-prefixed byte string whose length occupies
// lenWidth bytes (1, 2, or 3), matching TLS's opaque<floor..ceiling> vectors.
func (r *Reader) ReadVector(lenWidth int) ([]byte, error) {
	n, err := r.ReadUint(lenWidth)
	if err != nil {
		return nil, err
	}
	return r.ReadFixed(int(n))
}

// PeekRemaining returns the unread tail without advancing the cursor.
func (r *Reader) PeekRemaining() []byte {
	return r.buf[r.pos:]
}

// Sub carves out a bounded sub-Reader over the next n bytes, advancing this
// Reader's cursor past them. Used for parsing a nested length-prefixed
// structure (e.g. one extension's body) without risking it reading past its
// own declared length.
func (r *Reader) Sub(n int) (*Reader, error) {
	b, err := r.ReadFixed(n)
	if err != nil {
		return nil, err
	}
	return NewReader(b), nil
}

// Writer accumulates bytes for the symmetric TLS wire primitives.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// WriteUint appends v as a big-endian integer of width bytes.
func (w *Writer) WriteUint(width int, v uint64) {
	tmp := make([]byte, width)
	vv := v
	for i := width - 1; i >= 0; i-- {
		tmp[i] = byte(vv & 0xff)
		vv >>= 8
	}
	w.buf = append(w.buf, tmp...)
}

func (w *Writer) WriteUint8(v uint8)   { w.WriteUint(1, uint64(v)) }
func (w *Writer) WriteUint16(v uint16) { w.WriteUint(2, uint64(v)) }
func (w *Writer) WriteUint24(v uint32) { w.WriteUint(3, uint64(v)) }
func (w *Writer) WriteUint32(v uint32) { w.WriteUint(4, uint64(v)) }
func (w *Writer) WriteUint64(v uint64) { w.WriteUint(8, v) }

// WriteFixed appends raw bytes with no length prefix.
func (w *Writer) WriteFixed(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteVector appends b as a length-prefixed vector, lenWidth bytes wide.
func (w *Writer) WriteVector(lenWidth int, b []byte) error {
	if lenWidth < 4 && uint64(len(b)) >= uint64(1)<<(8*lenWidth) {
		return qerrors.ErrInternalError
	}
	w.WriteUint(lenWidth, uint64(len(b)))
	w.WriteFixed(b)
	return nil
}

// WithLengthPrefix runs build to append a sub-structure, then retroactively
// prefixes its length (lenWidth bytes wide) before the appended bytes. Used
// for self-describing structures like Extensions<0..2^16-1> whose length
// isn't known until after the body is serialized.
func (w *Writer) WithLengthPrefix(lenWidth int, build func(*Writer) error) error {
	inner := NewWriter()
	if err := build(inner); err != nil {
		return err
	}
	return w.WriteVector(lenWidth, inner.Bytes())
}

// ReadMessageFrame reads one length-prefixed handshake message header+body
// pair (1-byte type, 3-byte big-endian length, per §3) from r, blocking
// until the full message arrives.
func ReadMessageFrame(r io.Reader) (msgType uint8, body []byte, err error) {
	header := make([]byte, 4)
	if _, err = io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	msgType = header[0]
	length := binary.BigEndian.Uint32(append([]byte{0}, header[1:]...))
	body = make([]byte, length)
	if length > 0 {
		if _, err = io.ReadFull(r, body); err != nil {
			return 0, nil, err
		}
	}
	return msgType, body, nil
}

// WriteMessageFrame writes one length-prefixed handshake message
// header+body pair to w.
func WriteMessageFrame(w io.Writer, msgType uint8, body []byte) error {
	header := make([]byte, 4)
	header[0] = msgType
	header[1] = byte(len(body) >> 16)
	header[2] = byte(len(body) >> 8)
	header[3] = byte(len(body))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}
