package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
)

// --- Reader/Writer integer round-trips ---

func TestReadWriteUintWidths(t *testing.T) {
	tests := []struct {
		width int
		value uint64
	}{
		{1, 0xAB},
		{2, 0xABCD},
		{3, 0xABCDEF},
		{4, 0xABCDEF01},
		{8, 0x0123456789ABCDEF},
	}
	for _, tt := range tests {
		w := NewWriter()
		w.WriteUint(tt.width, tt.value)
		if w.Len() != tt.width {
			t.Fatalf("width %d: wrote %d bytes, want %d", tt.width, w.Len(), tt.width)
		}
		r := NewReader(w.Bytes())
		got, err := r.ReadUint(tt.width)
		if err != nil {
			t.Fatalf("width %d: ReadUint error: %v", tt.width, err)
		}
		if got != tt.value {
			t.Errorf("width %d: got %#x, want %#x", tt.width, got, tt.value)
		}
	}
}

func TestReadUintInvalidWidth(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4, 5, 6, 7})
	if _, err := r.ReadUint(5); !errors.Is(err, qerrors.ErrInternalError) {
		t.Errorf("ReadUint(5) error = %v, want ErrInternalError", err)
	}
}

func TestReadUintShortBuffer(t *testing.T) {
	r := NewReader([]byte{1})
	if _, err := r.ReadUint16(); !errors.Is(err, qerrors.ErrDecodeError) {
		t.Errorf("ReadUint16 on 1-byte buffer error = %v, want ErrDecodeError", err)
	}
}

func TestWriteUint8_16_24_32_64(t *testing.T) {
	w := NewWriter()
	w.WriteUint8(0x11)
	w.WriteUint16(0x2233)
	w.WriteUint24(0x445566)
	w.WriteUint32(0x778899AA)
	w.WriteUint64(0xBBCCDDEE11223344)

	r := NewReader(w.Bytes())
	if v, _ := r.ReadUint8(); v != 0x11 {
		t.Errorf("ReadUint8 = %#x, want 0x11", v)
	}
	if v, _ := r.ReadUint16(); v != 0x2233 {
		t.Errorf("ReadUint16 = %#x, want 0x2233", v)
	}
	if v, _ := r.ReadUint24(); v != 0x445566 {
		t.Errorf("ReadUint24 = %#x, want 0x445566", v)
	}
	if v, _ := r.ReadUint32(); v != 0x778899AA {
		t.Errorf("ReadUint32 = %#x, want 0x778899AA", v)
	}
	if v, _ := r.ReadUint64(); v != 0xBBCCDDEE11223344 {
		t.Errorf("ReadUint64 = %#x, want 0xBBCCDDEE11223344", v)
	}
	if r.Len() != 0 {
		t.Errorf("Len() after full read = %d, want 0", r.Len())
	}
}

// --- Fixed-length fields ---

func TestReadWriteFixed(t *testing.T) {
	w := NewWriter()
	payload := []byte("handshake-random-bytes")
	w.WriteFixed(payload)

	r := NewReader(w.Bytes())
	got, err := r.ReadFixed(len(payload))
	if err != nil {
		t.Fatalf("ReadFixed error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadFixed = %q, want %q", got, payload)
	}
}

func TestReadFixedShort(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if _, err := r.ReadFixed(10); !errors.Is(err, qerrors.ErrDecodeError) {
		t.Errorf("ReadFixed overrun error = %v, want ErrDecodeError", err)
	}
}

func TestReadFixedDoesNotAliasBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	r := NewReader(buf)
	got, err := r.ReadFixed(4)
	if err != nil {
		t.Fatal(err)
	}
	got[0] = 0xFF
	if buf[0] == 0xFF {
		t.Error("ReadFixed returned a slice aliasing the source buffer")
	}
}

// --- Vectors (length-prefixed byte strings) ---

func TestReadWriteVector(t *testing.T) {
	for _, lenWidth := range []int{1, 2, 3} {
		data := bytes.Repeat([]byte{0x42}, 17)
		w := NewWriter()
		if err := w.WriteVector(lenWidth, data); err != nil {
			t.Fatalf("lenWidth %d: WriteVector error: %v", lenWidth, err)
		}
		r := NewReader(w.Bytes())
		got, err := r.ReadVector(lenWidth)
		if err != nil {
			t.Fatalf("lenWidth %d: ReadVector error: %v", lenWidth, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("lenWidth %d: got %v, want %v", lenWidth, got, data)
		}
	}
}

func TestWriteVectorTooLarge(t *testing.T) {
	w := NewWriter()
	oversized := make([]byte, 256) // exceeds a 1-byte length prefix's 255 max
	if err := w.WriteVector(1, oversized); !errors.Is(err, qerrors.ErrInternalError) {
		t.Errorf("WriteVector oversized error = %v, want ErrInternalError", err)
	}
}

func TestReadVectorTruncated(t *testing.T) {
	// Declares a 10-byte vector but only supplies 3.
	r := NewReader([]byte{0x00, 0x0A, 0x01, 0x02, 0x03})
	if _, err := r.ReadVector(2); !errors.Is(err, qerrors.ErrDecodeError) {
		t.Errorf("ReadVector truncated error = %v, want ErrDecodeError", err)
	}
}

func TestReadVectorEmpty(t *testing.T) {
	r := NewReader([]byte{0x00})
	got, err := r.ReadVector(1)
	if err != nil {
		t.Fatalf("ReadVector empty error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ReadVector empty = %v, want empty slice", got)
	}
}

// --- WithLengthPrefix ---

func TestWithLengthPrefix(t *testing.T) {
	w := NewWriter()
	err := w.WithLengthPrefix(2, func(body *Writer) error {
		body.WriteUint8(1)
		body.WriteUint8(2)
		body.WriteUint8(3)
		return nil
	})
	if err != nil {
		t.Fatalf("WithLengthPrefix error: %v", err)
	}
	r := NewReader(w.Bytes())
	inner, err := r.ReadVector(2)
	if err != nil {
		t.Fatalf("ReadVector error: %v", err)
	}
	if !bytes.Equal(inner, []byte{1, 2, 3}) {
		t.Errorf("inner = %v, want [1 2 3]", inner)
	}
}

func TestWithLengthPrefixPropagatesError(t *testing.T) {
	w := NewWriter()
	sentinel := errors.New("build failed")
	err := w.WithLengthPrefix(2, func(*Writer) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("error = %v, want sentinel propagated", err)
	}
}

// --- Sub ---

func TestReaderSub(t *testing.T) {
	w := NewWriter()
	w.WriteFixed([]byte{1, 2, 3, 4, 5, 6})
	r := NewReader(w.Bytes())
	sub, err := r.Sub(3)
	if err != nil {
		t.Fatalf("Sub error: %v", err)
	}
	if sub.Len() != 3 {
		t.Errorf("sub.Len() = %d, want 3", sub.Len())
	}
	if r.Pos() != 3 {
		t.Errorf("outer reader Pos() = %d, want 3", r.Pos())
	}
	rest := r.PeekRemaining()
	if !bytes.Equal(rest, []byte{4, 5, 6}) {
		t.Errorf("PeekRemaining = %v, want [4 5 6]", rest)
	}
}

// --- Message framing ---

func TestMessageFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte("client-hello-body")
	if err := WriteMessageFrame(&buf, uint8(constants.HandshakeTypeClientHello), body); err != nil {
		t.Fatalf("WriteMessageFrame error: %v", err)
	}
	gotType, gotBody, err := ReadMessageFrame(&buf)
	if err != nil {
		t.Fatalf("ReadMessageFrame error: %v", err)
	}
	if gotType != uint8(constants.HandshakeTypeClientHello) {
		t.Errorf("type = %d, want %d", gotType, constants.HandshakeTypeClientHello)
	}
	if !bytes.Equal(gotBody, body) {
		t.Errorf("body = %q, want %q", gotBody, body)
	}
}

func TestMessageFrameEmptyBody(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessageFrame(&buf, uint8(constants.HandshakeTypeServerHelloDone), nil); err != nil {
		t.Fatalf("WriteMessageFrame error: %v", err)
	}
	gotType, gotBody, err := ReadMessageFrame(&buf)
	if err != nil {
		t.Fatalf("ReadMessageFrame error: %v", err)
	}
	if gotType != uint8(constants.HandshakeTypeServerHelloDone) {
		t.Errorf("type = %d, want %d", gotType, constants.HandshakeTypeServerHelloDone)
	}
	if len(gotBody) != 0 {
		t.Errorf("body = %v, want empty", gotBody)
	}
}

func TestMessageFrameShortHeader(t *testing.T) {
	r := bytes.NewReader([]byte{1, 2})
	if _, _, err := ReadMessageFrame(r); err == nil {
		t.Error("expected error reading truncated frame header")
	}
}

// --- Version helpers (protocol.Version is an alias for constants.ProtocolVersion) ---

func TestVersionUint16(t *testing.T) {
	if got := constants.TLS12.Uint16(); got != 0x0303 {
		t.Errorf("TLS12.Uint16() = %#x, want 0x0303", got)
	}
	if got := constants.TLS13.Uint16(); got != 0x0304 {
		t.Errorf("TLS13.Uint16() = %#x, want 0x0304", got)
	}
}

func TestVersionParseAndString(t *testing.T) {
	v := constants.ParseVersion(3, 3)
	if v != constants.TLS12 {
		t.Errorf("ParseVersion(3,3) = %v, want TLS12", v)
	}
	if v.String() != "TLS1.2" {
		t.Errorf("String() = %q, want TLS1.2", v.String())
	}
}

func TestVersionInRange(t *testing.T) {
	if !InRange(constants.TLS12, Min, Max) {
		t.Error("TLS1.2 should be InRange(Min, Max)")
	}
	if InRange(constants.ProtocolVersion{Major: 3, Minor: 9}, Min, Max) {
		t.Error("an unrecognized future version should not be InRange")
	}
}
