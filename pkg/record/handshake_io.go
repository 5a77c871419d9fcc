package record

import (
	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
)

// Descriptor tells a Defragmenter how to recognize one complete message's
// length inside its per-ContentType buffer (§4.2): either every message of
// that type is a fixed size, or a length field at a known offset and width
// inside the message's own header determines it.
type Descriptor struct {
	staticLen    int // message length, for a static descriptor
	headerLen    int // bytes before the variable-length body, for a dynamic descriptor
	lengthOffset int // offset of the length field within the header; negative marks "static"
	lengthWidth  int // width of the length field in bytes (1-4)
}

// StaticDescriptor describes a ContentType whose every message is exactly
// size bytes, e.g. Alert (1-byte level + 1-byte description, always 2) or
// TLS <=1.2's ChangeCipherSpec (always 1).
func StaticDescriptor(size int) Descriptor {
	return Descriptor{staticLen: size, lengthOffset: -1}
}

// DynamicDescriptor describes a ContentType whose message carries its own
// length field: the variable-length body begins at headerLen, and the
// length occupies lengthWidth big-endian bytes at lengthOffset within the
// header. Handshake messages use DynamicDescriptor(4, 1, 3): 1-byte type,
// 3-byte length, then that many body bytes (RFC 8446 §4).
func DynamicDescriptor(headerLen, lengthOffset, lengthWidth int) Descriptor {
	return Descriptor{headerLen: headerLen, lengthOffset: lengthOffset, lengthWidth: lengthWidth}
}

// messageLen reports the total frame length (header+body) implied by buf,
// and whether that length could be determined yet. For a dynamic
// descriptor it returns ok=false until buf holds at least the length
// field itself.
func (d Descriptor) messageLen(buf []byte) (total int, ok bool) {
	if d.lengthOffset < 0 {
		return d.staticLen, true
	}
	need := d.lengthOffset + d.lengthWidth
	if len(buf) < need {
		return 0, false
	}
	n := 0
	for i := 0; i < d.lengthWidth; i++ {
		n = n<<8 | int(buf[d.lengthOffset+i])
	}
	return d.headerLen + n, true
}

// defragBuffer is one registered ContentType's descriptor and accumulated
// bytes. Defragmenter keeps these in registration order so Next can serve
// strictly by priority.
type defragBuffer struct {
	ct   constants.ContentType
	desc Descriptor
	buf  []byte
}

// Defragmenter reassembles content-typed byte streams into whole messages
// (§4.2): each registered ContentType gets its own buffer, and Next returns
// the first complete message across all of them in registration-order
// priority. RecordLayer uses one Defragmenter to multiplex Handshake and
// Alert records that may arrive split across, or coalesced within, the
// underlying TLSPlaintext records (RFC 8446 §5.1).
type Defragmenter struct {
	regs []*defragBuffer
}

// NewDefragmenter returns a Defragmenter with no registered types; Add
// fails for any ContentType not first passed to Register.
func NewDefragmenter() *Defragmenter {
	return &Defragmenter{}
}

// Register binds desc to ct, appending it to the end of the priority
// order. Re-registering an already-registered type replaces its descriptor
// and discards any bytes buffered for it.
func (d *Defragmenter) Register(ct constants.ContentType, desc Descriptor) {
	if r := d.find(ct); r != nil {
		r.desc = desc
		r.buf = nil
		return
	}
	d.regs = append(d.regs, &defragBuffer{ct: ct, desc: desc})
}

func (d *Defragmenter) find(ct constants.ContentType) *defragBuffer {
	for _, r := range d.regs {
		if r.ct == ct {
			return r
		}
	}
	return nil
}

// Add appends payload to ct's buffer. ct must already be registered.
func (d *Defragmenter) Add(ct constants.ContentType, payload []byte) error {
	r := d.find(ct)
	if r == nil {
		return qerrors.ErrUnexpectedMessage
	}
	r.buf = append(r.buf, payload...)
	return nil
}

// Next returns the first complete message among registered types, in
// registration-order priority, consuming its bytes (header included). ok is
// false if no registered type currently holds a complete message.
func (d *Defragmenter) Next() (ct constants.ContentType, frame []byte, ok bool, err error) {
	for _, r := range d.regs {
		total, known := r.desc.messageLen(r.buf)
		if !known {
			continue
		}
		if total > constants.MaxPlaintextLen {
			return 0, nil, false, qerrors.ErrRecordOverflow
		}
		if len(r.buf) < total {
			continue
		}
		frame = append([]byte(nil), r.buf[:total]...)
		r.buf = r.buf[total:]
		return r.ct, frame, true, nil
	}
	return 0, nil, false, nil
}

// Clear drops every registered type's buffered bytes. Called on a TLS 1.2
// and below key change, so a partial message under the old epoch can never
// be completed with bytes decrypted under the new one.
func (d *Defragmenter) Clear() {
	for _, r := range d.regs {
		r.buf = nil
	}
}

// WriteHandshakeMessage frames body with its 4-byte header and writes it as
// one or more handshake records.
func (rl *RecordLayer) WriteHandshakeMessage(msgType constants.HandshakeType, body []byte) error {
	framed := make([]byte, 4+len(body))
	framed[0] = byte(msgType)
	framed[1] = byte(len(body) >> 16)
	framed[2] = byte(len(body) >> 8)
	framed[3] = byte(len(body))
	copy(framed[4:], body)
	return rl.WriteRecord(constants.ContentTypeHandshake, framed)
}

// ReadHandshakeMessage blocks until one full handshake message is
// available, reading additional records as needed and buffering any
// coalesced messages that follow it for the next call. A complete Alert
// message arriving instead surfaces as a RemoteAlertError rather than being
// silently treated as an unexpected message, since a peer may abort the
// handshake with one at any point.
func (rl *RecordLayer) ReadHandshakeMessage() (constants.HandshakeType, []byte, error) {
	for {
		ct, frame, ok, err := rl.handshakeDefrag.Next()
		if err != nil {
			return 0, nil, err
		}
		if ok {
			switch ct {
			case constants.ContentTypeHandshake:
				return constants.HandshakeType(frame[0]), frame[4:], nil
			case constants.ContentTypeAlert:
				return 0, nil, qerrors.NewProtocolError("record.handshake", &qerrors.RemoteAlertError{
					Level:       constants.AlertLevel(frame[0]),
					Description: constants.AlertDescription(frame[1]),
				})
			}
		}

		rct, payload, err := rl.ReadRecord()
		if err != nil {
			return 0, nil, err
		}
		if err := rl.handshakeDefrag.Add(rct, payload); err != nil {
			return 0, nil, qerrors.NewProtocolError("record.handshake", qerrors.ErrUnexpectedMessage)
		}
	}
}
