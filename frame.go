package wsengine

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
)

const (
	finBit  = byte(1 << 7)
	rsv1    = byte(1 << 6)
	rsv2    = byte(1 << 5)
	rsv3    = byte(1 << 4)
	maskBit = byte(1 << 7)

	rsvBits = rsv1 | rsv2 | rsv3
)

const (
	// MaxHeaderSize is the longest possible frame header: two fixed
	// bytes, a 64 bit extended length and a mask key.
	MaxHeaderSize = 14

	// MaxPayloadSize is the largest payload accepted by the inbound
	// decoder. Anything needing an extended length is discarded.
	MaxPayloadSize = 125

	// MaxFrameSize is the capacity of a session's frame buffer.
	MaxFrameSize = MaxHeaderSize + MaxPayloadSize

	// payloads shorter than this go out as a single write
	singleWriteLimit = 1400
)

// Frame is a decoded frame header plus a view of its payload.
type Frame struct {
	Fin        bool
	Opcode     Opcode
	Masked     bool
	PayloadLen uint64
	MaskKey    [4]byte
	Payload    []byte
}

func (f Frame) String() string {
	return fmt.Sprintf("fin: %v, opcode: %v, masked: %v, payloadLen: %d", f.Fin, f.Opcode, f.Masked, f.PayloadLen)
}

// Status returns the close code carried by a CLOSE frame, or
// StatusNoStatusReceived when the payload is too short to hold one.
func (f Frame) Status() StatusCode {
	if len(f.Payload) < 2 {
		return StatusNoStatusReceived
	}
	return StatusCode(binary.BigEndian.Uint16(f.Payload))
}

// HeaderSize returns the number of header bytes EncodeHeader writes for
// a payload of the given length.
func HeaderSize(length int, masked bool) int {
	n := 2
	switch {
	case length >= 65536:
		n = 10
	case length >= 126:
		n = 4
	}
	if masked {
		n += 4
	}
	return n
}

// EncodeHeader writes a frame header into dst and returns its size.
// dst must hold at least HeaderSize(length, useMask) bytes. The mask key
// is only written, the payload is left to the caller.
func EncodeHeader(dst []byte, op Opcode, length int, fin, useMask bool, key [4]byte) int {
	n := HeaderSize(length, useMask)
	_ = dst[n-1]

	dst[0] = byte(op) & 0x0F
	if fin {
		dst[0] |= finBit
	}

	dst[1] = 0
	if useMask {
		dst[1] = maskBit
	}

	off := 2
	switch {
	case length < 126:
		dst[1] |= byte(length)
	case length < 65536:
		dst[1] |= 126
		binary.BigEndian.PutUint16(dst[2:], uint16(length))
		off = 4
	default:
		dst[1] |= 127
		binary.BigEndian.PutUint64(dst[2:], uint64(length))
		off = 10
	}

	if useMask {
		copy(dst[off:], key[:])
	}
	return n
}

// MaskBytes XORs b in place with key. Applying it twice restores b.
func MaskBytes(key [4]byte, b []byte) {
	for i := range b {
		b[i] ^= key[i&3]
	}
}

// FrameLength inspects the start of a frame and reports the header size
// and the payload length. ok is false when hdr is too short; headerLen
// is still set once the second byte is available so the caller knows
// how much more to read.
func FrameLength(hdr []byte) (headerLen int, payloadLen uint64, ok bool) {
	if len(hdr) < 2 {
		return 0, 0, false
	}

	l := hdr[1] & 0x7F
	headerLen = 2
	switch l {
	case 126:
		headerLen += 2
	case 127:
		headerLen += 8
	}
	if hdr[1]&maskBit != 0 {
		headerLen += 4
	}
	if len(hdr) < headerLen {
		return headerLen, 0, false
	}

	switch l {
	case 126:
		payloadLen = uint64(binary.BigEndian.Uint16(hdr[2:]))
	case 127:
		payloadLen = binary.BigEndian.Uint64(hdr[2:])
	default:
		payloadLen = uint64(l)
	}
	return headerLen, payloadLen, true
}

// DecodeFrame decodes one complete frame held in buf. A masked payload
// is unmasked in place, so buf must not be decoded twice.
//
// Frames with an extended length are rejected with ErrPayloadTooLarge;
// the returned Frame still carries fin, opcode and length so callers can
// keep their fragmentation state in step. buf may then hold only the
// header.
func DecodeFrame(buf []byte) (Frame, error) {
	var f Frame
	if len(buf) < 2 {
		return f, ErrShortFrame
	}

	f.Fin = buf[0]&finBit != 0
	f.Opcode = Opcode(buf[0] & 0x0F)
	f.Masked = buf[1]&maskBit != 0

	l := buf[1] & 0x7F
	f.PayloadLen = uint64(l)
	if l > MaxPayloadSize {
		if _, n, ok := FrameLength(buf); ok {
			f.PayloadLen = n
		}
		return f, ErrPayloadTooLarge
	}

	if buf[0]&rsvBits != 0 {
		return f, ErrReservedBits
	}

	off := 2
	if f.Masked {
		if len(buf) < off+4 {
			return f, ErrShortFrame
		}
		copy(f.MaskKey[:], buf[off:off+4])
		off += 4
	}

	end := off + int(l)
	if len(buf) < end {
		return f, ErrShortFrame
	}
	f.Payload = buf[off:end:end]

	if f.Masked {
		MaskBytes(f.MaskKey, f.Payload)
	}
	return f, nil
}

// AppendFrame appends a complete frame to dst. When mask is set the
// copied payload is masked with key; payload itself is not modified.
func AppendFrame(dst []byte, op Opcode, payload []byte, fin, mask bool, key [4]byte) []byte {
	var hdr [MaxHeaderSize]byte
	n := EncodeHeader(hdr[:], op, len(payload), fin, mask, key)

	dst = append(dst, hdr[:n]...)
	start := len(dst)
	dst = append(dst, payload...)
	if mask {
		MaskBytes(key, dst[start:])
	}
	return dst
}

// WriteFrame encodes and writes one frame to w. Server frames are never
// masked. With asClient set the frame gets a fresh random mask key, as
// required for the client role.
//
// Small payloads and all client frames are assembled in a pooled buffer
// and written at once; larger server payloads are written as header and
// payload. Both produce the same bytes on the wire.
func WriteFrame(w io.Writer, op Opcode, payload []byte, fin, asClient bool) error {
	if asClient {
		var key [4]byte
		binary.BigEndian.PutUint32(key[:], rand.Uint32())
		return writeFrameSingle(w, op, payload, fin, true, key)
	}
	if len(payload) > 0 && len(payload) < singleWriteLimit {
		return writeFrameSingle(w, op, payload, fin, false, [4]byte{})
	}
	return writeFrameSplit(w, op, payload, fin)
}

func writeFrameSingle(w io.Writer, op Opcode, payload []byte, fin, mask bool, key [4]byte) error {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	bb.B = AppendFrame(bb.B[:0], op, payload, fin, mask, key)
	if _, err := w.Write(bb.B); err != nil {
		return errors.Wrap(err, "write frame")
	}
	return nil
}

func writeFrameSplit(w io.Writer, op Opcode, payload []byte, fin bool) error {
	var hdr [MaxHeaderSize]byte
	n := EncodeHeader(hdr[:], op, len(payload), fin, false, [4]byte{})

	if _, err := w.Write(hdr[:n]); err != nil {
		return errors.Wrap(err, "write frame header")
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return errors.Wrap(err, "write frame payload")
		}
	}
	return nil
}

// ReadFrame reads one frame from r, extended lengths included. It is the
// client side counterpart of DecodeFrame. A limit of 0 disables the
// payload size check.
func ReadFrame(r io.Reader, limit uint64) (Frame, error) {
	var f Frame
	var hdr [MaxHeaderSize]byte

	if _, err := io.ReadFull(r, hdr[:2]); err != nil {
		return f, err
	}
	hl, _, _ := FrameLength(hdr[:2])
	if hl > 2 {
		if _, err := io.ReadFull(r, hdr[2:hl]); err != nil {
			return f, err
		}
	}
	_, n, _ := FrameLength(hdr[:hl])

	f.Fin = hdr[0]&finBit != 0
	f.Opcode = Opcode(hdr[0] & 0x0F)
	f.Masked = hdr[1]&maskBit != 0
	f.PayloadLen = n

	if hdr[0]&rsvBits != 0 {
		return f, ErrReservedBits
	}
	if limit > 0 && n > limit {
		return f, ErrFrameTooLarge
	}
	if f.Masked {
		copy(f.MaskKey[:], hdr[hl-4:hl])
	}

	f.Payload = make([]byte, n)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return f, err
	}
	if f.Masked {
		MaskBytes(f.MaskKey, f.Payload)
	}
	return f, nil
}

// closePayload builds the payload of a CLOSE frame.
func closePayload(code StatusCode) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(code))
	return b
}
