package wsengine

import "github.com/pkg/errors"

var (
	// ErrPayloadTooLarge is returned by DecodeFrame for frames using the
	// 16 or 64 bit extended length. The frame is discarded, the
	// connection stays open.
	ErrPayloadTooLarge = errors.New("wsengine: extended payload length not supported")

	// ErrReservedBits is returned by DecodeFrame when any RSV bit is set.
	ErrReservedBits = errors.New("wsengine: reserved bits set")

	// ErrShortFrame means the buffer ends before the frame does.
	ErrShortFrame = errors.New("wsengine: short frame")

	// ErrFrameTooLarge is returned by ReadFrame when a frame exceeds the
	// caller's limit.
	ErrFrameTooLarge = errors.New("wsengine: frame exceeds read limit")

	// ErrMalformedRequest means the parsed request line is not an
	// HTTP/1.x request line. The connection is closed.
	ErrMalformedRequest = errors.New("wsengine: malformed request line")

	ErrNotWebSocket      = errors.New("wsengine: session is not in websocket mode")
	ErrSessionClosed     = errors.New("wsengine: session has no open socket")
	ErrHandshakeFailed   = errors.New("wsengine: websocket handshake failed")
	ErrDispatcherStarted = errors.New("wsengine: dispatcher already started")
)
