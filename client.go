package wsengine

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

// Client is the client side of a WebSocket connection. Outbound frames
// are masked with a fresh key each; inbound frames may use extended
// lengths up to ReadLimit.
type Client struct {
	c  net.Conn
	br *bufio.Reader

	// ReadLimit caps inbound payloads, 0 means no limit.
	ReadLimit uint64
}

// DefaultClientReadLimit is the ReadLimit of a dialed Client.
const DefaultClientReadLimit = 1 << 20

// Dial connects to a ws:// or http:// URL and performs the opening
// handshake. The deadline of ctx, if any, bounds the whole handshake.
func Dial(ctx context.Context, url string) (*Client, error) {
	uri := fasthttp.AcquireURI()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseURI(uri)
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	if err := uri.Parse(nil, []byte(url)); err != nil {
		return nil, errors.Wrapf(err, "parse %q", url)
	}
	uri.SetScheme("http")

	addr := string(uri.Host())
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "80")
	}

	var dialer net.Dialer
	c, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	if deadline, ok := ctx.Deadline(); ok {
		c.SetDeadline(deadline)
	}

	key, err := newChallengeKey()
	if err != nil {
		c.Close()
		return nil, errors.Wrap(err, "challenge key")
	}

	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetBytesKV(connectionString, upgradeString)
	req.Header.SetBytesKV(upgradeString, webSocketString)
	req.Header.SetBytesKV(websocketVersionString, websocketAcceptVersion)
	req.Header.SetBytesV(string(websocketKeyString), []byte(key))
	req.SetRequestURIBytes(uri.RequestURI())
	req.Header.SetHostBytes(uri.Host())

	bw := bufio.NewWriter(c)
	if err := req.Write(bw); err == nil {
		err = bw.Flush()
	}
	if err != nil {
		c.Close()
		return nil, errors.Wrap(err, "send handshake")
	}

	br := bufio.NewReader(c)
	resp.SkipBody = true
	if err := resp.Read(br); err != nil {
		c.Close()
		return nil, errors.Wrap(err, "read handshake")
	}

	want, _ := ComputeAcceptKey(key)
	if resp.StatusCode() != fasthttp.StatusSwitchingProtocols ||
		string(resp.Header.PeekBytes(websocketAcceptString)) != want {
		c.Close()
		return nil, errors.Wrapf(ErrHandshakeFailed, "status %d", resp.StatusCode())
	}

	c.SetDeadline(time.Time{})
	return &Client{c: c, br: br, ReadLimit: DefaultClientReadLimit}, nil
}

// WriteFrame sends one masked frame.
func (c *Client) WriteFrame(op Opcode, payload []byte, fin bool) error {
	return WriteFrame(c.c, op, payload, fin, true)
}

// WriteText sends a complete TEXT message.
func (c *Client) WriteText(text string) error {
	return c.WriteFrame(OpText, []byte(text), true)
}

// WriteBinary sends a complete BINARY message.
func (c *Client) WriteBinary(data []byte) error {
	return c.WriteFrame(OpBinary, data, true)
}

// Ping sends a PING carrying payload.
func (c *Client) Ping(payload []byte) error {
	return c.WriteFrame(OpPing, payload, true)
}

// ReadFrame reads the next frame, control frames included.
func (c *Client) ReadFrame() (Frame, error) {
	return ReadFrame(c.br, c.ReadLimit)
}

// SetReadDeadline sets the deadline for ReadFrame.
func (c *Client) SetReadDeadline(t time.Time) error {
	return c.c.SetReadDeadline(t)
}

// LocalAddr returns the local socket address.
func (c *Client) LocalAddr() net.Addr { return c.c.LocalAddr() }

// Close sends a CLOSE with code, waits for the peer's CLOSE and closes
// the socket. It returns the status the peer answered with.
func (c *Client) Close(code StatusCode) (StatusCode, error) {
	defer c.c.Close()

	if err := c.WriteFrame(OpClose, closePayload(code), true); err != nil {
		return StatusAbnormalClosure, err
	}
	for {
		f, err := c.ReadFrame()
		if err != nil {
			return StatusAbnormalClosure, err
		}
		if f.Opcode == OpClose {
			return f.Status(), nil
		}
	}
}

// CloseNow closes the socket without a closing handshake.
func (c *Client) CloseNow() error { return c.c.Close() }
