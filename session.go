package wsengine

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// State is the lifecycle position of a Session.
type State int32

const (
	// StateIdle means no socket is bound and the session can be assigned.
	StateIdle State = iota
	StateHTTP
	StateUpgrading
	StateWebSocket
	StateClosing
)

func (st State) String() string {
	switch st {
	case StateIdle:
		return "Idle"
	case StateHTTP:
		return "HTTP"
	case StateUpgrading:
		return "Upgrading"
	case StateWebSocket:
		return "WebSocket"
	case StateClosing:
		return "Closing"
	default:
		return "Unknown"
	}
}

type upgradeResult int

const (
	upgradeDone upgradeResult = iota
	upgradeSkipped
	upgradeRejected
	upgradeFailed
)

// Session serves one socket at a time: HTTP requests first and, after
// an upgrade, WebSocket frames. Sessions are created once per pool slot
// and reused for every connection assigned to that slot.
type Session struct {
	name  string
	index int
	d     *Dispatcher
	base  *logrus.Entry
	log   *logrus.Entry

	state atomic.Int32
	gate  chan net.Conn

	// mu serializes writes and guards conn, origin and gen.
	mu     sync.Mutex
	conn   net.Conn
	origin string
	gen    uint64

	br      *bufio.Reader
	request Request

	frame   [MaxFrameSize]byte
	skip    uint64
	prevFin bool

	handler  WebSocketHandler
	lastRecv time.Time

	timerCycle atomic.Int64
	closeAfter atomic.Bool
	broken     atomic.Bool
}

func newSession(d *Dispatcher, index int) *Session {
	s := &Session{
		name:  "session-" + strconv.Itoa(index),
		index: index,
		d:     d,
		gate:  make(chan net.Conn, 1),
		br:    bufio.NewReaderSize(nil, d.cfg.ReceiveBufferSize),
	}
	s.base = d.log.WithField("session", s.name)
	s.log = s.base
	s.timerCycle.Store(int64(d.cfg.WSTimerCycle))
	return s
}

// Name returns the session name, "session-<index>".
func (s *Session) Name() string { return s.name }

// Index returns the pool slot of the session.
func (s *Session) Index() int { return s.index }

// Dispatcher returns the dispatcher owning the session.
func (s *Session) Dispatcher() *Dispatcher { return s.d }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// IsIdle reports whether no socket is bound to the session.
func (s *Session) IsIdle() bool { return s.State() == StateIdle }

// IsWebSocket reports whether the session is in WebSocket mode.
func (s *Session) IsWebSocket() bool { return s.State() == StateWebSocket }

// Origin returns the request path the session was upgraded on. It is
// empty outside WebSocket mode.
func (s *Session) Origin() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.origin
}

// Generation identifies the WebSocket connection the session serves. It
// changes every time a WebSocket connection closes.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// RemoteAddr returns the peer address, or nil when idle.
func (s *Session) RemoteAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

// SetWSTimer changes how often OnTimer fires while no frames arrive. It
// applies to the current connection only.
func (s *Session) SetWSTimer(d time.Duration) {
	if d > 0 {
		s.timerCycle.Store(int64(d))
	}
}

// CloseAfterResponse makes the session close the socket once the
// current HTTP handler returns.
func (s *Session) CloseAfterResponse() { s.closeAfter.Store(true) }

// Start binds conn and wakes the session. It returns false when the
// session is not idle.
func (s *Session) Start(conn net.Conn) bool {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateHTTP)) {
		return false
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.gate <- conn
	return true
}

// run parks on the gate until a socket is assigned, serves it, and
// parks again.
func (s *Session) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case conn := <-s.gate:
			s.serve(ctx, conn)
		}
	}
}

// drain closes a socket assigned after run has returned.
func (s *Session) drain() {
	select {
	case conn := <-s.gate:
		conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		s.setState(StateIdle)
	default:
	}
}

// interrupt wakes a blocked read so the session notices shutdown.
func (s *Session) interrupt() {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c != nil {
		c.SetReadDeadline(time.Unix(1, 0))
	}
}

func (s *Session) serve(ctx context.Context, conn net.Conn) {
	s.br.Reset(conn)
	s.closeAfter.Store(false)
	s.broken.Store(false)
	s.timerCycle.Store(int64(s.d.cfg.WSTimerCycle))
	s.log = s.base.WithField("remote", conn.RemoteAddr().String())
	s.log.Debug("session started")

	defer s.release()

	if s.serveHTTP(ctx, conn) {
		s.serveWebSocket(ctx, conn)
	}
}

func (s *Session) release() {
	s.setState(StateClosing)

	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.mu.Unlock()

	if c != nil {
		c.Close()
	}
	s.request.reset()
	s.br.Reset(nil)
	s.log.Debug("session closed")
	s.log = s.base

	s.setState(StateIdle)
	s.d.releaseSlot(s.index)
}

// serveHTTP handles requests until the connection ends or is upgraded.
// It reports whether the session is now in WebSocket mode.
func (s *Session) serveHTTP(ctx context.Context, conn net.Conn) bool {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.d.cfg.ReadTimeout)); err != nil {
			return false
		}
		if ctx.Err() != nil {
			return false
		}

		if err := s.readRequest(); err != nil {
			if err != io.EOF {
				s.log.WithError(err).Debug("reading request")
			}
			return false
		}

		path := s.request.Path()
		s.log.WithFields(logrus.Fields{
			"method": s.request.Method(),
			"path":   path,
		}).Debug("request")

		if key, ok := s.request.websocketKey(); ok {
			if factory := s.d.WSHandler(path); factory != nil {
				switch s.upgrade(key, factory) {
				case upgradeDone:
					return true
				case upgradeSkipped:
					continue
				default:
					return false
				}
			}
		}

		if s.request.req.Header.ConnectionClose() {
			s.closeAfter.Store(true)
		}
		if h := s.d.HTTPHandler(path); h != nil {
			h(&s.request, s)
		} else {
			NewResponse(s).notFound()
		}
		s.d.stats.requestServed()

		if s.closeAfter.Load() || s.broken.Load() {
			return false
		}
	}
}

// readRequest parses the next request into s.request. A request that
// expects 100-continue gets the interim response before its body is read.
func (s *Session) readRequest() error {
	req := &s.request.req
	limit := s.d.cfg.MaxRequestBodySize

	s.request.reset()
	if err := req.ReadLimitBody(s.br, limit); err != nil {
		return err
	}
	if !s.request.wellFormed() {
		return ErrMalformedRequest
	}
	if !req.MayContinue() {
		return nil
	}

	if limit > 0 && req.Header.ContentLength() > limit {
		return fasthttp.ErrBodyTooLarge
	}
	if _, err := s.Send(continueResponse); err != nil {
		return err
	}
	return req.ContinueReadBody(s.br, limit)
}

func (s *Session) upgrade(key string, factory WebSocketHandlerFactory) upgradeResult {
	s.setState(StateUpgrading)

	if !s.d.acquireWebSocket() {
		s.d.stats.upgradeRejected()
		s.setState(StateHTTP)
		s.log.WithField("limit", s.d.cfg.MaxWebSockets).Info("websocket limit reached")
		if s.d.cfg.SilentUpgradeReject {
			return upgradeSkipped
		}
		resp := NewResponse(s)
		resp.SetConnectionClose()
		resp.SendString(fasthttp.StatusServiceUnavailable,
			fasthttp.StatusMessage(fasthttp.StatusServiceUnavailable), "text/plain; charset=utf-8")
		return upgradeRejected
	}

	accept, ok := ComputeAcceptKey(key)
	if !ok {
		s.d.releaseWebSocket()
		s.setState(StateHTTP)
		resp := NewResponse(s)
		resp.SetConnectionClose()
		resp.SendString(fasthttp.StatusBadRequest,
			fasthttp.StatusMessage(fasthttp.StatusBadRequest), "text/plain; charset=utf-8")
		return upgradeFailed
	}

	if _, err := s.Send(BuildUpgradeResponse(accept)); err != nil {
		s.d.releaseWebSocket()
		s.setState(StateHTTP)
		s.log.WithError(err).Warn("sending handshake")
		return upgradeFailed
	}

	origin := s.request.Path()
	s.mu.Lock()
	s.origin = origin
	s.mu.Unlock()

	h := factory()
	s.handler = h
	h.SetOrigin(origin)

	s.prevFin = true
	s.skip = 0
	s.lastRecv = time.Now()
	s.setState(StateWebSocket)
	s.d.stats.upgraded()

	s.log = s.log.WithField("path", origin)
	s.log.WithField("active", s.d.WebSocketCount()).Info("websocket opened")

	h.OnOpen(s)
	return upgradeDone
}

func (s *Session) serveWebSocket(ctx context.Context, conn net.Conn) {
	code := StatusNormalClosure
	defer func() { s.closeWebSocket(code) }()

	idleTimeout := s.d.cfg.WSIdleTimeout
	for {
		wait := time.Duration(s.timerCycle.Load())
		if left := idleTimeout - time.Since(s.lastRecv); left < wait {
			wait = left
		}
		if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
			return
		}
		if ctx.Err() != nil {
			code = StatusGoingAway
			return
		}

		f, err := s.readFrame()
		switch {
		case err == nil, errors.Is(err, ErrPayloadTooLarge), errors.Is(err, ErrReservedBits):
			s.lastRecv = time.Now()
			if s.handleFrame(f, err) {
				return
			}
		case isTimeout(err):
			if ctx.Err() != nil {
				code = StatusGoingAway
				return
			}
			if time.Since(s.lastRecv) >= idleTimeout {
				s.log.WithField("idle", idleTimeout).Info("websocket idle timeout")
				code = StatusGoingAway
				return
			}
			s.handler.OnTimer()
		case err == io.EOF, errors.Is(err, net.ErrClosed):
			return
		default:
			s.log.WithError(err).Debug("reading frame")
			s.handler.OnError(err)
			return
		}

		if s.broken.Load() {
			return
		}
	}
}

// readFrame reads the next frame into the session's frame buffer.
// Frames longer than MaxPayloadSize are consumed header first and their
// payload skipped without buffering.
func (s *Session) readFrame() (Frame, error) {
	if s.skip > 0 {
		if err := s.discardPending(); err != nil {
			return Frame{}, err
		}
	}

	hdr, err := s.br.Peek(2)
	if err != nil {
		return Frame{}, err
	}
	hl, _, _ := FrameLength(hdr)
	if hdr, err = s.br.Peek(hl); err != nil {
		return Frame{}, err
	}
	_, n, _ := FrameLength(hdr)

	if n > MaxPayloadSize {
		f, derr := DecodeFrame(hdr)
		s.br.Discard(hl)
		s.skip = n
		return f, derr
	}

	total := hl + int(n)
	buf, err := s.br.Peek(total)
	if err != nil {
		return Frame{}, err
	}
	m := copy(s.frame[:], buf)
	s.br.Discard(total)

	return DecodeFrame(s.frame[:m])
}

func (s *Session) discardPending() error {
	for s.skip > 0 {
		chunk := s.skip
		if limit := uint64(s.br.Size()); chunk > limit {
			chunk = limit
		}
		n, err := s.br.Discard(int(chunk))
		s.skip -= uint64(n)
		if n > 0 {
			s.lastRecv = time.Now()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// handleFrame applies the inbound frame policy and reports whether the
// peer asked to close.
func (s *Session) handleFrame(f Frame, err error) bool {
	if err != nil {
		s.d.stats.frameDiscarded()
		s.log.WithError(err).WithField("frame", f.String()).Debug("frame discarded")
		return false
	}
	s.d.stats.frameReceived()

	switch f.Opcode {
	case OpPing:
		if err := s.writeFrame(OpPong, f.Payload, true); err != nil {
			s.log.WithError(err).Debug("sending pong")
		}
		return false
	case OpClose:
		s.log.WithField("status", f.Status()).Debug("close requested")
		return true
	case OpPong:
		return false
	}

	if !f.Fin || !s.prevFin {
		s.prevFin = f.Fin
		s.d.stats.frameDiscarded()
		s.log.WithField("frame", f.String()).Debug("fragment discarded")
		return false
	}

	switch f.Opcode {
	case OpText:
		s.handler.OnText(string(f.Payload))
	case OpBinary:
		s.handler.OnBinary(f.Payload)
	default:
		s.d.stats.frameDiscarded()
	}
	return false
}

func (s *Session) closeWebSocket(code StatusCode) {
	s.setState(StateClosing)

	s.mu.Lock()
	s.origin = ""
	s.gen++
	s.mu.Unlock()

	h := s.handler
	s.handler = nil
	if h != nil {
		h.OnClose()
	}

	if err := s.writeFrame(OpClose, closePayload(code), true); err != nil {
		s.log.WithError(err).Debug("sending close")
	}

	s.d.releaseWebSocket()
	s.log.WithFields(logrus.Fields{
		"status": code,
		"active": s.d.WebSocketCount(),
	}).Info("websocket closed")
}

// Send writes p to the socket. A write that times out is retried up to
// the configured number of times; any other failure is returned and the
// session closes after the current handler.
func (s *Session) Send(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(p)
}

// Write implements io.Writer using Send.
func (s *Session) Write(p []byte) (int, error) { return s.Send(p) }

// SendFrame writes one unmasked frame. The session must be in
// WebSocket mode.
func (s *Session) SendFrame(op Opcode, payload []byte, fin bool) error {
	if s.State() != StateWebSocket {
		return ErrNotWebSocket
	}
	return s.writeFrame(op, payload, fin)
}

// SendText sends a complete TEXT message.
func (s *Session) SendText(text string) error {
	return s.SendFrame(OpText, []byte(text), true)
}

// SendBinary sends a complete BINARY message.
func (s *Session) SendBinary(data []byte) error {
	return s.SendFrame(OpBinary, data, true)
}

// SendFrameTo is SendFrame for the WebSocket connection identified by
// gen. It fails with ErrSessionClosed once that connection has closed,
// even when the session already serves another one.
func (s *Session) SendFrameTo(gen uint64, op Opcode, payload []byte, fin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen || s.State() != StateWebSocket {
		return ErrSessionClosed
	}
	return WriteFrame(lockedWriter{s}, op, payload, fin, false)
}

func (s *Session) writeFrame(op Opcode, payload []byte, fin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return WriteFrame(lockedWriter{s}, op, payload, fin, false)
}

// lockedWriter writes through a session whose mu is already held.
type lockedWriter struct{ s *Session }

func (w lockedWriter) Write(p []byte) (int, error) { return w.s.write(p) }

// write requires s.mu.
func (s *Session) write(p []byte) (int, error) {
	if s.conn == nil {
		return 0, ErrSessionClosed
	}

	total, retries := 0, 0
	for len(p) > 0 {
		var deadline time.Time
		if wt := s.d.cfg.WriteTimeout; wt > 0 {
			deadline = time.Now().Add(wt)
		}
		s.conn.SetWriteDeadline(deadline)

		n, err := s.conn.Write(p)
		total += n
		p = p[n:]
		if err == nil {
			continue
		}
		if isTimeout(err) && retries < s.d.cfg.SendRetries {
			retries++
			continue
		}
		s.broken.Store(true)
		s.d.stats.sent(total)
		return total, errors.Wrap(err, "send")
	}
	s.d.stats.sent(total)
	return total, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
