package wsengine

// HTTPHandler serves one parsed request. It writes its own response
// through the session (Send, or a Response built on it).
type HTTPHandler func(req *Request, s *Session)

// WebSocketHandler receives the events of one upgraded session. A new
// instance is created per upgrade and dropped when the session closes.
// The engine never calls these concurrently for the same session.
type WebSocketHandler interface {
	OnOpen(s *Session)
	OnClose()
	// OnText receives the payload of a TEXT frame.
	OnText(text string)
	// OnBinary receives the payload of a BINARY frame. data is only
	// valid until OnBinary returns.
	OnBinary(data []byte)
	// OnTimer is called after every timer cycle without inbound traffic.
	OnTimer()
	OnError(err error)
	// SetOrigin receives the request path the session was upgraded on.
	SetOrigin(path string)
}

// WebSocketHandlerFactory creates the handler for a new upgrade.
type WebSocketHandlerFactory func() WebSocketHandler

// BaseWebSocketHandler implements every WebSocketHandler method as a
// no-op and remembers the session given to OnOpen. Embed it and
// override what you need; an override of OnOpen must call it.
type BaseWebSocketHandler struct {
	Session *Session
	gen     uint64
}

func (h *BaseWebSocketHandler) OnOpen(s *Session) {
	h.Session = s
	h.gen = s.Generation()
}

// SendFrame writes a frame to the connection this handler was opened
// for. After that connection closes it returns ErrSessionClosed, also
// when the session has since been given to another peer.
func (h *BaseWebSocketHandler) SendFrame(op Opcode, payload []byte, fin bool) error {
	if h.Session == nil {
		return ErrSessionClosed
	}
	return h.Session.SendFrameTo(h.gen, op, payload, fin)
}

// SendText sends a complete TEXT message, see SendFrame.
func (h *BaseWebSocketHandler) SendText(text string) error {
	return h.SendFrame(OpText, []byte(text), true)
}

// SendBinary sends a complete BINARY message, see SendFrame.
func (h *BaseWebSocketHandler) SendBinary(data []byte) error {
	return h.SendFrame(OpBinary, data, true)
}
func (h *BaseWebSocketHandler) OnClose() {}
func (h *BaseWebSocketHandler) OnText(string) {}
func (h *BaseWebSocketHandler) OnBinary([]byte) {}
func (h *BaseWebSocketHandler) OnTimer() {}
func (h *BaseWebSocketHandler) OnError(error) {}
func (h *BaseWebSocketHandler) SetOrigin(string) {}
