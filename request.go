package wsengine

import (
	"bytes"
	"strings"

	"github.com/valyala/fasthttp"
)

// Request is the parsed HTTP request handed to an HTTPHandler. It is
// owned by the session and reused for the next request, so handlers
// must copy anything they keep.
type Request struct {
	req fasthttp.Request
}

func (r *Request) reset() { r.req.Reset() }

// Method returns the request method, e.g. "GET".
func (r *Request) Method() string { return string(r.req.Header.Method()) }

// URL returns the raw request URI including the query string.
func (r *Request) URL() string { return string(r.req.RequestURI()) }

// Path returns the decoded path without the query string.
func (r *Request) Path() string { return string(r.req.URI().Path()) }

// Filename returns the last path segment, e.g. "index.html" for
// "/site/index.html?x=1".
func (r *Request) Filename() string {
	p := r.req.URI().Path()
	if i := bytes.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	return string(p)
}

// Query returns the query string including the leading '?', or "".
func (r *Request) Query() string {
	uri := r.URL()
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		return uri[i:]
	}
	return ""
}

// Header returns the value of the named header, or "".
func (r *Request) Header(name string) string { return string(r.req.Header.Peek(name)) }

// Headers returns a copy of all request headers.
func (r *Request) Headers() map[string]string {
	m := make(map[string]string)
	r.req.Header.VisitAll(func(k, v []byte) {
		m[string(k)] = string(v)
	})
	return m
}

// Body returns the request body. It is only valid inside the handler.
func (r *Request) Body() []byte { return r.req.Body() }

// IsUpgrade reports whether the request asked for a protocol switch.
func (r *Request) IsUpgrade() bool { return r.req.Header.ConnectionUpgrade() }

// Raw exposes the underlying fasthttp request.
func (r *Request) Raw() *fasthttp.Request { return &r.req }

// websocketKey returns the client key when r is a WebSocket upgrade
// request: an upgrade flag, "Upgrade: websocket" and a non-empty
// Sec-WebSocket-Key.
func (r *Request) websocketKey() (string, bool) {
	if !r.req.Header.ConnectionUpgrade() {
		return "", false
	}
	if !bytes.EqualFold(r.req.Header.PeekBytes(upgradeString), webSocketString) {
		return "", false
	}
	key := r.req.Header.PeekBytes(websocketKeyString)
	if len(key) == 0 {
		return "", false
	}
	return string(key), true
}

// wellFormed reports whether the request line is an HTTP/1.x line with a
// token method. The parser accepts anything split by spaces.
func (r *Request) wellFormed() bool {
	proto := r.req.Header.Protocol()
	if !bytes.Equal(proto, http11String) && !bytes.Equal(proto, http10String) {
		return false
	}
	method := r.req.Header.Method()
	if len(method) == 0 {
		return false
	}
	for _, c := range method {
		if !isTokenChar(c) {
			return false
		}
	}
	return true
}

func isTokenChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}
