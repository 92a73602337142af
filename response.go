package wsengine

import (
	"io"
	"io/fs"
	"mime"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
)

const (
	defaultContentType = "text/html; charset=utf-8"
	fileChunkSize      = 2 * 1024
)

var fileTypes = map[string]string{
	"gif":  "image/gif",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"ico":  "image/x-icon",
	"png":  "image/png",
	"zip":  "application/zip",
	"gz":   "application/gzip",
	"tar":  "application/x-tar",
	"txt":  "text/plain; charset=utf-8",
	"pdf":  "application/pdf",
	"htm":  "text/html; charset=utf-8",
	"html": "text/html; charset=utf-8",
	"css":  "text/css",
	"js":   "text/javascript",
}

// ContentTypeFor picks a Content-Type from the file extension of name.
func ContentTypeFor(name string) string {
	ext := path.Ext(name)
	if ct, ok := fileTypes[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Response builds and sends an HTTP response on a session. The
// dispatcher's standard headers are included.
type Response struct {
	s    *Session
	resp fasthttp.Response
}

// NewResponse starts a response for s.
func NewResponse(s *Session) *Response {
	r := &Response{s: s}
	if s.d != nil {
		s.d.visitStandardHeaders(func(k, v string) {
			r.resp.Header.Set(k, v)
		})
	}
	return r
}

// SetHeader sets an additional response header.
func (r *Response) SetHeader(key, value string) {
	r.resp.Header.Set(key, value)
}

// SetConnectionClose makes the session close the socket once the
// handler returns.
func (r *Response) SetConnectionClose() {
	r.resp.SetConnectionClose()
}

// SendHeader sends the status line and headers only. The caller sets
// Content-Length and sends the body itself.
func (r *Response) SendHeader(status int) error {
	r.resp.SetStatusCode(status)
	if r.resp.ConnectionClose() {
		r.s.CloseAfterResponse()
	}
	_, err := r.s.Send(r.resp.Header.Header())
	return err
}

// SendContent sends a complete response with body in one write. An
// empty contentType means HTML.
func (r *Response) SendContent(status int, content []byte, contentType string) error {
	if contentType == "" {
		contentType = defaultContentType
	}
	r.resp.SetStatusCode(status)
	r.resp.Header.SetContentType(contentType)
	r.resp.Header.SetContentLength(len(content))
	if r.resp.ConnectionClose() {
		r.s.CloseAfterResponse()
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	bb.B = append(bb.B, r.resp.Header.Header()...)
	bb.B = append(bb.B, content...)
	_, err := r.s.Send(bb.B)
	return err
}

// SendString is SendContent for string bodies.
func (r *Response) SendString(status int, content, contentType string) error {
	return r.SendContent(status, []byte(content), contentType)
}

// SendFile streams name from fsys, or answers 404 when it cannot be
// opened.
func (r *Response) SendFile(fsys fs.FS, name string) error {
	name = path.Clean(strings.TrimPrefix(name, "/"))
	if name == "" || name == "." {
		name = "index.html"
	}

	f, err := fsys.Open(name)
	if err != nil {
		return r.notFound()
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil || st.IsDir() {
		return r.notFound()
	}

	r.resp.Header.SetContentType(ContentTypeFor(name))
	r.resp.Header.SetContentLength(int(st.Size()))
	if err := r.SendHeader(fasthttp.StatusOK); err != nil {
		return err
	}

	r.s.log.WithField("file", name).WithField("size", st.Size()).Debug("sending file")

	var chunk [fileChunkSize]byte
	for {
		n, err := f.Read(chunk[:])
		if n > 0 {
			if _, werr := r.s.Send(chunk[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			// the body is cut short, the peer cannot resync
			r.s.CloseAfterResponse()
			return errors.Wrapf(err, "read %s", name)
		}
	}
}

func (r *Response) notFound() error {
	return r.SendString(fasthttp.StatusNotFound, fasthttp.StatusMessage(fasthttp.StatusNotFound), "text/plain; charset=utf-8")
}
