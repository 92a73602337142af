package main

import (
	"os"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/Noahnut/wsengine"
)

const indexPage = `<!DOCTYPE html>
<html>
<head><title>wsengine</title></head>
<body>
<h1>wsengine</h1>
<p><a href="/stats">stats</a></p>
<input id="msg" value="hello"> <button onclick="send()">send</button>
<pre id="log"></pre>
<script>
var ws = new WebSocket("ws://" + location.host + "/ws");
function log(s) { document.getElementById("log").textContent += s + "\n"; }
ws.onopen = function () { log("open"); };
ws.onmessage = function (e) { log("< " + e.data); };
ws.onclose = function () { log("closed"); };
function send() { var m = document.getElementById("msg").value; ws.send(m); log("> " + m); }
</script>
</body>
</html>
`

// registerHandlers installs the index page (also the fallback for
// unknown paths), /stats, the /ws echo endpoint and, with staticDir
// set, file serving under /static/.
func registerHandlers(d *wsengine.Dispatcher, staticDir string) {
	d.SetStandardHeader("Server", "wsengine/"+version)

	d.SetHTTPHandler("/", func(req *wsengine.Request, s *wsengine.Session) {
		resp := wsengine.NewResponse(s)
		if req.Path() != "/" {
			resp.SendString(fasthttp.StatusNotFound, fasthttp.StatusMessage(fasthttp.StatusNotFound), "text/plain; charset=utf-8")
			return
		}
		resp.SendString(fasthttp.StatusOK, indexPage, "")
	})

	d.SetHTTPHandler("/stats", func(_ *wsengine.Request, s *wsengine.Session) {
		resp := wsengine.NewResponse(s)
		resp.SetHeader("Cache-Control", "no-store")
		resp.SendContent(fasthttp.StatusOK, d.Stats().JSON(), "application/json")
	})

	if staticDir != "" {
		fsys := os.DirFS(staticDir)
		d.SetHTTPHandler("/static/", func(req *wsengine.Request, s *wsengine.Session) {
			wsengine.NewResponse(s).SendFile(fsys, strings.TrimPrefix(req.Path(), "/static/"))
		})
	}

	d.SetWSHandler("/ws", func() wsengine.WebSocketHandler { return &echoHandler{} })
}

// echoHandler sends every message back to its sender.
type echoHandler struct {
	wsengine.BaseWebSocketHandler
}

func (h *echoHandler) OnText(text string) {
	h.SendText(text)
}

func (h *echoHandler) OnBinary(data []byte) {
	h.SendBinary(data)
}
