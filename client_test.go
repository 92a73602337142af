package wsengine

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

func TestDial_NotWebSocketEndpoint(t *testing.T) {
	d := startDispatcher(t, nil)
	d.SetHTTPHandler("/", func(_ *Request, s *Session) {
		NewResponse(s).SendString(fasthttp.StatusOK, "plain http", "")
	})

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	_, err := Dial(ctx, "ws://"+d.Addr().String()+"/ws")
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("Dial = %v, want ErrHandshakeFailed", err)
	}
}

func TestDial_WrongAccept(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		buf := make([]byte, 1024)
		c.Read(buf)
		c.Write(BuildUpgradeResponse("bm90IHRoZSByaWdodCBrZXk="))
		time.Sleep(100 * time.Millisecond)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if _, err := Dial(ctx, "ws://"+ln.Addr().String()+"/"); !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("Dial = %v, want ErrHandshakeFailed", err)
	}
}

func TestDial_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if _, err := Dial(ctx, "ws://"+addr+"/"); err == nil {
		t.Fatal("Dial to a closed port succeeded")
	}
}

func TestClient_ReadLimit(t *testing.T) {
	rec := newRecorder()
	d := startDispatcher(t, nil)
	d.SetWSHandler("/ws", rec.factory)

	c := dialWS(t, d, "/ws")
	s := rec.expectOpen(t)
	c.ReadLimit = 16

	if err := s.SendText("this message is longer than sixteen bytes"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ReadFrame(); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("ReadFrame = %v, want ErrFrameTooLarge", err)
	}
}
