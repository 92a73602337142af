package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Noahnut/wsengine"
	"github.com/Noahnut/wsengine/config"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := output
	output = &buf
	t.Cleanup(func() { output = prev })
	return &buf
}

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	buf := captureOutput(t)
	if err := Execute(context.Background(), []string{"--version"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "wsengine "+version) {
		t.Errorf("version output = %q", buf.String())
	}
}

// TestExecute_Help verifies --help prints usage without error.
func TestExecute_Help(t *testing.T) {
	buf := captureOutput(t)
	if err := Execute(context.Background(), []string{"--help"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "--max-websockets") {
		t.Errorf("usage does not list flags: %q", buf.String())
	}
}

// TestExecute_DryRun verifies --dry-run validates and exits cleanly.
func TestExecute_DryRun(t *testing.T) {
	buf := captureOutput(t)
	err := Execute(context.Background(), []string{
		"-p", "9090", "-w", "8", "--max-websockets", "2", "--dry-run",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{":9090", "workers         8", "websockets      2"} {
		if !strings.Contains(out, want) {
			t.Errorf("dry-run output missing %q:\n%s", want, out)
		}
	}
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	captureOutput(t)
	tests := [][]string{
		{"--workers", "0", "--dry-run"},
		{"--receive-buffer", "16", "--dry-run"},
		{"--log-level", "loud", "--dry-run"},
		{"--static", "/nonexistent/wsengine", "--dry-run"},
	}
	for _, args := range tests {
		t.Run(args[0], func(t *testing.T) {
			if err := Execute(context.Background(), args); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

// TestExecute_EnvOverride verifies WSENGINE_* variables feed the flag defaults.
func TestExecute_EnvOverride(t *testing.T) {
	buf := captureOutput(t)
	t.Setenv("WSENGINE_WORKERS", "11")
	if err := Execute(context.Background(), []string{"--dry-run"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "workers         11") {
		t.Errorf("env override not applied:\n%s", buf.String())
	}

	buf.Reset()
	if err := Execute(context.Background(), []string{"-w", "3", "--dry-run"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "workers         3") {
		t.Errorf("flag should win over env:\n%s", buf.String())
	}
}

// TestExecute_InvalidFlags verifies unknown flags and stray arguments fail.
func TestExecute_InvalidFlags(t *testing.T) {
	captureOutput(t)
	if err := Execute(context.Background(), []string{"--nonexistent-flag"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if err := Execute(context.Background(), []string{"serve"}); err == nil {
		t.Fatal("expected error for positional argument")
	}
}

// TestExecute_ServeUntilCancelled verifies the server stops with its context.
func TestExecute_ServeUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- Execute(ctx, []string{"-H", "127.0.0.1", "-p", "0", "--log-level", "error"}) }()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
}

func startTestDispatcher(t *testing.T) *wsengine.Dispatcher {
	t.Helper()

	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	d, err := wsengine.NewDispatcher(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	registerHandlers(d, "")
	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestEchoHandler(t *testing.T) {
	d := startTestDispatcher(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := wsengine.Dial(ctx, "ws://"+d.Addr().String()+"/ws")
	if err != nil {
		t.Fatal(err)
	}
	c.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := c.WriteText("hello"); err != nil {
		t.Fatal(err)
	}
	f, err := c.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if f.Opcode != wsengine.OpText || string(f.Payload) != "hello" {
		t.Errorf("echo = %v %q", f.Opcode, f.Payload)
	}

	if err := c.WriteBinary([]byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	f, err = c.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if f.Opcode != wsengine.OpBinary || !bytes.Equal(f.Payload, []byte{1, 2, 3}) {
		t.Errorf("echo = %v %v", f.Opcode, f.Payload)
	}

	status, err := c.Close(wsengine.StatusNormalClosure)
	if err != nil {
		t.Fatal(err)
	}
	if status != wsengine.StatusNormalClosure {
		t.Errorf("close status = %v", status)
	}
}
