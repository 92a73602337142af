package wsengine

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestComputeAcceptKey(t *testing.T) {
	got, ok := ComputeAcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	if !ok {
		t.Fatal("ComputeAcceptKey failed")
	}
	if want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="; got != want {
		t.Errorf("accept = %q, want %q", got, want)
	}

	again, _ := ComputeAcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	if again != got {
		t.Errorf("not deterministic: %q vs %q", again, got)
	}
}

func TestComputeAcceptKey_TooLong(t *testing.T) {
	if _, ok := ComputeAcceptKey(strings.Repeat("k", maxHandshakeInput)); ok {
		t.Error("implausibly long key accepted")
	}
	if _, ok := ComputeAcceptKey(strings.Repeat("k", maxHandshakeInput-len(uidKey))); !ok {
		t.Error("key filling the scratch space exactly rejected")
	}
}

func TestBuildUpgradeResponse(t *testing.T) {
	want := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n\r\n"

	if got := string(BuildUpgradeResponse("s3pPLMBiTxaQ9kYGzzhZRbK+xOo=")); got != want {
		t.Errorf("response =\n%q\nwant\n%q", got, want)
	}
}

func TestNewChallengeKey(t *testing.T) {
	a, err := newChallengeKey()
	if err != nil {
		t.Fatal(err)
	}
	raw, err := base64.StdEncoding.DecodeString(a)
	if err != nil || len(raw) != 16 {
		t.Fatalf("key %q decodes to %d bytes (%v)", a, len(raw), err)
	}
	b, _ := newChallengeKey()
	if a == b {
		t.Error("two challenge keys are equal")
	}
}
