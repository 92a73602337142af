package wsengine

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"hash"
	"sync"
)

var uidKey = []byte("258EAFA5-E914-47DA-95CA-C5AB0DC85B11")

// maxHandshakeInput bounds key+GUID, the same 128 byte scratch space an
// accept computation was always given.
const maxHandshakeInput = 128

var shaPool = sync.Pool{
	New: func() interface{} {
		return sha1.New()
	},
}

const upgradeResponsePrefix = "HTTP/1.1 101 Switching Protocols\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Accept: "

// ComputeAcceptKey returns the Sec-WebSocket-Accept value for a client
// key: base64(sha1(key + GUID)). ok is false only when the key is
// implausibly long.
func ComputeAcceptKey(challengeKey string) (string, bool) {
	if len(challengeKey)+len(uidKey) > maxHandshakeInput {
		return "", false
	}

	h := shaPool.Get().(hash.Hash)
	defer shaPool.Put(h)

	h.Reset()
	h.Write([]byte(challengeKey))
	h.Write(uidKey)

	var sum [sha1.Size]byte
	return base64.StdEncoding.EncodeToString(h.Sum(sum[:0])), true
}

// BuildUpgradeResponse returns the complete 101 response for an accept
// value. It must go out as a single write before any frame.
func BuildUpgradeResponse(accept string) []byte {
	b := make([]byte, 0, len(upgradeResponsePrefix)+len(accept)+4)
	b = append(b, upgradeResponsePrefix...)
	b = append(b, accept...)
	return append(b, "\r\n\r\n"...)
}

// newChallengeKey returns a random base64 encoded 16 byte key for the
// client side of the handshake.
func newChallengeKey() (string, error) {
	var p [16]byte
	if _, err := rand.Read(p[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(p[:]), nil
}
