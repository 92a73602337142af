package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// Sized for a small host: a handful of worker slots, even fewer
// upgraded sessions, and buffers fixed at startup.

const (
	// DefaultPort is the HTTP listening port.
	DefaultPort = 8080

	// DefaultWorkers is the number of session slots, i.e. the number
	// of sockets served at the same time.
	DefaultWorkers = 5

	// DefaultMaxWebSockets caps upgraded sessions.
	DefaultMaxWebSockets = 4

	// DefaultReadTimeout drops HTTP connections that send nothing.
	DefaultReadTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds one socket write attempt.
	DefaultWriteTimeout = 5 * time.Second

	// DefaultSendRetries is how often a timed out write is retried.
	DefaultSendRetries = 3

	// DefaultWSTimerCycle is the OnTimer period of an idle websocket.
	DefaultWSTimerCycle = 1 * time.Second

	// DefaultWSIdleTimeout closes websockets without inbound traffic.
	DefaultWSIdleTimeout = 20 * time.Second

	// DefaultReceiveBufferSize is the per-session read buffer. A
	// request header must fit into it.
	DefaultReceiveBufferSize = 4 * 1024

	// MinReceiveBufferSize keeps room for the largest accepted frame.
	MinReceiveBufferSize = 256

	// DefaultMaxRequestBodySize limits HTTP request bodies.
	DefaultMaxRequestBodySize = 64 * 1024

	// DefaultLogLevel is the logrus level name used without -v.
	DefaultLogLevel = "info"
)
