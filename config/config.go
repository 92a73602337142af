// Package config holds the settings of a wsengine dispatcher and the
// helpers to load and check them.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config holds every tuneable of a dispatcher. Values are read once at
// start; there is no runtime reconfiguration.
type Config struct {
	// ── Listener ─────────────────────────────────────────────────────
	Host      string
	Port      int
	ReusePort bool // SO_REUSEPORT on the listening socket

	// ── Pool ─────────────────────────────────────────────────────────
	Workers       int // session slots
	MaxWebSockets int // concurrent upgraded sessions

	// ── Timeouts ─────────────────────────────────────────────────────
	ReadTimeout   time.Duration // per HTTP request read
	WriteTimeout  time.Duration // per write attempt
	SendRetries   int           // retries after a write timeout
	WSTimerCycle  time.Duration // OnTimer period
	WSIdleTimeout time.Duration // websocket watchdog

	// ── Buffers ──────────────────────────────────────────────────────
	ReceiveBufferSize  int
	MaxRequestBodySize int // 0 means unlimited

	// ── Behaviour ────────────────────────────────────────────────────

	// SilentUpgradeReject skips an upgrade over the websocket limit
	// without answering, instead of replying 503.
	SilentUpgradeReject bool

	// ── Output ───────────────────────────────────────────────────────
	LogLevel string
	Verbose  int
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		Port:               DefaultPort,
		Workers:            DefaultWorkers,
		MaxWebSockets:      DefaultMaxWebSockets,
		ReadTimeout:        DefaultReadTimeout,
		WriteTimeout:       DefaultWriteTimeout,
		SendRetries:        DefaultSendRetries,
		WSTimerCycle:       DefaultWSTimerCycle,
		WSIdleTimeout:      DefaultWSIdleTimeout,
		ReceiveBufferSize:  DefaultReceiveBufferSize,
		MaxRequestBodySize: DefaultMaxRequestBodySize,
		LogLevel:           DefaultLogLevel,
	}
}

// Addr returns the listen address, "host:port".
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Level resolves the logrus level. Each -v raises it one step above
// LogLevel.
func (c *Config) Level() (logrus.Level, error) {
	name := c.LogLevel
	if name == "" {
		name = DefaultLogLevel
	}
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return lvl, &FieldError{Field: "log-level", Value: c.LogLevel, Message: err.Error()}
	}
	lvl += logrus.Level(c.Verbose)
	if lvl > logrus.TraceLevel {
		lvl = logrus.TraceLevel
	}
	return lvl, nil
}

// ── Validation ───────────────────────────────────────────────────────

// FieldError reports one invalid setting.
type FieldError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: --%s=%v: %s", e.Field, e.Value, e.Message)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return &FieldError{Field: "port", Value: c.Port, Message: "out of range 0-65535"}
	}
	if c.Workers < 1 {
		return &FieldError{Field: "workers", Value: c.Workers, Message: "at least one worker is required"}
	}
	if c.MaxWebSockets < 0 {
		return &FieldError{Field: "max-websockets", Value: c.MaxWebSockets, Message: "must not be negative"}
	}
	if c.ReadTimeout <= 0 {
		return &FieldError{Field: "read-timeout", Value: c.ReadTimeout, Message: "must be positive"}
	}
	if c.WriteTimeout < 0 {
		return &FieldError{Field: "write-timeout", Value: c.WriteTimeout, Message: "must not be negative"}
	}
	if c.SendRetries < 0 {
		return &FieldError{Field: "send-retries", Value: c.SendRetries, Message: "must not be negative"}
	}
	if c.WSTimerCycle <= 0 {
		return &FieldError{Field: "ws-timer", Value: c.WSTimerCycle, Message: "must be positive"}
	}
	if c.WSIdleTimeout <= 0 {
		return &FieldError{Field: "ws-idle-timeout", Value: c.WSIdleTimeout, Message: "must be positive"}
	}
	if c.ReceiveBufferSize < MinReceiveBufferSize {
		return &FieldError{
			Field:   "receive-buffer",
			Value:   c.ReceiveBufferSize,
			Message: fmt.Sprintf("must be at least %d bytes", MinReceiveBufferSize),
		}
	}
	if c.MaxRequestBodySize < 0 {
		return &FieldError{Field: "max-body", Value: c.MaxRequestBodySize, Message: "must not be negative"}
	}
	if _, err := c.Level(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
