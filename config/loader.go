package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/wsengine)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFromEnv overlays WSENGINE_* environment variables onto cfg. Only
// set, well-formed values override. Call it before flag parsing so
// flags win.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("WSENGINE_HOST"); v != "" {
		cfg.Host = v
	}
	if v, ok := envInt("WSENGINE_PORT"); ok {
		cfg.Port = v
	}
	if envBool("WSENGINE_REUSE_PORT") {
		cfg.ReusePort = true
	}

	if v, ok := envInt("WSENGINE_WORKERS"); ok {
		cfg.Workers = v
	}
	if v, ok := envInt("WSENGINE_MAX_WEBSOCKETS"); ok {
		cfg.MaxWebSockets = v
	}

	if v, ok := envDuration("WSENGINE_READ_TIMEOUT"); ok {
		cfg.ReadTimeout = v
	}
	if v, ok := envDuration("WSENGINE_WRITE_TIMEOUT"); ok {
		cfg.WriteTimeout = v
	}
	if v, ok := envInt("WSENGINE_SEND_RETRIES"); ok {
		cfg.SendRetries = v
	}
	if v, ok := envDuration("WSENGINE_WS_TIMER"); ok {
		cfg.WSTimerCycle = v
	}
	if v, ok := envDuration("WSENGINE_WS_IDLE_TIMEOUT"); ok {
		cfg.WSIdleTimeout = v
	}

	if v, ok := envInt("WSENGINE_RECEIVE_BUFFER"); ok {
		cfg.ReceiveBufferSize = v
	}
	if v, ok := envInt("WSENGINE_MAX_BODY"); ok {
		cfg.MaxRequestBodySize = v
	}
	if envBool("WSENGINE_SILENT_UPGRADE_REJECT") {
		cfg.SilentUpgradeReject = true
	}

	if v := os.Getenv("WSENGINE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

// envDuration accepts Go durations ("1500ms") or plain seconds ("20").
func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}
