package config

import (
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WSENGINE_HOST", "127.0.0.1")
	t.Setenv("WSENGINE_PORT", "9001")
	t.Setenv("WSENGINE_WORKERS", "12")
	t.Setenv("WSENGINE_MAX_WEBSOCKETS", "6")
	t.Setenv("WSENGINE_WS_IDLE_TIMEOUT", "45")
	t.Setenv("WSENGINE_WS_TIMER", "250ms")
	t.Setenv("WSENGINE_SILENT_UPGRADE_REJECT", "true")
	t.Setenv("WSENGINE_REUSE_PORT", "1")
	t.Setenv("WSENGINE_LOG_LEVEL", "debug")

	cfg := Default()
	LoadFromEnv(cfg)

	if cfg.Host != "127.0.0.1" || cfg.Port != 9001 {
		t.Errorf("listener = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.Workers != 12 || cfg.MaxWebSockets != 6 {
		t.Errorf("pool = %d/%d", cfg.Workers, cfg.MaxWebSockets)
	}
	if cfg.WSIdleTimeout != 45*time.Second {
		t.Errorf("idle timeout = %v", cfg.WSIdleTimeout)
	}
	if cfg.WSTimerCycle != 250*time.Millisecond {
		t.Errorf("timer = %v", cfg.WSTimerCycle)
	}
	if !cfg.SilentUpgradeReject || !cfg.ReusePort {
		t.Error("boolean overrides not applied")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadFromEnv_IgnoresMalformed(t *testing.T) {
	t.Setenv("WSENGINE_PORT", "eighty")
	t.Setenv("WSENGINE_READ_TIMEOUT", "soon")

	cfg := Default()
	LoadFromEnv(cfg)

	if cfg.Port != DefaultPort {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.ReadTimeout != DefaultReadTimeout {
		t.Errorf("read timeout = %v", cfg.ReadTimeout)
	}
}
