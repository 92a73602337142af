package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Workers != DefaultWorkers || cfg.MaxWebSockets != DefaultMaxWebSockets {
		t.Errorf("pool = %d/%d", cfg.Workers, cfg.MaxWebSockets)
	}
	if cfg.WSIdleTimeout != 20*time.Second {
		t.Errorf("idle timeout = %v", cfg.WSIdleTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"port negative", func(c *Config) { c.Port = -1 }, "port"},
		{"port too large", func(c *Config) { c.Port = 70000 }, "port"},
		{"no workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"negative websockets", func(c *Config) { c.MaxWebSockets = -1 }, "max-websockets"},
		{"zero read timeout", func(c *Config) { c.ReadTimeout = 0 }, "read-timeout"},
		{"negative write timeout", func(c *Config) { c.WriteTimeout = -time.Second }, "write-timeout"},
		{"negative retries", func(c *Config) { c.SendRetries = -1 }, "send-retries"},
		{"zero timer", func(c *Config) { c.WSTimerCycle = 0 }, "ws-timer"},
		{"zero idle timeout", func(c *Config) { c.WSIdleTimeout = 0 }, "ws-idle-timeout"},
		{"small buffer", func(c *Config) { c.ReceiveBufferSize = MinReceiveBufferSize - 1 }, "receive-buffer"},
		{"negative body", func(c *Config) { c.MaxRequestBodySize = -1 }, "max-body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			fe, ok := err.(*FieldError)
			if !ok {
				t.Fatalf("error type = %T", err)
			}
			if fe.Field != tt.field {
				t.Errorf("field = %q, want %q", fe.Field, tt.field)
			}
		})
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "chatty"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error")
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		level   string
		verbose int
		want    logrus.Level
	}{
		{"", 0, logrus.InfoLevel},
		{"warn", 0, logrus.WarnLevel},
		{"info", 1, logrus.DebugLevel},
		{"info", 2, logrus.TraceLevel},
		{"info", 9, logrus.TraceLevel},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.LogLevel = tt.level
		cfg.Verbose = tt.verbose
		got, err := cfg.Level()
		if err != nil {
			t.Fatalf("Level(%q, %d): %v", tt.level, tt.verbose, err)
		}
		if got != tt.want {
			t.Errorf("Level(%q, %d) = %v, want %v", tt.level, tt.verbose, got, tt.want)
		}
	}
}

func TestAddr(t *testing.T) {
	cfg := Default()
	if got := cfg.Addr(); got != ":8080" {
		t.Errorf("Addr() = %q", got)
	}
	cfg.Host = "::1"
	cfg.Port = 9000
	if got := cfg.Addr(); got != "[::1]:9000" {
		t.Errorf("Addr() = %q", got)
	}
}
