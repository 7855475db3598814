package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("log level = %v", cfg.LogLevel)
	}
	if cfg.MaxSessionDuration != 5*time.Minute {
		t.Errorf("max session duration = %v", cfg.MaxSessionDuration)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("GATEWAY_ADDR", "127.0.0.1:9000")
	t.Setenv("GATEWAY_LOG_LEVEL", "debug")
	t.Setenv("GATEWAY_MAX_SESSION_DURATION", "90s")
	t.Setenv("GATEWAY_PING_INTERVAL", "10s")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.LogLevel)
	}
	if cfg.MaxSessionDuration != 90*time.Second {
		t.Errorf("max session duration = %v", cfg.MaxSessionDuration)
	}
	if cfg.PingInterval != 10*time.Second {
		t.Errorf("ping interval = %v", cfg.PingInterval)
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("GATEWAY_LOG_LEVEL", "shout")
	if _, err := FromEnv(); err == nil {
		t.Error("bad log level accepted")
	}

	t.Setenv("GATEWAY_LOG_LEVEL", "info")
	t.Setenv("GATEWAY_READ_TIMEOUT", "yesterday")
	if _, err := FromEnv(); err == nil {
		t.Error("bad duration accepted")
	}

	t.Setenv("GATEWAY_READ_TIMEOUT", "-5s")
	if _, err := FromEnv(); err == nil {
		t.Error("negative duration accepted")
	}
}
