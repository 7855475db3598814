// Package config loads gateway settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds everything the gateway process needs to start.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string

	// LogLevel is one of debug, info, warn, error.
	LogLevel slog.Level

	// PingInterval and WriteTimeout tune websocket keepalive and writes.
	PingInterval time.Duration
	WriteTimeout time.Duration

	// ReadTimeout bounds how long a connection may sit idle.
	ReadTimeout time.Duration

	// MaxSessionDuration caps the deadline a client may request.
	MaxSessionDuration time.Duration

	// ShutdownTimeout bounds graceful shutdown on SIGTERM.
	ShutdownTimeout time.Duration
}

// FromEnv reads the configuration, applying defaults for anything unset.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:               envOr("GATEWAY_ADDR", ":8080"),
		LogLevel:           slog.LevelInfo,
		PingInterval:       20 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReadTimeout:        5 * time.Minute,
		MaxSessionDuration: 5 * time.Minute,
		ShutdownTimeout:    10 * time.Second,
	}

	switch strings.ToLower(envOr("GATEWAY_LOG_LEVEL", "info")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return cfg, fmt.Errorf("invalid GATEWAY_LOG_LEVEL %q", os.Getenv("GATEWAY_LOG_LEVEL"))
	}

	for _, d := range []struct {
		name string
		dst  *time.Duration
	}{
		{"GATEWAY_PING_INTERVAL", &cfg.PingInterval},
		{"GATEWAY_WRITE_TIMEOUT", &cfg.WriteTimeout},
		{"GATEWAY_READ_TIMEOUT", &cfg.ReadTimeout},
		{"GATEWAY_MAX_SESSION_DURATION", &cfg.MaxSessionDuration},
		{"GATEWAY_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
	} {
		raw := os.Getenv(d.name)
		if raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return cfg, fmt.Errorf("invalid %s %q", d.name, raw)
		}
		*d.dst = parsed
	}

	return cfg, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
