// Package config loads bridge configuration from the environment with an
// optional .env convenience file. Priority: ENV vars > .env file > defaults.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every tunable of the broker and the stdio adapter.
type Config struct {
	// Broker endpoint. Loopback only; multi-host deployment is out of scope.
	Host string `env:"BRIDGE_HOST" envDefault:"127.0.0.1"`
	Port int    `env:"BRIDGE_PORT" envDefault:"3055"`

	// Deprecated SSE endpoint watched by the migration sniffer.
	SSEPort       int           `env:"BRIDGE_SSE_PORT" envDefault:"3056"`
	SnifferWindow time.Duration `env:"BRIDGE_SNIFFER_WINDOW" envDefault:"60s"`

	// Request lifecycle.
	RequestTimeout    time.Duration `env:"BRIDGE_REQUEST_TIMEOUT" envDefault:"30s"`
	ProgressExtension time.Duration `env:"BRIDGE_PROGRESS_EXTENSION" envDefault:"60s"`
	StuckAfter        time.Duration `env:"BRIDGE_STUCK_AFTER" envDefault:"5m"`

	// Per-connection transport limits.
	SendQueueSize int           `env:"BRIDGE_SEND_QUEUE" envDefault:"256"`
	MaxFrameBytes int64         `env:"BRIDGE_MAX_FRAME" envDefault:"16777216"`
	ShutdownDrain time.Duration `env:"BRIDGE_SHUTDOWN_DRAIN" envDefault:"3s"`

	// Adapter reconnect pacing.
	ReconnectDelay time.Duration `env:"BRIDGE_RECONNECT_DELAY" envDefault:"2s"`

	// Admission control.
	MaxConnections int     `env:"BRIDGE_MAX_CONNECTIONS" envDefault:"500"`
	ConnRate       float64 `env:"BRIDGE_CONN_RATE" envDefault:"50"`
	ConnBurst      int     `env:"BRIDGE_CONN_BURST" envDefault:"100"`

	// Logging.
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Figma REST collaborator. Tokens may come from the credential blob
	// instead; env values take precedence when both are set.
	FigmaAPIBase    string `env:"FIGMA_API_BASE" envDefault:"https://api.figma.com"`
	CredentialsFile string `env:"FIGMA_CREDENTIALS_FILE"`
	AccessToken     string `env:"FIGMA_ACCESS_TOKEN"`
	RefreshToken    string `env:"FIGMA_REFRESH_TOKEN"`
	DefaultFileKey  string `env:"FIGMA_DEFAULT_FILE_KEY"`
}

// Load reads .env (best effort) then the environment, and validates.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err == nil && logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and enums.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("BRIDGE_PORT must be 1-65535, got %d", c.Port)
	}
	if c.SSEPort < 1 || c.SSEPort > 65535 {
		return fmt.Errorf("BRIDGE_SSE_PORT must be 1-65535, got %d", c.SSEPort)
	}
	if c.Port == c.SSEPort {
		return fmt.Errorf("BRIDGE_PORT and BRIDGE_SSE_PORT must differ, both are %d", c.Port)
	}
	if c.SendQueueSize < 1 {
		return fmt.Errorf("BRIDGE_SEND_QUEUE must be > 0, got %d", c.SendQueueSize)
	}
	if c.MaxFrameBytes < 1024 {
		return fmt.Errorf("BRIDGE_MAX_FRAME must be >= 1024, got %d", c.MaxFrameBytes)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("BRIDGE_REQUEST_TIMEOUT must be > 0, got %s", c.RequestTimeout)
	}
	if c.ProgressExtension < c.RequestTimeout {
		return fmt.Errorf("BRIDGE_PROGRESS_EXTENSION (%s) must be >= BRIDGE_REQUEST_TIMEOUT (%s)",
			c.ProgressExtension, c.RequestTimeout)
	}
	if c.ShutdownDrain <= 0 {
		return fmt.Errorf("BRIDGE_SHUTDOWN_DRAIN must be > 0, got %s", c.ShutdownDrain)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("BRIDGE_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error (got: %s)", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "pretty": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, pretty (got: %s)", c.LogFormat)
	}
	return nil
}

// WebSocketURL is the broker endpoint the adapter dials.
func (c *Config) WebSocketURL() string {
	return fmt.Sprintf("ws://%s:%d/ws", c.Host, c.Port)
}

// ListenAddr is the broker bind address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SSEListenAddr is the deprecated endpoint bind address.
func (c *Config) SSEListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.SSEPort)
}

// LogConfig emits the effective configuration. Token values never appear in
// logs, only whether they are present.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("host", c.Host).
		Int("port", c.Port).
		Int("sse_port", c.SSEPort).
		Dur("sniffer_window", c.SnifferWindow).
		Dur("request_timeout", c.RequestTimeout).
		Dur("progress_extension", c.ProgressExtension).
		Dur("stuck_after", c.StuckAfter).
		Int("send_queue", c.SendQueueSize).
		Int64("max_frame_bytes", c.MaxFrameBytes).
		Dur("shutdown_drain", c.ShutdownDrain).
		Dur("reconnect_delay", c.ReconnectDelay).
		Int("max_connections", c.MaxConnections).
		Float64("conn_rate", c.ConnRate).
		Int("conn_burst", c.ConnBurst).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Str("figma_api_base", c.FigmaAPIBase).
		Bool("access_token_set", c.AccessToken != "").
		Bool("refresh_token_set", c.RefreshToken != "").
		Bool("default_file_key_set", c.DefaultFileKey != "").
		Msg("bridge configuration loaded")
}
