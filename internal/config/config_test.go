package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 3055, cfg.Port)
	assert.Equal(t, 3056, cfg.SSEPort)
	assert.Equal(t, 60*time.Second, cfg.SnifferWindow)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 60*time.Second, cfg.ProgressExtension)
	assert.Equal(t, 5*time.Minute, cfg.StuckAfter)
	assert.Equal(t, 256, cfg.SendQueueSize)
	assert.Equal(t, int64(16<<20), cfg.MaxFrameBytes)
	assert.Equal(t, 3*time.Second, cfg.ShutdownDrain)
	assert.Equal(t, 2*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "https://api.figma.com", cfg.FigmaAPIBase)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BRIDGE_PORT", "4100")
	t.Setenv("BRIDGE_REQUEST_TIMEOUT", "5s")
	t.Setenv("BRIDGE_PROGRESS_EXTENSION", "10s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FIGMA_DEFAULT_FILE_KEY", "abc123")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.ProgressExtension)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "abc123", cfg.DefaultFileKey)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Host: "127.0.0.1", Port: 3055, SSEPort: 3056,
			SnifferWindow: time.Minute, RequestTimeout: 30 * time.Second,
			ProgressExtension: 60 * time.Second, StuckAfter: 5 * time.Minute,
			SendQueueSize: 256, MaxFrameBytes: 16 << 20, ShutdownDrain: 3 * time.Second,
			ReconnectDelay: 2 * time.Second, MaxConnections: 500,
			ConnRate: 50, ConnBurst: 100,
			LogLevel: "info", LogFormat: "json",
			FigmaAPIBase: "https://api.figma.com",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"sse port out of range", func(c *Config) { c.SSEPort = 70000 }},
		{"same ports", func(c *Config) { c.SSEPort = c.Port }},
		{"queue zero", func(c *Config) { c.SendQueueSize = 0 }},
		{"tiny frame cap", func(c *Config) { c.MaxFrameBytes = 12 }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"extension below timeout", func(c *Config) { c.ProgressExtension = time.Second }},
		{"zero drain", func(c *Config) { c.ShutdownDrain = 0 }},
		{"zero max connections", func(c *Config) { c.MaxConnections = 0 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAddressHelpers(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: 3055, SSEPort: 3056}
	assert.Equal(t, "ws://127.0.0.1:3055/ws", cfg.WebSocketURL())
	assert.Equal(t, "127.0.0.1:3055", cfg.ListenAddr())
	assert.Equal(t, "127.0.0.1:3056", cfg.SSEListenAddr())
}
