// Package monitoring provides the structured logger and the Prometheus
// collectors shared by the broker and the stdio adapter.
package monitoring

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the service logger. The adapter passes os.Stderr because
// stdout is reserved for MCP framing; the broker logs to stdout.
func NewLogger(w io.Writer, level, format string) zerolog.Logger {
	var lvl zerolog.Level
	switch level {
	case "trace":
		lvl = zerolog.TraceLevel
	case "debug":
		lvl = zerolog.DebugLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	default:
		lvl = zerolog.InfoLevel
	}

	if format == "pretty" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("service", "figma-bridge").
		Logger()
}
