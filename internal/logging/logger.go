// Package logging builds the process logger from config.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/paas/internal/config"
)

// NewLogger returns a leveled zerolog.Logger on stdout. LOG_FORMAT=console
// switches from JSON lines to human readable output.
func NewLogger(cfg *config.Config) zerolog.Logger {
	var w io.Writer = os.Stdout
	if cfg.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return newLogger(w, cfg)
}

func newLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp()
	for _, f := range []struct{ key, value string }{
		{"service", cfg.ServiceName},
		{"queue_backend", cfg.QueueBackend},
	} {
		if f.value != "" {
			ctx = ctx.Str(f.key, f.value)
		}
	}
	return ctx.Logger()
}

