// Package logging builds the zerolog logger shared by the scaler components.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/guimove/rmqscaler/internal/config"
)

// New returns a logger writing to w at the configured level. The console
// format is meant for terminals; json is meant for log shippers.
func New(cfg config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("%w: log level %q", config.ErrInvalidConfig, cfg.Level)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer
	switch cfg.Format {
	case "json":
		out = w
	case "console", "":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("%w: log format %q", config.ErrInvalidConfig, cfg.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("component", "rmqscaler").Logger(), nil
}
