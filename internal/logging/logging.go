// Package logging builds the application's zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/smart-onboard/internal/model"
)

// New returns a logger writing to w (stderr when nil). Pretty output uses
// the console writer; otherwise lines are JSON.
func New(cfg model.LogConfig, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	level := zerolog.InfoLevel
	if s := strings.TrimSpace(cfg.Level); s != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	if cfg.Pretty {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.TimeOnly,
		}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
