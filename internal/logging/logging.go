// Package logging builds the slog logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

type Options struct {
	Level   string
	Verbose bool
	// Timestamps are off by default; CLI output is short-lived.
	Timestamps bool
}

func New(w io.Writer, opts Options) (*slog.Logger, error) {
	level := charmlog.InfoLevel
	if trimmed := strings.TrimSpace(opts.Level); trimmed != "" {
		parsed, err := charmlog.ParseLevel(strings.ToLower(trimmed))
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	if opts.Verbose {
		level = charmlog.DebugLevel
	}

	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		Prefix:          "dnd",
		ReportTimestamp: opts.Timestamps,
	})

	return slog.New(handler), nil
}

func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
