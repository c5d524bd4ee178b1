// Package logging builds the structured loggers used across gridcore.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Levels and formats accepted by New.
var (
	Levels  = []string{"debug", "info", "warn", "error"}
	Formats = []string{"text", "json"}
)

// ParseLevel parses a level name.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging: unknown level %q (want one of %s)", s, strings.Join(Levels, ", "))
}

// ValidFormat reports whether s names a supported output format.
func ValidFormat(s string) bool {
	return s == "" || s == "text" || s == "json"
}

// New creates a logger writing to w. Unknown levels fall back to info and
// any format other than "json" produces text output. It does not set the
// global logger.
func New(level, format string, w io.Writer) *slog.Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// WithRun tags every record of log with a time-ordered run id, so lines
// from concurrent invocations sharing a log sink can be told apart.
func WithRun(log *slog.Logger) (*slog.Logger, string) {
	id, err := uuid.NewV7()
	if err != nil {
		runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
		return log.With("run", runID), runID
	}
	return log.With("run", id.String()), id.String()
}
