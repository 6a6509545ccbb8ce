/*
PURPOSE:
  Provides the structured logger shared by every mapreplay package.
  Wraps slog for consistent output.

REQUIREMENTS:
  User-specified:
  - "Sane" CLI output. Not spammy.
  - Subprocess failures must be logged together with captured stdout/stderr.

  Implementation-discovered:
  - Needs Debug/Info/Warn/Error levels selectable from config.
  - JSON output is handy when runs are collected by CI.

ARCHITECTURE INTEGRATION:
  - Used everywhere.
  - Configured once by internal/cli before any command runs.

ERROR HANDLING:
  - Unknown level or format strings fall back to info/text.

IMPLEMENTATION RULES:
  - Use `log/slog` (Go 1.21+).
  - Library packages take a *slog.Logger field and default to Logger when nil.

USAGE:
  output.Configure("debug", "json", os.Stderr)
  output.Logger.Info("message", "key", "value")

RELATED FILES:
  - internal/config/config.go (log_level, log_format)
*/

package output

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var Logger *slog.Logger

func init() {
	Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// SetLogger allows overriding the default logger (e.g. for testing or config changes)
func SetLogger(l *slog.Logger) {
	Logger = l
}

// Configure replaces Logger with one writing to w at the given level and format.
func Configure(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	Logger = slog.New(handler)
	return Logger
}

// Discard returns a logger that drops everything. Tests use it to keep output quiet.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
