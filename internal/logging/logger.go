package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config is the logging setup decided once at startup and handed to components.
type Config struct {
	Debug  bool      `yaml:"debug"`
	Level  string    `yaml:"level"`
	Format string    `yaml:"format"` // "text" (default) or "json"
	Output io.Writer `yaml:"-"`
}

// Logger builds the logger described by c.
func (c Config) Logger() *slog.Logger {
	out := c.Output
	if out == nil {
		out = os.Stderr
	}
	level := ParseLevel(c.Level)
	if c.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: standardKeys}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// New creates a configured application logger.
// It writes to Stderr (to separate from Stdout reports/JSON-RPC).
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: standardKeys,
	}))
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps debug/info/warn/error to a slog level. Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// standardKeys renames 'error' to 'err'.
func standardKeys(groups []string, a slog.Attr) slog.Attr {
	if a.Key == "error" {
		a.Key = "err"
	}
	return a
}
