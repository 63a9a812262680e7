package log

import (
	"io"
	"os"
	"strings"

	"github.com/felixgeelhaar/genpod/internal/version"
)

// Format selects the slog handler.
type Format int

const (
	FormatJSON Format = iota
	FormatText
)

func (f Format) String() string {
	if f == FormatText {
		return "text"
	}
	return "json"
}

// ParseFormat reads a log.format setting. Anything but text or console is JSON.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "console":
		return FormatText
	default:
		return FormatJSON
	}
}

// Config holds configuration for the logger.
//
// Runs log to stderr so that stdout stays free for the status table and
// command output.
type Config struct {
	Level          Level
	Format         Format
	Output         io.Writer
	AddSource      bool
	ServiceName    string
	ServiceVersion string
}

// DefaultConfig logs JSON at INFO to stderr.
func DefaultConfig() Config {
	return Config{
		Level:          LevelInfo,
		Format:         FormatJSON,
		Output:         os.Stderr,
		ServiceName:    "genpod",
		ServiceVersion: version.Version,
	}
}

// FromSettings builds a Config from the textual log.level and log.format settings.
func FromSettings(level, format string) Config {
	cfg := DefaultConfig()
	cfg.Level = ParseLevel(level)
	cfg.Format = ParseFormat(format)
	return cfg
}
