package logger

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation settings for captured child output.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes where a background process writes its stdout and stderr.
// If Dir is empty, output is discarded.
// Files are Dir/<name>.stdout.log and Dir/<name>.stderr.log and rotate
// following lumberjack semantics.
type Config struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Enabled reports whether output should be captured to files.
func (c Config) Enabled() bool { return c.Dir != "" }

// Writers returns rotating writers for stdout and stderr of the named process.
// Both are nil when the config is not enabled.
func (c Config) Writers(name string) (io.WriteCloser, io.WriteCloser) {
	if !c.Enabled() {
		return nil, nil
	}
	return c.rotating(filepath.Join(c.Dir, fmt.Sprintf("%s.stdout.log", name))),
		c.rotating(filepath.Join(c.Dir, fmt.Sprintf("%s.stderr.log", name)))
}

func (c Config) rotating(path string) *lj.Logger {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// ParseLevel maps a level name to a slog.Level. Unknown names fall back to warn.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// New builds the diagnostic logger used by the CLIs.
func New(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	return slog.New(NewColorTextHandler(w, opts, false))
}
