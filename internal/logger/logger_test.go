package logger

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// helper to close non-nil closers and ignore errors
func closeIf(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func TestWriters_WithDir(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Dir: dir}
	outW, errW := cfg.Writers("control-plane-forward")
	if outW == nil || errW == nil {
		t.Fatalf("expected both writers non-nil when Dir is set")
	}
	_, _ = outW.Write([]byte("Forwarding from 127.0.0.1:8080 -> 8080\n"))
	_, _ = errW.Write([]byte("oops\n"))
	closeIf(outW)
	closeIf(errW)
	for _, name := range []string{"control-plane-forward.stdout.log", "control-plane-forward.stderr.log"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("log not created at %s: %v", name, err)
		}
	}
}

func TestWriters_DisabledReturnsNil(t *testing.T) {
	outW, errW := Config{}.Writers("n")
	if outW != nil || errW != nil {
		t.Fatalf("expected nil writers when Dir is empty")
	}
}

func TestWriters_Defaults(t *testing.T) {
	outW, errW := Config{Dir: t.TempDir()}.Writers("n")
	defer closeIf(errW)
	defer closeIf(outW)
	l, ok := outW.(*lj.Logger)
	if !ok {
		t.Fatalf("expected *lumberjack.Logger, got %T", outW)
	}
	if l.MaxSize != DefaultMaxSizeMB || l.MaxBackups != DefaultMaxBackups || l.MaxAge != DefaultMaxAgeDays {
		t.Fatalf("defaults not applied: %+v", l)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelWarn,
		"verbose": slog.LevelWarn,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewFiltersByLevelAndDropsTime(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")
	log.Info("hidden")
	log.With("pid", 42).Warn("forward exited")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "forward exited") || !strings.Contains(out, "pid=42") {
		t.Fatalf("missing warn record: %q", out)
	}
	if strings.Contains(out, "time=") {
		t.Fatalf("time attribute should be dropped: %q", out)
	}
	if !strings.Contains(out, "\033[33m") {
		t.Fatalf("expected yellow color code for warn: %q", out)
	}
}
