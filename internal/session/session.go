// Package session runs the external session-flow script against a base URL.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/loykin/stackcheck/internal/env"
	"github.com/loykin/stackcheck/internal/metrics"
)

// ErrSessionFailed is returned for any non-zero exit or launch failure of the script.
var ErrSessionFailed = errors.New("session flow script failed")

// Runner invokes Script through Shell with BASE_URL injected into the environment.
// The script inherits stdin, stdout and stderr. There is no timeout.
type Runner struct {
	Shell  string // interpreter, "bash" when empty
	Script string
	Env    *env.Env // base environment; the OS environment when nil
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// NewRunner returns a Runner wired to the process's standard streams.
func NewRunner(script string, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		Shell:  "bash",
		Script: script,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: log,
	}
}

// Run executes the script. Only the exit code is inspected.
func (r *Runner) Run(ctx context.Context, baseURL string) error {
	e := r.Env
	if e == nil {
		e = env.New()
	}
	e.Set("BASE_URL", baseURL)

	shell := r.Shell
	if shell == "" {
		shell = "bash"
	}
	// #nosec G204
	cmd := exec.CommandContext(ctx, shell, r.Script)
	cmd.Env = e.Merge()
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Debug("running session flow", "shell", shell, "script", r.Script, "base_url", baseURL)

	start := time.Now()
	err := cmd.Run()
	metrics.ObserveSession(err == nil, time.Since(start).Seconds())
	if err != nil {
		log.Debug("session flow failed", "script", r.Script, "error", err)
		return ErrSessionFailed
	}
	return nil
}
