package process

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/loykin/stackcheck/internal/logger"
)

// reapGrace bounds how long Stop waits for the OS to reap a process after SIGKILL.
const reapGrace = time.Second

// ErrNotReaped is returned by Stop when a process survives the forced kill.
var ErrNotReaped = errors.New("process not reaped after kill")

// Spec describes a background process.
type Spec struct {
	Name   string
	Path   string        // executable, resolved through PATH
	Args   []string      // arguments without the executable
	Env    []string      // full environment; nil inherits the parent's
	Log    logger.Config // stdout/stderr capture; discarded when disabled
	Logger *slog.Logger
}

// StartError wraps a failure to launch a background process.
type StartError struct {
	Name string
	Err  error
}

func (e *StartError) Error() string { return fmt.Sprintf("start %s: %v", e.Name, e.Err) }

func (e *StartError) Unwrap() error { return e.Err }

// Background owns one child process from Start until Stop.
// Stop terminates the process at most once no matter how often it is called.
type Background struct {
	spec Spec
	cmd  *exec.Cmd
	log  *slog.Logger

	exited chan struct{} // closed by the reaper once cmd.Wait returns

	mu        sync.Mutex
	exitErr   error
	killed    bool
	outCloser io.WriteCloser
	errCloser io.WriteCloser

	stopOnce sync.Once
	stopErr  error
}

// Start launches spec in its own process group and starts a single reaper
// goroutine that calls cmd.Wait.
func Start(spec Spec) (*Background, error) {
	log := spec.Logger
	if log == nil {
		log = slog.Default()
	}
	if spec.Path == "" {
		return nil, &StartError{Name: spec.Name, Err: errors.New("empty command")}
	}
	// #nosec G204
	cmd := exec.Command(spec.Path, spec.Args...)
	if spec.Env != nil {
		cmd.Env = spec.Env
	}
	configureSysProcAttr(cmd)

	b := &Background{spec: spec, cmd: cmd, log: log, exited: make(chan struct{})}
	if spec.Log.Enabled() {
		if err := os.MkdirAll(spec.Log.Dir, 0o750); err != nil {
			return nil, &StartError{Name: spec.Name, Err: err}
		}
		b.outCloser, b.errCloser = spec.Log.Writers(spec.Name)
		cmd.Stdout = b.outCloser
		cmd.Stderr = b.errCloser
	}
	// nil Stdout/Stderr are connected to the null device by os/exec.

	if err := cmd.Start(); err != nil {
		b.closeWriters()
		return nil, &StartError{Name: spec.Name, Err: err}
	}
	log.Debug("background process started", "name", spec.Name, "pid", cmd.Process.Pid, "args", cmd.Args)

	go func() {
		err := cmd.Wait()
		b.mu.Lock()
		b.exitErr = err
		b.mu.Unlock()
		close(b.exited)
		b.closeWriters()
	}()
	return b, nil
}

// Name returns the spec name.
func (b *Background) Name() string { return b.spec.Name }

// PID returns the OS process id.
func (b *Background) PID() int { return b.cmd.Process.Pid }

// Exited returns a channel closed when the process has exited and been reaped.
func (b *Background) Exited() <-chan struct{} { return b.exited }

// ExitErr returns the cmd.Wait result. It is only meaningful after Exited is closed.
func (b *Background) ExitErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exitErr
}

// Killed reports whether Stop had to escalate to a forced kill.
func (b *Background) Killed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.killed
}

// Stop asks the process group to terminate, waits up to wait, and then kills it.
// Only the first call signals the process; later calls return the first result.
// A process that already exited is not signalled.
func (b *Background) Stop(wait time.Duration) error {
	b.stopOnce.Do(func() {
		b.stopErr = b.stop(wait)
	})
	return b.stopErr
}

func (b *Background) stop(wait time.Duration) error {
	select {
	case <-b.exited:
		b.log.Debug("background process already exited", "name", b.spec.Name, "error", b.ExitErr())
		return nil
	default:
	}

	pid := b.PID()
	if err := terminate(b.cmd); err != nil {
		b.log.Debug("terminate signal failed", "name", b.spec.Name, "pid", pid, "error", err)
	}
	select {
	case <-b.exited:
		b.log.Debug("background process terminated", "name", b.spec.Name, "pid", pid)
		return nil
	case <-time.After(wait):
	}

	b.log.Warn("background process did not exit in time; killing", "name", b.spec.Name, "pid", pid, "wait", wait)
	b.mu.Lock()
	b.killed = true
	b.mu.Unlock()
	if err := kill(b.cmd); err != nil {
		b.log.Debug("kill signal failed", "name", b.spec.Name, "pid", pid, "error", err)
	}
	select {
	case <-b.exited:
		return nil
	case <-time.After(reapGrace):
		return fmt.Errorf("%s (pid %d): %w", b.spec.Name, pid, ErrNotReaped)
	}
}

func (b *Background) closeWriters() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.outCloser != nil {
		_ = b.outCloser.Close()
		b.outCloser = nil
	}
	if b.errCloser != nil {
		_ = b.errCloser.Close()
		b.errCloser = nil
	}
}
