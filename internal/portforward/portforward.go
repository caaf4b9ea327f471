// Package portforward exposes cluster services on local ports through
// `kubectl port-forward` for the lifetime of a Session.
package portforward

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/loykin/stackcheck/internal/logger"
	"github.com/loykin/stackcheck/internal/metrics"
	"github.com/loykin/stackcheck/internal/process"
	"github.com/loykin/stackcheck/internal/readiness"
)

// Remote ports of the stack services. They are fixed.
const (
	ControlPlaneRemotePort = 8080
	DataPlaneRemotePort    = 8081
)

// DefaultStopTimeout is how long a forward gets to exit after SIGTERM.
const DefaultStopTimeout = 5 * time.Second

// Target is one service to forward.
type Target struct {
	Name       string // process name, used in logs and metrics
	Service    string
	LocalPort  string
	RemotePort int
}

// Args returns the kubectl arguments that forward t within namespace.
func Args(namespace string, t Target) []string {
	return []string{
		"-n", namespace,
		"port-forward",
		"svc/" + t.Service,
		fmt.Sprintf("%s:%d", t.LocalPort, t.RemotePort),
	}
}

// Handle is a running background process.
type Handle interface {
	Name() string
	Stop(wait time.Duration) error
	Exited() <-chan struct{}
	Killed() bool
}

// Starter launches background processes.
type Starter interface {
	Start(spec process.Spec) (Handle, error)
}

// ProcessStarter starts real OS processes.
type ProcessStarter struct{}

func (ProcessStarter) Start(spec process.Spec) (Handle, error) {
	b, err := process.Start(spec)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Config describes a set of forwards.
type Config struct {
	Kubectl     string // "kubectl" when empty
	Namespace   string
	Targets     []Target
	Log         logger.Config
	StopTimeout time.Duration
	Logger      *slog.Logger
}

// Session owns the forward processes. Close must be called on every path.
type Session struct {
	targets     []Target
	handles     []Handle
	stopTimeout time.Duration
	log         *slog.Logger
}

// Open starts one forward per target, in order. If a start fails the forwards
// already running are stopped before the error is returned.
func Open(cfg Config, starter Starter) (*Session, error) {
	if starter == nil {
		starter = ProcessStarter{}
	}
	kubectl := cfg.Kubectl
	if kubectl == "" {
		kubectl = "kubectl"
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}

	s := &Session{stopTimeout: stopTimeout, log: log}
	for _, t := range cfg.Targets {
		h, err := starter.Start(process.Spec{
			Name:   t.Name,
			Path:   kubectl,
			Args:   Args(cfg.Namespace, t),
			Log:    cfg.Log,
			Logger: log,
		})
		if err != nil {
			if cerr := s.Close(); cerr != nil {
				log.Warn("cleanup after failed start", "error", cerr)
			}
			return nil, fmt.Errorf("port-forward %s: %w", t.Service, err)
		}
		metrics.IncForwardStart(t.Name)
		log.Info("port-forward started", "name", t.Name, "service", t.Service, "local", t.LocalPort, "remote", t.RemotePort)
		s.targets = append(s.targets, t)
		s.handles = append(s.handles, h)
	}
	return s, nil
}

// Endpoints returns one readiness endpoint per forward, dialing the local port.
func (s *Session) Endpoints() []readiness.Endpoint {
	eps := make([]readiness.Endpoint, 0, len(s.handles))
	for i, h := range s.handles {
		eps = append(eps, readiness.Endpoint{
			Name:     s.targets[i].Name,
			Detector: readiness.TCPDetector{Addr: net.JoinHostPort("localhost", s.targets[i].LocalPort)},
			Exited:   h.Exited(),
		})
	}
	return eps
}

// Close stops every forward: graceful termination first, a forced kill after
// the stop timeout. All forwards are stopped even if one of them fails.
func (s *Session) Close() error {
	var errs []error
	for _, h := range s.handles {
		err := h.Stop(s.stopTimeout)
		mode := metrics.StopGraceful
		switch {
		case err != nil:
			mode = metrics.StopError
			errs = append(errs, err)
		case h.Killed():
			mode = metrics.StopKilled
		}
		metrics.IncForwardStop(h.Name(), mode)
		s.log.Info("port-forward stopped", "name", h.Name(), "mode", mode)
	}
	s.handles = nil
	s.targets = nil
	if len(errs) == 0 {
		return nil
	}
	return stopErrors(errs)
}

// stopErrors reports every failed stop on a single line.
type stopErrors []error

func (e stopErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e stopErrors) Unwrap() []error { return e }
