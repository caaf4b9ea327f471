// Package stacktest wires configuration, port-forwards, health checks and the
// session flow into the two stack test runs.
package stacktest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/loykin/stackcheck/internal/config"
	"github.com/loykin/stackcheck/internal/health"
	"github.com/loykin/stackcheck/internal/logger"
	"github.com/loykin/stackcheck/internal/portforward"
	"github.com/loykin/stackcheck/internal/readiness"
)

// Completion messages.
const (
	KubernetesComplete = "Kubernetes stack test complete."
	LocalComplete      = "Local stack test complete."
)

// SessionRunner runs the session flow against a base URL.
type SessionRunner interface {
	Run(ctx context.Context, baseURL string) error
}

// HealthChecker verifies a list of targets in order.
type HealthChecker interface {
	CheckAll(ctx context.Context, targets []health.Target) error
}

// ServiceVerifier confirms the forwarded Services exist.
type ServiceVerifier func(ctx context.Context, namespace string, names ...string) error

// KubernetesDeps are the collaborators of RunKubernetes.
type KubernetesDeps struct {
	Starter  portforward.Starter
	Waiter   readiness.Waiter
	Session  SessionRunner
	Verifier ServiceVerifier // nil skips the preflight
	Out      io.Writer
	Logger   *slog.Logger
}

// RunKubernetes forwards the control and data plane, waits, runs the session
// flow against the forwarded control plane, and always stops the forwards.
func RunKubernetes(ctx context.Context, cfg config.KubernetesConfig, deps KubernetesDeps) error {
	if deps.Session == nil {
		return errors.New("stacktest: session runner is required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.Verifier != nil {
		if err := deps.Verifier(ctx, cfg.Namespace, cfg.ControlPlaneService, cfg.DataPlaneService); err != nil {
			return err
		}
	}

	if err := forwardAndRun(ctx, cfg, deps, log); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out(deps.Out), KubernetesComplete)
	return nil
}

// forwardAndRun holds the forwards open for the wait and the session flow. The
// forwards are stopped before it returns, on every path.
func forwardAndRun(ctx context.Context, cfg config.KubernetesConfig, deps KubernetesDeps, log *slog.Logger) (err error) {
	fwd, err := portforward.Open(portforward.Config{
		Kubectl:   cfg.Kubectl,
		Namespace: cfg.Namespace,
		Targets: []portforward.Target{
			{Name: "control-plane-forward", Service: cfg.ControlPlaneService, LocalPort: cfg.LocalControlPlanePort, RemotePort: portforward.ControlPlaneRemotePort},
			{Name: "data-plane-forward", Service: cfg.DataPlaneService, LocalPort: cfg.LocalDataPlanePort, RemotePort: portforward.DataPlaneRemotePort},
		},
		Log:         logger.Config{Dir: cfg.ForwardLogDir},
		StopTimeout: cfg.StopTimeout,
		Logger:      log,
	}, deps.Starter)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fwd.Close(); cerr != nil {
			log.Warn("port-forward cleanup", "error", cerr)
			if err == nil {
				err = fmt.Errorf("port-forward cleanup: %w", cerr)
			}
		}
	}()

	waiter := deps.Waiter
	if waiter == nil {
		waiter = readiness.Delay{Duration: cfg.ForwardWait}
	}
	if err := waiter.Wait(ctx, fwd.Endpoints()); err != nil {
		return err
	}

	return deps.Session.Run(ctx, cfg.BaseURL())
}

// LocalDeps are the collaborators of RunLocal.
type LocalDeps struct {
	Checker HealthChecker
	Session SessionRunner
	Out     io.Writer
}

// RunLocal checks the three local services in order and, if all are healthy,
// runs the session flow against the control plane.
func RunLocal(ctx context.Context, cfg config.LocalConfig, deps LocalDeps) error {
	if deps.Checker == nil || deps.Session == nil {
		return errors.New("stacktest: checker and session runner are required")
	}
	w := out(deps.Out)
	targets := health.LocalTargets(cfg.BaseURL, cfg.DataPlaneURL, cfg.SessionAgentURL)
	if err := deps.Checker.CheckAll(ctx, targets); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(w, "Running session flow...")
	if err := deps.Session.Run(ctx, cfg.BaseURL); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, LocalComplete)
	return nil
}

func out(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
