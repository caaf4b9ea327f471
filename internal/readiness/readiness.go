// Package readiness decides when freshly started port-forwards may be used.
//
// Two strategies exist. Delay sleeps for a fixed time and assumes the forwards
// are up; it is the default and matches the historical behavior. Poll probes
// every endpoint until it answers or a bounded timeout expires.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// Strategy names accepted by Parse.
const (
	StrategyDelay = "delay"
	StrategyPoll  = "poll"
)

// Default timings.
const (
	DefaultDelay        = 2 * time.Second
	DefaultPollTimeout  = 10 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// ErrProcessExited indicates a forward process exited before its endpoint became ready.
var ErrProcessExited = errors.New("process exited before becoming ready")

// Endpoint is one thing to wait for.
type Endpoint struct {
	Name     string
	Detector Detector
	Exited   <-chan struct{} // optional; closed when the backing process dies
}

// Waiter blocks until the endpoints may be used.
type Waiter interface {
	Wait(ctx context.Context, endpoints []Endpoint) error
}

// SleepFunc sleeps for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delay waits a fixed duration without looking at the endpoints.
type Delay struct {
	Duration time.Duration
	Sleep    SleepFunc
}

func (d Delay) Wait(ctx context.Context, _ []Endpoint) error {
	sleep := d.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	return sleep(ctx, d.Duration)
}

// Poll checks each endpoint in turn until it is ready. The timeout applies to
// every endpoint separately.
type Poll struct {
	Interval time.Duration
	Timeout  time.Duration
	Logger   *slog.Logger
}

func (p Poll) Wait(ctx context.Context, endpoints []Endpoint) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}

	for _, ep := range endpoints {
		attempt := 0
		err := wait.PollUntilContextTimeout(ctx, interval, timeout, true,
			func(pollCtx context.Context) (bool, error) {
				if ep.Exited != nil {
					select {
					case <-ep.Exited:
						return false, fmt.Errorf("%s: %w", ep.Name, ErrProcessExited)
					default:
					}
				}
				attempt++
				ready, err := ep.Detector.Ready(pollCtx)
				if err != nil {
					return false, err
				}
				if ready {
					log.Debug("endpoint ready", "name", ep.Name, "detector", ep.Detector.Describe(), "attempt", attempt)
				}
				return ready, nil
			})
		if err != nil {
			return fmt.Errorf("wait for %s readiness (%s): %w", ep.Name, ep.Detector.Describe(), err)
		}
	}
	return nil
}

// Parse builds a Waiter from a strategy name.
func Parse(strategy string, delay, timeout time.Duration, log *slog.Logger) (Waiter, error) {
	switch strategy {
	case "", StrategyDelay:
		if delay < 0 {
			delay = 0
		}
		return Delay{Duration: delay}, nil
	case StrategyPoll:
		return Poll{Timeout: timeout, Logger: log}, nil
	default:
		return nil, fmt.Errorf("unknown readiness strategy %q (want %s or %s)", strategy, StrategyDelay, StrategyPoll)
	}
}
