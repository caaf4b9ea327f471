// Package health verifies that the services of a locally running stack answer
// their health endpoints.
package health

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/loykin/stackcheck/internal/metrics"
)

// DefaultTimeout bounds each health request.
const DefaultTimeout = 5 * time.Second

// Service labels used in progress lines and errors.
const (
	LabelControlPlane = "control-plane"
	LabelDataPlane    = "data-plane"
	LabelSessionAgent = "session-agent"
)

// Target is one health endpoint.
type Target struct {
	Label string
	URL   string
}

// LocalTargets returns the three checks of a local stack in the order they must run.
func LocalTargets(baseURL, dataPlaneURL, sessionAgentURL string) []Target {
	return []Target{
		{Label: LabelControlPlane, URL: baseURL + "/healthz"},
		{Label: LabelDataPlane, URL: dataPlaneURL + "/healthz"},
		{Label: LabelSessionAgent, URL: sessionAgentURL + "/v1/health"},
	}
}

// StatusError reports a response other than 200 OK.
type StatusError struct {
	Label string
	Code  int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Label, e.Code)
}

// CheckError is returned for any failed check: bad status, transport error or timeout.
type CheckError struct {
	Label string
	Cause error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("%s health check failed: %v", e.Label, e.Cause)
}

func (e *CheckError) Unwrap() error { return e.Cause }

// Checker issues health requests.
type Checker struct {
	Client  *http.Client
	Timeout time.Duration
	Out     io.Writer // progress lines; nil discards
	Logger  *slog.Logger
}

// New returns a Checker whose requests are bounded by timeout.
func New(timeout time.Duration, out io.Writer, log *slog.Logger) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		Client:  &http.Client{Timeout: timeout},
		Timeout: timeout,
		Out:     out,
		Logger:  log,
	}
}

// Check performs one GET against t.URL. Only 200 counts as healthy.
func (c *Checker) Check(ctx context.Context, t Target) error {
	start := time.Now()
	err := c.check(ctx, t)
	metrics.ObserveHealthCheck(t.Label, err == nil, time.Since(start).Seconds())
	if err != nil {
		c.Logger.Debug("health check failed", "label", t.Label, "url", t.URL, "error", err)
		return &CheckError{Label: t.Label, Cause: err}
	}
	c.Logger.Debug("health check passed", "label", t.Label, "url", t.URL)
	return nil
}

func (c *Checker) check(ctx context.Context, t Target) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return err
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Label: t.Label, Code: resp.StatusCode}
	}
	return nil
}

// CheckAll runs the checks strictly in order and stops at the first failure.
// A progress line is written before each check.
func (c *Checker) CheckAll(ctx context.Context, targets []Target) error {
	for _, t := range targets {
		if c.Out != nil {
			_, _ = fmt.Fprintf(c.Out, "Checking %s health...\n", t.Label)
		}
		if err := c.Check(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
