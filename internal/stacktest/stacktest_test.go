package stacktest

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/stackcheck/internal/config"
	"github.com/loykin/stackcheck/internal/health"
	"github.com/loykin/stackcheck/internal/portforward"
	"github.com/loykin/stackcheck/internal/process"
	"github.com/loykin/stackcheck/internal/readiness"
	"github.com/loykin/stackcheck/internal/session"
)

type countingHandle struct {
	name  string
	mu    sync.Mutex
	stops int
	err   error
}

func (h *countingHandle) Name() string { return h.name }
func (h *countingHandle) Stop(time.Duration) error {
	h.mu.Lock()
	h.stops++
	h.mu.Unlock()
	return h.err
}
func (h *countingHandle) Exited() <-chan struct{} { return nil }
func (h *countingHandle) Killed() bool            { return false }

type recordingStarter struct {
	stopErr error
	specs   []process.Spec
	handles []*countingHandle
}

func (s *recordingStarter) Start(spec process.Spec) (portforward.Handle, error) {
	s.specs = append(s.specs, spec)
	h := &countingHandle{name: spec.Name, err: s.stopErr}
	s.handles = append(s.handles, h)
	return h, nil
}

type fakeSession struct {
	err     error
	calls   int
	baseURL string
}

func (s *fakeSession) Run(_ context.Context, baseURL string) error {
	s.calls++
	s.baseURL = baseURL
	return s.err
}

type noWait struct{ calls int }

func (w *noWait) Wait(context.Context, []readiness.Endpoint) error {
	w.calls++
	return nil
}

func k8sConfig() config.KubernetesConfig {
	return config.KubernetesConfig{
		Namespace:             "default",
		ControlPlaneService:   "cp",
		DataPlaneService:      "dp",
		LocalControlPlanePort: "8080",
		LocalDataPlanePort:    "8081",
		StopTimeout:           5 * time.Second,
		ForwardWait:           2 * time.Second,
	}
}

func TestRunKubernetesSuccess(t *testing.T) {
	st := &recordingStarter{}
	sess := &fakeSession{}
	w := &noWait{}
	var out bytes.Buffer

	err := RunKubernetes(context.Background(), k8sConfig(), KubernetesDeps{Starter: st, Waiter: w, Session: sess, Out: &out})
	require.NoError(t, err)

	assert.Equal(t, "Kubernetes stack test complete.\n", out.String())
	assert.Equal(t, 1, w.calls)
	assert.Equal(t, 1, sess.calls)
	assert.Equal(t, "http://localhost:8080", sess.baseURL)
	require.Len(t, st.specs, 2)
	assert.Equal(t, []string{"-n", "default", "port-forward", "svc/cp", "8080:8080"}, st.specs[0].Args)
	assert.Equal(t, []string{"-n", "default", "port-forward", "svc/dp", "8081:8081"}, st.specs[1].Args)
	for _, h := range st.handles {
		assert.Equal(t, 1, h.stops, "%s terminated exactly once", h.name)
	}
}

func TestRunKubernetesCleanupFailureIsNotReportedComplete(t *testing.T) {
	st := &recordingStarter{stopErr: process.ErrNotReaped}
	sess := &fakeSession{}
	var out bytes.Buffer

	err := RunKubernetes(context.Background(), k8sConfig(), KubernetesDeps{Starter: st, Waiter: &noWait{}, Session: sess, Out: &out})
	require.Error(t, err)
	assert.ErrorIs(t, err, process.ErrNotReaped)
	assert.NotContains(t, err.Error(), "\n")
	assert.Equal(t, 1, sess.calls)
	assert.Empty(t, out.String(), "completion must not be printed when cleanup fails")
	for _, h := range st.handles {
		assert.Equal(t, 1, h.stops)
	}
}

func TestRunKubernetesSessionFailureStillCleansUp(t *testing.T) {
	st := &recordingStarter{}
	var out bytes.Buffer

	err := RunKubernetes(context.Background(), k8sConfig(), KubernetesDeps{
		Starter: st,
		Waiter:  &noWait{},
		Session: &fakeSession{err: session.ErrSessionFailed},
		Out:     &out,
	})
	assert.ErrorIs(t, err, session.ErrSessionFailed)
	assert.Empty(t, out.String())
	require.Len(t, st.handles, 2)
	for _, h := range st.handles {
		assert.Equal(t, 1, h.stops)
	}
}

func TestRunKubernetesWaitFailureStillCleansUp(t *testing.T) {
	st := &recordingStarter{}
	sess := &fakeSession{}
	w := readiness.Delay{Duration: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunKubernetes(ctx, k8sConfig(), KubernetesDeps{Starter: st, Waiter: w, Session: sess})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, sess.calls)
	for _, h := range st.handles {
		assert.Equal(t, 1, h.stops)
	}
}

func TestRunKubernetesDefaultWaiterUsesForwardWait(t *testing.T) {
	cfg := k8sConfig()
	cfg.ForwardWait = 10 * time.Millisecond
	sess := &fakeSession{}
	begin := time.Now()
	err := RunKubernetes(context.Background(), cfg, KubernetesDeps{Starter: &recordingStarter{}, Session: sess})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(begin), 10*time.Millisecond)
}

func TestRunKubernetesVerifierFailureSpawnsNothing(t *testing.T) {
	st := &recordingStarter{}
	sess := &fakeSession{}
	var gotNS string
	var gotNames []string
	verify := func(_ context.Context, ns string, names ...string) error {
		gotNS, gotNames = ns, names
		return errors.New("service default/dp not found")
	}

	err := RunKubernetes(context.Background(), k8sConfig(), KubernetesDeps{Starter: st, Waiter: &noWait{}, Session: sess, Verifier: verify})
	assert.EqualError(t, err, "service default/dp not found")
	assert.Equal(t, "default", gotNS)
	assert.Equal(t, []string{"cp", "dp"}, gotNames)
	assert.Empty(t, st.specs)
	assert.Equal(t, 0, sess.calls)
}

func healthServer(t *testing.T, code int, hits *int) string {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		*hits++
		mu.Unlock()
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRunLocalSuccess(t *testing.T) {
	var cp, dp, sa int
	cfg := config.LocalConfig{
		BaseURL:         healthServer(t, http.StatusOK, &cp),
		DataPlaneURL:    healthServer(t, http.StatusOK, &dp),
		SessionAgentURL: healthServer(t, http.StatusOK, &sa),
	}
	var out bytes.Buffer
	sess := &fakeSession{}
	err := RunLocal(context.Background(), cfg, LocalDeps{Checker: health.New(time.Second, &out, nil), Session: sess, Out: &out})
	require.NoError(t, err)

	assert.Equal(t, "Checking control-plane health...\n"+
		"Checking data-plane health...\n"+
		"Checking session-agent health...\n"+
		"Running session flow...\n"+
		"Local stack test complete.\n", out.String())
	assert.Equal(t, cfg.BaseURL, sess.baseURL)
	assert.Equal(t, [3]int{1, 1, 1}, [3]int{cp, dp, sa})
}

func TestRunLocalDataPlaneUnhealthy(t *testing.T) {
	var cp, dp, sa int
	cfg := config.LocalConfig{
		BaseURL:         healthServer(t, http.StatusOK, &cp),
		DataPlaneURL:    healthServer(t, http.StatusServiceUnavailable, &dp),
		SessionAgentURL: healthServer(t, http.StatusOK, &sa),
	}
	sess := &fakeSession{}
	err := RunLocal(context.Background(), cfg, LocalDeps{Checker: health.New(time.Second, nil, nil), Session: sess})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data-plane")
	assert.Equal(t, 0, sa, "session-agent must not be checked")
	assert.Equal(t, 0, sess.calls, "session flow must not run")
}

func TestRunLocalSessionFailure(t *testing.T) {
	var cp, dp, sa int
	cfg := config.LocalConfig{
		BaseURL:         healthServer(t, http.StatusOK, &cp),
		DataPlaneURL:    healthServer(t, http.StatusOK, &dp),
		SessionAgentURL: healthServer(t, http.StatusOK, &sa),
	}
	var out bytes.Buffer
	err := RunLocal(context.Background(), cfg, LocalDeps{
		Checker: health.New(time.Second, nil, nil),
		Session: &fakeSession{err: session.ErrSessionFailed},
		Out:     &out,
	})
	assert.ErrorIs(t, err, session.ErrSessionFailed)
	assert.NotContains(t, out.String(), LocalComplete)
}
