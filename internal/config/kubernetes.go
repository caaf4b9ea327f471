package config

import (
	"time"

	"github.com/loykin/stackcheck/internal/env"
	"github.com/loykin/stackcheck/internal/portforward"
	"github.com/loykin/stackcheck/internal/readiness"
)

// Kubernetes defaults.
const (
	DefaultNamespace             = "default"
	DefaultLocalControlPlanePort = "8080"
	DefaultLocalDataPlanePort    = "8081"
	DefaultKubernetesScript      = "scripts/run-session-step.sh"
	DefaultKubectl               = "kubectl"
	DefaultForwardWait           = readiness.DefaultDelay
	DefaultStopTimeout           = portforward.DefaultStopTimeout
	DefaultReadiness             = readiness.StrategyDelay
	DefaultReadinessTimeout      = readiness.DefaultPollTimeout
)

// KubernetesConfig holds the settings of the Kubernetes stack tester.
type KubernetesConfig struct {
	Namespace             string
	ControlPlaneService   string
	DataPlaneService      string
	LocalControlPlanePort string
	LocalDataPlanePort    string

	Kubectl          string
	ForwardWait      time.Duration
	StopTimeout      time.Duration
	Readiness        string
	ReadinessTimeout time.Duration
	VerifyServices   bool
	Kubeconfig       string
	ForwardLogDir    string

	Common
}

// BaseURL is the control-plane address as seen through the local forward.
func (c KubernetesConfig) BaseURL() string {
	return "http://localhost:" + c.LocalControlPlanePort
}

// LoadKubernetes resolves the Kubernetes tester settings. A missing service
// name yields *env.MissingError; nothing is started by this function.
func LoadKubernetes(r env.Resolver) (KubernetesConfig, error) {
	var c KubernetesConfig
	var err error

	c.Namespace = r.Get(Namespace, DefaultNamespace)
	if c.ControlPlaneService, err = r.Require(ControlPlaneService); err != nil {
		return c, err
	}
	if c.DataPlaneService, err = r.Require(DataPlaneService); err != nil {
		return c, err
	}
	c.LocalControlPlanePort = r.Get(LocalControlPlanePort, DefaultLocalControlPlanePort)
	c.LocalDataPlanePort = r.Get(LocalDataPlanePort, DefaultLocalDataPlanePort)

	c.Kubectl = r.Get(Kubectl, DefaultKubectl)
	c.Readiness = r.Get(Readiness, DefaultReadiness)
	c.Kubeconfig = r.Get(Kubeconfig, "")
	c.ForwardLogDir = r.Get(ForwardLogDir, "")
	if c.ForwardWait, err = duration(r, ForwardWait, DefaultForwardWait); err != nil {
		return c, err
	}
	if c.StopTimeout, err = duration(r, StopTimeout, DefaultStopTimeout); err != nil {
		return c, err
	}
	if c.ReadinessTimeout, err = duration(r, ReadinessTimeout, DefaultReadinessTimeout); err != nil {
		return c, err
	}
	if c.VerifyServices, err = boolean(r, VerifyServices, false); err != nil {
		return c, err
	}
	c.Common = loadCommon(r, DefaultKubernetesScript)
	return c, nil
}
