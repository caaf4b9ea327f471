package config

import (
	"time"

	"github.com/loykin/stackcheck/internal/env"
)

// Local defaults.
const (
	DefaultBaseURL         = "http://localhost:8080"
	DefaultDataPlaneURL    = "http://localhost:8081"
	DefaultSessionAgentURL = "http://localhost:9000"
	DefaultLocalScript     = "run-session-step.sh"
	DefaultHealthTimeout   = 5 * time.Second
)

// LocalConfig holds the settings of the local stack tester. Every value has a default.
type LocalConfig struct {
	BaseURL         string
	DataPlaneURL    string
	SessionAgentURL string
	HealthTimeout   time.Duration

	Common
}

func LoadLocal(r env.Resolver) (LocalConfig, error) {
	c := LocalConfig{
		BaseURL:         r.Get(BaseURL, DefaultBaseURL),
		DataPlaneURL:    r.Get(DataPlaneURL, DefaultDataPlaneURL),
		SessionAgentURL: r.Get(SessionAgentURL, DefaultSessionAgentURL),
		Common:          loadCommon(r, DefaultLocalScript),
	}
	var err error
	if c.HealthTimeout, err = duration(r, HealthTimeout, DefaultHealthTimeout); err != nil {
		return c, err
	}
	return c, nil
}
