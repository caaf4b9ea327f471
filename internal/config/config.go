package config

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/loykin/stackcheck/internal/env"
)

// Environment variable names. The lower-cased name is the viper key, the TOML
// key, and (with underscores turned into dashes) the CLI flag.
const (
	Namespace             = "NAMESPACE"
	ControlPlaneService   = "CONTROL_PLANE_SERVICE"
	DataPlaneService      = "DATA_PLANE_SERVICE"
	LocalControlPlanePort = "LOCAL_CONTROL_PLANE_PORT"
	LocalDataPlanePort    = "LOCAL_DATA_PLANE_PORT"
	BaseURL               = "BASE_URL"
	DataPlaneURL          = "DATA_PLANE_URL"
	SessionAgentURL       = "SESSION_AGENT_URL"

	SessionScript    = "SESSION_SCRIPT"
	Kubectl          = "KUBECTL"
	ForwardWait      = "FORWARD_WAIT"
	StopTimeout      = "STOP_TIMEOUT"
	Readiness        = "READINESS"
	ReadinessTimeout = "READINESS_TIMEOUT"
	HealthTimeout    = "HEALTH_TIMEOUT"
	VerifyServices   = "VERIFY_SERVICES"
	Kubeconfig       = "KUBECONFIG"
	ForwardLogDir    = "FORWARD_LOG_DIR"
	LogLevel         = "LOG_LEVEL"
	MetricsFile      = "METRICS_FILE"
)

var allKeys = []string{
	Namespace, ControlPlaneService, DataPlaneService, LocalControlPlanePort, LocalDataPlanePort,
	BaseURL, DataPlaneURL, SessionAgentURL,
	SessionScript, Kubectl, ForwardWait, StopTimeout, Readiness, ReadinessTimeout, HealthTimeout,
	VerifyServices, Kubeconfig, ForwardLogDir, LogLevel, MetricsFile,
}

// Key returns the viper key for an environment variable name.
func Key(name string) string { return strings.ToLower(name) }

// FlagName returns the CLI flag name for an environment variable name.
func FlagName(name string) string { return strings.ReplaceAll(Key(name), "_", "-") }

// New returns a viper instance that reads every known setting from the
// environment (exact, unprefixed names) and, when path is set, from a TOML file.
// An explicitly empty environment variable counts as set.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	v.AllowEmptyEnv(true)
	for _, name := range allKeys {
		if err := v.BindEnv(Key(name), name); err != nil {
			return nil, err
		}
	}
	if path != "" {
		v.SetConfigFile(filepath.Clean(path))
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

// BindFlags binds every flag in fs whose name matches a known setting.
// Only flags set on the command line take precedence over the environment.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, name := range allKeys {
		if f := fs.Lookup(FlagName(name)); f != nil {
			if err := v.BindPFlag(Key(name), f); err != nil {
				return err
			}
		}
	}
	return nil
}

// Resolver adapts v to env.Resolver so that Get/Require semantics apply to
// flags, environment and file alike.
func Resolver(v *viper.Viper) env.Resolver {
	return env.Resolver{Lookup: func(name string) (string, bool) {
		key := Key(name)
		if !v.IsSet(key) {
			return "", false
		}
		return v.GetString(key), true
	}}
}

// Common holds settings shared by both testers.
type Common struct {
	SessionScript string
	LogLevel      string
	MetricsFile   string
}

func loadCommon(r env.Resolver, defaultScript string) Common {
	return Common{
		SessionScript: r.Get(SessionScript, defaultScript),
		LogLevel:      r.Get(LogLevel, "warn"),
		MetricsFile:   r.Get(MetricsFile, ""),
	}
}

// duration parses a setting as a Go duration ("1500ms", "2s") or a plain
// number of seconds ("2", "0.5").
func duration(r env.Resolver, name string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(r.Get(name, ""))
	if s == "" {
		return def, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		ns := secs * float64(time.Second)
		if math.IsNaN(ns) || ns >= math.MaxInt64 || ns <= math.MinInt64 {
			return 0, fmt.Errorf("invalid %s %q: out of range", name, s)
		}
		return time.Duration(ns), nil
	}
	d, err := cast.ToDurationE(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return d, nil
}

func boolean(r env.Resolver, name string, def bool) (bool, error) {
	s := strings.TrimSpace(r.Get(name, ""))
	if s == "" {
		return def, nil
	}
	b, err := cast.ToBoolE(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return b, nil
}
