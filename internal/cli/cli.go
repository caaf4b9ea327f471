// Package cli holds the cobra plumbing shared by the stack tester binaries.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/loykin/stackcheck/internal/config"
	"github.com/loykin/stackcheck/internal/env"
	"github.com/loykin/stackcheck/internal/logger"
	"github.com/loykin/stackcheck/internal/metrics"
)

// GlobalFlags holds flags shared by every tester.
type GlobalFlags struct {
	ConfigPath string
}

// AddCommonFlags registers the config path and the settings shared by both testers.
func AddCommonFlags(fs *pflag.FlagSet, g *GlobalFlags, defaultScript string) {
	fs.StringVar(&g.ConfigPath, "config", "", "path to TOML config file (optional)")
	fs.String(config.FlagName(config.SessionScript), defaultScript, "session flow script run with bash")
	fs.String(config.FlagName(config.LogLevel), "warn", "diagnostic log level (debug, info, warn, error)")
	fs.String(config.FlagName(config.MetricsFile), "", "write prometheus metrics to this textfile on exit")
}

// Resolve builds the viper-backed settings for cmd (flags, env, optional
// file) and returns a resolver over them.
func Resolve(cmd *cobra.Command, g *GlobalFlags) (env.Resolver, error) {
	v, err := config.New(g.ConfigPath)
	if err != nil {
		return env.Resolver{}, err
	}
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return env.Resolver{}, err
	}
	return config.Resolver(v), nil
}

// Logger returns the diagnostic logger for the given level, writing to w.
func Logger(w io.Writer, level string) *slog.Logger {
	return logger.New(w, level)
}

// StartMetrics registers collectors on a private registry when path is set.
// The returned function writes the textfile and must be deferred.
func StartMetrics(path string, log *slog.Logger) func() {
	if path == "" {
		return func() {}
	}
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		log.Warn("metrics disabled", "error", err)
		return func() {}
	}
	return func() {
		if err := metrics.WriteTextfile(path, reg); err != nil {
			log.Warn("write metrics textfile", "path", path, "error", err)
		}
	}
}

// Execute runs root with args and maps the outcome to a process exit code:
// 0 on success, 1 with a single line on stderr otherwise.
func Execute(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SilenceErrors = true
	root.SilenceUsage = true
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}
