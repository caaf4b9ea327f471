package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/stackcheck/internal/cli"
	"github.com/loykin/stackcheck/internal/config"
	"github.com/loykin/stackcheck/internal/health"
	"github.com/loykin/stackcheck/internal/session"
	"github.com/loykin/stackcheck/internal/stacktest"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	return cli.Execute(buildRoot(stdout, stderr), args, stderr)
}

func buildRoot(stdout, stderr io.Writer) *cobra.Command {
	globalFlags := &cli.GlobalFlags{}
	root := &cobra.Command{
		Use:   "local-stack-test",
		Short: "Test a locally running stack",
		Long: `Checks the control-plane, data-plane and session-agent health endpoints in
order and, when all of them answer 200, runs the session flow script against
the control plane.

Examples:
  local-stack-test
  BASE_URL=http://localhost:18080 local-stack-test --session-agent-url=http://localhost:19000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cli.Resolve(cmd, globalFlags)
			if err != nil {
				return err
			}
			cfg, err := config.LoadLocal(r)
			if err != nil {
				return err
			}
			log := cli.Logger(stderr, cfg.LogLevel)
			defer cli.StartMetrics(cfg.MetricsFile, log)()

			runner := session.NewRunner(cfg.SessionScript, log)
			runner.Stdout = stdout
			runner.Stderr = stderr

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return stacktest.RunLocal(ctx, cfg, stacktest.LocalDeps{
				Checker: health.New(cfg.HealthTimeout, stdout, log),
				Session: runner,
				Out:     stdout,
			})
		},
	}

	fs := root.Flags()
	cli.AddCommonFlags(fs, globalFlags, config.DefaultLocalScript)
	fs.String(config.FlagName(config.BaseURL), config.DefaultBaseURL, "control-plane base URL")
	fs.String(config.FlagName(config.DataPlaneURL), config.DefaultDataPlaneURL, "data-plane base URL")
	fs.String(config.FlagName(config.SessionAgentURL), config.DefaultSessionAgentURL, "session-agent base URL")
	fs.String(config.FlagName(config.HealthTimeout), config.DefaultHealthTimeout.String(), "timeout of each health request")
	return root
}
