package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/stackcheck/internal/cli"
	"github.com/loykin/stackcheck/internal/config"
	"github.com/loykin/stackcheck/internal/kube"
	"github.com/loykin/stackcheck/internal/portforward"
	"github.com/loykin/stackcheck/internal/readiness"
	"github.com/loykin/stackcheck/internal/session"
	"github.com/loykin/stackcheck/internal/stacktest"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	return cli.Execute(buildRoot(stdout, stderr), args, stderr)
}

// buildRoot creates the root command
func buildRoot(stdout, stderr io.Writer) *cobra.Command {
	globalFlags := &cli.GlobalFlags{}
	root := &cobra.Command{
		Use:   "k8s-stack-test",
		Short: "Test a Kubernetes deployment of the stack through port-forwards",
		Long: `Forwards the control-plane and data-plane services to local ports with
kubectl, waits for the forwards, runs the session flow script against the
forwarded control plane and stops the forwards on every exit path.

Every flag can also be set through the environment variable of the same
name in upper case (--control-plane-service -> CONTROL_PLANE_SERVICE).

Examples:
  CONTROL_PLANE_SERVICE=cp DATA_PLANE_SERVICE=dp k8s-stack-test
  k8s-stack-test --namespace=stack --control-plane-service=cp --data-plane-service=dp --readiness=poll`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cli.Resolve(cmd, globalFlags)
			if err != nil {
				return err
			}
			cfg, err := config.LoadKubernetes(r)
			if err != nil {
				return err
			}
			log := cli.Logger(stderr, cfg.LogLevel)
			defer cli.StartMetrics(cfg.MetricsFile, log)()

			waiter, err := readiness.Parse(cfg.Readiness, cfg.ForwardWait, cfg.ReadinessTimeout, log)
			if err != nil {
				return err
			}
			runner := session.NewRunner(cfg.SessionScript, log)
			runner.Stdout = stdout
			runner.Stderr = stderr

			deps := stacktest.KubernetesDeps{
				Starter: portforward.ProcessStarter{},
				Waiter:  waiter,
				Session: runner,
				Out:     stdout,
				Logger:  log,
			}
			if cfg.VerifyServices {
				kubeconfig := cfg.Kubeconfig
				deps.Verifier = func(ctx context.Context, namespace string, names ...string) error {
					cs, err := kube.NewClientset(kubeconfig)
					if err != nil {
						return err
					}
					return kube.VerifyServices(ctx, cs, namespace, names...)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return stacktest.RunKubernetes(ctx, cfg, deps)
		},
	}

	fs := root.Flags()
	cli.AddCommonFlags(fs, globalFlags, config.DefaultKubernetesScript)
	fs.String(config.FlagName(config.Namespace), config.DefaultNamespace, "namespace of the services")
	fs.String(config.FlagName(config.ControlPlaneService), "", "control-plane service name (required)")
	fs.String(config.FlagName(config.DataPlaneService), "", "data-plane service name (required)")
	fs.String(config.FlagName(config.LocalControlPlanePort), config.DefaultLocalControlPlanePort, "local port forwarded to control-plane port 8080")
	fs.String(config.FlagName(config.LocalDataPlanePort), config.DefaultLocalDataPlanePort, "local port forwarded to data-plane port 8081")
	fs.String(config.FlagName(config.Kubectl), config.DefaultKubectl, "kubectl binary")
	fs.String(config.FlagName(config.ForwardWait), config.DefaultForwardWait.String(), "fixed wait after starting the forwards (delay readiness)")
	fs.String(config.FlagName(config.StopTimeout), config.DefaultStopTimeout.String(), "time a forward gets to exit before it is killed")
	fs.String(config.FlagName(config.Readiness), config.DefaultReadiness, "readiness strategy: delay or poll")
	fs.String(config.FlagName(config.ReadinessTimeout), config.DefaultReadinessTimeout.String(), "per-forward timeout of the poll strategy")
	fs.Bool(config.FlagName(config.VerifyServices), false, "check that both services exist before forwarding")
	fs.String(config.FlagName(config.Kubeconfig), "", "kubeconfig used by --verify-services")
	fs.String(config.FlagName(config.ForwardLogDir), "", "capture kubectl output in rotating files under this directory")
	return root
}
