// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/rhoai-upgrade/upgrade-helpers/cmd/upgrade-helpers/handlers"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/config"
)

// rootOptions is the state shared by every subcommand of one invocation.
type rootOptions struct {
	v         *viper.Viper
	kubeFlags *genericclioptions.ConfigFlags
}

// runtime assembles the handler runtime for the command being executed.
func (o *rootOptions) runtime(cmd *cobra.Command) handlers.Runtime {
	return handlers.Runtime{
		Global: config.LoadGlobal(o.v),
		Getter: o.kubeFlags,
		Out:    cmd.OutOrStdout(),
	}
}

// bind makes the command's flags visible to viper. Subcommands bind inside
// RunE because several of them declare flags with the same name.
func (o *rootOptions) bind(cmd *cobra.Command) error {
	if err := o.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	return nil
}

// Root returns the root command for the upgrade-helpers CLI.
//
// The root command owns the kubeconfig flags, logging setup and the settings
// every subcommand shares.
func Root() *cobra.Command {
	opts := &rootOptions{
		v:         config.New(),
		kubeFlags: genericclioptions.NewConfigFlags(true),
	}
	// -n/--namespace belongs to guardrails-probe.
	opts.kubeFlags.Namespace = nil

	cmd := &cobra.Command{
		Use:           "upgrade-helpers",
		Short:         "Reconcile cluster state across an OpenShift AI upgrade",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}
			logger := newLogger(cmd.ErrOrStderr(), opts.v.GetBool(config.KeyVerbose))
			log.SetLogger(logger)
			cmd.SetContext(log.IntoContext(cmd.Context(), logger))
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolP(config.KeyVerbose, "v", false, "Enable debug logging")
	pf.Bool(config.KeyNoColor, false, "Disable colored output")
	pf.Bool(config.KeyNoHeaders, false, "Omit the header row of the outcome table")
	pf.String(config.KeyMetricsFile, "", "Write Prometheus metrics for the run to this file")
	pf.String(config.KeyRolloutTimeout, "120s", "Maximum time to wait for a patched deployment to roll out")
	pf.String(config.KeyPollInterval, "5s", "Interval between rollout readiness checks")
	opts.kubeFlags.AddFlags(pf)

	cmd.AddCommand(GuardrailsProbe(opts))
	cmd.AddCommand(DashboardRedirect(opts))
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}

// newLogger builds the zap-backed logr.Logger used for diagnostics. Debug
// output is enabled with --verbose.
func newLogger(w io.Writer, verbose bool) logr.Logger {
	zopts := zap.Options{
		Development: verbose,
		DestWriter:  w,
	}
	return zap.New(zap.UseFlagOptions(&zopts))
}
