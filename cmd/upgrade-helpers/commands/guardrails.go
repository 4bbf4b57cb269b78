package commands

import (
	"github.com/spf13/cobra"

	"github.com/rhoai-upgrade/upgrade-helpers/cmd/upgrade-helpers/handlers"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/config"
)

// runGuardrailsProbe is replaced in tests.
var runGuardrailsProbe = handlers.GuardrailsProbe

// GuardrailsProbe returns the command that reconciles the readiness probe of
// every GuardrailsOrchestrator deployment in a namespace.
//
// Required flags:
//
//	--namespace, -n: Namespace holding the GuardrailsOrchestrator instances
//
// Optional flags:
//
//	--check: Report each deployment's state without writing
//	--fix: Patch deployments that differ (default)
//	--dry-run: Report what would change without sending any write
func GuardrailsProbe(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guardrails-probe",
		Short: "Fix the readiness probe on GuardrailsOrchestrator deployments",
		Long: `Ensure every GuardrailsOrchestrator deployment in a namespace probes
readiness on /health, port 8034.

Each instance is classified as converged, needing action or missing.
Deployments that differ are patched and their rollout is awaited.
Missing deployments are reported and skipped.

Examples:
  # Report which deployments need the fix
  upgrade-helpers guardrails-probe -n my-project --check

  # Apply the fix
  upgrade-helpers guardrails-probe -n my-project

  # Show what the fix would change
  upgrade-helpers guardrails-probe -n my-project --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.bind(cmd); err != nil {
				return err
			}
			cfg, err := config.LoadGuardrails(opts.v)
			if err != nil {
				return err
			}
			return runGuardrailsProbe(cmd.Context(), opts.runtime(cmd), cfg)
		},
	}

	f := cmd.Flags()
	f.StringP(config.KeyNamespace, "n", "", "Namespace holding the GuardrailsOrchestrator instances (required)")
	f.Bool(config.KeyCheck, false, "Report what would change without writing")
	f.Bool(config.KeyFix, false, "Patch deployments that differ (default)")
	f.Bool(config.KeyDryRun, false, "Simulate the fix; overrides --check and --fix")

	return cmd
}
