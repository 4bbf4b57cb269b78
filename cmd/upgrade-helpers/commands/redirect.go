package commands

import (
	"github.com/spf13/cobra"

	"github.com/rhoai-upgrade/upgrade-helpers/cmd/upgrade-helpers/handlers"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/config"
)

// runDashboardRedirect is replaced in tests.
var runDashboardRedirect = handlers.DashboardRedirect

// DashboardRedirect returns the command that generates the manifest
// redirecting the legacy dashboard URL to the new gateway.
func DashboardRedirect(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard-redirect",
		Short: "Generate the redirect from the legacy dashboard URL",
		Long: `Discover the installed platform and the new dashboard URL, then write
a manifest that serves 301 redirects from the legacy dashboard route.

The manifest holds an nginx ConfigMap, Deployment, Service and Route. When the
new URL is on the rh-ai host, a second route keeps the old
data-science-gateway hostname working too.

By default the manifest is only written to disk. Use --apply to create or
update the objects directly.

Examples:
  # Auto-discover everything
  upgrade-helpers dashboard-redirect

  # Override the redirect destination
  upgrade-helpers dashboard-redirect --redirect-url https://rh-ai.apps.cluster.example.com

  # Keep a custom legacy hostname
  upgrade-helpers dashboard-redirect --route-host old-dashboard.apps.example.com

  # Apply to the cluster, showing the changes first
  upgrade-helpers dashboard-redirect --apply --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.bind(cmd); err != nil {
				return err
			}
			cfg, err := config.LoadRedirect(opts.v)
			if err != nil {
				return err
			}
			return runDashboardRedirect(cmd.Context(), opts.runtime(cmd), cfg)
		},
	}

	f := cmd.Flags()
	f.String(config.KeyRedirectURL, "", "Override the auto-discovered redirect destination URL")
	f.String(config.KeyRouteHost, "", "Set a custom hostname for the redirect route")
	f.StringP(config.KeyOutput, "o", config.DefaultOutput, "File to write the manifest to")
	f.Bool(config.KeyApply, false, "Create or update the objects in the cluster")
	f.Bool(config.KeyDryRun, false, "With --apply, only show what would change")

	return cmd
}
