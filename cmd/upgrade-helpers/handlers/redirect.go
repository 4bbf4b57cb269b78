package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/config"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/executor"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/locator"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/metrics"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/redirect"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/report"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/resolver"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/util/labels"
)

var (
	colorBlue = lipgloss.Color("#3b82f6")
	colorDim  = lipgloss.Color("#6b7280")

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	sourceStyle  = lipgloss.NewStyle().Foreground(colorDim)
)

const manifestMode = 0o644

// DashboardRedirect resolves where the legacy dashboard should point,
// writes the redirect manifest to cfg.Output and, with cfg.Apply, converges
// the objects in the cluster.
func DashboardRedirect(ctx context.Context, rt Runtime, cfg config.Redirect) (err error) {
	var rec *metrics.Recorder
	if cfg.Apply {
		rec = metrics.New("dashboard-redirect")
		defer func() { finishMetrics(ctx, rec, rt.Global.MetricsFile, err == nil) }()
	}

	cluster, cs, err := newClients(rt.Getter, rt.Global.Timeouts.Poll)
	if err != nil {
		return err
	}
	if err := preflight(ctx, cs, ""); err != nil {
		return err
	}

	fmt.Fprintln(rt.Out, "Auto-discovering values from cluster...")
	facts, err := resolver.New(locator.New(cluster)).ResolveRedirect(ctx, resolver.Overrides{
		RedirectURL: cfg.RedirectURL,
		RouteHost:   cfg.RouteHost,
	})
	if err != nil {
		return withGuidance(err)
	}

	color := report.ColorEnabled(rt.Global.NoColor)
	printFacts(rt.Out, facts, color)

	m, err := redirect.Render(facts.Targets)
	if err != nil {
		return err
	}
	if err := writeFile(cfg.Output, m.YAML, manifestMode); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfg.Output, err)
	}
	fmt.Fprintf(rt.Out, "Generated: %s\n", cfg.Output)

	if !cfg.Apply {
		printApplyHint(rt.Out, cfg.Output, facts.Identity.Namespace)
		return nil
	}

	mode := executor.Apply
	if cfg.DryRun {
		mode = executor.Simulate
	}
	log.FromContext(ctx).Info("applying redirect manifest", "namespace", facts.Identity.Namespace, "mode", mode.String())

	summary, err := redirect.Reconcile(ctx, cluster, m, newExecutor(cluster, mode, rt.Global, rec))
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.Out)
	if err := report.Render(rt.Out, summary, rt.reportOptions()); err != nil {
		return err
	}
	return report.ExitError(summary)
}

// withGuidance appends the commands an operator can use to see why
// resolution failed. The sentinel stays matchable with errors.Is.
func withGuidance(err error) error {
	switch {
	case errors.Is(err, resolver.ErrPlatformUnresolved):
		return fmt.Errorf("%w\nPlease ensure RHOAI/ODH is installed.\n\nYou can check with:\n  oc get subscription -A", err)
	case errors.Is(err, resolver.ErrRedirectUnresolved):
		return fmt.Errorf("%w\nPlease ensure RHOAI/ODH is properly configured.\nOr provide --redirect-url to override.\n\nYou can check with:\n  oc get consolelink\n  oc get route data-science-gateway -A", err)
	default:
		return err
	}
}

func printFacts(w io.Writer, facts resolver.Facts, color bool) {
	paint := func(st lipgloss.Style, text string) string {
		if !color {
			return text
		}
		return st.Render(text)
	}
	source := func(s string) string {
		return paint(sourceStyle, "("+s+")")
	}

	primary := facts.Targets[0]
	fmt.Fprintln(w)
	fmt.Fprintln(w, paint(headingStyle, "Platform detected: "+facts.Identity.Platform.String()), source(facts.Identity.Source))
	fmt.Fprintf(w, "  NAMESPACE: %s\n", primary.Namespace)
	fmt.Fprintf(w, "  ROUTE_NAME: %s\n", primary.RouteName)
	fmt.Fprintf(w, "  REDIRECT_URL: %s %s\n", primary.RedirectURL, source(facts.RedirectURLSource))
	if primary.Host != "" {
		fmt.Fprintf(w, "  ROUTE_HOST: %s %s\n", primary.Host, source(facts.RouteHostSource))
	} else {
		fmt.Fprintf(w, "  ROUTE_HOST: %s\n", paint(sourceStyle, "(assigned by the router)"))
	}
	for _, extra := range facts.Targets[1:] {
		host := extra.Host
		if host == "" {
			host = "(assigned by the router)"
		}
		fmt.Fprintf(w, "  EXTRA_ROUTE: %s -> %s\n", extra.RouteName, host)
	}
	fmt.Fprintln(w)
}

func printApplyHint(w io.Writer, output, namespace string) {
	kinds := strings.Join([]string{"deployment", "service", "configmap", "route"}, ",")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "To apply the redirect route, run:")
	fmt.Fprintf(w, "  oc apply -f %s\n", output)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "To remove it again, run:")
	fmt.Fprintf(w, "  oc delete %s -n %s -l %s\n", kinds, namespace, labels.SelectorForApp(redirect.AppName))
}
