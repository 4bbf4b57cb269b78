package handlers

import (
	"context"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/config"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/executor"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/guardrails"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/metrics"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/report"
)

// GuardrailsProbe reconciles the readiness probe of every
// GuardrailsOrchestrator deployment in cfg.Namespace.
//
// The run fails when the namespace holds no instances, when a precondition
// is not met, or when at least one deployment could not be converged.
func GuardrailsProbe(ctx context.Context, rt Runtime, cfg config.Guardrails) (err error) {
	logger := log.FromContext(ctx).WithValues("namespace", cfg.Namespace)
	ctx = log.IntoContext(ctx, logger)

	mode, err := executor.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	rec := metrics.New("guardrails-probe")
	defer func() { finishMetrics(ctx, rec, rt.Global.MetricsFile, err == nil) }()

	cluster, cs, err := newClients(rt.Getter, rt.Global.Timeouts.Poll)
	if err != nil {
		return err
	}
	if err := preflight(ctx, cs, cfg.Namespace); err != nil {
		return err
	}

	logger.Info("reconciling guardrails readiness probes", "mode", mode.String())
	summary, err := guardrails.Reconcile(ctx, cluster, cfg.Namespace, newExecutor(cluster, mode, rt.Global, rec))
	if err != nil {
		return err
	}

	if err := report.Render(rt.Out, summary, rt.reportOptions()); err != nil {
		return err
	}
	return report.ExitError(summary)
}
