// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/client-go/kubernetes"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/config"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/executor"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/metrics"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/report"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/util/retry"
)

// Runtime carries what every handler needs from the command layer.
type Runtime struct {
	Global config.Global
	// Getter resolves the kubeconfig selected by the global flags.
	Getter genericclioptions.RESTClientGetter
	Out    io.Writer
}

func (rt Runtime) reportOptions() report.Options {
	return report.Options{
		Color:     report.ColorEnabled(rt.Global.NoColor),
		NoHeaders: rt.Global.NoHeaders,
	}
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// newClients connects to the cluster selected by getter.
	newClients = func(getter genericclioptions.RESTClientGetter, poll time.Duration) (k8s.Cluster, kubernetes.Interface, error) {
		restCfg, err := getter.ToRESTConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load kubeconfig: %w", err)
		}
		cluster, err := k8s.New(restCfg, k8s.WithPollInterval(poll))
		if err != nil {
			return nil, nil, err
		}
		cs, err := k8s.NewClientset(restCfg)
		if err != nil {
			return nil, nil, err
		}
		return cluster, cs, nil
	}

	// writeFile writes data to a file (for testing injection).
	writeFile = os.WriteFile

	// now stamps the metrics of a finished run.
	now = time.Now
)

// preflight fails fast when the cluster is unreachable, we are not logged
// in, or the namespace (when given) does not exist.
func preflight(ctx context.Context, cs kubernetes.Interface, namespace string) error {
	logger := log.FromContext(ctx)

	user, err := k8s.CheckAuthenticated(ctx, cs)
	if err != nil {
		return err
	}
	if user != "" {
		logger.V(1).Info("authenticated", "user", user)
	}

	if namespace == "" {
		return nil
	}
	return k8s.CheckNamespace(ctx, cs, namespace)
}

func newExecutor(cluster k8s.Cluster, mode executor.Mode, g config.Global, rec *metrics.Recorder) *executor.Executor {
	return executor.New(cluster, mode,
		executor.WithRolloutTimeout(g.Timeouts.Rollout),
		executor.WithRetry(
			retry.WithMaxRetries(g.Timeouts.RetryMaxAttempts),
			retry.WithInitialDelay(g.Timeouts.RetryInitialDelay),
		),
		executor.WithMetrics(rec),
	)
}

// finishMetrics stamps the run and writes the textfile when one was
// requested. A write failure is logged and never changes the exit status.
func finishMetrics(ctx context.Context, rec *metrics.Recorder, path string, success bool) {
	rec.Finish(success, now())
	if err := rec.WriteTextfile(path); err != nil {
		log.FromContext(ctx).Error(err, "metrics not written", "path", path)
	}
}
