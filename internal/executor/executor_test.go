package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/decider"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s/fakes"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/metrics"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/util/retry"
)

const ns = "guardrails"

func deployRef(name string) k8s.Ref {
	return k8s.Ref{Kind: k8s.KindDeployment, Namespace: ns, Name: name}
}

var labelPatch = []byte(`{"metadata":{"labels":{"patched":"true"}}}`)

func patchStep(name string) Step {
	return Step{
		Ref:         deployRef(name),
		Class:       decider.NeedsAction,
		PatchType:   types.MergePatchType,
		Patch:       labelPatch,
		WaitRollout: true,
	}
}

func fastRetry() Option {
	return WithRetry(retry.WithMaxRetries(1), retry.WithInitialDelay(time.Millisecond))
}

func seeded() *fakes.FakeCluster {
	return fakes.NewFakeCluster(
		fakes.Deployment(ns, "a", nil),
		fakes.Deployment(ns, "b", nil),
		fakes.Deployment(ns, "c", nil),
	)
}

func mixedSteps() []Step {
	return []Step{
		{Ref: deployRef("a"), Class: decider.Converged},
		patchStep("b"),
		{Ref: deployRef("missing"), Class: decider.Missing},
		patchStep("c"),
	}
}

func TestMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		expected Mode
	}{
		{"inspect", Inspect},
		{"check", Inspect},
		{"apply", Apply},
		{"FIX", Apply},
		{"simulate", Simulate},
		{"dry-run", Simulate},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			m, err := ParseMode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, m)
		})
	}

	_, err := ParseMode("yolo")
	assert.Error(t, err)
	assert.Equal(t, "simulate", Simulate.String())
	assert.Equal(t, "Mode(9)", Mode(9).String())
}

func TestExecute_InspectNeverMutates(t *testing.T) {
	t.Parallel()
	fc := seeded()

	summary := New(fc, Inspect).Execute(context.Background(), mixedSteps())

	assert.Zero(t, fc.MutationCount())
	assert.Empty(t, fc.WaitCalls)
	require.Len(t, summary.Outcomes, 4)
	assert.Equal(t, StatusOK, summary.Outcomes[0].Status)
	assert.Equal(t, StatusNeedsAction, summary.Outcomes[1].Status)
	assert.Equal(t, StatusMissing, summary.Outcomes[2].Status)
	assert.Equal(t, StatusNeedsAction, summary.Outcomes[3].Status)
	assert.Equal(t, 0, summary.Failed())
	assert.Equal(t, Inspect, summary.Mode)
}

func TestExecute_Apply(t *testing.T) {
	t.Parallel()
	fc := seeded()

	summary := New(fc, Apply).Execute(context.Background(), mixedSteps())

	require.Len(t, summary.Outcomes, 4)
	assert.Equal(t, StatusOK, summary.Outcomes[0].Status)
	assert.Equal(t, StatusPatched, summary.Outcomes[1].Status)
	assert.Equal(t, StatusSkipped, summary.Outcomes[2].Status)
	assert.Equal(t, StatusPatched, summary.Outcomes[3].Status)
	assert.False(t, summary.Outcomes[1].DryRun)

	assert.Equal(t, 4, summary.Found())
	assert.Equal(t, 3, summary.Succeeded())
	assert.Equal(t, 0, summary.Failed())
	assert.Equal(t, 2, summary.Changes())
	assert.Equal(t, 2, fc.MutationCount())
	assert.Equal(t, []k8s.Ref{deployRef("b"), deployRef("c")}, fc.WaitCalls)

	assert.Equal(t, "true", fc.Object(deployRef("b")).GetLabels()["patched"])
}

func TestExecute_SimulateMatchesApply(t *testing.T) {
	t.Parallel()

	simCluster := seeded()
	sim := New(simCluster, Simulate).Execute(context.Background(), mixedSteps())

	applyCluster := seeded()
	applied := New(applyCluster, Apply).Execute(context.Background(), mixedSteps())

	assert.Zero(t, simCluster.MutationCount())
	assert.Empty(t, simCluster.WaitCalls)
	assert.Equal(t, applied.Count(StatusPatched), sim.Count(StatusPatched))
	assert.Equal(t, applyCluster.MutationCount(), sim.Changes())
	for _, o := range sim.Outcomes {
		if o.Status == StatusPatched {
			assert.True(t, o.DryRun)
		}
	}
}

func TestExecute_FaultIsolation(t *testing.T) {
	t.Parallel()
	fc := seeded()
	fc.ReadyErrors[deployRef("a")] = errors.New("timed out waiting for deployment")
	fc.PatchErrors[deployRef("b")] = apierrors.NewForbidden(
		schema.GroupResource{Group: "apps", Resource: "deployments"}, "b", errors.New("rbac"))

	steps := []Step{patchStep("a"), patchStep("b"), patchStep("c")}
	summary := New(fc, Apply, fastRetry()).Execute(context.Background(), steps)

	require.Len(t, summary.Outcomes, 3)
	assert.Equal(t, StatusFailed, summary.Outcomes[0].Status)
	assert.Contains(t, summary.Outcomes[0].Detail, "rollout did not complete")
	assert.Equal(t, StatusFailed, summary.Outcomes[1].Status)
	assert.Contains(t, summary.Outcomes[1].Detail, "patch failed")
	assert.Equal(t, StatusPatched, summary.Outcomes[2].Status)

	assert.Equal(t, 2, summary.Failed())
	assert.Equal(t, 1, summary.Succeeded())
	assert.Equal(t, []k8s.Ref{deployRef("a"), deployRef("b")}, summary.FailedRefs())
	// forbidden is not retried
	assert.Equal(t, 3, fc.MutationCount())
}

func TestExecute_RetriesConflict(t *testing.T) {
	t.Parallel()
	fc := seeded()
	fc.PatchErrors[deployRef("a")] = apierrors.NewConflict(
		schema.GroupResource{Group: "apps", Resource: "deployments"}, "a", errors.New("modified"))

	summary := New(fc, Apply, fastRetry()).Execute(context.Background(), []Step{patchStep("a")})

	assert.Equal(t, StatusFailed, summary.Outcomes[0].Status)
	assert.Equal(t, 2, fc.MutationCount())
}

func TestExecute_Create(t *testing.T) {
	t.Parallel()

	obj := fakes.NewObject(k8s.KindConfigMap, ns, "nginx-redirect-config", map[string]interface{}{
		"data": map[string]interface{}{"nginx.conf": "server {}"},
	})
	ref := k8s.Ref{Kind: k8s.KindConfigMap, Namespace: ns, Name: "nginx-redirect-config"}
	step := Step{Ref: ref, Class: decider.Missing, Create: obj}

	t.Run("apply creates", func(t *testing.T) {
		t.Parallel()
		fc := fakes.NewFakeCluster()
		summary := New(fc, Apply).Execute(context.Background(), []Step{step})
		assert.Equal(t, StatusCreated, summary.Outcomes[0].Status)
		require.NotNil(t, fc.Object(ref))
		assert.Equal(t, 1, summary.Succeeded())
	})

	t.Run("simulate creates nothing", func(t *testing.T) {
		t.Parallel()
		fc := fakes.NewFakeCluster()
		summary := New(fc, Simulate).Execute(context.Background(), []Step{step})
		assert.Equal(t, StatusCreated, summary.Outcomes[0].Status)
		assert.True(t, summary.Outcomes[0].DryRun)
		assert.Nil(t, fc.Object(ref))
	})

	t.Run("create error fails the step", func(t *testing.T) {
		t.Parallel()
		fc := fakes.NewFakeCluster(obj)
		summary := New(fc, Apply, fastRetry()).Execute(context.Background(), []Step{step})
		assert.Equal(t, StatusFailed, summary.Outcomes[0].Status)
		assert.Contains(t, summary.Outcomes[0].Detail, "already exists")
	})
}

func TestExecute_Unclassified(t *testing.T) {
	t.Parallel()
	fc := seeded()
	summary := New(fc, Apply).Execute(context.Background(), []Step{{Ref: deployRef("a")}})
	assert.Equal(t, StatusFailed, summary.Outcomes[0].Status)
	assert.Zero(t, fc.MutationCount())
}

func TestExecute_RecordsMetrics(t *testing.T) {
	t.Parallel()
	fc := seeded()
	rec := metrics.New("test")

	New(fc, Apply, WithMetrics(rec), WithRolloutTimeout(time.Second)).Execute(context.Background(), mixedSteps())

	families, err := rec.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "upgrade_helpers_resource_outcomes_total")
	assert.Contains(t, names, "upgrade_helpers_api_writes_total")
	assert.Contains(t, names, "upgrade_helpers_rollout_wait_seconds")
}

func TestSummary_Empty(t *testing.T) {
	t.Parallel()
	summary := New(seeded(), Apply).Execute(context.Background(), nil)
	assert.Equal(t, 0, summary.Found())
	assert.Equal(t, 0, summary.Failed())
	assert.Nil(t, summary.FailedRefs())
}
