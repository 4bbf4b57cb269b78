package redirect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/decider"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/executor"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/locator"
)

// Plan compares each rendered object with the cluster and returns one step
// per object. Missing objects are created; drifted ones get a merge patch
// carrying the full desired object.
func Plan(ctx context.Context, loc *locator.Locator, objs []*unstructured.Unstructured) ([]executor.Step, error) {
	steps := make([]executor.Step, 0, len(objs))
	for _, obj := range objs {
		kind, ok := k8s.KindForGVK(obj.GroupVersionKind())
		if !ok {
			return nil, fmt.Errorf("unsupported object %s %s", obj.GroupVersionKind(), obj.GetName())
		}
		ref := k8s.Ref{Kind: kind, Namespace: obj.GetNamespace(), Name: obj.GetName()}
		step := executor.Step{Ref: ref, WaitRollout: kind == k8s.KindDeployment}

		observed := loc.Fetch(ctx, kind, ref.Namespace, ref.Name)
		class, drift := decider.ClassifyObject(obj, observed)
		step.Class = class

		switch class {
		case decider.Missing:
			step.Create = obj.DeepCopy()
		case decider.NeedsAction:
			data, err := json.Marshal(obj.Object)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal patch for %s: %w", ref, err)
			}
			step.PatchType = types.MergePatchType
			step.Patch = data
			step.Detail = "drift: " + strings.Join(drift, ", ")
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// Reconcile plans the manifest against the cluster and executes the steps.
func Reconcile(ctx context.Context, cluster k8s.Cluster, m *Manifest, exec *executor.Executor) (executor.Summary, error) {
	steps, err := Plan(ctx, locator.New(cluster), m.Objects)
	if err != nil {
		return executor.Summary{}, err
	}
	return exec.Execute(ctx, steps), nil
}
