// Package guardrails reconciles the readiness probe of GuardrailsOrchestrator
// deployments.
//
// Each GuardrailsOrchestrator CR owns a deployment of the same name. After an
// upgrade that deployment can come up without an HTTP readiness probe, so
// traffic is routed to the orchestrator before it can serve. This package
// finds those deployments and patches the probe back in.
package guardrails

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/decider"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/executor"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/locator"
)

// ErrNoInstances is returned when the namespace holds no GuardrailsOrchestrator.
var ErrNoInstances = errors.New("no GuardrailsOrchestrator instances found")

// Discover returns the names of all GuardrailsOrchestrator CRs in namespace.
// A failed query counts as zero instances.
func Discover(ctx context.Context, loc *locator.Locator, namespace string) ([]string, error) {
	names, err := loc.ListInstances(ctx, k8s.KindGuardrailsOrchestrator, namespace)
	if err != nil {
		return nil, fmt.Errorf("%w in namespace %q: %w", ErrNoInstances, namespace, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in namespace %q", ErrNoInstances, namespace)
	}
	log.FromContext(ctx).V(1).Info("discovered orchestrators", "namespace", namespace, "count", len(names))
	return names, nil
}

// Plan classifies the deployment behind each CR and returns one step per CR,
// in the order given.
func Plan(ctx context.Context, loc *locator.Locator, namespace string, names []string) ([]executor.Step, error) {
	desired := decider.OrchestratorProbe()
	steps := make([]executor.Step, 0, len(names))

	for _, name := range names {
		ref := k8s.Ref{Kind: k8s.KindDeployment, Namespace: namespace, Name: name}
		step := executor.Step{Ref: ref, WaitRollout: true}

		probe, found := loc.ReadProbe(ctx, namespace, name)
		if !found {
			step.Class = decider.Classify(desired, nil)
			step.Detail = "deployment not found"
			steps = append(steps, step)
			continue
		}

		step.Class = decider.Classify(desired, &decider.ObservedProbeState{Path: probe.Path, Port: probe.Port})
		step.Detail = describe(probe)

		if step.Class == decider.NeedsAction {
			if !probe.Container.Set() {
				step.Class = decider.Unknown
				step.Detail = "deployment has no containers"
				steps = append(steps, step)
				continue
			}
			patch, err := ProbePatch(probe.Container.Value, desired)
			if err != nil {
				return nil, err
			}
			step.PatchType = types.StrategicMergePatchType
			step.Patch = patch
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// ProbePatch builds a strategic merge patch that sets the full desired
// readiness probe on the named container. Containers merge by name, so the
// rest of the pod template is left untouched. The probe itself is replaced
// whole: a leftover tcpSocket, exec or grpc handler next to httpGet is
// rejected by the API server.
func ProbePatch(container string, desired decider.DesiredProbe) ([]byte, error) {
	probe, err := runtime.DefaultUnstructuredConverter.ToUnstructured(desired.ContainerProbe())
	if err != nil {
		return nil, fmt.Errorf("failed to convert probe: %w", err)
	}
	probe["$patch"] = "replace"

	patch := map[string]interface{}{
		"spec": map[string]interface{}{
			"template": map[string]interface{}{
				"spec": map[string]interface{}{
					"containers": []interface{}{
						map[string]interface{}{
							"name":           container,
							"readinessProbe": probe,
						},
					},
				},
			},
		},
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal probe patch: %w", err)
	}
	return data, nil
}

// Reconcile runs discovery, planning and execution for one namespace.
func Reconcile(ctx context.Context, cluster k8s.Cluster, namespace string, exec *executor.Executor) (executor.Summary, error) {
	loc := locator.New(cluster)

	names, err := Discover(ctx, loc, namespace)
	if err != nil {
		return executor.Summary{}, err
	}
	steps, err := Plan(ctx, loc, namespace, names)
	if err != nil {
		return executor.Summary{}, err
	}
	return exec.Execute(ctx, steps), nil
}

func describe(p locator.Probe) string {
	return fmt.Sprintf("path=%s port=%s", show(p.Path), show(p.Port))
}

func show(f locator.Field) string {
	switch {
	case !f.Present:
		return "<absent>"
	case f.Value == "":
		return `""`
	default:
		return f.Value
	}
}
