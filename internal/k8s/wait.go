package k8s

import (
	"context"
	"errors"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/wait"
)

// ErrNotReady is returned by WaitReady when the timeout elapses first.
var ErrNotReady = errors.New("timed out waiting for resource to become ready")

// WaitReady polls the object until it is ready. Deployments are ready once
// the latest generation has been observed and fully rolled out; every other
// kind is ready as soon as it exists.
func (c *kubeCluster) WaitReady(ctx context.Context, ref Ref, timeout time.Duration) error {
	var lastErr error
	err := wait.PollUntilContextTimeout(ctx, c.pollInterval, timeout, true, func(ctx context.Context) (bool, error) {
		obj, err := c.Get(ctx, ref.Kind, ref.Namespace, ref.Name)
		if err != nil {
			// Read failures keep polling until the deadline.
			lastErr = err
			return false, nil
		}
		return isReady(ref.Kind, obj)
	})
	if err == nil {
		return nil
	}
	if wait.Interrupted(err) {
		if lastErr != nil {
			return fmt.Errorf("%w: %s after %v (last error: %v)", ErrNotReady, ref, timeout, lastErr)
		}
		return fmt.Errorf("%w: %s after %v", ErrNotReady, ref, timeout)
	}
	return err
}

func isReady(kind Kind, obj *unstructured.Unstructured) (bool, error) {
	if kind != KindDeployment {
		return true, nil
	}
	deployment := &appsv1.Deployment{}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, deployment); err != nil {
		return false, fmt.Errorf("failed to decode deployment %s: %w", obj.GetName(), err)
	}
	return IsDeploymentReady(deployment), nil
}

// IsDeploymentReady reports whether the deployment's current generation has
// finished rolling out and is available.
func IsDeploymentReady(deployment *appsv1.Deployment) bool {
	if deployment.Status.ObservedGeneration < deployment.Generation {
		return false
	}

	replicas := int32(1)
	if deployment.Spec.Replicas != nil {
		replicas = *deployment.Spec.Replicas
	}
	if deployment.Status.UpdatedReplicas != replicas {
		return false
	}
	if deployment.Status.Replicas != replicas {
		return false
	}
	if deployment.Status.AvailableReplicas != replicas {
		return false
	}

	for _, condition := range deployment.Status.Conditions {
		if condition.Type == appsv1.DeploymentAvailable &&
			condition.Status == corev1.ConditionTrue {
			return true
		}
	}

	return false
}
