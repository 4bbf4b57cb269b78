package fakes

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s"
)

// NewObject builds an unstructured object of kind with the given top-level
// fields merged in (for example "spec" or "metadata" extras).
func NewObject(kind k8s.Kind, namespace, name string, fields map[string]interface{}) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{}}
	for k, v := range fields {
		obj.Object[k] = v
	}
	obj.SetGroupVersionKind(kind.GVK())
	obj.SetName(name)
	if kind.Namespaced() {
		obj.SetNamespace(namespace)
	}
	return obj
}

// Deployment builds a single-container deployment. A nil probe leaves the
// readiness probe unset.
func Deployment(namespace, name string, probe map[string]interface{}) *unstructured.Unstructured {
	container := map[string]interface{}{
		"name":  name,
		"image": "quay.io/trustyai/ta-guardrails-orchestrator:latest",
	}
	if probe != nil {
		container["readinessProbe"] = probe
	}
	return NewObject(k8s.KindDeployment, namespace, name, map[string]interface{}{
		"spec": map[string]interface{}{
			"selector": map[string]interface{}{
				"matchLabels": map[string]interface{}{"app": name},
			},
			"template": map[string]interface{}{
				"metadata": map[string]interface{}{
					"labels": map[string]interface{}{"app": name},
				},
				"spec": map[string]interface{}{
					"containers": []interface{}{container},
				},
			},
		},
	})
}

// HTTPProbe returns a readiness probe map with the given path and port.
// The port may be an int64 or a string.
func HTTPProbe(path string, port interface{}) map[string]interface{} {
	return map[string]interface{}{
		"httpGet": map[string]interface{}{
			"path": path,
			"port": port,
		},
	}
}

// GuardrailsOrchestrator builds an empty GuardrailsOrchestrator CR.
func GuardrailsOrchestrator(namespace, name string) *unstructured.Unstructured {
	return NewObject(k8s.KindGuardrailsOrchestrator, namespace, name, map[string]interface{}{
		"spec": map[string]interface{}{"replicas": int64(1)},
	})
}
