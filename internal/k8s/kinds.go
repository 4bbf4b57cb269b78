package k8s

import (
	"fmt"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Kind is one of the fixed resource shapes the tools understand.
type Kind int

// Known kinds. The zero value is deliberately invalid.
const (
	kindInvalid Kind = iota
	KindDeployment
	KindService
	KindConfigMap
	KindRoute
	KindGuardrailsOrchestrator
	KindOdhDashboardConfig
	KindSubscription
	KindConsoleLink
	kindSentinel
)

type kindInfo struct {
	gvk        schema.GroupVersionKind
	namespaced bool
}

var kinds = [kindSentinel]kindInfo{
	KindDeployment:             {schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "Deployment"}, true},
	KindService:                {schema.GroupVersionKind{Version: "v1", Kind: "Service"}, true},
	KindConfigMap:              {schema.GroupVersionKind{Version: "v1", Kind: "ConfigMap"}, true},
	KindRoute:                  {schema.GroupVersionKind{Group: "route.openshift.io", Version: "v1", Kind: "Route"}, true},
	KindGuardrailsOrchestrator: {schema.GroupVersionKind{Group: "trustyai.opendatahub.io", Version: "v1alpha1", Kind: "GuardrailsOrchestrator"}, true},
	KindOdhDashboardConfig:     {schema.GroupVersionKind{Group: "opendatahub.io", Version: "v1alpha", Kind: "OdhDashboardConfig"}, true},
	KindSubscription:           {schema.GroupVersionKind{Group: "operators.coreos.com", Version: "v1alpha1", Kind: "Subscription"}, true},
	KindConsoleLink:            {schema.GroupVersionKind{Group: "console.openshift.io", Version: "v1", Kind: "ConsoleLink"}, false},
}

// AllKinds returns every valid kind in declaration order.
func AllKinds() []Kind {
	out := make([]Kind, 0, int(kindSentinel)-1)
	for k := kindInvalid + 1; k < kindSentinel; k++ {
		out = append(out, k)
	}
	return out
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k > kindInvalid && k < kindSentinel
}

// GVK returns the group/version/kind for k. It panics on an invalid kind,
// which can only come from an unchecked integer conversion.
func (k Kind) GVK() schema.GroupVersionKind {
	if !k.Valid() {
		panic(fmt.Sprintf("k8s: invalid kind %d", int(k)))
	}
	return kinds[k].gvk
}

// ListGVK returns the GVK of the list type for k.
func (k Kind) ListGVK() schema.GroupVersionKind {
	gvk := k.GVK()
	gvk.Kind += "List"
	return gvk
}

// Namespaced reports whether objects of kind k live in a namespace.
func (k Kind) Namespaced() bool {
	return k.Valid() && kinds[k].namespaced
}

func (k Kind) String() string {
	if !k.Valid() {
		return "Invalid"
	}
	return kinds[k].gvk.Kind
}

// KindForGVK maps a GVK back to a known kind.
func KindForGVK(gvk schema.GroupVersionKind) (Kind, bool) {
	for _, k := range AllKinds() {
		if kinds[k].gvk == gvk {
			return k, true
		}
	}
	return kindInvalid, false
}

// Ref identifies a single cluster object.
type Ref struct {
	Kind      Kind
	Namespace string
	Name      string
}

func (r Ref) String() string {
	if r.Namespace == "" {
		return fmt.Sprintf("%s/%s", r.Kind, r.Name)
	}
	return fmt.Sprintf("%s %s/%s", r.Kind, r.Namespace, r.Name)
}
