// Package k8s is the narrow query/command contract the upgrade helpers use to
// talk to a Kubernetes/OpenShift API server.
//
// Objects are handled as unstructured data keyed by a closed set of kinds, so
// the CRDs involved (GuardrailsOrchestrator, Route, ConsoleLink, ...) need no
// generated Go types.
package k8s

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Cluster is the query/command interface the pipelines depend on.
type Cluster interface {
	// Get returns a single object. Namespace is ignored for cluster-scoped kinds.
	Get(ctx context.Context, kind Kind, namespace, name string) (*unstructured.Unstructured, error)

	// List returns all objects of kind in namespace. An empty namespace lists
	// across all namespaces.
	List(ctx context.Context, kind Kind, namespace string) ([]unstructured.Unstructured, error)

	// Patch applies a partial update to an existing object.
	Patch(ctx context.Context, ref Ref, patchType types.PatchType, data []byte) error

	// Create creates obj. Its GVK must match one of the known kinds.
	Create(ctx context.Context, obj *unstructured.Unstructured) error

	// WaitReady blocks until the object reports ready or timeout elapses.
	WaitReady(ctx context.Context, ref Ref, timeout time.Duration) error
}

// kubeCluster implements Cluster on top of a controller-runtime client.
type kubeCluster struct {
	c            client.Client
	pollInterval time.Duration
}

// DefaultPollInterval is the readiness poll interval used when none is configured.
const DefaultPollInterval = 5 * time.Second

// Option configures a Cluster built by New or NewFromClient.
type Option func(*kubeCluster)

// WithPollInterval sets the interval between readiness checks in WaitReady.
func WithPollInterval(d time.Duration) Option {
	return func(c *kubeCluster) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// NewScheme returns a scheme with the built-in types plus every known CRD
// kind registered as unstructured.
func NewScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	for _, k := range AllKinds() {
		if scheme.Recognizes(k.GVK()) {
			continue
		}
		scheme.AddKnownTypeWithName(k.GVK(), &unstructured.Unstructured{})
		scheme.AddKnownTypeWithName(k.ListGVK(), &unstructured.UnstructuredList{})
	}
	return scheme
}

// New creates a Cluster from a REST config.
func New(cfg *rest.Config, opts ...Option) (Cluster, error) {
	c, err := client.New(cfg, client.Options{Scheme: NewScheme()})
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return NewFromClient(c, opts...), nil
}

// NewFromClient wraps an existing controller-runtime client.
// This is useful for testing with the fake client.
func NewFromClient(c client.Client, opts ...Option) Cluster {
	cl := &kubeCluster{c: c, pollInterval: DefaultPollInterval}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// NewClientset creates a typed clientset, used for preflight checks.
func NewClientset(cfg *rest.Config) (kubernetes.Interface, error) {
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}
	return cs, nil
}

func (c *kubeCluster) Get(ctx context.Context, kind Kind, namespace, name string) (*unstructured.Unstructured, error) {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(kind.GVK())
	key := types.NamespacedName{Name: name}
	if kind.Namespaced() {
		key.Namespace = namespace
	}
	if err := c.c.Get(ctx, key, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (c *kubeCluster) List(ctx context.Context, kind Kind, namespace string) ([]unstructured.Unstructured, error) {
	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(kind.ListGVK())

	var opts []client.ListOption
	if kind.Namespaced() && namespace != "" {
		opts = append(opts, client.InNamespace(namespace))
	}
	if err := c.c.List(ctx, list, opts...); err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *kubeCluster) Patch(ctx context.Context, ref Ref, patchType types.PatchType, data []byte) error {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(ref.Kind.GVK())
	obj.SetName(ref.Name)
	if ref.Kind.Namespaced() {
		obj.SetNamespace(ref.Namespace)
	}
	return c.c.Patch(ctx, obj, client.RawPatch(patchType, data))
}

func (c *kubeCluster) Create(ctx context.Context, obj *unstructured.Unstructured) error {
	if _, ok := KindForGVK(obj.GroupVersionKind()); !ok {
		return fmt.Errorf("refusing to create unknown kind %s", obj.GroupVersionKind())
	}
	return c.c.Create(ctx, obj)
}
