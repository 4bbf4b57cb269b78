// Package fakes provides an in-memory k8s.Cluster for tests.
package fakes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/strategicpatch"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s"
)

// Call records one mutating request.
type Call struct {
	Verb      string
	Ref       k8s.Ref
	PatchType types.PatchType
	Data      []byte
}

type objectKey struct {
	kind      k8s.Kind
	namespace string
	name      string
}

// FakeCluster simulates k8s.Cluster with an in-memory object store.
type FakeCluster struct {
	mu      sync.Mutex
	objects map[objectKey]*unstructured.Unstructured

	Calls      []Call
	WaitCalls  []k8s.Ref
	GetCalls   int
	ListCalls  int
	ListErrors map[k8s.Kind]error
	// GetErrors fails reads of a single object.
	GetErrors    map[k8s.Ref]error
	PatchErrors  map[k8s.Ref]error
	CreateErrors map[k8s.Ref]error
	ReadyErrors  map[k8s.Ref]error
}

// NewFakeCluster returns a FakeCluster seeded with objs.
func NewFakeCluster(objs ...*unstructured.Unstructured) *FakeCluster {
	f := &FakeCluster{
		objects:      make(map[objectKey]*unstructured.Unstructured),
		ListErrors:   make(map[k8s.Kind]error),
		GetErrors:    make(map[k8s.Ref]error),
		PatchErrors:  make(map[k8s.Ref]error),
		CreateErrors: make(map[k8s.Ref]error),
		ReadyErrors:  make(map[k8s.Ref]error),
	}
	for _, obj := range objs {
		f.Add(obj)
	}
	return f
}

// Add stores a copy of obj. It panics if obj is not a known kind.
func (f *FakeCluster) Add(obj *unstructured.Unstructured) {
	kind, ok := k8s.KindForGVK(obj.GroupVersionKind())
	if !ok {
		panic(fmt.Sprintf("fakes: unknown kind %s", obj.GroupVersionKind()))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[keyFor(kind, obj.GetNamespace(), obj.GetName())] = obj.DeepCopy()
}

// Object returns the stored object or nil.
func (f *FakeCluster) Object(ref k8s.Ref) *unstructured.Unstructured {
	f.mu.Lock()
	defer f.mu.Unlock()
	if obj, ok := f.objects[keyFor(ref.Kind, ref.Namespace, ref.Name)]; ok {
		return obj.DeepCopy()
	}
	return nil
}

// MutationCount returns how many patch and create calls were made.
func (f *FakeCluster) MutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

func (f *FakeCluster) Get(_ context.Context, kind k8s.Kind, namespace, name string) (*unstructured.Unstructured, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls++
	if err := f.GetErrors[k8s.Ref{Kind: kind, Namespace: namespace, Name: name}]; err != nil {
		return nil, err
	}
	obj, ok := f.objects[keyFor(kind, namespace, name)]
	if !ok {
		return nil, notFound(kind, name)
	}
	return obj.DeepCopy(), nil
}

func (f *FakeCluster) List(_ context.Context, kind k8s.Kind, namespace string) ([]unstructured.Unstructured, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if err := f.ListErrors[kind]; err != nil {
		return nil, err
	}

	var items []unstructured.Unstructured
	for key, obj := range f.objects {
		if key.kind != kind {
			continue
		}
		if namespace != "" && kind.Namespaced() && key.namespace != namespace {
			continue
		}
		items = append(items, *obj.DeepCopy())
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].GetNamespace() != items[j].GetNamespace() {
			return items[i].GetNamespace() < items[j].GetNamespace()
		}
		return items[i].GetName() < items[j].GetName()
	})
	return items, nil
}

func (f *FakeCluster) Patch(_ context.Context, ref k8s.Ref, patchType types.PatchType, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Verb: "patch", Ref: ref, PatchType: patchType, Data: data})
	if err := f.PatchErrors[ref]; err != nil {
		return err
	}

	key := keyFor(ref.Kind, ref.Namespace, ref.Name)
	obj, ok := f.objects[key]
	if !ok {
		return notFound(ref.Kind, ref.Name)
	}

	original, err := json.Marshal(obj.Object)
	if err != nil {
		return err
	}

	var patched []byte
	switch patchType {
	case types.StrategicMergePatchType:
		if ref.Kind != k8s.KindDeployment {
			return unsupportedPatch(ref, patchType)
		}
		patched, err = strategicpatch.StrategicMergePatch(original, data, appsv1.Deployment{})
	case types.MergePatchType:
		patched, err = jsonpatch.MergePatch(original, data)
	case types.JSONPatchType:
		var p jsonpatch.Patch
		p, err = jsonpatch.DecodePatch(data)
		if err == nil {
			patched, err = p.Apply(original)
		}
	default:
		return unsupportedPatch(ref, patchType)
	}
	if err != nil {
		return apierrors.NewBadRequest(err.Error())
	}

	updated := &unstructured.Unstructured{}
	if err := updated.UnmarshalJSON(patched); err != nil {
		return apierrors.NewBadRequest(err.Error())
	}
	if ref.Kind == k8s.KindDeployment {
		if err := validateProbes(ref, updated); err != nil {
			return err
		}
	}
	updated.SetGeneration(obj.GetGeneration() + 1)
	f.objects[key] = updated
	return nil
}

func (f *FakeCluster) Create(_ context.Context, obj *unstructured.Unstructured) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kind, ok := k8s.KindForGVK(obj.GroupVersionKind())
	if !ok {
		return fmt.Errorf("refusing to create unknown kind %s", obj.GroupVersionKind())
	}
	ref := k8s.Ref{Kind: kind, Namespace: obj.GetNamespace(), Name: obj.GetName()}
	data, _ := json.Marshal(obj.Object)
	f.Calls = append(f.Calls, Call{Verb: "create", Ref: ref, Data: data})
	if err := f.CreateErrors[ref]; err != nil {
		return err
	}

	key := keyFor(kind, ref.Namespace, ref.Name)
	if _, exists := f.objects[key]; exists {
		return apierrors.NewAlreadyExists(groupResource(kind), ref.Name)
	}
	stored := obj.DeepCopy()
	stored.SetGeneration(1)
	f.objects[key] = stored
	return nil
}

func (f *FakeCluster) WaitReady(_ context.Context, ref k8s.Ref, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.WaitCalls = append(f.WaitCalls, ref)
	return f.ReadyErrors[ref]
}

func keyFor(kind k8s.Kind, namespace, name string) objectKey {
	if !kind.Namespaced() {
		namespace = ""
	}
	return objectKey{kind: kind, namespace: namespace, name: name}
}

var probeHandlers = []string{"httpGet", "tcpSocket", "exec", "grpc"}

// validateProbes rejects containers whose readiness probe names more than one
// handler, as the API server does.
func validateProbes(ref k8s.Ref, obj *unstructured.Unstructured) error {
	containers, _, _ := unstructured.NestedSlice(obj.Object, "spec", "template", "spec", "containers")
	for _, c := range containers {
		container, _ := c.(map[string]interface{})
		probe, _ := container["readinessProbe"].(map[string]interface{})
		n := 0
		for _, h := range probeHandlers {
			if _, ok := probe[h]; ok {
				n++
			}
		}
		if n > 1 {
			return apierrors.NewInvalid(schema.GroupKind{Group: "apps", Kind: "Deployment"}, ref.Name, field.ErrorList{
				field.Forbidden(field.NewPath("spec", "template", "spec", "containers", "readinessProbe"),
					"may not specify more than 1 handler type"),
			})
		}
	}
	return nil
}

func unsupportedPatch(ref k8s.Ref, patchType types.PatchType) error {
	return apierrors.NewGenericServerResponse(http.StatusUnsupportedMediaType, "patch", groupResource(ref.Kind), ref.Name,
		"unsupported patch type "+string(patchType), 0, false)
}

func groupResource(kind k8s.Kind) schema.GroupResource {
	return schema.GroupResource{
		Group:    kind.GVK().Group,
		Resource: strings.ToLower(kind.String()) + "s",
	}
}

func notFound(kind k8s.Kind, name string) error {
	return apierrors.NewNotFound(groupResource(kind), name)
}
