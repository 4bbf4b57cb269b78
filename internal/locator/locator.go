// Package locator reads facts out of live cluster objects without mutating
// anything. Reads are point-in-time and never retried; missing values are a
// normal result, not an error.
package locator

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/util/jsonpath"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s"
)

// QueryError wraps a failed list or read. Callers generally treat it as
// "zero instances" or "value absent".
type QueryError struct {
	Kind      k8s.Kind
	Namespace string
	Err       error
}

func (e *QueryError) Error() string {
	if e.Namespace == "" {
		return fmt.Sprintf("query %s failed: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("query %s in %s failed: %v", e.Kind, e.Namespace, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Field is a value read from an object. Present is false when the path did
// not resolve; an empty Value with Present true is still "not configured" for
// most callers.
type Field struct {
	Value   string
	Present bool
}

// Set reports whether the field holds a non-empty value.
func (f Field) Set() bool {
	return f.Present && f.Value != ""
}

// Locator answers read-only questions about the cluster.
type Locator struct {
	cluster k8s.Cluster
}

// New creates a Locator backed by cluster.
func New(cluster k8s.Cluster) *Locator {
	return &Locator{cluster: cluster}
}

// ListInstances returns the names of all objects of kind in namespace,
// sorted by name. A missing namespace or CRD surfaces as *QueryError.
func (l *Locator) ListInstances(ctx context.Context, kind k8s.Kind, namespace string) ([]string, error) {
	items, err := l.list(ctx, kind, namespace)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.GetName())
	}
	sort.Strings(names)
	return names, nil
}

// ReadField evaluates a JSONPath expression (kubectl syntax, with or without
// surrounding braces) against a single object. It never fails: any error,
// including a missing object, yields an absent Field.
func (l *Locator) ReadField(ctx context.Context, kind k8s.Kind, namespace, name, fieldPath string) Field {
	obj, err := l.cluster.Get(ctx, kind, namespace, name)
	if err != nil {
		return Field{}
	}
	return FieldOf(obj, fieldPath)
}

// Fetch returns the live object, or nil when it cannot be read.
func (l *Locator) Fetch(ctx context.Context, kind k8s.Kind, namespace, name string) *unstructured.Unstructured {
	obj, err := l.cluster.Get(ctx, kind, namespace, name)
	if err != nil {
		return nil
	}
	return obj
}

// FieldOf evaluates fieldPath against an already fetched object.
func FieldOf(obj *unstructured.Unstructured, fieldPath string) Field {
	if obj == nil {
		return Field{}
	}
	jp := jsonpath.New("field")
	if err := jp.Parse(braced(fieldPath)); err != nil {
		return Field{}
	}
	results, err := jp.FindResults(obj.Object)
	if err != nil || len(results) == 0 || len(results[0]) == 0 {
		return Field{}
	}

	var buf bytes.Buffer
	if err := jp.PrintResults(&buf, results[0][:1]); err != nil {
		return Field{}
	}
	return Field{Value: buf.String(), Present: true}
}

func (l *Locator) list(ctx context.Context, kind k8s.Kind, namespace string) ([]unstructured.Unstructured, error) {
	items, err := l.cluster.List(ctx, kind, namespace)
	if err != nil {
		return nil, &QueryError{Kind: kind, Namespace: namespace, Err: err}
	}
	return items, nil
}

func braced(path string) string {
	if len(path) > 0 && path[0] == '{' {
		return path
	}
	if len(path) > 0 && path[0] != '.' {
		path = "." + path
	}
	return "{" + path + "}"
}
