package redirect

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/decider"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/executor"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s/fakes"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/locator"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/resolver"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/util/labels"
)

const ns = "redhat-ods-applications"

func primary() resolver.RedirectTarget {
	return resolver.RedirectTarget{
		Namespace:   ns,
		RouteName:   "rhods-dashboard",
		RedirectURL: "https://rh-ai.apps.example.com",
	}
}

func legacy() resolver.RedirectTarget {
	return resolver.RedirectTarget{
		Namespace:   ns,
		RouteName:   "data-science-gateway-legacy",
		RedirectURL: "https://rh-ai.apps.example.com",
		Host:        "data-science-gateway.apps.example.com",
	}
}

// yamlDocs decodes the written manifest independently of the apimachinery
// decoder used by Render.
func yamlDocs(t *testing.T, data []byte) []map[string]interface{} {
	t.Helper()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var docs []map[string]interface{}
	for {
		var doc map[string]interface{}
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs
}

func kindNames(objs []*unstructured.Unstructured) []string {
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.GetKind()+"/"+o.GetName())
	}
	return out
}

func TestRender_Primary(t *testing.T) {
	t.Parallel()

	m, err := Render([]resolver.RedirectTarget{primary()})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ConfigMap/nginx-redirect-config",
		"Deployment/nginx-redirect",
		"Service/nginx-redirect",
		"Route/rhods-dashboard",
	}, kindNames(m.Objects))

	for _, obj := range m.Objects {
		assert.Equal(t, ns, obj.GetNamespace(), obj.GetName())
		assert.Equal(t, AppName, obj.GetLabels()[labels.KeyApp], obj.GetName())
		assert.Equal(t, labels.ManagedByUpgradeHelpers, obj.GetLabels()[labels.KeyManagedBy])
		assert.Equal(t, PartOf, obj.GetLabels()[labels.KeyPartOf])
	}

	conf, _, _ := unstructured.NestedString(m.Objects[0].Object, "data", "nginx.conf")
	assert.Contains(t, conf, "return 301 https://rh-ai.apps.example.com$request_uri;")
	assert.Contains(t, conf, "listen 8080;")

	route := m.Objects[3]
	_, hasHost, _ := unstructured.NestedString(route.Object, "spec", "host")
	assert.False(t, hasHost)
	svc, _, _ := unstructured.NestedString(route.Object, "spec", "to", "name")
	assert.Equal(t, "nginx-redirect", svc)
	termination, _, _ := unstructured.NestedString(route.Object, "spec", "tls", "termination")
	assert.Equal(t, "edge", termination)

	image, _, _ := unstructured.NestedSlice(m.Objects[1].Object, "spec", "template", "spec", "containers")
	require.Len(t, image, 1)
	assert.Equal(t, DefaultImage, image[0].(map[string]interface{})["image"])
}

func TestRender_HostAndExtraTargets(t *testing.T) {
	t.Parallel()

	p := primary()
	p.Host = "custom.example.com"
	m, err := Render([]resolver.RedirectTarget{p, legacy()})
	require.NoError(t, err)
	require.Len(t, m.Objects, 5)

	host, _, _ := unstructured.NestedString(m.Objects[3].Object, "spec", "host")
	assert.Equal(t, "custom.example.com", host)

	extra := m.Objects[4]
	assert.Equal(t, "Route", extra.GetKind())
	assert.Equal(t, "data-science-gateway-legacy", extra.GetName())
	host, _, _ = unstructured.NestedString(extra.Object, "spec", "host")
	assert.Equal(t, "data-science-gateway.apps.example.com", host)
	svc, _, _ := unstructured.NestedString(extra.Object, "spec", "to", "name")
	assert.Equal(t, "nginx-redirect", svc)
}

func TestRender_YAML(t *testing.T) {
	t.Parallel()

	m, err := Render([]resolver.RedirectTarget{primary(), legacy()})
	require.NoError(t, err)

	docs := yamlDocs(t, m.YAML)
	require.Len(t, docs, 5)

	var names []string
	for _, d := range docs {
		meta := d["metadata"].(map[string]interface{})
		names = append(names, d["kind"].(string)+"/"+meta["name"].(string))
	}
	assert.Equal(t, []string{
		"ConfigMap/nginx-redirect-config",
		"Deployment/nginx-redirect",
		"Service/nginx-redirect",
		"Route/rhods-dashboard",
		"Route/data-science-gateway-legacy",
	}, names)
	assert.Equal(t, 4, strings.Count(string(m.YAML), "---\n"))
}

func TestRender_Deterministic(t *testing.T) {
	t.Parallel()

	a, err := Render([]resolver.RedirectTarget{primary()})
	require.NoError(t, err)
	b, err := Render([]resolver.RedirectTarget{primary()})
	require.NoError(t, err)
	assert.Equal(t, string(a.YAML), string(b.YAML))
}

func TestRender_NoTargets(t *testing.T) {
	t.Parallel()
	_, err := Render(nil)
	assert.ErrorIs(t, err, ErrNoTargets)
}

func TestPlan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, err := Render([]resolver.RedirectTarget{primary()})
	require.NoError(t, err)

	existing := m.Objects[2].DeepCopy()
	require.NoError(t, unstructured.SetNestedField(existing.Object, "10.0.0.12", "spec", "clusterIP"))
	drifted := m.Objects[0].DeepCopy()
	require.NoError(t, unstructured.SetNestedField(drifted.Object, "stale", "data", "nginx.conf"))

	fc := fakes.NewFakeCluster(existing, drifted)
	steps, err := Plan(ctx, locator.New(fc), m.Objects)
	require.NoError(t, err)
	require.Len(t, steps, 4)

	assert.Equal(t, decider.NeedsAction, steps[0].Class)
	assert.Equal(t, "drift: data.nginx.conf", steps[0].Detail)
	assert.NotEmpty(t, steps[0].Patch)

	assert.Equal(t, decider.Missing, steps[1].Class)
	assert.True(t, steps[1].WaitRollout)
	require.NotNil(t, steps[1].Create)

	assert.Equal(t, decider.Converged, steps[2].Class)
	assert.Equal(t, decider.Missing, steps[3].Class)
	assert.False(t, steps[3].WaitRollout)
	assert.Zero(t, fc.MutationCount())
}

func TestReconcile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, err := Render([]resolver.RedirectTarget{primary(), legacy()})
	require.NoError(t, err)
	fc := fakes.NewFakeCluster()

	summary, err := Reconcile(ctx, fc, m, executor.New(fc, executor.Apply))
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Count(executor.StatusCreated))
	assert.Equal(t, 0, summary.Failed())
	assert.Equal(t, []k8s.Ref{{Kind: k8s.KindDeployment, Namespace: ns, Name: "nginx-redirect"}}, fc.WaitCalls)

	route := fc.Object(k8s.Ref{Kind: k8s.KindRoute, Namespace: ns, Name: "data-science-gateway-legacy"})
	require.NotNil(t, route)

	// a second run finds everything converged
	again, err := Reconcile(ctx, fc, m, executor.New(fc, executor.Apply))
	require.NoError(t, err)
	assert.Equal(t, 5, again.Count(executor.StatusOK))
	assert.Equal(t, 5, fc.MutationCount())
}

func TestReconcile_PatchesDrift(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	old, err := Render([]resolver.RedirectTarget{{Namespace: ns, RouteName: "rhods-dashboard", RedirectURL: "https://old.example.com"}})
	require.NoError(t, err)
	fc := fakes.NewFakeCluster(old.Objects...)

	m, err := Render([]resolver.RedirectTarget{primary()})
	require.NoError(t, err)

	summary, err := Reconcile(ctx, fc, m, executor.New(fc, executor.Apply))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count(executor.StatusPatched))
	assert.Equal(t, 3, summary.Count(executor.StatusOK))

	cm := fc.Object(k8s.Ref{Kind: k8s.KindConfigMap, Namespace: ns, Name: ConfigMapName})
	conf, _, _ := unstructured.NestedString(cm.Object, "data", "nginx.conf")
	assert.Contains(t, conf, "https://rh-ai.apps.example.com$request_uri")
}

func TestReconcile_Simulate(t *testing.T) {
	t.Parallel()

	m, err := Render([]resolver.RedirectTarget{primary()})
	require.NoError(t, err)
	fc := fakes.NewFakeCluster()

	summary, err := Reconcile(context.Background(), fc, m, executor.New(fc, executor.Simulate))
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Changes())
	assert.Zero(t, fc.MutationCount())
}
