package locator

import (
	"context"
	"sort"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s"
)

// JSONPath expressions for the readiness probe of a deployment's first container.
const (
	ContainerNameField = "{.spec.template.spec.containers[0].name}"
	ProbePathField     = "{.spec.template.spec.containers[0].readinessProbe.httpGet.path}"
	ProbePortField     = "{.spec.template.spec.containers[0].readinessProbe.httpGet.port}"
)

// Probe is the readiness probe location read from a deployment, along with
// the name of the container it belongs to.
type Probe struct {
	Container Field
	Path      Field
	Port      Field
}

// ReadProbe reads the first container's HTTP readiness probe. found is false
// when the deployment itself cannot be read.
func (l *Locator) ReadProbe(ctx context.Context, namespace, deployment string) (probe Probe, found bool) {
	obj, err := l.cluster.Get(ctx, k8s.KindDeployment, namespace, deployment)
	if err != nil {
		return Probe{}, false
	}
	return Probe{
		Container: FieldOf(obj, ContainerNameField),
		Path:      FieldOf(obj, ProbePathField),
		Port:      FieldOf(obj, ProbePortField),
	}, true
}

// DashboardConfig holds the identifying metadata of an OdhDashboardConfig.
type DashboardConfig struct {
	Namespace   string
	Name        string
	Annotations map[string]string
	Labels      map[string]string
}

// DashboardConfigs lists OdhDashboardConfig objects across all namespaces.
func (l *Locator) DashboardConfigs(ctx context.Context) ([]DashboardConfig, error) {
	items, err := l.list(ctx, k8s.KindOdhDashboardConfig, "")
	if err != nil {
		return nil, err
	}
	out := make([]DashboardConfig, 0, len(items))
	for _, item := range items {
		out = append(out, DashboardConfig{
			Namespace:   item.GetNamespace(),
			Name:        item.GetName(),
			Annotations: item.GetAnnotations(),
			Labels:      item.GetLabels(),
		})
	}
	return out, nil
}

// SubscriptionPackages returns the distinct OLM package names (spec.name) of
// all subscriptions in the cluster, sorted.
func (l *Locator) SubscriptionPackages(ctx context.Context) ([]string, error) {
	items, err := l.list(ctx, k8s.KindSubscription, "")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var pkgs []string
	for i := range items {
		name := FieldOf(&items[i], "{.spec.name}")
		if !name.Set() || seen[name.Value] {
			continue
		}
		seen[name.Value] = true
		pkgs = append(pkgs, name.Value)
	}
	sort.Strings(pkgs)
	return pkgs, nil
}

// ConsoleLink is the display text and target of an OpenShift console link.
type ConsoleLink struct {
	Name string
	Text string
	Href string
}

// ConsoleLinks lists all console links.
func (l *Locator) ConsoleLinks(ctx context.Context) ([]ConsoleLink, error) {
	items, err := l.list(ctx, k8s.KindConsoleLink, "")
	if err != nil {
		return nil, err
	}
	out := make([]ConsoleLink, 0, len(items))
	for i := range items {
		out = append(out, ConsoleLink{
			Name: items[i].GetName(),
			Text: FieldOf(&items[i], "{.spec.text}").Value,
			Href: FieldOf(&items[i], "{.spec.href}").Value,
		})
	}
	return out, nil
}

// RouteHost returns spec.host of a route.
func (l *Locator) RouteHost(ctx context.Context, namespace, name string) Field {
	return l.ReadField(ctx, k8s.KindRoute, namespace, name, "{.spec.host}")
}

// FindRouteHost looks for a route by name in any namespace and returns the
// host of the first match in namespace order.
func (l *Locator) FindRouteHost(ctx context.Context, name string) (Field, error) {
	items, err := l.list(ctx, k8s.KindRoute, "")
	if err != nil {
		return Field{}, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].GetNamespace() < items[j].GetNamespace()
	})
	for i := range items {
		if items[i].GetName() != name {
			continue
		}
		if host := FieldOf(&items[i], "{.spec.host}"); host.Set() {
			return host, nil
		}
	}
	return Field{}, nil
}
