// Package redirect renders and applies the nginx redirect that keeps legacy
// dashboard URLs working after the dashboard moves behind the data science
// gateway.
//
// The generated set is a ConfigMap holding the nginx config, a Deployment,
// a Service and one Route per redirect target. Object names are fixed so
// regenerating the set is idempotent and `-l app=nginx-redirect` removes it.
package redirect

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"text/template"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/yaml"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/resolver"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/util/labels"
)

//go:embed manifests/*
var manifestsFS embed.FS

const templatePath = "manifests/dashboard-redirect.yaml.tmpl"

// Fixed names of the generated objects.
const (
	AppName       = "nginx-redirect"
	ConfigMapName = "nginx-redirect-config"
	PartOf        = "dashboard-redirect"
)

// DefaultImage serves the redirect.
const DefaultImage = "registry.access.redhat.com/ubi9/nginx-124:latest"

// ErrNoTargets is returned when Render is called without a primary target.
var ErrNoTargets = errors.New("no redirect targets to render")

// templateData is the set of substitution points in the manifest template.
type templateData struct {
	Namespace   string
	RouteName   string
	RedirectURL string
	Image       string
}

// Manifest is a rendered redirect set.
type Manifest struct {
	Objects []*unstructured.Unstructured
	// YAML is the multi-document form of Objects, ready to write to disk.
	YAML []byte
}

// Render builds the redirect objects for targets. The first target is the
// primary one and gets the full set; every further target only adds a Route
// to the same service.
func Render(targets []resolver.RedirectTarget) (*Manifest, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	primary := targets[0]

	tmpl, err := loadTemplate()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, dataFor(primary)); err != nil {
		return nil, fmt.Errorf("failed to execute template %s: %w", templatePath, err)
	}
	for _, extra := range targets[1:] {
		buf.WriteString("\n---\n")
		if err := tmpl.ExecuteTemplate(&buf, "route", dataFor(extra)); err != nil {
			return nil, fmt.Errorf("failed to render route %s: %w", extra.RouteName, err)
		}
	}

	objs, err := decodeObjects(buf.Bytes())
	if err != nil {
		return nil, err
	}

	hosts := make(map[string]string, len(targets))
	for _, t := range targets {
		hosts[t.RouteName] = t.Host
	}
	for _, obj := range objs {
		if err := finalize(obj, hosts); err != nil {
			return nil, err
		}
	}

	data, err := encodeObjects(objs)
	if err != nil {
		return nil, err
	}
	return &Manifest{Objects: objs, YAML: data}, nil
}

func dataFor(t resolver.RedirectTarget) templateData {
	return templateData{
		Namespace:   t.Namespace,
		RouteName:   t.RouteName,
		RedirectURL: t.RedirectURL,
		Image:       DefaultImage,
	}
}

func loadTemplate() (*template.Template, error) {
	content, err := manifestsFS.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest template %s: %w", templatePath, err)
	}
	tmpl, err := template.New(templatePath).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", templatePath, err)
	}
	return tmpl, nil
}

// finalize sets the route host and the common labels on obj.
func finalize(obj *unstructured.Unstructured, hosts map[string]string) error {
	component := ""
	switch obj.GetKind() {
	case "Route":
		component = "route"
		if host := hosts[obj.GetName()]; host != "" {
			if err := unstructured.SetNestedField(obj.Object, host, "spec", "host"); err != nil {
				return fmt.Errorf("failed to set host on route %s: %w", obj.GetName(), err)
			}
		}
	case "ConfigMap":
		component = "config"
	case "Deployment":
		component = "server"
	case "Service":
		component = "service"
	}

	obj.SetLabels(labels.NewLabelBuilder(AppName).
		WithPartOf(PartOf).
		WithComponent(component).
		Merge(obj.GetLabels()).
		Build())
	return nil
}

func decodeObjects(manifests []byte) ([]*unstructured.Unstructured, error) {
	decoder := yaml.NewYAMLOrJSONDecoder(bytes.NewReader(manifests), 4096)

	var objs []*unstructured.Unstructured
	for {
		var raw unstructured.Unstructured
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode YAML document: %w", err)
		}

		// Skip empty documents
		if len(raw.Object) == 0 {
			continue
		}
		objs = append(objs, &raw)
	}
	return objs, nil
}

func encodeObjects(objs []*unstructured.Unstructured) ([]byte, error) {
	var buf bytes.Buffer
	for i, obj := range objs {
		out, err := sigsyaml.Marshal(obj.Object)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal YAML document: %w", err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(out)
	}
	return buf.Bytes(), nil
}
