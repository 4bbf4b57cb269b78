package labels

// Standard label keys.
const (
	// KeyApp is the selector label shared by the workload, service and routes.
	KeyApp = "app"

	// KeyManagedBy identifies the tool that produced the object
	KeyManagedBy = "app.kubernetes.io/managed-by"

	// KeyPartOf groups the objects of one generated set
	KeyPartOf = "app.kubernetes.io/part-of"

	// KeyComponent names the role of an object inside the set
	KeyComponent = "app.kubernetes.io/component"
)

// ManagedByUpgradeHelpers is the managed-by value for everything this module creates.
const ManagedByUpgradeHelpers = "upgrade-helpers"

// LabelBuilder provides a fluent interface for building object labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a builder with the app and managed-by labels set.
func NewLabelBuilder(app string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyApp:       app,
			KeyManagedBy: ManagedByUpgradeHelpers,
		},
	}
}

// WithPartOf sets the set the object belongs to.
func (lb *LabelBuilder) WithPartOf(set string) *LabelBuilder {
	lb.labels[KeyPartOf] = set
	return lb
}

// WithComponent sets the component label, skipping empty values.
func (lb *LabelBuilder) WithComponent(component string) *LabelBuilder {
	if component != "" {
		lb.labels[KeyComponent] = component
	}
	return lb
}

// Merge adds all labels from the provided map. Existing keys are overwritten.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// SelectorForApp returns a label selector string for all objects of app.
func SelectorForApp(app string) string {
	return KeyApp + "=" + app
}
