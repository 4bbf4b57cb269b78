package decider

import (
	"fmt"
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// ignoredMetadata lists server-populated metadata that never takes part in
// the comparison.
var ignoredMetadata = map[string]bool{
	"creationTimestamp": true,
	"generation":        true,
	"managedFields":     true,
	"resourceVersion":   true,
	"uid":               true,
}

// ClassifyObject reports whether every field set in desired is present in
// observed with the same value. Extra fields in observed are ignored (the
// API server fills in defaults), lists must match in length and then
// element-wise, and status is never compared. The returned paths
// name the fields that differ.
func ClassifyObject(desired, observed *unstructured.Unstructured) (Classification, []string) {
	if observed == nil {
		return Missing, nil
	}

	var drift []string
	for key, want := range desired.Object {
		switch key {
		case "status", "apiVersion", "kind":
			continue
		case "metadata":
			wantMeta, _ := want.(map[string]interface{})
			gotMeta, _ := observed.Object["metadata"].(map[string]interface{})
			for mk, mv := range wantMeta {
				if ignoredMetadata[mk] || mk == "name" || mk == "namespace" {
					continue
				}
				drift = compareValue("metadata."+mk, mv, gotMeta[mk], drift)
			}
		default:
			drift = compareValue(key, want, observed.Object[key], drift)
		}
	}

	if len(drift) == 0 {
		return Converged, nil
	}
	sort.Strings(drift)
	return NeedsAction, drift
}

func compareValue(path string, want, got interface{}, drift []string) []string {
	if wantMap, ok := want.(map[string]interface{}); ok {
		gotMap, ok := got.(map[string]interface{})
		if !ok {
			return append(drift, path)
		}
		for k, v := range wantMap {
			drift = compareValue(path+"."+k, v, gotMap[k], drift)
		}
		return drift
	}
	if wantList, ok := want.([]interface{}); ok {
		gotList, ok := got.([]interface{})
		if !ok || len(gotList) != len(wantList) {
			return append(drift, path)
		}
		for i := range wantList {
			drift = compareValue(fmt.Sprintf("%s[%d]", path, i), wantList[i], gotList[i], drift)
		}
		return drift
	}
	if render(want) != render(got) {
		return append(drift, path)
	}
	return drift
}

// render produces the literal string form used for comparison.
func render(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
