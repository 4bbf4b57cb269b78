package fakes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s"
)

func TestFakeCluster_Patch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	route := k8s.Ref{Kind: k8s.KindRoute, Namespace: "ns", Name: "r"}
	deploy := k8s.Ref{Kind: k8s.KindDeployment, Namespace: "ns", Name: "d"}

	tests := []struct {
		name      string
		ref       k8s.Ref
		patchType types.PatchType
		data      string
		check     func(error) bool
	}{
		{
			name:      "strategic merge on a CRD kind",
			ref:       route,
			patchType: types.StrategicMergePatchType,
			data:      `{"spec":{"host":"x"}}`,
			check:     apierrors.IsUnsupportedMediaType,
		},
		{
			name:      "apply patch",
			ref:       deploy,
			patchType: types.ApplyPatchType,
			data:      `{}`,
			check:     apierrors.IsUnsupportedMediaType,
		},
		{
			name:      "second probe handler",
			ref:       deploy,
			patchType: types.StrategicMergePatchType,
			data:      `{"spec":{"template":{"spec":{"containers":[{"name":"d","readinessProbe":{"httpGet":{"path":"/health","port":8034}}}]}}}}`,
			check:     apierrors.IsInvalid,
		},
		{
			name:      "missing object",
			ref:       k8s.Ref{Kind: k8s.KindDeployment, Namespace: "ns", Name: "gone"},
			patchType: types.MergePatchType,
			data:      `{}`,
			check:     apierrors.IsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fc := NewFakeCluster(
				NewObject(k8s.KindRoute, "ns", "r", nil),
				Deployment("ns", "d", map[string]interface{}{
					"tcpSocket": map[string]interface{}{"port": int64(8034)},
				}),
			)

			err := fc.Patch(ctx, tt.ref, tt.patchType, []byte(tt.data))
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Equal(t, 1, fc.MutationCount())
		})
	}
}

func TestFakeCluster_PatchReplacesProbe(t *testing.T) {
	t.Parallel()
	ref := k8s.Ref{Kind: k8s.KindDeployment, Namespace: "ns", Name: "d"}
	fc := NewFakeCluster(Deployment("ns", "d", map[string]interface{}{
		"tcpSocket": map[string]interface{}{"port": int64(8034)},
	}))

	patch := `{"spec":{"template":{"spec":{"containers":[{"name":"d","readinessProbe":{"$patch":"replace","httpGet":{"path":"/health","port":8034}}}]}}}}`
	require.NoError(t, fc.Patch(context.Background(), ref, types.StrategicMergePatchType, []byte(patch)))

	obj := fc.Object(ref)
	require.NotNil(t, obj)
	assert.Equal(t, int64(1), obj.GetGeneration())
	containers, _, err := unstructured.NestedSlice(obj.Object, "spec", "template", "spec", "containers")
	require.NoError(t, err)
	require.Len(t, containers, 1)
	probe := containers[0].(map[string]interface{})["readinessProbe"].(map[string]interface{})
	assert.Equal(t, []string{"httpGet"}, keys(probe))
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
