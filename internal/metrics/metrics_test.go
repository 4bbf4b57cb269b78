package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOutcome(t *testing.T) {
	t.Parallel()
	r := New("guardrails-probe")

	r.RecordOutcome("Deployment", "PATCHED")
	r.RecordOutcome("Deployment", "PATCHED")
	r.RecordOutcome("Deployment", "OK")

	assert.Equal(t, float64(2), testutil.ToFloat64(r.outcomesTotal.WithLabelValues("Deployment", "PATCHED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.outcomesTotal.WithLabelValues("Deployment", "OK")))
}

func TestRecordWrite(t *testing.T) {
	t.Parallel()
	r := New("dashboard-redirect")

	r.RecordWrite("create", nil)
	r.RecordWrite("patch", errors.New("boom"))

	assert.Equal(t, float64(1), testutil.ToFloat64(r.apiCallsTotal.WithLabelValues("create", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.apiCallsTotal.WithLabelValues("patch", "error")))
}

func TestObserveRollout(t *testing.T) {
	t.Parallel()
	r := New("guardrails-probe")
	r.ObserveRollout("Deployment", 3*time.Second)
	assert.Equal(t, 1, testutil.CollectAndCount(r.rolloutDuration))
}

func TestNilRecorder(t *testing.T) {
	t.Parallel()
	var r *Recorder

	assert.NotPanics(t, func() {
		r.RecordOutcome("Deployment", "OK")
		r.RecordWrite("patch", nil)
		r.ObserveRollout("Deployment", time.Second)
		r.Finish(true, time.Now())
	})
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile("/nonexistent/metrics.prom"))
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()
	r := New("guardrails-probe")
	r.RecordOutcome("Deployment", "FAILED")
	r.Finish(false, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `upgrade_helpers_resource_outcomes_total{kind="Deployment",status="FAILED",tool="guardrails-probe"} 1`)
	assert.Contains(t, out, `upgrade_helpers_last_run_timestamp_seconds{success="false",tool="guardrails-probe"} 1.7e+09`)
}

func TestWriteTextfile_EmptyPath(t *testing.T) {
	t.Parallel()
	assert.NoError(t, New("x").WriteTextfile(""))
}
