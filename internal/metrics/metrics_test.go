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

func TestRecorder_Operation(t *testing.T) {
	r := NewRecorder()

	r.Operation("deploy", nil)
	r.Operation("deploy", errors.New("boom"))
	r.Operation("deploy", errors.New("boom"))

	assert.Equal(t, float64(1), testutil.ToFloat64(r.operationsTotal.WithLabelValues("deploy", ResultSuccess)))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.operationsTotal.WithLabelValues("deploy", ResultError)))
}

func TestRecorder_Rollback(t *testing.T) {
	r := NewRecorder()

	r.Rollback(nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.rollbacksTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, float64(0), testutil.ToFloat64(r.rollbacksTotal.WithLabelValues(ResultError)))
}

func TestRecorder_TerraformCommand(t *testing.T) {
	r := NewRecorder()

	r.TerraformCommand("apply", 3*time.Second)
	r.TerraformCommand("init", time.Second)

	assert.Equal(t, 2, testutil.CollectAndCount(r.terraformSeconds, "airnode_deployer_terraform_command_duration_seconds"))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder

	assert.NotPanics(t, func() {
		r.Operation("deploy", nil)
		r.Rollback(errors.New("boom"))
		r.TerraformCommand("apply", time.Second)
	})
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "metrics.prom")))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Operation("remove", nil)

	path := filepath.Join(t.TempDir(), "airnode.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `airnode_deployer_operations_total{operation="remove",result="success"} 1`)
}
