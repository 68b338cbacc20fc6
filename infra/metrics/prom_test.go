package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/ctramp/core/metrics"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, s.RecordBatch(coremetrics.BatchEvent{Worker: "w1", Households: 250, Duration: 2 * time.Second}))
	require.NoError(t, s.RecordBatch(coremetrics.BatchEvent{Worker: "w1", Households: 50, Duration: time.Second}))
	require.NoError(t, s.RecordMatrixLoad(coremetrics.MatrixLoadEvent{Name: "SOV_TIME", Hit: false}))
	require.NoError(t, s.RecordMatrixLoad(coremetrics.MatrixLoadEvent{Name: "SOV_TIME", Hit: true}))
	require.NoError(t, s.RecordMatrixLoad(coremetrics.MatrixLoadEvent{Name: "SOV_TIME", Hit: true}))
	require.NoError(t, s.RecordRemoteRetry(coremetrics.RemoteRetryEvent{Procedure: "/x/Range"}))
	require.NoError(t, s.RecordStage(coremetrics.StageEvent{Stage: "cdap", Duration: time.Millisecond}))

	assert.Equal(t, 300.0, testutil.ToFloat64(s.households.WithLabelValues("w1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.loads.WithLabelValues("SOV_TIME", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.loads.WithLabelValues("SOV_TIME", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.retries.WithLabelValues("/x/Range")))
	assert.Equal(t, 2, testutil.CollectAndCount(s.batches))
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	b, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, a.RecordRemoteRetry(coremetrics.RemoteRetryEvent{Procedure: "p"}))
	require.NoError(t, b.RecordRemoteRetry(coremetrics.RemoteRetryEvent{Procedure: "p"}))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.retries.WithLabelValues("p")))
}
