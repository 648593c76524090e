package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordAnalysis(models.StatusSiap, 0.02)
	r.RecordAnalysis(models.StatusSiap, 0.03)
	r.RecordAnalysis(models.StatusSkip, 0.01)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.analyses.WithLabelValues("SIAP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.analyses.WithLabelValues("ABAIKAN")))

	r.RecordCacheResult("memory", true)
	r.RecordCacheResult("memory", false)
	r.RecordCacheResult("memory", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheResults.WithLabelValues("memory", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheResults.WithLabelValues("memory", "miss")))

	r.RecordScan(20, 4, 1.5)
	r.RecordScan(10, 2, 0.5)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.scans))
	assert.Equal(t, 30.0, testutil.ToFloat64(r.scanTickers))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.scanMatched))

	r.RecordTraining("walk_forward", 400, models.ClassificationMetrics{AUCROC: 0.71, F1: 0.4})
	assert.Equal(t, 400.0, testutil.ToFloat64(r.trainSamples.WithLabelValues("walk_forward")))
	assert.InDelta(t, 0.71, testutil.ToFloat64(r.trainScores.WithLabelValues("walk_forward", "auc_roc")), 1e-12)

	r.RecordModuleFailure("elliott")
	r.RecordFetchError("clickhouse")
	r.RecordError("result_store")
	r.RecordLatency("fetch_bars", 0.2)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"pulse_sapta_analyses_total",
		"pulse_sapta_module_failures_total",
		"pulse_fetch_errors_total",
		"pulse_errors_total",
		"pulse_operation_duration_seconds",
	} {
		assert.True(t, names[want], want)
	}
}

func TestRecorderIsolatedRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
