package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.EngineRunning.Set(1)
	m.SimulationsTotal.WithLabelValues("WIN").Add(3)
	m.SimulationsTotal.WithLabelValues("LOSS").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.EngineRunning))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.SimulationsTotal.WithLabelValues("WIN")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SimulationsTotal.WithLabelValues("LOSS")))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "probe"))
	RecordDBQuery("postgres", "probe", 0.01, errors.New("boom"))
	RecordDBQuery("postgres", "probe", 0.01, nil)
	assert.Equal(t, before+1, testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "probe")))

	SetEngineRunning(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(DefaultMetrics.EngineRunning))
	SetEngineRunning(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(DefaultMetrics.EngineRunning))

	SetEngineConfig(50, 1.5)
	assert.Equal(t, float64(50), testutil.ToFloat64(DefaultMetrics.BatchSize))
	assert.Equal(t, 1.5, testutil.ToFloat64(DefaultMetrics.CycleIntervalSecs))

	hits := testutil.ToFloat64(DefaultMetrics.CacheLookups.WithLabelValues("hit"))
	RecordCacheLookup(true)
	assert.Equal(t, hits+1, testutil.ToFloat64(DefaultMetrics.CacheLookups.WithLabelValues("hit")))
}
