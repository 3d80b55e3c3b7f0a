package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentsRegistered(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	// Vectors only appear after a label set is observed.
	assert.True(t, names["datapuur_"+MetricJobsRunning])
	assert.True(t, names["datapuur_"+MetricActivityDropped])
}

func TestCounterVecLabels(t *testing.T) {
	before := testutil.ToFloat64(CounterJobsFinished.WithLabelValues("completed"))
	CounterJobsFinished.WithLabelValues("completed").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CounterJobsFinished.WithLabelValues("completed")))

	CounterRowsIngested.WithLabelValues("delimited").Add(10)
	assert.GreaterOrEqual(t, testutil.ToFloat64(CounterRowsIngested.WithLabelValues("delimited")), 10.0)
}
