package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NoError(t, metrics.Track("collections:init_status").End(nil))
	failure := errors.New("boom")
	assert.ErrorIs(t, metrics.Track("collections:init_status").End(failure), failure)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("collections:init_status", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("collections:init_status", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues("collections:init_status")))
}

func TestAddCleanedIgnoresNonPositive(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.AddCleaned(0)
	metrics.AddCleaned(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.cleaned))

	var nilMetrics *Metrics
	nilMetrics.AddCleaned(1)
	assert.NoError(t, nilMetrics.Track("x").End(nil))
}
