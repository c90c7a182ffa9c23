package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ExtractionOutcome("parsed")
	m.ExtractionOutcome("parsed")
	m.ExtractionOutcome("malformed")
	m.Resolutions(map[string]int{"exact": 3, "position": 1})
	m.Resolutions(map[string]int{"exact": 1})
	m.InspectionsCreated(false, 4)
	m.InspectionsCreated(true, 0)
	m.Skipped("no_hive", 2)

	assert.InDelta(t, 2, testutil.ToFloat64(m.extractionsTotal.WithLabelValues("parsed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.extractionsTotal.WithLabelValues("malformed")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.resolutionsTotal.WithLabelValues("exact")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.resolutionsTotal.WithLabelValues("position")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.inspectionsTotal.WithLabelValues("false")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.skippedTotal.WithLabelValues("no_hive")), 0)
}

func TestMetrics_Registry(t *testing.T) {
	m := NewMetrics()
	m.ExtractionOutcome("empty")

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["beekeep_extractions_total"])
	assert.True(t, names["beekeep_active_hives"])
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ExtractionOutcome("parsed")
		m.Resolutions(map[string]int{"exact": 1})
		m.InspectionsCreated(true, 1)
		m.Skipped("no_hive", 1)
		m.Observe(&MetricsSnapshot{})
		assert.Nil(t, m.Registry())
	})
}
