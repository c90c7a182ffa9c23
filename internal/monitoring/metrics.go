package monitoring

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the ingestion pipeline and
// the apiary health gauges. All methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	extractionsTotal *prometheus.CounterVec
	resolutionsTotal *prometheus.CounterVec
	inspectionsTotal *prometheus.CounterVec
	skippedTotal     *prometheus.CounterVec

	activeHives       prometheus.Gauge
	hivesOverdue      prometheus.Gauge
	unresolvedBacklog prometheus.Gauge
	unconfirmed       prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.extractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beekeep_extractions_total",
			Help: "Extraction responses by normalization outcome",
		},
		[]string{"outcome"}, // parsed, repaired, malformed, empty
	)
	m.resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beekeep_resolutions_total",
			Help: "Hive references by the rule that resolved them",
		},
		[]string{"rule"},
	)
	m.inspectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beekeep_inspections_created_total",
			Help: "Inspection records created",
		},
		[]string{"confirmed"},
	)
	m.skippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beekeep_candidates_skipped_total",
			Help: "Extraction candidates dropped before reconciliation",
		},
		[]string{"reason"}, // no_hive, not_object
	)

	m.activeHives = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "beekeep_active_hives",
		Help: "Active hives in the registry",
	})
	m.hivesOverdue = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "beekeep_hives_overdue",
		Help: "Active hives whose latest inspection is older than the overdue window",
	})
	m.unresolvedBacklog = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "beekeep_unresolved_backlog",
		Help: "Extraction records awaiting manual hive assignment",
	})
	m.unconfirmed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "beekeep_unconfirmed_inspections",
		Help: "Inspections not yet confirmed by a human",
	})

	m.registry.MustRegister(
		m.extractionsTotal, m.resolutionsTotal, m.inspectionsTotal, m.skippedTotal,
		m.activeHives, m.hivesOverdue, m.unresolvedBacklog, m.unconfirmed,
	)
	return m
}

// Registry returns the registry to expose over HTTP.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ExtractionOutcome counts one normalized extraction response.
func (m *Metrics) ExtractionOutcome(outcome string) {
	if m == nil {
		return
	}
	m.extractionsTotal.WithLabelValues(outcome).Inc()
}

// Resolutions adds per-rule resolution counts.
func (m *Metrics) Resolutions(rules map[string]int) {
	if m == nil {
		return
	}
	for rule, n := range rules {
		m.resolutionsTotal.WithLabelValues(rule).Add(float64(n))
	}
}

// InspectionsCreated counts created inspection records.
func (m *Metrics) InspectionsCreated(confirmed bool, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.inspectionsTotal.WithLabelValues(strconv.FormatBool(confirmed)).Add(float64(n))
}

// Skipped counts candidates dropped for reason.
func (m *Metrics) Skipped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedTotal.WithLabelValues(reason).Add(float64(n))
}

// Observe publishes a snapshot as gauges.
func (m *Metrics) Observe(snap *MetricsSnapshot) {
	if m == nil || snap == nil {
		return
	}
	m.activeHives.Set(float64(snap.ActiveHives))
	m.hivesOverdue.Set(float64(snap.HivesOverdue))
	m.unresolvedBacklog.Set(float64(snap.UnresolvedBacklog))
	m.unconfirmed.Set(float64(snap.UnconfirmedInspections))
}
