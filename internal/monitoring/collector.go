package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/beekeep/internal/store"
)

// scanLimit bounds each listing the collector walks.
const scanLimit = 10000

// MetricsSnapshot holds a point-in-time view of apiary health.
type MetricsSnapshot struct {
	// Registry metrics.
	ActiveHives         int `json:"active_hives"`
	HivesNeverInspected int `json:"hives_never_inspected"`
	HivesOverdue        int `json:"hives_overdue"`

	// Inspection metrics.
	InspectionsTotal       int `json:"inspections_total"`
	UnconfirmedInspections int `json:"unconfirmed_inspections"`

	// Session metrics.
	SessionsWithUnresolved int `json:"sessions_with_unresolved"`
	UnresolvedBacklog      int `json:"unresolved_backlog"`

	// Metadata.
	OverdueDays int       `json:"overdue_days"`
	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// Collect gathers a snapshot. A hive counts as overdue when its latest
// inspection is older than overdueDays; hives never inspected are counted
// separately. overdueDays <= 0 disables the overdue count.
func (c *Collector) Collect(ctx context.Context, overdueDays int) (*MetricsSnapshot, error) {
	now := c.now()
	snap := &MetricsSnapshot{
		OverdueDays: overdueDays,
		CollectedAt: now,
	}

	hives, err := c.store.ListHives(ctx, store.HiveFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list hives")
	}
	cutoff := now.AddDate(0, 0, -overdueDays)
	for _, h := range hives {
		snap.ActiveHives++
		switch {
		case h.LastInspectedAt == nil:
			snap.HivesNeverInspected++
		case overdueDays > 0 && h.LastInspectedAt.Before(cutoff):
			snap.HivesOverdue++
		}
	}

	inspections, err := c.store.ListInspections(ctx, store.InspectionFilter{Limit: scanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list inspections")
	}
	snap.InspectionsTotal = len(inspections)
	for _, ins := range inspections {
		if !ins.Confirmed {
			snap.UnconfirmedInspections++
		}
	}

	sessions, err := c.store.ListSessions(ctx, store.SessionFilter{WithUnresolved: true, Limit: scanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list sessions")
	}
	snap.SessionsWithUnresolved = len(sessions)
	for _, s := range sessions {
		snap.UnresolvedBacklog += len(s.Unresolved)
	}

	return snap, nil
}
