package model

import "time"

// Hive is a physical colony tracked by the beekeeper.
type Hive struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location string    `json:"location,omitempty"`
	Notes    string    `json:"notes,omitempty"`
	Color    string    `json:"color,omitempty"`
	Active   bool      `json:"is_active"`
	Created  time.Time `json:"date_added"`

	// Projection of the most recent inspection. Maintained by the
	// reconciliation engine; not authoritative.
	LatestInspectionID string            `json:"latest_inspection_id,omitempty"`
	LastInspectedAt    *time.Time        `json:"last_inspected_at,omitempty"`
	LatestInspection   *InspectionRecord `json:"latest_inspection,omitempty"`
}

// DefaultHiveColor is used when a hive is created without a color.
const DefaultHiveColor = "#10B981"

// FindHive returns the hive with the given ID, or nil.
func FindHive(hives []Hive, id string) *Hive {
	for i := range hives {
		if hives[i].ID == id {
			return &hives[i]
		}
	}
	return nil
}
