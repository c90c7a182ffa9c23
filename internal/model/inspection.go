package model

import "time"

// InspectionSource records how an inspection's data was obtained.
type InspectionSource string

const (
	SourceAI     InspectionSource = "ai"
	SourceManual InspectionSource = "manual"
)

// DateLayout is the layout of InspectionRecord.Date.
const DateLayout = "2006-01-02"

// InspectionRecord is a durable observation of one hive at one point in time.
type InspectionRecord struct {
	ID        string    `json:"id"`
	HiveID    string    `json:"hiveId"`
	HiveName  string    `json:"hiveName,omitempty"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`

	Observations

	Source    InspectionSource `json:"source"`
	SessionID string           `json:"recordingSessionId,omitempty"`
	Confirmed bool             `json:"confirmed"`

	EditedBy string     `json:"editedBy,omitempty"`
	EditedAt *time.Time `json:"editedAt,omitempty"`
	Notes    string     `json:"notes,omitempty"`
}

// NewerThan reports whether r should replace other as a hive's latest
// inspection. Equal timestamps count as newer so the last write wins.
func (r InspectionRecord) NewerThan(other *time.Time) bool {
	return other == nil || !r.Timestamp.Before(*other)
}
