package model

import "time"

// SessionSource identifies where a recording session entered the system.
type SessionSource string

const (
	SessionUpload  SessionSource = "upload"
	SessionWebhook SessionSource = "webhook"
	SessionCLI     SessionSource = "cli"
)

// Session is one recording or voice-agent call whose transcript was run
// through extraction. It keeps the unresolved results until a human assigns
// them to hives.
type Session struct {
	ID            string             `json:"id"`
	Source        SessionSource      `json:"source"`
	RecordingURL  string             `json:"recording_url,omitempty"`
	Transcript    string             `json:"transcript,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	InspectionIDs []string           `json:"inspection_ids,omitempty"`
	Unresolved    []ExtractionRecord `json:"unresolved,omitempty"`
}
