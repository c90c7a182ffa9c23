package model

// ExtractionCandidate is one object decoded from the model's JSON output,
// before any validation.
type ExtractionCandidate map[string]any

// ExtractionRecord is a validated extraction result. Hive is the free-text
// hive reference as spoken; it is resolved against the registry later.
type ExtractionRecord struct {
	Apiary *string `json:"bigård,omitempty"`
	Hive   string  `json:"bikupa"`
	Observations
}
