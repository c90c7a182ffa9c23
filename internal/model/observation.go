package model

// YesNo is the two-valued answer the extraction prompt uses for presence
// questions.
type YesNo string

const (
	Yes YesNo = "ja"
	No  YesNo = "nej"
)

// Observations holds the optional fields shared by extraction results and
// inspection records. A nil pointer means the field was not mentioned.
type Observations struct {
	// Basic status
	QueenPresent *YesNo `json:"finnsDrottning,omitempty"`
	FreshEggs    *YesNo `json:"nylagdaÄgg,omitempty"`
	Population   *int   `json:"mängdBin,omitempty"`
	Health       *int   `json:"binasHälsa,omitempty"`

	// Brood & food
	Brood *int `json:"yngelstatus,omitempty"`
	Feed  *int `json:"foder,omitempty"`

	// Behavior & risk
	SwarmRisk        *int `json:"svärmningsrisk,omitempty"`
	EntranceActivity *int `json:"aktivitetVidFlustret,omitempty"`
	Aggressiveness   *int `json:"aggressivitet,omitempty"`

	// Environmental
	Weather *string `json:"väder,omitempty"`
	Forage  *string `json:"växtDragförhållanden,omitempty"`

	// Health & condition
	MoistureMold  *YesNo `json:"fuktMögel,omitempty"`
	Varroa        *int   `json:"varroastatus,omitempty"`
	HiveCondition *int   `json:"kupansSkick,omitempty"`

	// Honey production
	Supers     *int   `json:"antalSkattlådar,omitempty"`
	SupersFull *YesNo `json:"skattlådorFulla,omitempty"`

	// Planning
	NextAction *string `json:"planeradÅtgärd,omitempty"`

	Confidence *float64 `json:"extractionConfidence,omitempty"`
}

// Empty reports whether no observation field is set.
func (o Observations) Empty() bool {
	return o == Observations{}
}
