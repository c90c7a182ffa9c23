package model

// Field keys as produced by the extraction prompt. They are stored and
// exchanged verbatim, so they must not be renamed.
const (
	KeyApiary           = "bigård"
	KeyHive             = "bikupa"
	KeyQueenPresent     = "finnsDrottning"
	KeyFreshEggs        = "nylagdaÄgg"
	KeyPopulation       = "mängdBin"
	KeyHealth           = "binasHälsa"
	KeyBrood            = "yngelstatus"
	KeyFeed             = "foder"
	KeySwarmRisk        = "svärmningsrisk"
	KeyEntranceActivity = "aktivitetVidFlustret"
	KeyAggressiveness   = "aggressivitet"
	KeyWeather          = "väder"
	KeyForage           = "växtDragförhållanden"
	KeyMoistureMold     = "fuktMögel"
	KeyVarroa           = "varroastatus"
	KeyHiveCondition    = "kupansSkick"
	KeySupers           = "antalSkattlådar"
	KeySupersFull       = "skattlådorFulla"
	KeyNextAction       = "planeradÅtgärd"
	KeyConfidence       = "extractionConfidence"
)

// FieldKind is the value class a field accepts.
type FieldKind string

const (
	KindHive       FieldKind = "hive"
	KindText       FieldKind = "text"
	KindScale      FieldKind = "scale"
	KindYesNo      FieldKind = "yes_no"
	KindCount      FieldKind = "count"
	KindConfidence FieldKind = "confidence"
)

// FieldGroup is the display grouping of an observation field.
type FieldGroup string

const (
	GroupIdentity        FieldGroup = "identity"
	GroupCore            FieldGroup = "core"
	GroupBroodFood       FieldGroup = "brood_food"
	GroupBehaviorRisk    FieldGroup = "behavior_risk"
	GroupHealthCondition FieldGroup = "health_condition"
	GroupHoneyProduction FieldGroup = "honey_production"
	GroupEnvironmental   FieldGroup = "environmental"
	GroupPlanning        FieldGroup = "planning"
	GroupTechnical       FieldGroup = "technical"
)

// Scale bounds shared by every KindScale field.
const (
	ScaleMin = 1
	ScaleMax = 5
)

// FieldSpec describes one recognized extraction key.
type FieldSpec struct {
	Key   string
	Kind  FieldKind
	Group FieldGroup
	Label string
	// Risk marks scale fields where a higher value is worse.
	Risk bool
}

// FieldRegistry is an indexed, ordered collection of field specs.
type FieldRegistry struct {
	Fields []FieldSpec
	byKey  map[string]*FieldSpec
}

// NewFieldRegistry creates a FieldRegistry with indexed lookups.
func NewFieldRegistry(fields []FieldSpec) *FieldRegistry {
	r := &FieldRegistry{
		Fields: fields,
		byKey:  make(map[string]*FieldSpec, len(fields)),
	}
	for i := range r.Fields {
		r.byKey[r.Fields[i].Key] = &r.Fields[i]
	}
	return r
}

// ByKey returns the spec for the given key, or nil if not found.
func (r *FieldRegistry) ByKey(key string) *FieldSpec {
	return r.byKey[key]
}

// ByGroup returns the specs in the given group, in registry order.
func (r *FieldRegistry) ByGroup(g FieldGroup) []FieldSpec {
	var out []FieldSpec
	for _, f := range r.Fields {
		if f.Group == g {
			out = append(out, f)
		}
	}
	return out
}

// Schema is the field registry for inspection extraction.
var Schema = NewFieldRegistry([]FieldSpec{
	{Key: KeyApiary, Kind: KindText, Group: GroupIdentity, Label: "Bigård"},
	{Key: KeyHive, Kind: KindHive, Group: GroupIdentity, Label: "Bikupa"},

	{Key: KeyQueenPresent, Kind: KindYesNo, Group: GroupCore, Label: "Drottning"},
	{Key: KeyFreshEggs, Kind: KindYesNo, Group: GroupCore, Label: "Ägg"},
	{Key: KeyPopulation, Kind: KindScale, Group: GroupCore, Label: "Population"},
	{Key: KeyHealth, Kind: KindScale, Group: GroupCore, Label: "Hälsa"},

	{Key: KeyBrood, Kind: KindScale, Group: GroupBroodFood, Label: "Yngelstatus"},
	{Key: KeyFeed, Kind: KindScale, Group: GroupBroodFood, Label: "Foder"},

	{Key: KeySwarmRisk, Kind: KindScale, Group: GroupBehaviorRisk, Label: "Svärmningsrisk", Risk: true},
	{Key: KeyEntranceActivity, Kind: KindScale, Group: GroupBehaviorRisk, Label: "Aktivitet"},
	{Key: KeyAggressiveness, Kind: KindScale, Group: GroupBehaviorRisk, Label: "Aggressivitet", Risk: true},

	{Key: KeyMoistureMold, Kind: KindYesNo, Group: GroupHealthCondition, Label: "Fukt/Mögel"},
	{Key: KeyVarroa, Kind: KindScale, Group: GroupHealthCondition, Label: "Varroa", Risk: true},
	{Key: KeyHiveCondition, Kind: KindScale, Group: GroupHealthCondition, Label: "Kupans skick"},

	{Key: KeySupers, Kind: KindCount, Group: GroupHoneyProduction, Label: "Skattlådor"},
	{Key: KeySupersFull, Kind: KindYesNo, Group: GroupHoneyProduction, Label: "Lådor fulla"},

	{Key: KeyWeather, Kind: KindText, Group: GroupEnvironmental, Label: "Väder"},
	{Key: KeyForage, Kind: KindText, Group: GroupEnvironmental, Label: "Växt/Drag"},

	{Key: KeyNextAction, Kind: KindText, Group: GroupPlanning, Label: "Planerad åtgärd"},

	{Key: KeyConfidence, Kind: KindConfidence, Group: GroupTechnical, Label: "Säkerhet"},
})
