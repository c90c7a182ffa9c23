package schema

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/beekeep/internal/model"
)

func TestValidate_ScenarioD(t *testing.T) {
	t.Parallel()

	cands, dropped, err := Decode(`[{"bikupa":"1","binasHälsa":4}]`)
	require.NoError(t, err)
	assert.Zero(t, dropped)

	rep := ValidateAll(cands)
	require.Len(t, rep.Records, 1)
	assert.Zero(t, rep.Skipped)

	rec := rep.Records[0]
	assert.Equal(t, "1", rec.Hive)
	require.NotNil(t, rec.Health)
	assert.Equal(t, 4, *rec.Health)
	assert.Nil(t, rec.Population)
	assert.Nil(t, rec.Apiary)
}

func TestValidate_ScaleBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		want  *int
	}{
		{"min", float64(1), intPtr(1)},
		{"max", float64(5), intPtr(5)},
		{"zero", float64(0), nil},
		{"six", float64(6), nil},
		{"negative", float64(-2), nil},
		{"fraction", 3.5, nil},
		{"string digit", "3", nil},
		{"null", nil, nil},
		{"bool", true, nil},
		{"go int", 2, intPtr(2)},
		{"json number", json.Number("4"), intPtr(4)},
		{"nan", math.NaN(), nil},
		{"inf", math.Inf(1), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, ok := Validate(model.ExtractionCandidate{
				model.KeyHive:   "Main Hive",
				model.KeyVarroa: tt.value,
			})
			require.True(t, ok)
			assert.Equal(t, tt.want, rec.Varroa)
		})
	}
}

func TestValidate_EveryScaleField(t *testing.T) {
	t.Parallel()

	cand := model.ExtractionCandidate{model.KeyHive: "1"}
	for _, f := range model.Schema.Fields {
		if f.Kind == model.KindScale {
			cand[f.Key] = float64(2)
		}
	}
	rec, ok := Validate(cand)
	require.True(t, ok)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, f := range model.Schema.Fields {
		if f.Kind == model.KindScale {
			assert.Equal(t, float64(2), decoded[f.Key], f.Key)
		}
	}
}

func TestValidate_Confidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		want  *float64
	}{
		{"in range", 0.8, floatPtr(0.8)},
		{"below", -0.5, floatPtr(0)},
		{"above", 1.7, floatPtr(1)},
		{"string", "0.9", nil},
		{"null", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, ok := Validate(model.ExtractionCandidate{
				model.KeyHive:       "1",
				model.KeyConfidence: tt.value,
			})
			require.True(t, ok)
			assert.Equal(t, tt.want, rec.Confidence)
		})
	}
}

func TestValidate_HiveReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cand model.ExtractionCandidate
		ok   bool
		want string
	}{
		{"missing", model.ExtractionCandidate{model.KeyHealth: float64(3)}, false, ""},
		{"empty", model.ExtractionCandidate{model.KeyHive: ""}, false, ""},
		{"blank", model.ExtractionCandidate{model.KeyHive: "   "}, false, ""},
		{"number", model.ExtractionCandidate{model.KeyHive: float64(1)}, false, ""},
		{"null", model.ExtractionCandidate{model.KeyHive: nil}, false, ""},
		{"trimmed", model.ExtractionCandidate{model.KeyHive: "  North Hive "}, true, "North Hive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, ok := Validate(tt.cand)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, rec.Hive)
		})
	}
}

func TestValidateAll_CountsSkipped(t *testing.T) {
	t.Parallel()

	rep := ValidateAll([]model.ExtractionCandidate{
		{model.KeyHive: "1"},
		{model.KeyHealth: float64(2)},
		{model.KeyHive: "3"},
	})
	require.Len(t, rep.Records, 2)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, "1", rep.Records[0].Hive)
	assert.Equal(t, "3", rep.Records[1].Hive)
}

func TestValidate_TextFields(t *testing.T) {
	t.Parallel()

	rec, ok := Validate(model.ExtractionCandidate{
		model.KeyHive:       "1",
		model.KeyApiary:     " Hemma ",
		model.KeyWeather:    "  sol  ",
		model.KeyForage:     "   ",
		model.KeyNextAction: float64(7),
	})
	require.True(t, ok)
	require.NotNil(t, rec.Apiary)
	assert.Equal(t, "Hemma", *rec.Apiary)
	require.NotNil(t, rec.Weather)
	assert.Equal(t, "sol", *rec.Weather)
	assert.Nil(t, rec.Forage)
	assert.Nil(t, rec.NextAction)
}

func TestValidate_YesNo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value any
		want  *model.YesNo
	}{
		{"ja", yesNoPtr(model.Yes)},
		{"nej", yesNoPtr(model.No)},
		{" JA ", yesNoPtr(model.Yes)},
		{"Nej", yesNoPtr(model.No)},
		{"yes", nil},
		{"kanske", nil},
		{true, nil},
		{nil, nil},
	}
	for _, tt := range tests {
		rec, ok := Validate(model.ExtractionCandidate{
			model.KeyHive:         "1",
			model.KeyQueenPresent: tt.value,
		})
		require.True(t, ok)
		assert.Equal(t, tt.want, rec.QueenPresent, "%v", tt.value)
	}
}

func TestValidate_Count(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value any
		want  *int
	}{
		{float64(0), intPtr(0)},
		{float64(12), intPtr(12)},
		{float64(-1), nil},
		{1.5, nil},
		{"2", nil},
	}
	for _, tt := range tests {
		rec, ok := Validate(model.ExtractionCandidate{
			model.KeyHive:   "1",
			model.KeySupers: tt.value,
		})
		require.True(t, ok)
		assert.Equal(t, tt.want, rec.Supers, "%v", tt.value)
	}
}

func TestValidate_UnknownKeysIgnored(t *testing.T) {
	t.Parallel()

	rec, ok := Validate(model.ExtractionCandidate{
		model.KeyHive: "1",
		"humör":       "bra",
	})
	require.True(t, ok)
	assert.True(t, rec.Observations.Empty())
}

func TestValidate_DecomposedKeys(t *testing.T) {
	t.Parallel()

	key := norm.NFD.String(model.KeyHealth)
	require.NotEqual(t, model.KeyHealth, key)

	rec, ok := Validate(model.ExtractionCandidate{
		model.KeyHive: "1",
		key:           float64(5),
	})
	require.True(t, ok)
	require.NotNil(t, rec.Health)
	assert.Equal(t, 5, *rec.Health)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("object promoted", func(t *testing.T) {
		t.Parallel()
		cands, dropped, err := Decode(`{"bikupa":"Main Hive"}`)
		require.NoError(t, err)
		assert.Zero(t, dropped)
		require.Len(t, cands, 1)
		assert.Equal(t, "Main Hive", cands[0][model.KeyHive])
	})

	t.Run("non-objects counted", func(t *testing.T) {
		t.Parallel()
		cands, dropped, err := Decode(`[{"bikupa":"1"}, 3, "x", null, [], {"bikupa":"2"}]`)
		require.NoError(t, err)
		assert.Equal(t, 4, dropped)
		assert.Len(t, cands, 2)
	})

	t.Run("empty array", func(t *testing.T) {
		t.Parallel()
		cands, dropped, err := Decode(`[]`)
		require.NoError(t, err)
		assert.Zero(t, dropped)
		assert.Empty(t, cands)
	})

	t.Run("scalar rejected", func(t *testing.T) {
		t.Parallel()
		_, _, err := Decode(`"bikupa"`)
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()
		_, _, err := Decode(`[{`)
		assert.Error(t, err)
	})
}

func intPtr(n int) *int                   { return &n }
func floatPtr(f float64) *float64         { return &f }
func yesNoPtr(v model.YesNo) *model.YesNo { return &v }
