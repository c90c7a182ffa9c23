// Package schema validates loosely-typed extraction candidates into
// ExtractionRecords. Validation is per field and fail-soft: a field with the
// wrong type or out of range is omitted, never coerced or defaulted.
package schema

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/beekeep/internal/model"
)

// Report summarizes a validation pass over a batch of candidates.
type Report struct {
	Records []model.ExtractionRecord
	// Skipped counts candidates dropped for lacking a hive reference.
	Skipped int
	// NonObjects counts array elements that were not JSON objects.
	NonObjects int
}

// Decode parses JSON text into candidates. A single object is promoted to
// a one-element batch; non-object array elements are dropped and counted.
func Decode(jsonText string) ([]model.ExtractionCandidate, int, error) {
	var raw any
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return nil, 0, eris.Wrap(err, "schema: decode candidates")
	}
	return Candidates(raw)
}

// Candidates converts an already-decoded JSON value into candidates.
func Candidates(raw any) ([]model.ExtractionCandidate, int, error) {
	switch v := raw.(type) {
	case map[string]any:
		return []model.ExtractionCandidate{v}, 0, nil
	case []any:
		out := make([]model.ExtractionCandidate, 0, len(v))
		dropped := 0
		for _, elem := range v {
			obj, ok := elem.(map[string]any)
			if !ok {
				dropped++
				continue
			}
			out = append(out, obj)
		}
		return out, dropped, nil
	default:
		return nil, 0, eris.Errorf("schema: expected object or array, got %T", raw)
	}
}

// ValidateAll validates every candidate, keeping input order.
func ValidateAll(cands []model.ExtractionCandidate) Report {
	var rep Report
	for i, c := range cands {
		rec, ok := Validate(c)
		if !ok {
			rep.Skipped++
			zap.L().Debug("schema: candidate skipped, no hive reference",
				zap.Int("index", i),
			)
			continue
		}
		rep.Records = append(rep.Records, rec)
	}
	return rep
}

// Validate converts one candidate into a record. It returns false when the
// candidate has no usable hive reference.
func Validate(c model.ExtractionCandidate) (model.ExtractionRecord, bool) {
	fields := normalizeKeys(c)

	hive, ok := text(fields[model.KeyHive])
	if !ok {
		return model.ExtractionRecord{}, false
	}

	rec := model.ExtractionRecord{Hive: hive}
	if v, ok := text(fields[model.KeyApiary]); ok {
		rec.Apiary = &v
	}

	o := &rec.Observations
	o.QueenPresent = yesNoField(fields, model.KeyQueenPresent)
	o.FreshEggs = yesNoField(fields, model.KeyFreshEggs)
	o.Population = scaleField(fields, model.KeyPopulation)
	o.Health = scaleField(fields, model.KeyHealth)
	o.Brood = scaleField(fields, model.KeyBrood)
	o.Feed = scaleField(fields, model.KeyFeed)
	o.SwarmRisk = scaleField(fields, model.KeySwarmRisk)
	o.EntranceActivity = scaleField(fields, model.KeyEntranceActivity)
	o.Aggressiveness = scaleField(fields, model.KeyAggressiveness)
	o.Weather = textField(fields, model.KeyWeather)
	o.Forage = textField(fields, model.KeyForage)
	o.MoistureMold = yesNoField(fields, model.KeyMoistureMold)
	o.Varroa = scaleField(fields, model.KeyVarroa)
	o.HiveCondition = scaleField(fields, model.KeyHiveCondition)
	o.Supers = countField(fields, model.KeySupers)
	o.SupersFull = yesNoField(fields, model.KeySupersFull)
	o.NextAction = textField(fields, model.KeyNextAction)
	o.Confidence = confidenceField(fields, model.KeyConfidence)

	return rec, true
}

// normalizeKeys re-keys the candidate in NFC so decomposed å/ä/ö still
// match the schema. An exact key wins over a normalized duplicate.
func normalizeKeys(c model.ExtractionCandidate) map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		nk := norm.NFC.String(k)
		if _, exists := out[nk]; exists && nk != k {
			continue
		}
		out[nk] = v
	}
	return out
}

func text(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func textField(fields map[string]any, key string) *string {
	if s, ok := text(fields[key]); ok {
		return &s
	}
	return nil
}

func yesNoField(fields map[string]any, key string) *model.YesNo {
	s, ok := fields[key].(string)
	if !ok {
		return nil
	}
	v := model.YesNo(strings.ToLower(strings.TrimSpace(s)))
	if v != model.Yes && v != model.No {
		return nil
	}
	return &v
}

// number accepts JSON numbers as decoded by encoding/json, plus Go integer
// and json.Number values from callers that build candidates directly.
// Strings are never numbers, even when they spell one.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// integral returns v as an int when it is a finite whole number.
func integral(v any) (int, bool) {
	f, ok := number(v)
	if !ok || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func scaleField(fields map[string]any, key string) *int {
	n, ok := integral(fields[key])
	if !ok || n < model.ScaleMin || n > model.ScaleMax {
		return nil
	}
	return &n
}

func countField(fields map[string]any, key string) *int {
	n, ok := integral(fields[key])
	if !ok || n < 0 {
		return nil
	}
	return &n
}

func confidenceField(fields map[string]any, key string) *float64 {
	f, ok := number(fields[key])
	if !ok {
		return nil
	}
	f = math.Max(0, math.Min(1, f))
	return &f
}
