package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/beekeep/internal/model"
)

func registry(names ...string) []model.Hive {
	hives := make([]model.Hive, len(names))
	for i, n := range names {
		hives[i] = model.Hive{ID: "h" + string(rune('1'+i)), Name: n, Active: true}
	}
	return hives
}

func TestResolve_ScenarioA_ExactCaseInsensitive(t *testing.T) {
	t.Parallel()

	m := New().Resolve("main hive", registry("Main Hive", "North Hive"))
	require.True(t, m.Resolved())
	assert.Equal(t, "Main Hive", m.Hive.Name)
	assert.Equal(t, RuleExact, m.Rule)
}

func TestResolve_ScenarioB_Position(t *testing.T) {
	t.Parallel()

	m := New().Resolve("bikupa 2", registry("Main Hive", "North Hive", "East Hive"))
	require.True(t, m.Resolved())
	assert.Equal(t, "North Hive", m.Hive.Name)
	assert.Equal(t, RulePosition, m.Rule)
}

func TestResolve_ScenarioC_OutOfRange(t *testing.T) {
	t.Parallel()

	m := New().Resolve("bikupa 9", registry("Main Hive"))
	assert.False(t, m.Resolved())
	assert.Empty(t, m.Rule)
}

func TestResolve_Cascade(t *testing.T) {
	t.Parallel()

	hives := registry("North Hive East", "North Hive", "Södra Kupan")

	tests := []struct {
		name  string
		input string
		want  string
		rule  string
	}{
		{"exact beats contains", "north hive", "North Hive", RuleExact},
		{"contains in registry order", "north", "North Hive East", RuleContains},
		{"trimmed input", "  NORTH HIVE  ", "North Hive", RuleExact},
		{"unicode folding", "SÖDRA KUPAN", "Södra Kupan", RuleExact},
		{"first number wins", "kupa 3 eller 1", "Södra Kupan", RulePosition},
		{"digits inside a word", "hive12", "", ""},
		{"zero", "bikupa 0", "", ""},
		{"no number", "västra kupan", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := New().Resolve(tt.input, hives)
			if tt.want == "" {
				assert.False(t, m.Resolved(), "input %q", tt.input)
				return
			}
			require.True(t, m.Resolved(), "input %q", tt.input)
			assert.Equal(t, tt.want, m.Hive.Name)
			assert.Equal(t, tt.rule, m.Rule)
		})
	}
}

func TestResolve_EmptyInput(t *testing.T) {
	t.Parallel()

	hives := registry("Main Hive")
	r := New(WithReverseContains(), WithPhonetic(0))
	assert.False(t, r.Resolve("", hives).Resolved())
	assert.False(t, r.Resolve("   ", hives).Resolved())
	assert.False(t, r.Resolve("1", nil).Resolved())
}

func TestResolve_Deterministic(t *testing.T) {
	t.Parallel()

	hives := registry("Main Hive", "North Hive", "East Hive")
	r := New()
	first := r.Resolve("hive", hives)
	for i := 0; i < 20; i++ {
		m := r.Resolve("hive", hives)
		require.True(t, m.Resolved())
		assert.Equal(t, first.Hive.ID, m.Hive.ID)
		assert.Equal(t, first.Rule, m.Rule)
	}
	assert.Equal(t, "Main Hive", first.Hive.Name)
}

func TestResolve_ReturnsRegistryEntry(t *testing.T) {
	t.Parallel()

	hives := registry("Main Hive", "North Hive")
	m := New().Resolve("north hive", hives)
	require.True(t, m.Resolved())
	assert.Same(t, &hives[1], m.Hive)
}

func TestResolve_ReverseContains(t *testing.T) {
	t.Parallel()

	hives := registry("Main Hive", "North Hive")
	input := "kupan north hive vid staketet"

	assert.False(t, New().Resolve(input, hives).Resolved())

	m := New(WithReverseContains()).Resolve(input, hives)
	require.True(t, m.Resolved())
	assert.Equal(t, "North Hive", m.Hive.Name)
	assert.Equal(t, RuleReverseContains, m.Rule)
}

func TestResolve_ReverseContainsBeforePosition(t *testing.T) {
	t.Parallel()

	hives := registry("Main Hive", "North Hive")
	m := New(WithReverseContains()).Resolve("north hive 1", hives)
	require.True(t, m.Resolved())
	assert.Equal(t, "North Hive", m.Hive.Name)
	assert.Equal(t, RuleReverseContains, m.Rule)
}

func TestResolve_Phonetic(t *testing.T) {
	t.Parallel()

	hives := registry("Rosengården", "Ekbacken")

	assert.False(t, New().Resolve("ekbaken", hives).Resolved())

	m := New(WithPhonetic(0)).Resolve("ekbaken", hives)
	require.True(t, m.Resolved())
	assert.Equal(t, "Ekbacken", m.Hive.Name)
	assert.Equal(t, RulePhonetic, m.Rule)
}

func TestResolve_PhoneticAfterPosition(t *testing.T) {
	t.Parallel()

	hives := registry("Rosengården", "Ekbacken")
	m := New(WithPhonetic(0)).Resolve("ekbaken 1", hives)
	require.True(t, m.Resolved())
	assert.Equal(t, "Rosengården", m.Hive.Name)
	assert.Equal(t, RulePosition, m.Rule)
}

func TestNew_RuleOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{RuleExact, RuleContains, RulePosition}, New().Rules())
	assert.Equal(t,
		[]string{RuleExact, RuleContains, RuleReverseContains, RulePosition, RulePhonetic},
		New(WithPhonetic(0.9), WithReverseContains()).Rules(),
	)
}

func TestPosition(t *testing.T) {
	t.Parallel()

	names := []string{"a", "b", "c"}
	assert.Equal(t, 0, position("1", names))
	assert.Equal(t, 2, position("kupa 3", names))
	assert.Equal(t, -1, position("kupa 4", names))
	assert.Equal(t, -1, position("kupa 99999999999999999999", names))
	assert.Equal(t, 1, position("nummer 02", names))
}
