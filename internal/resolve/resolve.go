// Package resolve maps the free-text hive reference of an extraction record
// onto a hive in the registry.
package resolve

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/sells-group/beekeep/internal/model"
)

// Rule names reported in Match.Rule.
const (
	RuleExact           = "exact"
	RuleContains        = "contains"
	RuleReverseContains = "reverse_contains"
	RulePosition        = "position"
	RulePhonetic        = "phonetic"
)

// Rule is one step of the resolution cascade. Find receives the folded
// input and the folded hive names in registry order and returns the index
// of the matching hive, or -1.
type Rule struct {
	Name string
	Find func(input string, names []string) int
}

// Match is the outcome of Resolve. Hive is nil when the input is unresolved.
type Match struct {
	Hive *model.Hive
	Rule string
}

// Resolved reports whether a hive was found.
func (m Match) Resolved() bool { return m.Hive != nil }

// Resolver tries its rules in order; the first hit wins.
type Resolver struct {
	rules []Rule
}

// Option configures a Resolver.
type Option func(*options)

type options struct {
	reverseContains   bool
	phonetic          bool
	phoneticThreshold float64
}

// WithReverseContains adds a rule matching when a hive name occurs inside
// the input, e.g. "kupan Main Hive vid staketet". It runs after contains
// and before position.
func WithReverseContains() Option {
	return func(o *options) { o.reverseContains = true }
}

// WithPhonetic appends a sound-alike rule after position. Threshold is the
// minimum Jaro-Winkler similarity; values <= 0 use the default.
func WithPhonetic(threshold float64) Option {
	return func(o *options) {
		o.phonetic = true
		if threshold > 0 {
			o.phoneticThreshold = threshold
		}
	}
}

// New creates a Resolver with the default cascade (exact, contains,
// position) plus any optional rules.
func New(opts ...Option) *Resolver {
	o := options{phoneticThreshold: defaultPhoneticThreshold}
	for _, fn := range opts {
		fn(&o)
	}

	rules := []Rule{
		{Name: RuleExact, Find: exact},
		{Name: RuleContains, Find: contains},
	}
	if o.reverseContains {
		rules = append(rules, Rule{Name: RuleReverseContains, Find: reverseContains})
	}
	rules = append(rules, Rule{Name: RulePosition, Find: position})
	if o.phonetic {
		rules = append(rules, Rule{Name: RulePhonetic, Find: phonetic(o.phoneticThreshold)})
	}
	return &Resolver{rules: rules}
}

// Rules returns the rule names in evaluation order.
func (r *Resolver) Rules() []string {
	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.Name
	}
	return names
}

// Resolve finds the hive referenced by input. Comparison is case-insensitive
// using Unicode case folding; hives are considered in slice order.
func (r *Resolver) Resolve(input string, hives []model.Hive) Match {
	needle := fold(strings.TrimSpace(input))
	if needle == "" || len(hives) == 0 {
		return Match{}
	}

	names := make([]string, len(hives))
	for i := range hives {
		names[i] = fold(strings.TrimSpace(hives[i].Name))
	}

	for _, rule := range r.rules {
		idx := rule.Find(needle, names)
		if idx < 0 || idx >= len(hives) {
			continue
		}
		zap.L().Debug("resolve: matched hive",
			zap.String("input", input),
			zap.String("rule", rule.Name),
			zap.String("hive_id", hives[idx].ID),
		)
		return Match{Hive: &hives[idx], Rule: rule.Name}
	}

	zap.L().Debug("resolve: no hive matched", zap.String("input", input))
	return Match{}
}

// fold applies full Unicode case folding. A Caser is stateful, so a fresh
// one is used per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

func exact(input string, names []string) int {
	for i, n := range names {
		if n == input {
			return i
		}
	}
	return -1
}

func contains(input string, names []string) int {
	for i, n := range names {
		if strings.Contains(n, input) {
			return i
		}
	}
	return -1
}

func reverseContains(input string, names []string) int {
	for i, n := range names {
		if n != "" && strings.Contains(input, n) {
			return i
		}
	}
	return -1
}

var firstNumber = regexp.MustCompile(`\d+`)

// position treats the first decimal number in the input as a 1-based index
// into the registry.
func position(input string, names []string) int {
	m := firstNumber.FindString(input)
	if m == "" {
		return -1
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 1 || n > len(names) {
		return -1
	}
	return n - 1
}
