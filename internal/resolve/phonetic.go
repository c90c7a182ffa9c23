package resolve

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const defaultPhoneticThreshold = 0.80

// phonetic matches a hive whose name shares a Double Metaphone code with
// the input and whose Jaro-Winkler similarity reaches threshold. The best
// score wins; ties go to the earlier hive.
func phonetic(threshold float64) func(string, []string) int {
	return func(input string, names []string) int {
		inputTokens := strings.Fields(input)
		inputCodes := codesForTokens(inputTokens)
		if len(inputCodes) == 0 {
			return -1
		}

		best, bestScore := -1, 0.0
		for i, name := range names {
			nameTokens := strings.Fields(name)
			if len(nameTokens) == 0 || !codesOverlap(inputCodes, codesForTokens(nameTokens)) {
				continue
			}
			score := similarity(inputTokens, nameTokens, input, name)
			if score >= threshold && score > bestScore {
				best, bestScore = i, score
			}
		}
		return best
	}
}

// codesForTokens returns the union of the Double Metaphone codes of tokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score over the full strings, the
// space-stripped strings and every token pair.
func similarity(inputTokens, nameTokens []string, input, name string) float64 {
	score := matchr.JaroWinkler(input, name, false)

	if len(inputTokens) > 1 || len(nameTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(nameTokens, ""), false); s > score {
			score = s
		}
	}

	for _, it := range inputTokens {
		for _, nt := range nameTokens {
			if s := matchr.JaroWinkler(it, nt, false); s > score {
				score = s
			}
		}
	}
	return score
}
