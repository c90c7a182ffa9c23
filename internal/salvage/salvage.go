// Package salvage turns a language-model response into parseable JSON,
// stripping markdown fences and repairing common string-escaping mistakes.
package salvage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// Status tags the outcome of Normalize.
type Status int

const (
	// StatusParsed means JSON holds valid JSON text.
	StatusParsed Status = iota
	// StatusMalformed means the text could not be made parseable.
	StatusMalformed
	// StatusEmpty means the response had no content to extract from.
	StatusEmpty
)

func (s Status) String() string {
	switch s {
	case StatusParsed:
		return "parsed"
	case StatusMalformed:
		return "malformed"
	case StatusEmpty:
		return "empty"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

var (
	// ErrMalformedExtraction is matched by errors.Is for *MalformedError.
	ErrMalformedExtraction = eris.New("malformed extraction")
	// ErrEmptyExtraction signals that there was nothing to extract.
	ErrEmptyExtraction = eris.New("empty extraction")
)

// MalformedError carries the original and best-effort repaired text so a
// human can re-enter the data by hand.
type MalformedError struct {
	Original string
	Repaired string
}

func (e *MalformedError) Error() string {
	return "salvage: response is not valid JSON after repair"
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformedExtraction
}

// Result is the tagged outcome of Normalize.
type Result struct {
	Status Status
	// JSON is the parseable text when Status is StatusParsed.
	JSON string
	// Repaired is true when JSON differs from the fence-stripped input.
	Repaired bool
	// Original is the input as given.
	Original string
	// Attempt is the repaired text that still failed to parse.
	Attempt string
}

// Err returns nil for a parsed result and a typed error otherwise.
func (r Result) Err() error {
	switch r.Status {
	case StatusParsed:
		return nil
	case StatusEmpty:
		return ErrEmptyExtraction
	default:
		return &MalformedError{Original: r.Original, Repaired: r.Attempt}
	}
}

// Normalize strips code fences and returns text that parses as JSON.
// Valid JSON is returned unchanged; only text that fails to parse is
// repaired, and the repair is best-effort.
func Normalize(text string) Result {
	stripped := StripFences(text)
	if stripped == "" {
		return Result{Status: StatusEmpty, Original: text}
	}

	if json.Valid([]byte(stripped)) {
		return Result{Status: StatusParsed, JSON: stripped, Original: text}
	}

	repaired := stripTrailingCommas(escapeStringValues(stripped))
	if json.Valid([]byte(repaired)) {
		return Result{Status: StatusParsed, JSON: repaired, Repaired: true, Original: text}
	}

	return Result{Status: StatusMalformed, Original: text, Attempt: repaired}
}

// StripFences removes a leading ```json or ``` fence and a trailing ```.
func StripFences(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(text, "```")

	return strings.TrimSpace(text)
}

// keyPrefix matches `"key":` followed by the opening quote of a string value.
var keyPrefix = regexp.MustCompile(`"(?:[^"\\\n]|\\.)*"\s*:\s*"`)

// escapeStringValues walks every "key": "value" span and escapes raw
// control characters and internal quotes inside the value. A quote closes
// the value only when it is followed by a structural terminator.
func escapeStringValues(text string) string {
	var sb strings.Builder
	sb.Grow(len(text) + 16)

	pos := 0
	for pos < len(text) {
		loc := keyPrefix.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		valueStart := pos + loc[1]
		sb.WriteString(text[pos:valueStart])
		pos = valueStart + writeEscapedValue(&sb, text[valueStart:])
	}
	sb.WriteString(text[pos:])

	return sb.String()
}

// writeEscapedValue writes the escaped body of a string value and its
// closing quote, returning how many bytes of s were consumed.
func writeEscapedValue(sb *strings.Builder, s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			sb.WriteByte(c)
			sb.WriteByte(s[i+1])
			i++
		case c == '"':
			if closesValue(s[i+1:]) {
				sb.WriteByte('"')
				return i + 1
			}
			sb.WriteString(`\"`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20:
			fmt.Fprintf(sb, `\u%04x`, c)
		default:
			sb.WriteByte(c)
		}
	}
	// Unterminated value: leave it for the parser to reject.
	return len(s)
}

// closesValue reports whether the text after a quote looks like the end of
// a JSON string value.
func closesValue(rest string) bool {
	rest = strings.TrimLeft(rest, " \t\r\n")
	if rest == "" {
		return true
	}
	switch rest[0] {
	case '}', ']':
		return true
	case ',':
		next := strings.TrimLeft(rest[1:], " \t\r\n")
		return next == "" || strings.ContainsRune(`"{}[]`, rune(next[0]))
	}
	return false
}

var trailingComma = regexp.MustCompile(`,\s*([\]}])`)

func stripTrailingCommas(text string) string {
	return trailingComma.ReplaceAllString(text, "$1")
}
