// -----------------------------------------------------------------------
// Tolerant JSON repair - salvages near-JSON model output before a retry
// -----------------------------------------------------------------------

package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/percipio/internal/models"
)

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	repeatedCommaRe = regexp.MustCompile(`,\s*,+`)
)

// RepairJSON returns a parseable JSON document recovered from raw model
// output. Steps are applied cumulatively in a fixed order, stopping at the
// first successful parse. Already-valid JSON passes through unchanged, which
// makes the pipeline idempotent.
func RepairJSON(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if parsesAsJSON(candidate) {
		return candidate, nil
	}

	steps := []func(string) string{
		stripCodeFence,
		removeTrailingCommas,
		collapseRepeatedCommas,
		stripControlChars,
		balanceBrackets,
		extractObjectSubstring,
	}

	for _, step := range steps {
		candidate = step(candidate)
		if parsesAsJSON(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: output not parseable after repair", models.ErrParseFailed)
}

func parsesAsJSON(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	var v any
	return json.Unmarshal([]byte(s), &v) == nil
}

// stripCodeFence removes a leading ```json (or bare ```) fence and the
// trailing ``` that models often wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}

func removeTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

func collapseRepeatedCommas(s string) string {
	return repeatedCommaRe.ReplaceAllString(s, ",")
}

// stripControlChars drops ASCII control characters except tab, LF and CR.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// balanceBrackets appends closers for structures left open (typical of
// token-limit truncation) and cuts the text at the first stray closer.
func balanceBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				stack = append(stack, c)
			}
		case '}', ']':
			if inString {
				continue
			}
			want := byte('{')
			if c == ']' {
				want = '['
			}
			if len(stack) == 0 || stack[len(stack)-1] != want {
				// Stray closer: truncate here
				return balanceBrackets(s[:i])
			}
			stack = stack[:len(stack)-1]
		}
	}

	if inString {
		s += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			s += "}"
		} else {
			s += "]"
		}
	}
	return s
}

// extractObjectSubstring keeps the largest span between the first '{' and
// the last '}'.
func extractObjectSubstring(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
