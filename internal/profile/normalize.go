package profile

import (
	"strings"
	"unicode"
)

// NormalizeHeader converts an arbitrary header spelling into the structural
// snake_case form used throughout the pipeline:
//
//   - surrounding whitespace is trimmed
//   - an underscore is inserted at a lowercase/digit → uppercase boundary
//     ("AirlineKey" → "airline_key")
//   - runs of spaces and dashes collapse to a single underscore
//   - the result is lowercased
//
// Alias resolution to canonical field names happens separately, per profile.
func NormalizeHeader(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s) + 4)

	var prev rune
	lastUnderscore := false
	for _, r := range s {
		if r == ' ' || r == '-' {
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
			prev = r
			continue
		}
		if unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) && !lastUnderscore {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
		lastUnderscore = r == '_'
		prev = r
	}

	return strings.Trim(b.String(), "_")
}

// NormalizeHeaders applies structural normalization and then the profile's
// alias table. An alias renames only when its canonical target is not already
// present among the normalized headers and has not been claimed by an earlier
// alias (first-writer-wins). Unmapped headers pass through unchanged.
func (p *Profile) NormalizeHeaders(headers []string) []string {
	norm := make([]string, len(headers))
	present := make(map[string]bool, len(headers))
	for i, h := range headers {
		norm[i] = NormalizeHeader(h)
		present[norm[i]] = true
	}

	out := make([]string, len(headers))
	claimed := make(map[string]bool)
	for i, n := range norm {
		target, ok := p.Aliases[n]
		if ok && !present[target] && !claimed[target] {
			out[i] = target
			claimed[target] = true
			continue
		}
		out[i] = n
	}
	return out
}
