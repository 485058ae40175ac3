// Package records defines the row representation shared by the extractor,
// cleaner, and dispatcher: a field-name keyed map whose values are strings,
// numbers, nested records, or nil for missing/null.
package records

import (
	"strings"
)

// Record is one logical row. Values are string, int64, float64, nil, or a
// nested Record (the embedded raw row under "rawjson").
type Record map[string]any

// String returns the value under key as a trimmed string.
// ok is false when the key is absent, nil, or not a string.
func (r Record) String(key string) (s string, ok bool) {
	v, present := r[key]
	if !present || v == nil {
		return "", false
	}
	str, isStr := v.(string)
	if !isStr {
		return "", false
	}
	return strings.TrimSpace(str), true
}

// FirstString returns the first non-empty string value found under any of the
// given keys, in order. Returns "" when none match.
func (r Record) FirstString(keys ...string) string {
	for _, k := range keys {
		if s, ok := r.String(k); ok && s != "" {
			return s
		}
	}
	return ""
}

// Clone returns a shallow copy of r. Nested records are shared, which is fine
// for the pipeline: raw rows are never mutated after extraction.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// FromMap converts a decoded JSON object into a Record, recursively converting
// nested objects. Non-object values pass through unchanged.
func FromMap(m map[string]any) Record {
	out := make(Record, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = FromMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
