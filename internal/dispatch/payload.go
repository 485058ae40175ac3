package dispatch

import (
	"encoding/json"
	"fmt"
	"sort"

	"travelingest/pkg/records"
)

// Rows normalizes the payload shapes upstream producers send:
//
//   - a bare list of row objects
//   - {"rows": [...]}
//   - {"raw_rows": [{"rawjson": <object or JSON string>}, ...]}
//   - any object whose first list-valued field (in field-name order) holds
//     the rows
//
// Elements that are not row objects do not fail the payload; each yields a
// reason in bad, and the caller records them as row-level errors.
func Rows(payload any) (rows []records.Record, bad []string, err error) {
	switch v := payload.(type) {
	case []any:
		rows, bad = rowList(v, false)
		return rows, bad, nil
	case []records.Record:
		return v, nil, nil
	case map[string]any:
		if list, ok := v["rows"].([]any); ok {
			rows, bad = rowList(list, false)
			return rows, bad, nil
		}
		if list, ok := v["raw_rows"].([]any); ok {
			rows, bad = rowList(list, true)
			return rows, bad, nil
		}
		// Field-name order keeps the fallback deterministic when a payload
		// carries more than one list field.
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if list, ok := v[k].([]any); ok {
				rows, bad = rowList(list, false)
				return rows, bad, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("dispatch: payload has no row data")
}

func rowList(list []any, unwrapRaw bool) (rows []records.Record, bad []string) {
	for i, el := range list {
		m, ok := el.(map[string]any)
		if !ok {
			bad = append(bad, fmt.Sprintf("row %d: not an object", i+1))
			continue
		}
		if unwrapRaw {
			inner, reason := unwrapRawJSON(m, i)
			if reason != "" {
				bad = append(bad, reason)
				continue
			}
			m = inner
		}
		rows = append(rows, records.FromMap(m))
	}
	return rows, bad
}

// unwrapRawJSON extracts the row embedded in a staging wrapper. The rawjson
// field arrives either as a decoded object or as a JSON string.
func unwrapRawJSON(m map[string]any, i int) (map[string]any, string) {
	raw, ok := m["rawjson"]
	if !ok {
		return nil, fmt.Sprintf("row %d: missing rawjson", i+1)
	}
	switch v := raw.(type) {
	case map[string]any:
		return v, ""
	case string:
		var inner map[string]any
		if err := json.Unmarshal([]byte(v), &inner); err != nil {
			return nil, fmt.Sprintf("row %d: rawjson is not valid JSON", i+1)
		}
		return inner, ""
	}
	return nil, fmt.Sprintf("row %d: rawjson has unsupported type", i+1)
}
