package store

import (
	"encoding/json"
	"fmt"

	"travelingest/pkg/records"
)

// RowsFromRecords flattens records into the columnar shape the backends
// consume. Absent fields become nil; nested values are JSON-encoded so every
// cell is a database-native scalar.
func RowsFromRecords(columns []string, recs []records.Record) [][]any {
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		row := make([]any, len(columns))
		for j, col := range columns {
			row[j] = EncodeValue(rec[col])
		}
		rows[i] = row
	}
	return rows
}

// EncodeValue maps a record value to a driver-friendly scalar. Strings and
// numbers pass through; maps and slices become JSON text.
func EncodeValue(v any) any {
	switch v := v.(type) {
	case nil, string, int, int64, float64, bool:
		return v
	case records.Record, map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// MarshalRecord renders a record as the JSON stored in rawjson columns.
func MarshalRecord(rec records.Record) string {
	b, err := json.Marshal(rec)
	if err != nil {
		return "{}"
	}
	return string(b)
}
