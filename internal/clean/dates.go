package clean

import "time"

// timeLayouts are tried in order. Month-first slash dates are attempted
// before day-first, so an unambiguous day-first date ("13/05/2024") still
// parses on the second attempt.
var timeLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
	"02-01-2006",
	"2-Jan-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"20060102",
}

// normalizeDate parses s against the known layouts and renders the ISO date.
// ok is false when no layout matches.
func normalizeDate(s string) (string, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
