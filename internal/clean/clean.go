// Package clean turns extracted rows into canonical cleaned records. Cleaning
// is tolerant and total: every input row yields a raw record, and only rows
// that fail the entity's identity predicate or duplicate an earlier row are
// withheld from the cleaned set.
package clean

import (
	"strings"

	"travelingest/internal/profile"
	"travelingest/pkg/records"
)

// Result carries both views of a cleaned batch. Raw holds one record per
// input row, headers normalized and sentinel values collapsed, so nothing is
// lost even when cleaning rejects the row. Cleaned holds the canonical,
// deduplicated records destined for the cleaned table.
type Result struct {
	Raw     []records.Record
	Cleaned []records.Record

	// Dropped counts rows withheld for failing the identity predicate;
	// Duplicates counts rows withheld as duplicates of an earlier row.
	Dropped    int
	Duplicates int
}

// Clean normalizes headers against the profile's alias table, then per row:
// collapses sentinel null tokens, projects onto the canonical field set,
// applies the entity's value rules, and filters by identity and duplicate
// key. Duplicate resolution is first-occurrence-wins, so output order follows
// input order and a rerun over the same rows is a no-op.
func Clean(p *profile.Profile, headers []string, rows [][]any) Result {
	cols := p.NormalizeHeaders(headers)

	var res Result
	res.Raw = make([]records.Record, 0, len(rows))
	seen := make(map[string]bool, len(rows))

	for _, cells := range rows {
		rr := rowRecord(cols, cells)
		res.Raw = append(res.Raw, rr)

		cr := p.CanonicalRecord(rr)
		applyRules(p, rr, cr)

		if !p.Identity(cr) {
			res.Dropped++
			continue
		}
		key := p.DedupKey(cr)
		if seen[key] {
			res.Duplicates++
			continue
		}
		seen[key] = true
		res.Cleaned = append(res.Cleaned, cr)
	}

	return res
}

// rowRecord maps one extracted row onto its normalized column names. String
// cells are trimmed and null tokens collapse to nil; cells beyond the header
// width are ignored, missing cells stay absent.
func rowRecord(cols []string, cells []any) records.Record {
	rec := make(records.Record, len(cols))
	for i, col := range cols {
		if col == "" || i >= len(cells) {
			continue
		}
		switch v := cells[i].(type) {
		case nil:
			rec[col] = nil
		case string:
			s := strings.TrimSpace(v)
			if isNullToken(s) {
				rec[col] = nil
			} else {
				rec[col] = s
			}
		default:
			rec[col] = v
		}
	}
	return rec
}

// isNullToken reports whether a trimmed cell is one of the tokens upstream
// tools emit for "no value".
func isNullToken(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "none", "null":
		return true
	}
	return false
}
