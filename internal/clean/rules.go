package clean

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"travelingest/internal/profile"
	"travelingest/pkg/records"
)

// applyRules mutates the canonical record in place: key fields uppercase,
// name fields title-case, and each entity's value coercions run. raw is the
// full normalized row, consulted for fields that never made it into the
// canonical set (first/last name splits).
func applyRules(p *profile.Profile, raw, rec records.Record) {
	switch p.Entity {
	case profile.Passenger:
		synthesizeName(raw, rec)
		coerceInt(rec, "age")
	case profile.TravelAgency:
		coerceFloat(rec, "sale_amount")
		normalizeDateField(rec, "sale_date")
	case profile.CorporateSales:
		coerceInt(rec, "qty")
		coerceFloat(rec, "unit_price")
		coerceFloat(rec, "total")
		normalizeDateField(rec, "sale_date")
	case profile.Airport:
		if c, ok := rec.String("country"); ok {
			rec["country"] = canonicalCountry(c)
		}
	}

	for _, f := range p.CanonicalFields {
		if strings.HasSuffix(f, "_key") || f == "currency" {
			if s, ok := rec.String(f); ok {
				rec[f] = strings.ToUpper(s)
			}
		}
	}

	titler := cases.Title(language.English)
	for _, f := range p.NameFields {
		if s, ok := rec.String(f); ok {
			rec[f] = titler.String(strings.ToLower(s))
		}
	}
}

// synthesizeName fills a missing passenger name from a first/last name split.
func synthesizeName(raw, rec records.Record) {
	if _, ok := rec.String("name"); ok {
		return
	}
	first, _ := raw.String("first_name")
	last, _ := raw.String("last_name")
	full := strings.TrimSpace(first + " " + last)
	if full != "" {
		rec["name"] = full
	}
}

// coerceInt parses the field as an integer, tolerating a float spelling
// ("34.0") as long as it has no fractional part. Unparseable values become
// null rather than failing the row.
func coerceInt(rec records.Record, field string) {
	v, ok := rec[field]
	if !ok || v == nil {
		return
	}
	switch n := v.(type) {
	case int:
		return
	case float64:
		if n == float64(int64(n)) {
			rec[field] = int(n)
		} else {
			rec[field] = nil
		}
		return
	}
	s, ok := rec.String(field)
	if !ok {
		rec[field] = nil
		return
	}
	if i, err := strconv.Atoi(s); err == nil {
		rec[field] = i
		return
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		rec[field] = int(f)
		return
	}
	rec[field] = nil
}

// coerceFloat parses the field as a float, stripping thousands separators and
// a leading currency symbol. Unparseable values become null.
func coerceFloat(rec records.Record, field string) {
	v, ok := rec[field]
	if !ok || v == nil {
		return
	}
	switch v.(type) {
	case float64, int:
		return
	}
	s, ok := rec.String(field)
	if !ok {
		rec[field] = nil
		return
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimLeft(s, "$€£ ")
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		rec[field] = f
		return
	}
	rec[field] = nil
}

// canonicalCountry folds common United States and United Kingdom spellings
// into one form; anything else passes through trimmed.
func canonicalCountry(c string) string {
	folded := strings.ToLower(c)
	folded = strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', ' ':
			return -1
		}
		return r
	}, folded)

	switch folded {
	case "us", "usa", "unitedstates", "unitedstatesofamerica":
		return "United States"
	case "uk", "unitedkingdom", "greatbritain", "gb":
		return "United Kingdom"
	}
	return strings.TrimSpace(c)
}

// normalizeDateField rewrites the field to ISO date form when any known
// layout parses it; otherwise the original spelling is kept so no information
// is destroyed.
func normalizeDateField(rec records.Record, field string) {
	s, ok := rec.String(field)
	if !ok {
		return
	}
	if iso, ok := normalizeDate(s); ok {
		rec[field] = iso
	}
}
