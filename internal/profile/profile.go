// Package profile holds the per-entity knowledge the rest of the pipeline is
// deliberately ignorant of: canonical field sets, header alias tables, natural
// keys, identity predicates, dedup keys, and the classifier keyword sets.
// Everything here is static; profiles are safe for concurrent use.
package profile

import (
	"fmt"
	"sort"
	"strings"

	"travelingest/pkg/records"
)

// Entity names one of the supported record families.
type Entity string

const (
	Airline        Entity = "airline"
	Passenger      Entity = "passenger"
	Flight         Entity = "flight"
	Airport        Entity = "airport"
	TravelAgency   Entity = "travelagency"
	CorporateSales Entity = "corporatesales"
)

// ParseEntity resolves user-supplied entity spellings, including plural and
// underscore variants. ok is false for anything unrecognized.
func ParseEntity(s string) (Entity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "airline", "airlines":
		return Airline, true
	case "passenger", "passengers":
		return Passenger, true
	case "flight", "flights":
		return Flight, true
	case "airport", "airports":
		return Airport, true
	case "travelagency", "travel_agency", "travelagencysales", "agency":
		return TravelAgency, true
	case "corporatesales", "corporate_sales", "corporate":
		return CorporateSales, true
	}
	return "", false
}

// Profile describes one entity end to end: how its headers normalize, which
// fields survive to the cleaned table, what identifies a usable row, and how
// duplicates are recognized.
type Profile struct {
	Entity Entity

	// Table is the cleaned destination table; Procedure promotes staged rows
	// from it into the dimensional model.
	Table     string
	Procedure string

	// CanonicalFields is the exact column set of a cleaned record, in output
	// order. Every cleaned record carries all of them, null where unknown.
	CanonicalFields []string

	// Aliases maps normalized header spellings to canonical field names.
	Aliases map[string]string

	// KeyField is the natural key column; KeyAliases are the spellings the
	// dispatcher additionally accepts when re-deriving the key from a payload.
	KeyField   string
	KeyAliases []string

	// NameFields are title-cased during cleaning.
	NameFields []string

	// Keywords drive classification and headerless-paragraph detection.
	Keywords []string

	// Fallback is the synthetic header applied to headerless paragraph
	// input. Empty means the canonical field set.
	Fallback []string

	// identity reports whether a cleaned record carries enough identity to be
	// worth keeping. Rows failing it are preserved raw but not cleaned.
	identity func(records.Record) bool

	// reverseAliases lists, per canonical field, the alias spellings that map
	// to it, in deterministic order.
	reverseAliases map[string][]string
}

// Identity reports whether rec satisfies the entity's identity predicate.
// A profile without a predicate accepts every row.
func (p *Profile) Identity(rec records.Record) bool {
	if p.identity == nil {
		return true
	}
	return p.identity(rec)
}

// DedupKey derives the duplicate-detection key: the lowercased concatenation
// of all canonical field values. Nil values contribute an empty segment, so a
// row differing only in a null field is still distinct.
func (p *Profile) DedupKey(rec records.Record) string {
	parts := make([]string, len(p.CanonicalFields))
	for i, f := range p.CanonicalFields {
		v, ok := rec[f]
		if !ok || v == nil {
			continue
		}
		parts[i] = strings.ToLower(fmt.Sprintf("%v", v))
	}
	return strings.Join(parts, "|")
}

// CanonicalRecord projects rec onto the canonical field set, falling back to
// alias spellings for fields the source named differently. Absent fields come
// through as nil.
func (p *Profile) CanonicalRecord(rec records.Record) records.Record {
	out := make(records.Record, len(p.CanonicalFields))
	for _, f := range p.CanonicalFields {
		if v, ok := rec[f]; ok && v != nil {
			out[f] = v
			continue
		}
		out[f] = nil
		for _, alias := range p.reverseAliases[f] {
			if v, ok := rec[alias]; ok && v != nil {
				out[f] = v
				break
			}
		}
	}
	return out
}

// Key extracts the natural key from rec, trying the key field and then each
// accepted alias spelling. ok is false when no spelling yields a non-empty
// string.
func (p *Profile) Key(rec records.Record) (string, bool) {
	for _, k := range append([]string{p.KeyField}, p.KeyAliases...) {
		if s, ok := rec.String(k); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// FallbackColumns returns the synthetic header for headerless paragraph
// input.
func (p *Profile) FallbackColumns() []string {
	if len(p.Fallback) > 0 {
		return p.Fallback
	}
	return p.CanonicalFields
}

// HeaderKeywords returns the token list used to decide whether a paragraph
// line is a header: the classifier keywords plus the canonical field names.
func (p *Profile) HeaderKeywords() []string {
	out := make([]string, 0, len(p.Keywords)+len(p.CanonicalFields))
	out = append(out, p.Keywords...)
	out = append(out, p.CanonicalFields...)
	return out
}

var profiles = map[Entity]*Profile{
	Airline: {
		Entity:          Airline,
		Table:           "cleaned_airlines",
		Procedure:       "process_cleaned_airlines",
		CanonicalFields: []string{"airline_key", "airline_name", "alliance"},
		Aliases: map[string]string{
			"airline":     "airline_name",
			"airlinename": "airline_name",
			"carrier":     "airline_name",
			"airlinekey":  "airline_key",
			"iata":        "airline_key",
			"icao":        "airline_key",
		},
		KeyField:   "airline_key",
		KeyAliases: []string{"airlinekey", "iata", "icao"},
		NameFields: []string{"airline_name"},
		Keywords:   []string{"iata", "icao", "airline_name", "airlinename", "airline_key", "airlinekey", "callsign", "alliance"},
		identity: func(rec records.Record) bool {
			return hasAny(rec, "airline_key", "airline_name")
		},
	},
	Passenger: {
		Entity:          Passenger,
		Table:           "cleaned_passengers",
		Procedure:       "process_cleaned_passengers",
		CanonicalFields: []string{"passenger_id", "name", "age"},
		Aliases: map[string]string{
			"id":          "passenger_id",
			"passengerid": "passenger_id",
			"full_name":   "name",
			"fullname":    "name",
		},
		KeyField:   "passenger_id",
		KeyAliases: []string{"passengerid", "id"},
		NameFields: []string{"name"},
		Keywords:   []string{"passenger_id", "passengerid", "first_name", "last_name", "age"},
		identity: func(rec records.Record) bool {
			return hasAny(rec, "passenger_id")
		},
	},
	Flight: {
		Entity:          Flight,
		Table:           "cleaned_flights",
		Procedure:       "process_cleaned_flights",
		CanonicalFields: []string{"flight_key", "origin_airport_key", "destination_airport_key", "aircraft_type"},
		Aliases: map[string]string{
			"flight":                "flight_key",
			"flightkey":             "flight_key",
			"flight_number":         "flight_key",
			"flightnumber":          "flight_key",
			"flight_no":             "flight_key",
			"origin":                "origin_airport_key",
			"originairportkey":      "origin_airport_key",
			"departure":             "origin_airport_key",
			"destination":           "destination_airport_key",
			"destinationairportkey": "destination_airport_key",
			"arrival":               "destination_airport_key",
			"aircraft":              "aircraft_type",
			"aircrafttype":          "aircraft_type",
			"equipment":             "aircraft_type",
		},
		KeyField:   "flight_key",
		KeyAliases: []string{"flightkey", "flight_number", "flight_no", "flight"},
		Keywords:   []string{"flight_key", "flightkey", "flight_no", "origin", "destination", "departure", "arrival", "aircraft_type", "scheduled_time", "status", "airline_id"},
		identity: func(rec records.Record) bool {
			return hasAny(rec, "flight_key")
		},
	},
	Airport: {
		Entity:          Airport,
		Table:           "cleaned_airports",
		Procedure:       "process_cleaned_airports",
		CanonicalFields: []string{"airport_key", "airport_name", "city", "country"},
		Aliases: map[string]string{
			"airportkey":  "airport_key",
			"airport_id":  "airport_key",
			"iata_code":   "airport_key",
			"icao_code":   "airport_key",
			"airportname": "airport_name",
			"name":        "airport_name",
			"location":    "city",
		},
		KeyField:   "airport_key",
		KeyAliases: []string{"airportkey", "iata_code", "icao_code", "iata", "icao"},
		NameFields: []string{"airport_name"},
		Keywords:   []string{"airport_key", "airportkey", "airport_id", "airport_name", "airportname", "city", "country", "iata_code", "icao_code", "latitude", "longitude"},
		Fallback:   []string{"airport_key", "city", "country"},
		identity: func(rec records.Record) bool {
			return hasAny(rec, "airport_key", "airport_name")
		},
	},
	TravelAgency: {
		Entity:          TravelAgency,
		Table:           "cleaned_travelagency",
		Procedure:       "process_cleaned_travelagency",
		CanonicalFields: []string{"agency_key", "agency_name", "transaction_id", "passenger_name", "flight_number", "sale_amount", "currency", "sale_date"},
		Aliases: map[string]string{
			"agency_id":     "agency_key",
			"agencykey":     "agency_key",
			"agencyname":    "agency_name",
			"agency":        "agency_name",
			"transactionid": "transaction_id",
			"transaction":   "transaction_id",
			"booking_id":    "transaction_id",
			"passengername": "passenger_name",
			"flightnumber":  "flight_number",
			"flight_no":     "flight_number",
			"saleamount":    "sale_amount",
			"amount":        "sale_amount",
			"saledate":      "sale_date",
			"date":          "sale_date",
		},
		KeyField:   "transaction_id",
		KeyAliases: []string{"transactionid", "transaction", "booking_id"},
		NameFields: []string{"agency_name", "passenger_name"},
		Keywords:   []string{"agency_key", "agency_id", "agency_name", "booking_id", "sale_amount", "sale_date"},
		identity: func(rec records.Record) bool {
			return hasAny(rec, "transaction_id")
		},
	},
	CorporateSales: {
		Entity:          CorporateSales,
		Table:           "cleaned_corporatesales",
		Procedure:       "process_cleaned_corporatesales",
		CanonicalFields: []string{"invoice_id", "corporate_id", "corporate_name", "item", "qty", "unit_price", "total", "currency", "sale_date"},
		Aliases: map[string]string{
			"invoiceid":      "invoice_id",
			"invoice":        "invoice_id",
			"transaction_id": "invoice_id",
			"transactionid":  "invoice_id",
			"corp_id":        "corporate_id",
			"corporateid":    "corporate_id",
			"company":        "corporate_name",
			"corporate":      "corporate_name",
			"client_name":    "corporate_name",
			"description":    "item",
			"quantity":       "qty",
			"unitprice":      "unit_price",
			"price":          "unit_price",
			"amount":         "total",
			"saledate":       "sale_date",
			"date":           "sale_date",
		},
		KeyField:   "invoice_id",
		KeyAliases: []string{"invoiceid", "invoice", "transaction_id", "transactionid"},
		NameFields: []string{"corporate_name"},
		Keywords:   []string{"corp_id", "corporate_id", "client_name", "contract_value", "invoice", "invoice_id", "transaction_id", "start_date", "end_date"},
	},
}

func init() {
	for _, p := range profiles {
		p.reverseAliases = make(map[string][]string)
		aliases := make([]string, 0, len(p.Aliases))
		for a := range p.Aliases {
			aliases = append(aliases, a)
		}
		sort.Strings(aliases)
		for _, a := range aliases {
			target := p.Aliases[a]
			p.reverseAliases[target] = append(p.reverseAliases[target], a)
		}
	}
}

// ByEntity returns the profile for entity. ok is false for unknown entities.
func ByEntity(entity Entity) (*Profile, bool) {
	p, ok := profiles[entity]
	return p, ok
}

// All returns every registered profile in classifier priority order.
func All() []*Profile {
	out := []*Profile{profiles[Passenger]}
	for _, e := range classifyOrder {
		out = append(out, profiles[e])
	}
	return out
}

func hasAny(rec records.Record, keys ...string) bool {
	for _, k := range keys {
		if s, ok := rec.String(k); ok && s != "" {
			return true
		}
	}
	return false
}
