package profile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownEntity reports headers that match no entity's keyword set.
// Classification failure is a hard stop: guessing a destination table for
// unrecognized data would corrupt it silently.
var ErrUnknownEntity = errors.New("headers match no known entity")

// classifyOrder is the priority in which entities claim a header set. The
// passenger check runs first because its signature is a field pair, not
// individual keywords; the remaining entities are ordered from most to least
// distinctive vocabulary.
var classifyOrder = []Entity{Airline, Airport, Flight, TravelAgency, CorporateSales}

// Classify decides which entity a header set belongs to. Headers are matched
// in both their raw lowercased and structurally normalized forms, so
// "AirlineKey" and "airline_key" classify alike.
func Classify(headers []string) (Entity, error) {
	seen := make(map[string]bool, len(headers)*2)
	for _, h := range headers {
		seen[strings.ToLower(strings.TrimSpace(h))] = true
		seen[NormalizeHeader(h)] = true
	}

	if isPassengerHeader(seen) {
		return Passenger, nil
	}
	for _, e := range classifyOrder {
		p := profiles[e]
		for _, kw := range p.Keywords {
			if seen[kw] {
				return e, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownEntity, strings.Join(headers, ", "))
}

// isPassengerHeader requires one of the identifying pairs rather than a lone
// keyword: a passenger id column plus a name column, or a first/last name
// split. A generic "id" column is accepted as a rename alias during cleaning
// but not here: almost every export carries id/name columns, and the
// passenger check runs first.
func isPassengerHeader(seen map[string]bool) bool {
	id := seen["passenger_id"] || seen["passengerid"]
	name := seen["name"] || seen["full_name"] || seen["fullname"]
	if id && name {
		return true
	}
	return seen["first_name"] && seen["last_name"]
}
