package clean

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelingest/internal/profile"
	"travelingest/pkg/records"
)

func mustProfile(t *testing.T, e profile.Entity) *profile.Profile {
	t.Helper()
	p, ok := profile.ByEntity(e)
	require.True(t, ok)
	return p
}

func TestCleanAirlineEndToEnd(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, profile.Airline)
	headers := []string{"AirlineKey", "AirlineName", "Alliance"}
	rows := [][]any{
		{"ba", "british airways", "oneworld"},
		{"BA", "British Airways", "ONEWORLD"}, // duplicate of the first
		{"lh", "lufthansa", "nan"},
		{"", "nan", ""}, // no identity
	}

	res := Clean(p, headers, rows)

	require.Len(t, res.Raw, 4)
	require.Len(t, res.Cleaned, 2)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Dropped)

	first := res.Cleaned[0]
	assert.Equal(t, "BA", first["airline_key"])
	assert.Equal(t, "British Airways", first["airline_name"])
	assert.Equal(t, "oneworld", first["alliance"])

	second := res.Cleaned[1]
	assert.Equal(t, "LH", second["airline_key"])
	assert.Nil(t, second["alliance"])
}

func TestCleanDuplicateKeepsFirstOccurrence(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, profile.Airline)
	rows := [][]any{
		{"BA", "British Airways", "ONEWORLD"},
		{"ba", "BRITISH AIRWAYS", "oneworld"},
	}

	res := Clean(p, []string{"airline_key", "airline_name", "alliance"}, rows)
	require.Len(t, res.Cleaned, 1)
	assert.Equal(t, "ONEWORLD", res.Cleaned[0]["alliance"])
}

func TestCleanIsIdempotent(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, profile.Airport)
	headers := []string{"airport_key", "name", "city", "country"}
	rows := [][]any{
		{"lhr", "heathrow", "London", "UK"},
		{"cdg", "charles de gaulle", "Paris", "France"},
	}

	once := Clean(p, headers, rows)
	require.Len(t, once.Cleaned, 2)

	again := make([][]any, len(once.Cleaned))
	canon := []string{"airport_key", "airport_name", "city", "country"}
	for i, rec := range once.Cleaned {
		row := make([]any, len(canon))
		for j, f := range canon {
			row[j] = rec[f]
		}
		again[i] = row
	}

	twice := Clean(p, canon, again)
	assert.Equal(t, once.Cleaned, twice.Cleaned)
	assert.Zero(t, twice.Dropped)
	assert.Zero(t, twice.Duplicates)
}

func TestCleanCanonicalFieldsAlwaysPresent(t *testing.T) {
	t.Parallel()

	for _, p := range profile.All() {
		res := Clean(p, []string{p.KeyField}, [][]any{{"K1"}})
		require.Len(t, res.Cleaned, 1, p.Entity)
		for _, f := range p.CanonicalFields {
			assert.Contains(t, res.Cleaned[0], f, "%s missing %s", p.Entity, f)
		}
	}
}

func TestCleanPassengerRules(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, profile.Passenger)
	headers := []string{"passenger_id", "first_name", "last_name", "age"}
	rows := [][]any{
		{"p1", "ada", "lovelace", "36.0"},
		{"p2", "alan", "turing", "not a number"},
		{"", "no", "id", "1"},
	}

	res := Clean(p, headers, rows)
	require.Len(t, res.Cleaned, 2)
	assert.Equal(t, 1, res.Dropped)

	first := res.Cleaned[0]
	assert.Equal(t, "p1", first["passenger_id"])
	assert.Equal(t, "Ada Lovelace", first["name"])
	assert.Equal(t, 36, first["age"])

	assert.Nil(t, res.Cleaned[1]["age"])
}

func TestCleanAirportCountryCanonicalization(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, profile.Airport)
	headers := []string{"airport_key", "name", "city", "country"}
	rows := [][]any{
		{"jfk", "JFK International", "New York", "usa"},
		{"lhr", "Heathrow", "London", "U.K."},
		{"cdg", "Charles de Gaulle", "Paris", "France"},
	}

	res := Clean(p, headers, rows)
	require.Len(t, res.Cleaned, 3)
	assert.Equal(t, "United States", res.Cleaned[0]["country"])
	assert.Equal(t, "United Kingdom", res.Cleaned[1]["country"])
	assert.Equal(t, "France", res.Cleaned[2]["country"])
	// "name" aliases to airport_name and gets title-cased.
	assert.Equal(t, "Jfk International", res.Cleaned[0]["airport_name"])
}

func TestCleanTravelAgencyRules(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, profile.TravelAgency)
	headers := []string{"transaction_id", "agency_key", "agency_name", "sale_amount", "currency", "sale_date"}
	rows := [][]any{
		{"t1", "ag1", "sunshine travel", "$1,234.50", "usd", "03/15/2024"},
		{"t2", "ag2", "moonlight tours", "bogus", "eur", "2024-05-13"},
		{"nan", "ag3", "ghost agency", "10", "eur", "2024-01-01"},
	}

	res := Clean(p, headers, rows)
	require.Len(t, res.Cleaned, 2)
	assert.Equal(t, 1, res.Dropped)

	first := res.Cleaned[0]
	assert.Equal(t, "AG1", first["agency_key"])
	assert.Equal(t, "Sunshine Travel", first["agency_name"])
	assert.Equal(t, 1234.5, first["sale_amount"])
	assert.Equal(t, "USD", first["currency"])
	assert.Equal(t, "2024-03-15", first["sale_date"])

	assert.Nil(t, res.Cleaned[1]["sale_amount"])
}

func TestCleanCorporateRules(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, profile.CorporateSales)
	headers := []string{"invoice_id", "company", "description", "quantity", "unit_price", "amount", "currency", "date"}
	rows := [][]any{
		{"inv1", "acme corp", "widgets", "3", "19.99", "59.97", "gbp", "2024-02-01"},
	}

	res := Clean(p, headers, rows)
	require.Len(t, res.Cleaned, 1)

	rec := res.Cleaned[0]
	assert.Equal(t, "inv1", rec["invoice_id"])
	assert.Equal(t, "Acme Corp", rec["corporate_name"])
	assert.Equal(t, "widgets", rec["item"])
	assert.Equal(t, 3, rec["qty"])
	assert.Equal(t, 19.99, rec["unit_price"])
	assert.Equal(t, 59.97, rec["total"])
	assert.Equal(t, "GBP", rec["currency"])
	assert.Equal(t, "2024-02-01", rec["sale_date"])
}

func TestNormalizeDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-03-15", "2024-03-15", true},
		{"2024/03/15", "2024-03-15", true},
		{"03/15/2024", "2024-03-15", true},
		{"13/05/2024", "2024-05-13", true},
		{"Mar 15, 2024", "2024-03-15", true},
		{"not a date", "", false},
	}
	for _, tt := range tests {
		got, ok := normalizeDate(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestIsNullToken(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "nan", "NaN", "None", "NULL"} {
		assert.True(t, isNullToken(s), s)
	}
	for _, s := range []string{"0", "n/a ", "value"} {
		assert.False(t, isNullToken(s), s)
	}
}

func TestRowRecordIgnoresExtraCells(t *testing.T) {
	t.Parallel()

	rec := rowRecord([]string{"a", "b"}, []any{"1", nil, "extra"})
	assert.Equal(t, records.Record{"a": "1", "b": nil}, rec)
}
