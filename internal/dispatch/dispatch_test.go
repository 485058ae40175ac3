package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelingest/internal/profile"
	"travelingest/internal/store"
)

// fakeStore records calls; failKeys makes Upsert reject any batch containing
// one of the listed key values, to exercise the per-row fallback.
type fakeStore struct {
	upserts  []upsertCall
	errs     []store.ImportError
	failKeys map[string]bool
}

type upsertCall struct {
	table   string
	key     string
	columns []string
	rows    [][]any
}

func (f *fakeStore) Close()                                              {}
func (f *fakeStore) EnsureTables(context.Context, []store.TableSpec) error { return nil }

func (f *fakeStore) Upsert(_ context.Context, table, keyColumn string, columns []string, rows [][]any) (int64, error) {
	keyIdx := -1
	for i, c := range columns {
		if c == keyColumn {
			keyIdx = i
		}
	}
	for _, row := range rows {
		if keyIdx >= 0 {
			if s, ok := row[keyIdx].(string); ok && f.failKeys[s] {
				return 0, errors.New("constraint violation")
			}
		}
	}
	f.upserts = append(f.upserts, upsertCall{table: table, key: keyColumn, columns: columns, rows: rows})
	return int64(len(rows)), nil
}

func (f *fakeStore) InsertRows(_ context.Context, table string, columns []string, rows [][]any) (int64, error) {
	return int64(len(rows)), nil
}

func (f *fakeStore) CallProcedure(context.Context, string, string) (int64, error) { return 0, nil }

func (f *fakeStore) RecordImportError(_ context.Context, e store.ImportError) error {
	f.errs = append(f.errs, e)
	return nil
}

func (f *fakeStore) CreateRun(context.Context, store.Run) error { return nil }
func (f *fakeStore) UpdateRun(context.Context, store.Run) error { return nil }

var _ store.Store = (*fakeStore)(nil)

func TestProcessListPayload(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{}
	p := &Processor{Store: fs}

	payload := []any{
		map[string]any{"airline_key": "ba", "airline_name": "British Airways"},
		map[string]any{"iata": "lh", "airline_name": "Lufthansa"},
	}

	out, err := p.Process(context.Background(), "batch-1", profile.Airline, payload)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Processed: 2}, out)

	require.Len(t, fs.upserts, 1)
	call := fs.upserts[0]
	assert.Equal(t, "cleaned_airlines", call.table)
	assert.Equal(t, "airline_key", call.key)
	require.Len(t, call.rows, 2)

	// Keys are re-derived (including from aliases) and uppercased.
	assert.Equal(t, "BA", call.rows[0][0])
	assert.Equal(t, "LH", call.rows[1][0])
}

func TestProcessWrappedPayloads(t *testing.T) {
	t.Parallel()

	row := map[string]any{"passenger_id": "p1", "name": "Ada", "age": 36}

	payloads := []any{
		map[string]any{"rows": []any{row}},
		map[string]any{"raw_rows": []any{map[string]any{"rawjson": row}}},
		map[string]any{"raw_rows": []any{map[string]any{"rawjson": `{"passenger_id":"p1","name":"Ada"}`}}},
		map[string]any{"items": []any{row}},
	}

	for i, payload := range payloads {
		fs := &fakeStore{}
		p := &Processor{Store: fs}
		out, err := p.Process(context.Background(), "batch-2", profile.Passenger, payload)
		require.NoError(t, err, "payload %d", i)
		assert.Equal(t, 1, out.Processed, "payload %d", i)
		assert.Zero(t, out.Errors, "payload %d", i)
	}
}

func TestProcessMissingKey(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{}
	p := &Processor{Store: fs}

	payload := []any{
		map[string]any{"airline_name": "No Key Air"},
		map[string]any{"airline_key": "ok", "airline_name": "Fine Air"},
	}

	out, err := p.Process(context.Background(), "batch-3", profile.Airline, payload)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Processed: 1, Errors: 1}, out)

	require.Len(t, fs.errs, 1)
	assert.Contains(t, fs.errs[0].Reason, "missing natural key")
	assert.Equal(t, "batch-3", fs.errs[0].BatchID)
}

func TestProcessCountsInvariant(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{}
	p := &Processor{Store: fs}

	payload := []any{
		map[string]any{"airline_key": "a1"},
		"not an object",
		map[string]any{"airline_name": "keyless"},
		map[string]any{"airline_key": "a2"},
	}

	out, err := p.Process(context.Background(), "batch-4", profile.Airline, payload)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Processed+out.Errors)
	assert.Equal(t, 2, out.Processed)
	assert.Equal(t, 2, out.Errors)
}

func TestProcessDegradesToPerRowOnBatchFailure(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{failKeys: map[string]bool{"BAD": true}}
	p := &Processor{Store: fs}

	payload := []any{
		map[string]any{"airline_key": "good", "airline_name": "Good Air"},
		map[string]any{"airline_key": "bad", "airline_name": "Bad Air"},
	}

	out, err := p.Process(context.Background(), "batch-5", profile.Airline, payload)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Processed: 1, Errors: 1}, out)

	// The batch write failed, then one per-row write succeeded.
	require.Len(t, fs.upserts, 1)
	require.Len(t, fs.upserts[0].rows, 1)
	assert.Equal(t, "GOOD", fs.upserts[0].rows[0][0])

	require.Len(t, fs.errs, 1)
	assert.Contains(t, fs.errs[0].Reason, "upsert")
}

func TestProcessRerunIsIdempotentShape(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{}
	p := &Processor{Store: fs}
	payload := []any{map[string]any{"airline_key": "ba", "airline_name": "British Airways"}}

	for range 2 {
		out, err := p.Process(context.Background(), "batch-6", profile.Airline, payload)
		require.NoError(t, err)
		assert.Equal(t, Outcome{Processed: 1}, out)
	}

	// Both runs target the same key column, so replay rewrites instead of
	// duplicating.
	require.Len(t, fs.upserts, 2)
	assert.Equal(t, fs.upserts[0].rows, fs.upserts[1].rows)
}

func TestProcessBadPayload(t *testing.T) {
	t.Parallel()

	p := &Processor{Store: &fakeStore{}}
	_, err := p.Process(context.Background(), "b", profile.Airline, 42)
	require.Error(t, err)
}

func TestRowsFallbackIsDeterministic(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"zebra":   []any{map[string]any{"airline_key": "zz"}},
		"alpha":   []any{map[string]any{"airline_key": "aa"}},
		"ignored": "scalar",
	}

	// With several list fields, the one first in field-name order always
	// wins.
	for range 10 {
		rows, bad, err := Rows(payload)
		require.NoError(t, err)
		require.Empty(t, bad)
		require.Len(t, rows, 1)
		key, _ := rows[0].String("airline_key")
		assert.Equal(t, "aa", key)
	}
}

func TestRowsUnknownShape(t *testing.T) {
	t.Parallel()

	_, _, err := Rows(map[string]any{"only": "scalars"})
	require.Error(t, err)
}
