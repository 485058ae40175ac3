package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelingest/internal/profile"
	"travelingest/internal/store"
)

type fakeStore struct {
	runs       []store.Run
	staged     [][]any
	upserts    map[string][][]any
	procedures []string
	errs       []store.ImportError

	promote int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{upserts: map[string][][]any{}}
}

func (f *fakeStore) Close()                                                {}
func (f *fakeStore) EnsureTables(context.Context, []store.TableSpec) error { return nil }

func (f *fakeStore) Upsert(_ context.Context, table, _ string, _ []string, rows [][]any) (int64, error) {
	f.upserts[table] = append(f.upserts[table], rows...)
	return int64(len(rows)), nil
}

func (f *fakeStore) InsertRows(_ context.Context, table string, _ []string, rows [][]any) (int64, error) {
	if table == "staging_raw" {
		f.staged = append(f.staged, rows...)
	}
	return int64(len(rows)), nil
}

func (f *fakeStore) CallProcedure(_ context.Context, name, _ string) (int64, error) {
	f.procedures = append(f.procedures, name)
	return f.promote, nil
}

func (f *fakeStore) RecordImportError(_ context.Context, e store.ImportError) error {
	f.errs = append(f.errs, e)
	return nil
}

func (f *fakeStore) CreateRun(_ context.Context, run store.Run) error {
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeStore) UpdateRun(_ context.Context, run store.Run) error {
	f.runs = append(f.runs, run)
	return nil
}

var _ store.Store = (*fakeStore)(nil)

func TestIngestFileAirlineCSV(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.promote = 2
	r := &Runner{Store: fs}

	csv := []byte("AirlineKey,AirlineName,Alliance\n" +
		"ba,british airways,oneworld\n" +
		"BA,British Airways,ONEWORLD\n" +
		"lh,lufthansa,star\n")

	out, err := r.IngestFile(context.Background(), "airlines.csv", csv, "")
	require.NoError(t, err)

	assert.Equal(t, profile.Airline, out.Entity)
	assert.Equal(t, 3, out.RowsExtracted)
	assert.Equal(t, 2, out.RowsCleaned)
	assert.Equal(t, 2, out.Processed)
	assert.Zero(t, out.Errors)
	assert.Equal(t, 2, out.Promoted)
	assert.Equal(t, store.RunSucceeded, out.Status)
	assert.NotEmpty(t, out.BatchID)

	// Every extracted row is staged raw, duplicates included.
	assert.Len(t, fs.staged, 3)
	assert.Len(t, fs.upserts["cleaned_airlines"], 2)
	assert.Equal(t, []string{"process_cleaned_airlines"}, fs.procedures)

	// Run bookkeeping: staged, processing, then the final succeeded update.
	require.NotEmpty(t, fs.runs)
	assert.Equal(t, store.RunStaged, fs.runs[0].Status)
	assert.Equal(t, store.RunProcessing, fs.runs[1].Status)
	last := fs.runs[len(fs.runs)-1]
	assert.Equal(t, store.RunSucceeded, last.Status)
	assert.Equal(t, 3, last.RowsTotal)
	assert.Equal(t, 2, last.RowsCleaned)
	assert.Equal(t, 2, last.RowsPromoted)
	assert.False(t, last.FinishedAt.IsZero())
}

func TestIngestFileRecordsParseWarnings(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	r := &Runner{Store: fs}

	csv := []byte("airline_key,airline_name,alliance\nBA,British Airways,ONEWORLD,extra\n")

	out, err := r.IngestFile(context.Background(), "ragged.csv", csv, profile.Airline)
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)

	require.Len(t, fs.errs, 1)
	assert.Contains(t, fs.errs[0].Reason, "parse warnings")
	assert.Contains(t, fs.errs[0].RawJSON, "merged extra fields")
}

func TestIngestFileUnclassifiableIsHardStop(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	r := &Runner{Store: fs}

	_, err := r.IngestFile(context.Background(), "mystery.csv", []byte("foo,bar\n1,2\n"), "")
	require.ErrorIs(t, err, profile.ErrUnknownEntity)

	// Nothing was staged or promoted for an unclassifiable file.
	assert.Empty(t, fs.runs)
	assert.Empty(t, fs.staged)
	assert.Empty(t, fs.procedures)
}

func TestIngestFileExtractionFailureMarksRunFailed(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	r := &Runner{Store: fs}

	// A known entity means the run row exists before parsing, so a file that
	// is not a real archive still leaves a failed run behind.
	out, err := r.IngestFile(context.Background(), "broken.docx", []byte("not a zip"), profile.Airline)
	require.Error(t, err)
	assert.Equal(t, store.RunFailed, out.Status)

	require.Len(t, fs.runs, 2)
	assert.Equal(t, store.RunStaged, fs.runs[0].Status)
	last := fs.runs[1]
	assert.Equal(t, store.RunFailed, last.Status)
	assert.Contains(t, last.Error, "extract")
	assert.False(t, last.FinishedAt.IsZero())
}

func TestIngestFileRejectsOversizedUpload(t *testing.T) {
	t.Parallel()

	r := &Runner{Store: newFakeStore(), MaxFileBytes: 8}
	_, err := r.IngestFile(context.Background(), "big.csv", []byte("a,b\n1,2\n3,4\n"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestIngestFileHeaderlessDocumentAirports(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	body := ""
	for _, ln := range []string{"LHR,London,UK", "CDG,Paris,France"} {
		body += fmt.Sprintf("<w:p><w:r><w:t>%s</w:t></w:r></w:p>", ln)
	}
	_, err = w.Write([]byte(`<w:document xmlns:w="ns"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	fs := newFakeStore()
	r := &Runner{Store: fs}

	out, err := r.IngestFile(context.Background(), "airports.docx", buf.Bytes(), profile.Airport)
	require.NoError(t, err)

	// Headerless paragraphs get the profile's synthetic header, so both
	// lines survive as data rows.
	assert.Equal(t, 2, out.RowsExtracted)
	assert.Equal(t, 2, out.RowsCleaned)
	require.Len(t, fs.upserts["cleaned_airports"], 2)
	assert.Equal(t, "LHR", fs.upserts["cleaned_airports"][0][0])
}

func TestIngestFileStagesInBatches(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	r := &Runner{Store: fs, BatchInsertSize: 2}

	csv := "passenger_id,name,age\n"
	for i := 0; i < 5; i++ {
		csv += fmt.Sprintf("p%d,Person %d,%d\n", i, i, 20+i)
	}

	out, err := r.IngestFile(context.Background(), "passengers.csv", []byte(csv), profile.Passenger)
	require.NoError(t, err)
	assert.Equal(t, 5, out.RowsExtracted)
	assert.Len(t, fs.staged, 5)
}
