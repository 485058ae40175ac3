// Package pipeline runs one file ingest end to end: spool, extract,
// classify, clean, stage, dispatch, promote, with run bookkeeping around the
// whole thing.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"travelingest/internal/clean"
	"travelingest/internal/dispatch"
	"travelingest/internal/extract"
	"travelingest/internal/metrics"
	"travelingest/internal/profile"
	"travelingest/internal/store"
	"travelingest/pkg/records"
)

// Defaults applied when the corresponding Runner field is zero.
const (
	DefaultBatchInsertSize = 200
	DefaultMaxFileBytes    = 32 << 20
)

// Runner executes ingests against one Store. Zero-value fields fall back to
// defaults; Metrics may be nil.
type Runner struct {
	Store   store.Store
	Metrics metrics.Backend
	Logger  *log.Logger

	// BatchInsertSize bounds how many staging rows go into one INSERT.
	BatchInsertSize int

	// MaxFileBytes rejects oversized uploads before any parsing.
	MaxFileBytes int64
}

// Outcome reports what one ingest did.
type Outcome struct {
	BatchID       string         `json:"batch_id"`
	Entity        profile.Entity `json:"entity"`
	Filename      string         `json:"filename"`
	RowsExtracted int            `json:"rows_extracted"`
	RowsCleaned   int            `json:"rows_cleaned"`
	Processed     int            `json:"processed"`
	Errors        int            `json:"errors"`
	Promoted      int            `json:"promoted"`
	Warnings      []string       `json:"warnings,omitempty"`
	Status        string         `json:"status"`
}

// IngestFile ingests one uploaded file. entity may be empty, in which case
// the extracted headers are classified; a file that classifies to no entity
// is a hard stop. The returned Outcome is valid even when err is non-nil.
//
// The run row is created as soon as the file is accepted for a known entity,
// so an extraction failure still finalizes it as failed. When the entity has
// to be classified from the headers, the run is created right after
// classification; an unclassifiable file leaves no run row.
func (r *Runner) IngestFile(ctx context.Context, filename string, content []byte, entity profile.Entity) (Outcome, error) {
	out := Outcome{Filename: filename, Entity: entity, Status: store.RunFailed}

	maxBytes := r.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	if int64(len(content)) > maxBytes {
		return out, fmt.Errorf("pipeline: file %s exceeds %d bytes", filename, maxBytes)
	}

	out.BatchID = uuid.NewString()

	// Spool to disk so parsing reads the same bytes a crash-recovery replay
	// would; the spool is removed on every path.
	path, cleanup, err := spool(content)
	if err != nil {
		return out, err
	}
	defer cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("pipeline: read spool: %w", err)
	}

	prof, _ := profile.ByEntity(entity)

	run := store.Run{
		ID:        out.BatchID,
		Filename:  filename,
		Status:    store.RunStaged,
		StartedAt: time.Now().UTC(),
	}
	haveRun := false
	if prof != nil {
		run.Entity = string(entity)
		if err := r.Store.CreateRun(ctx, run); err != nil {
			return out, fmt.Errorf("pipeline: create run: %w", err)
		}
		haveRun = true
	}

	var opt extract.Options
	if prof != nil {
		opt.HeaderKeywords = prof.HeaderKeywords()
		opt.FallbackColumns = prof.FallbackColumns()
	}

	extractStart := time.Now()
	res, err := extract.Extract(data, extract.DetectKind(filename), opt)
	if err != nil {
		err = fmt.Errorf("pipeline: extract %s: %w", filename, err)
		if haveRun {
			err = r.finalize(ctx, &run, &out, err)
		}
		return out, err
	}
	r.observe("extract", extractStart)
	out.RowsExtracted = len(res.Rows)
	out.Warnings = res.Warnings

	if prof == nil {
		detected, cerr := profile.Classify(res.Headers)
		if cerr != nil {
			return out, fmt.Errorf("pipeline: classify %s: %w", filename, cerr)
		}
		entity = detected
		prof, _ = profile.ByEntity(entity)

		run.Entity = string(entity)
		if err := r.Store.CreateRun(ctx, run); err != nil {
			return out, fmt.Errorf("pipeline: create run: %w", err)
		}
	}
	out.Entity = entity
	run.RowsTotal = len(res.Rows)

	// From here on the run row exists; every exit path finalizes it.
	outErr := r.finalize(ctx, &run, &out, r.process(ctx, prof, res, &run, &out))
	return out, outErr
}

// finalize writes the terminal run row: failed with the causing message when
// err is non-nil, otherwise whatever status processing left behind. The
// returned error is err, or the update failure when err was nil.
func (r *Runner) finalize(ctx context.Context, run *store.Run, out *Outcome, err error) error {
	if err != nil {
		run.Status = store.RunFailed
		run.Error = err.Error()
	}
	run.FinishedAt = time.Now().UTC()
	if uerr := r.Store.UpdateRun(ctx, *run); uerr != nil && err == nil {
		run.Status = store.RunFailed
		err = fmt.Errorf("pipeline: update run: %w", uerr)
	}
	out.Status = run.Status
	return err
}

func (r *Runner) process(ctx context.Context, prof *profile.Profile, res extract.Result, run *store.Run, out *Outcome) error {
	run.Status = store.RunProcessing
	if err := r.Store.UpdateRun(ctx, *run); err != nil {
		return fmt.Errorf("pipeline: update run: %w", err)
	}

	if len(res.Warnings) > 0 {
		r.recordWarnings(ctx, run, res.Warnings)
	}

	cleanStart := time.Now()
	cleaned := clean.Clean(prof, res.Headers, res.Rows)
	r.observe("clean", cleanStart)
	out.RowsCleaned = len(cleaned.Cleaned)
	run.RowsCleaned = len(cleaned.Cleaned)

	stageStart := time.Now()
	if err := r.stageRaw(ctx, run, cleaned.Raw); err != nil {
		return err
	}
	r.observe("stage", stageStart)

	dispatchStart := time.Now()
	proc := &dispatch.Processor{Store: r.Store, Metrics: r.Metrics}
	dres, err := proc.Process(ctx, run.ID, prof.Entity, cleaned.Cleaned)
	if err != nil {
		return err
	}
	r.observe("dispatch", dispatchStart)
	out.Processed = dres.Processed
	out.Errors = dres.Errors

	promoteStart := time.Now()
	promoted, err := r.Store.CallProcedure(ctx, prof.Procedure, run.ID)
	if err != nil {
		return fmt.Errorf("pipeline: promote %s: %w", prof.Procedure, err)
	}
	r.observe("promote", promoteStart)
	out.Promoted = int(promoted)
	run.RowsPromoted = int(promoted)

	run.Status = store.RunSucceeded
	r.count(string(prof.Entity), "raw", len(cleaned.Raw))
	r.count(string(prof.Entity), "cleaned", len(cleaned.Cleaned))
	r.count(string(prof.Entity), "promoted", out.Promoted)
	if r.Metrics != nil {
		r.Metrics.IncCounter(metrics.MetricBatchesTotal, 1, nil)
	}
	r.logf("ingest %s entity=%s batch=%s rows=%d cleaned=%d processed=%d errors=%d promoted=%d",
		run.Filename, prof.Entity, run.ID,
		run.RowsTotal, run.RowsCleaned, out.Processed, out.Errors, out.Promoted)
	return nil
}

// stageRaw inserts every raw row into staging_raw in bounded batches.
func (r *Runner) stageRaw(ctx context.Context, run *store.Run, raw []records.Record) error {
	if len(raw) == 0 {
		return nil
	}

	size := r.BatchInsertSize
	if size <= 0 {
		size = DefaultBatchInsertSize
	}

	columns := []string{"batch_id", "entity", "rawjson", "created_at"}
	now := time.Now().UTC()

	for start := 0; start < len(raw); start += size {
		end := start + size
		if end > len(raw) {
			end = len(raw)
		}
		rows := make([][]any, 0, end-start)
		for _, rec := range raw[start:end] {
			rows = append(rows, []any{run.ID, run.Entity, store.MarshalRecord(rec), now})
		}
		if _, err := r.Store.InsertRows(ctx, "staging_raw", columns, rows); err != nil {
			return fmt.Errorf("pipeline: stage raw rows: %w", err)
		}
	}
	return nil
}

// recordWarnings preserves parse warnings as one import_errors entry so the
// run stays inspectable without flooding the table.
func (r *Runner) recordWarnings(ctx context.Context, run *store.Run, warnings []string) {
	detail, err := json.Marshal(warnings)
	if err != nil {
		detail = []byte(`["` + strings.Join(warnings, `","`) + `"]`)
	}
	_ = r.Store.RecordImportError(ctx, store.ImportError{
		BatchID: run.ID,
		Entity:  run.Entity,
		Reason:  fmt.Sprintf("parse warnings (%d)", len(warnings)),
		RawJSON: string(detail),
	})
}

// spool writes content to a temp file and returns its path with a cleanup
// that removes it.
func spool(content []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "ingest-*.spool")
	if err != nil {
		return "", nil, fmt.Errorf("pipeline: create spool: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := f.Write(content); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("pipeline: write spool: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("pipeline: close spool: %w", err)
	}
	return path, cleanup, nil
}

func (r *Runner) observe(step string, start time.Time) {
	if r.Metrics == nil {
		return
	}
	r.Metrics.ObserveHistogram(metrics.MetricStepDurationSeconds,
		time.Since(start).Seconds(), metrics.Labels{"step": step})
}

func (r *Runner) count(entity, kind string, n int) {
	if r.Metrics == nil || n == 0 {
		return
	}
	r.Metrics.IncCounter(metrics.MetricRowsTotal, float64(n), metrics.Labels{
		"entity": entity,
		"kind":   kind,
	})
}

func (r *Runner) logf(format string, args ...any) {
	if r.Logger == nil {
		log.Printf(format, args...)
		return
	}
	r.Logger.Printf(format, args...)
}
