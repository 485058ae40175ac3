// Package dispatch routes cleaned or externally supplied row payloads into
// the per-entity cleaned tables. It is deliberately tolerant: a bad row costs
// one import_errors entry, never the batch.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"travelingest/internal/metrics"
	"travelingest/internal/profile"
	"travelingest/internal/store"
	"travelingest/pkg/records"
)

// Processor writes entity rows through a Store and reports counters to a
// metrics backend.
type Processor struct {
	Store   store.Store
	Metrics metrics.Backend
}

// Outcome summarizes one dispatch. Processed plus Errors always equals the
// number of rows the payload yielded.
type Outcome struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// Process upserts the payload's rows into the entity's cleaned table.
// Row-level failures (no natural key, malformed element, rejected write) are
// recorded as import errors and counted; only infrastructure failures return
// an error.
func (p *Processor) Process(ctx context.Context, batchID string, entity profile.Entity, payload any) (Outcome, error) {
	prof, ok := profile.ByEntity(entity)
	if !ok {
		return Outcome{}, fmt.Errorf("dispatch: unknown entity %q", entity)
	}

	rows, bad, err := Rows(payload)
	if err != nil {
		return Outcome{}, err
	}

	var out Outcome
	for _, reason := range bad {
		out.Errors++
		p.recordError(ctx, batchID, prof, reason, "")
	}

	columns := append(append([]string{}, prof.CanonicalFields...), "batch_id", "rawjson")

	var valid []records.Record
	for _, rec := range rows {
		key, ok := prof.Key(rec)
		if !ok {
			out.Errors++
			p.recordError(ctx, batchID, prof, "missing natural key "+prof.KeyField, store.MarshalRecord(rec))
			continue
		}

		row := prof.CanonicalRecord(rec)
		row[prof.KeyField] = strings.ToUpper(key)
		row["batch_id"] = batchID
		row["rawjson"] = store.MarshalRecord(rec)
		valid = append(valid, row)
	}

	written, failed := p.upsert(ctx, batchID, prof, columns, valid)
	out.Processed += written
	out.Errors += failed

	p.count(string(entity), "processed", out.Processed)
	p.count(string(entity), "errors", out.Errors)
	return out, nil
}

// upsert writes the batch in one statement and degrades to per-row writes
// when the batch is rejected, so one poisoned row cannot sink its neighbors.
func (p *Processor) upsert(ctx context.Context, batchID string, prof *profile.Profile, columns []string, recs []records.Record) (written, failed int) {
	if len(recs) == 0 {
		return 0, 0
	}

	if _, err := p.Store.Upsert(ctx, prof.Table, prof.KeyField, columns, store.RowsFromRecords(columns, recs)); err == nil {
		return len(recs), 0
	}

	for _, rec := range recs {
		_, err := p.Store.Upsert(ctx, prof.Table, prof.KeyField, columns, store.RowsFromRecords(columns, []records.Record{rec}))
		if err != nil {
			failed++
			p.recordError(ctx, batchID, prof, "upsert: "+err.Error(), store.MarshalRecord(rec))
			continue
		}
		written++
	}
	return written, failed
}

func (p *Processor) recordError(ctx context.Context, batchID string, prof *profile.Profile, reason, rawJSON string) {
	_ = p.Store.RecordImportError(ctx, store.ImportError{
		BatchID: batchID,
		Entity:  string(prof.Entity),
		Reason:  reason,
		RawJSON: rawJSON,
	})
}

func (p *Processor) count(entity, kind string, n int) {
	if p.Metrics == nil || n == 0 {
		return
	}
	p.Metrics.IncCounter(metrics.MetricRowsTotal, float64(n), metrics.Labels{
		"entity": entity,
		"kind":   kind,
	})
}
