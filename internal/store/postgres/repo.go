// Package postgres implements store.Store on a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"travelingest/internal/store"
)

func init() {
	store.Register("postgres", New)
}

type Repo struct {
	pool *pgxpool.Pool
}

// New opens a pgx pool for the DSN. The pool connects lazily; a bad DSN
// surfaces on first use.
func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureTables creates each table with CREATE TABLE IF NOT EXISTS. Idempotent.
func (r *Repo) EnsureTables(ctx context.Context, tables []store.TableSpec) error {
	for _, t := range tables {
		sql, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("postgres: create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) Upsert(ctx context.Context, table, keyColumn string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	sql, args := buildUpsertSQL(table, keyColumn, columns, rows)
	cmd, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres: upsert into %s: %w", table, err)
	}
	return cmd.RowsAffected(), nil
}

func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	sql, args := buildInsertSQL(table, columns, rows)
	cmd, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert into %s: %w", table, err)
	}
	return cmd.RowsAffected(), nil
}

// CallProcedure invokes a promotion function and scans its integer return.
func (r *Repo) CallProcedure(ctx context.Context, name, batchID string) (int64, error) {
	var promoted int64
	sql := fmt.Sprintf("SELECT %s($1)", pgIdent(name))
	if err := r.pool.QueryRow(ctx, sql, batchID).Scan(&promoted); err != nil {
		return 0, fmt.Errorf("postgres: call %s: %w", name, err)
	}
	return promoted, nil
}

func (r *Repo) RecordImportError(ctx context.Context, e store.ImportError) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO import_errors (batch_id, entity, line, reason, rawjson, created_at)
		 VALUES ($1, $2, $3, $4, $5, now())`,
		e.BatchID, e.Entity, nullIfZero(e.Line), e.Reason, nullIfEmpty(e.RawJSON))
	if err != nil {
		return fmt.Errorf("postgres: record import error: %w", err)
	}
	return nil
}

func (r *Repo) CreateRun(ctx context.Context, run store.Run) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO etl_runs (batch_id, filename, entity, status, rows_total, rows_cleaned, rows_promoted, error, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (batch_id) DO NOTHING`,
		run.ID, run.Filename, run.Entity, run.Status,
		run.RowsTotal, run.RowsCleaned, run.RowsPromoted,
		nullIfEmpty(run.Error), run.StartedAt)
	if err != nil {
		return fmt.Errorf("postgres: create run %s: %w", run.ID, err)
	}
	return nil
}

func (r *Repo) UpdateRun(ctx context.Context, run store.Run) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE etl_runs
		 SET status = $2, rows_total = $3, rows_cleaned = $4, rows_promoted = $5,
		     error = $6, finished_at = $7
		 WHERE batch_id = $1`,
		run.ID, run.Status,
		run.RowsTotal, run.RowsCleaned, run.RowsPromoted,
		nullIfEmpty(run.Error), nullTime(run))
	if err != nil {
		return fmt.Errorf("postgres: update run %s: %w", run.ID, err)
	}
	return nil
}

/* ---------- pure SQL builders ---------- */

// buildCreateSQL renders CREATE TABLE IF NOT EXISTS DDL for a spec. Pure, so
// DDL shape is unit-testable without a database.
func buildCreateSQL(t store.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("postgres: table name is empty")
	}

	cols := make([]string, 0, len(t.Columns)+2)
	cols = append(cols, "id BIGSERIAL PRIMARY KEY")
	for _, c := range t.Columns {
		def := pgIdent(c.Name) + " " + pgType(c.Type)
		if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}
	if len(t.Unique) > 0 {
		quoted := make([]string, len(t.Unique))
		for i, c := range t.Unique {
			quoted[i] = pgIdent(c)
		}
		cols = append(cols, "UNIQUE ("+strings.Join(quoted, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);",
		pgIdent(t.Name), strings.Join(cols, ", ")), nil
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	return b.String(), args
}

// buildUpsertSQL extends the plain insert with ON CONFLICT (key) DO UPDATE
// over every non-key column, so replaying a batch rewrites rather than
// duplicates.
func buildUpsertSQL(table, keyColumn string, columns []string, rows [][]any) (string, []any) {
	sql, args := buildInsertSQL(table, columns, rows)

	var b strings.Builder
	b.WriteString(sql)
	b.WriteString(" ON CONFLICT (")
	b.WriteString(pgIdent(keyColumn))
	b.WriteString(") DO UPDATE SET ")

	first := true
	for _, c := range columns {
		if c == keyColumn {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(pgIdent(c))
		b.WriteString(" = EXCLUDED.")
		b.WriteString(pgIdent(c))
	}
	return b.String(), args
}

func pgType(logical string) string {
	switch logical {
	case store.TypeInteger:
		return "BIGINT"
	case store.TypeReal:
		return "DOUBLE PRECISION"
	case store.TypeTimestamp:
		return "TIMESTAMPTZ"
	case store.TypeJSON:
		return "JSONB"
	default:
		return "TEXT"
	}
}

// pgIdent quotes an identifier, doubling any embedded quote.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullTime(run store.Run) any {
	if run.FinishedAt.IsZero() {
		return nil
	}
	return run.FinishedAt
}
