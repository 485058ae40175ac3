// Package sqlite implements store.Store on database/sql with the pure-Go
// modernc driver. It is the zero-infrastructure backend used for local runs
// and tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"travelingest/internal/store"
)

func init() {
	store.Register("sqlite", New)
}

type Repo struct {
	db *sql.DB

	// procedures maps promotion procedure names to local SQL, since SQLite
	// has no stored procedures. The SQL takes the batch id as its single
	// parameter. Unmapped procedures promote nothing.
	procedures map[string]string
}

func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.DSN, err)
	}
	// The driver is effectively single-writer; serializing through one
	// connection avoids SQLITE_BUSY under concurrent ingests.
	db.SetMaxOpenConns(1)
	return &Repo{db: db, procedures: cfg.Procedures}, nil
}

func (r *Repo) Close() {
	_ = r.db.Close()
}

func (r *Repo) EnsureTables(ctx context.Context, tables []store.TableSpec) error {
	for _, t := range tables {
		sqlText, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
			return fmt.Errorf("sqlite: create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) Upsert(ctx context.Context, table, keyColumn string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	sqlText, args := buildUpsertSQL(table, keyColumn, columns, rows)
	res, err := r.db.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: upsert into %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	sqlText, args := buildInsertSQL(table, columns, rows)
	res, err := r.db.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert into %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CallProcedure runs the SQL configured for name, if any. A procedure with
// no configured SQL promotes zero rows rather than failing, so a bare local
// setup can still ingest end to end.
func (r *Repo) CallProcedure(ctx context.Context, name, batchID string) (int64, error) {
	sqlText, ok := r.procedures[name]
	if !ok {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, sqlText, batchID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: procedure %s: %w", name, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *Repo) RecordImportError(ctx context.Context, e store.ImportError) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO import_errors (batch_id, entity, line, reason, rawjson, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.BatchID, e.Entity, nullIfZero(e.Line), e.Reason, nullIfEmpty(e.RawJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sqlite: record import error: %w", err)
	}
	return nil
}

func (r *Repo) CreateRun(ctx context.Context, run store.Run) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO etl_runs (batch_id, filename, entity, status, rows_total, rows_cleaned, rows_promoted, error, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (batch_id) DO NOTHING`,
		run.ID, run.Filename, run.Entity, run.Status,
		run.RowsTotal, run.RowsCleaned, run.RowsPromoted,
		nullIfEmpty(run.Error), run.StartedAt)
	if err != nil {
		return fmt.Errorf("sqlite: create run %s: %w", run.ID, err)
	}
	return nil
}

func (r *Repo) UpdateRun(ctx context.Context, run store.Run) error {
	var finished any
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE etl_runs
		 SET status = ?, rows_total = ?, rows_cleaned = ?, rows_promoted = ?, error = ?, finished_at = ?
		 WHERE batch_id = ?`,
		run.Status, run.RowsTotal, run.RowsCleaned, run.RowsPromoted,
		nullIfEmpty(run.Error), finished, run.ID)
	if err != nil {
		return fmt.Errorf("sqlite: update run %s: %w", run.ID, err)
	}
	return nil
}

/* ---------- pure SQL builders ---------- */

func buildCreateSQL(t store.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("sqlite: table name is empty")
	}

	cols := make([]string, 0, len(t.Columns)+2)
	cols = append(cols, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, c := range t.Columns {
		def := ident(c.Name) + " " + sqliteType(c.Type)
		if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}
	if len(t.Unique) > 0 {
		quoted := make([]string, len(t.Unique))
		for i, c := range t.Unique {
			quoted[i] = ident(c)
		}
		cols = append(cols, "UNIQUE ("+strings.Join(quoted, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);",
		ident(t.Name), strings.Join(cols, ", ")), nil
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(ident(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, row[j])
		}
		b.WriteString(")")
	}
	return b.String(), args
}

func buildUpsertSQL(table, keyColumn string, columns []string, rows [][]any) (string, []any) {
	sqlText, args := buildInsertSQL(table, columns, rows)

	var b strings.Builder
	b.WriteString(sqlText)
	b.WriteString(" ON CONFLICT (")
	b.WriteString(ident(keyColumn))
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
		b.WriteString(ident(c))
		b.WriteString(" = excluded.")
		b.WriteString(ident(c))
	}
	return b.String(), args
}

func sqliteType(logical string) string {
	switch logical {
	case store.TypeInteger:
		return "INTEGER"
	case store.TypeReal:
		return "REAL"
	case store.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func ident(name string) string {
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
