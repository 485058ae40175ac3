// Package mssql implements store.Store on database/sql with the Microsoft
// SQL Server driver. Upserts use MERGE; promotion procedures run via EXEC.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"travelingest/internal/store"
)

func init() {
	store.Register("mssql", New)
}

type Repo struct {
	db *sql.DB
}

func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	return &Repo{db: db}, nil
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
			return fmt.Errorf("mssql: create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) Upsert(ctx context.Context, table, keyColumn string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	sqlText, args := buildMergeSQL(table, keyColumn, columns, rows)
	res, err := r.db.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return 0, fmt.Errorf("mssql: merge into %s: %w", table, err)
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
		return 0, fmt.Errorf("mssql: insert into %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CallProcedure executes the stored procedure and scans the count it selects.
// A procedure that selects nothing counts as zero promotions.
func (r *Repo) CallProcedure(ctx context.Context, name, batchID string) (int64, error) {
	var promoted int64
	sqlText := fmt.Sprintf("EXEC %s @batch_id = @p1", ident(name))
	err := r.db.QueryRowContext(ctx, sqlText, batchID).Scan(&promoted)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("mssql: exec %s: %w", name, err)
	}
	return promoted, nil
}

func (r *Repo) RecordImportError(ctx context.Context, e store.ImportError) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO import_errors (batch_id, entity, line, reason, rawjson, created_at)
		 VALUES (@p1, @p2, @p3, @p4, @p5, @p6)`,
		e.BatchID, e.Entity, nullIfZero(e.Line), e.Reason, nullIfEmpty(e.RawJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mssql: record import error: %w", err)
	}
	return nil
}

func (r *Repo) CreateRun(ctx context.Context, run store.Run) error {
	_, err := r.db.ExecContext(ctx,
		`IF NOT EXISTS (SELECT 1 FROM etl_runs WHERE batch_id = @p1)
		 INSERT INTO etl_runs (batch_id, filename, entity, status, rows_total, rows_cleaned, rows_promoted, error, started_at)
		 VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9)`,
		run.ID, run.Filename, run.Entity, run.Status,
		run.RowsTotal, run.RowsCleaned, run.RowsPromoted,
		nullIfEmpty(run.Error), run.StartedAt)
	if err != nil {
		return fmt.Errorf("mssql: create run %s: %w", run.ID, err)
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
		 SET status = @p2, rows_total = @p3, rows_cleaned = @p4, rows_promoted = @p5,
		     error = @p6, finished_at = @p7
		 WHERE batch_id = @p1`,
		run.ID, run.Status,
		run.RowsTotal, run.RowsCleaned, run.RowsPromoted,
		nullIfEmpty(run.Error), finished)
	if err != nil {
		return fmt.Errorf("mssql: update run %s: %w", run.ID, err)
	}
	return nil
}

/* ---------- pure SQL builders ---------- */

func buildCreateSQL(t store.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("mssql: table name is empty")
	}

	cols := make([]string, 0, len(t.Columns)+2)
	cols = append(cols, "id BIGINT IDENTITY(1,1) PRIMARY KEY")
	for _, c := range t.Columns {
		def := ident(c.Name) + " " + mssqlType(c.Type)
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

	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s);",
		t.Name, ident(t.Name), strings.Join(cols, ", ")), nil
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
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	return b.String(), args
}

// buildMergeSQL renders a single MERGE statement that updates matched keys
// and inserts the rest. Pure for the same reason as the other builders.
func buildMergeSQL(table, keyColumn string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("MERGE INTO ")
	b.WriteString(ident(table))
	b.WriteString(" AS t USING (VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, rows[i][j])
			p++
		}
		b.WriteString(")")
	}

	b.WriteString(") AS s (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
	}
	b.WriteString(") ON t.")
	b.WriteString(ident(keyColumn))
	b.WriteString(" = s.")
	b.WriteString(ident(keyColumn))

	b.WriteString(" WHEN MATCHED THEN UPDATE SET ")
	first := true
	for _, c := range columns {
		if c == keyColumn {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString("t.")
		b.WriteString(ident(c))
		b.WriteString(" = s.")
		b.WriteString(ident(c))
	}

	b.WriteString(" WHEN NOT MATCHED THEN INSERT (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
	}
	b.WriteString(") VALUES (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("s.")
		b.WriteString(ident(c))
	}
	b.WriteString(");")

	return b.String(), args
}

// mssqlType maps logical types to SQL Server types. Text uses a bounded
// NVARCHAR so text columns stay indexable for unique constraints.
func mssqlType(logical string) string {
	switch logical {
	case store.TypeInteger:
		return "BIGINT"
	case store.TypeReal:
		return "FLOAT"
	case store.TypeTimestamp:
		return "DATETIME2"
	case store.TypeJSON:
		return "NVARCHAR(MAX)"
	default:
		return "NVARCHAR(400)"
	}
}

func ident(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
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
