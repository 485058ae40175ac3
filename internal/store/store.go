// Package store defines the backend-agnostic persistence interface for the
// ingestion pipeline and the factory registry backends plug into. Backends
// register themselves from init() in their own packages; importing
// store/all pulls in every built-in backend.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config selects and parameterizes a backend.
//
// Kind must match a registered backend ("postgres", "sqlite", "mssql").
// DSN is passed through to the backend factory; validation is backend-specific.
// Procedures optionally maps promotion procedure names to backend-local SQL,
// used by backends without stored procedures (SQLite).
type Config struct {
	Kind       string
	DSN        string
	Procedures map[string]string
}

// Run statuses, in lifecycle order. A run moves staged → processing and
// terminates at succeeded or failed.
const (
	RunStaged     = "staged"
	RunProcessing = "processing"
	RunSucceeded  = "succeeded"
	RunFailed     = "failed"
)

// Run is one row of the etl_runs bookkeeping table.
type Run struct {
	ID           string
	Filename     string
	Entity       string
	Status       string
	RowsTotal    int
	RowsCleaned  int
	RowsPromoted int
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// ImportError is one row-level failure preserved for later inspection. Line
// is 1-based within the source file where known, zero otherwise.
type ImportError struct {
	BatchID string
	Entity  string
	Line    int
	Reason  string
	RawJSON string
}

// Store is the minimal persistence surface the pipeline needs. Each backend
// implements the semantics in its own dialect (Postgres ON CONFLICT, MSSQL
// MERGE, and so on).
type Store interface {
	// Close releases backend resources. Treat as call-once.
	Close()

	// EnsureTables creates tables if they do not exist. Idempotent.
	EnsureTables(ctx context.Context, tables []TableSpec) error

	// Upsert inserts rows, replacing existing rows that share the key column
	// value. Returns the number of rows written.
	Upsert(ctx context.Context, table, keyColumn string, columns []string, rows [][]any) (int64, error)

	// InsertRows appends rows without conflict handling.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// CallProcedure invokes the named promotion procedure for a batch and
	// returns the number of rows it promoted.
	CallProcedure(ctx context.Context, name, batchID string) (int64, error)

	// RecordImportError persists one row-level failure.
	RecordImportError(ctx context.Context, e ImportError) error

	CreateRun(ctx context.Context, run Run) error
	UpdateRun(ctx context.Context, run Run) error
}

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Call from an init() function in
// the backend package. Registering the same kind twice panics: ambiguous
// backend selection should fail fast, at startup.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("store: Register called with empty kind")
	}
	if f == nil {
		panic("store: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("store: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Store using the registered factory for cfg.Kind.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("store: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("store: unsupported kind=%q", cfg.Kind)
	}
	return f(ctx, cfg)
}
