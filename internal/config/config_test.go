package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Kind)
	assert.Equal(t, "file:ingest.db", cfg.Store.DSN)
	assert.Equal(t, int64(32<<20), cfg.MaxFileBytes)
	assert.Equal(t, 200, cfg.BatchInsertSize)
	assert.Empty(t, cfg.Metrics.Backend)
	assert.Equal(t, time.Minute, cfg.Metrics.FlushEvery)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
store:
  kind: postgres
  dsn: postgres://localhost/ingest
  procedures:
    process_cleaned_airlines: "DELETE FROM cleaned_airlines WHERE batch_id = ?"
batch_insert_size: 50
metrics:
  backend: datadog
  job: nightly
  tags: env:prod
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Kind)
	assert.Equal(t, "postgres://localhost/ingest", cfg.Store.DSN)
	assert.Equal(t, 50, cfg.BatchInsertSize)
	assert.Contains(t, cfg.Store.Procedures, "process_cleaned_airlines")
	assert.Equal(t, "datadog", cfg.Metrics.Backend)
	assert.Equal(t, "nightly", cfg.Metrics.Job)
	// Unset values keep their defaults.
	assert.Equal(t, int64(32<<20), cfg.MaxFileBytes)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("INGEST_STORE_KIND", "mssql")
	t.Setenv("INGEST_STORE_DSN", "sqlserver://sa@localhost")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "mssql", cfg.Store.Kind)
	assert.Equal(t, "sqlserver://sa@localhost", cfg.Store.DSN)
}
