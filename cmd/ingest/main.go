// Command ingest runs one file through the ingestion pipeline.
//
// Usage:
//
//	ingest -file airlines.csv [-entity airline] [-store sqlite] [-dsn file:ingest.db] [-ensure-schema]
//
// With no -entity the file's headers are classified; unclassifiable files
// fail the run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"travelingest/internal/config"
	"travelingest/internal/metrics"
	"travelingest/internal/metrics/datadog"
	"travelingest/internal/pipeline"
	"travelingest/internal/profile"
	"travelingest/internal/store"
	_ "travelingest/internal/store/all"
)

func main() {
	var (
		configDir    = flag.String("config", "", "directory containing config.yaml (default: working directory)")
		filePath     = flag.String("file", "", "file to ingest (csv, docx, or html)")
		entityName   = flag.String("entity", "", "entity override; empty means classify from headers")
		storeKind    = flag.String("store", "", "storage backend override (postgres, sqlite, mssql)")
		dsn          = flag.String("dsn", "", "storage DSN override")
		ensureSchema = flag.Bool("ensure-schema", false, "create tables before ingesting")
	)
	flag.Parse()

	if *filePath == "" {
		fatalf("missing -file")
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		fatalf("%v", err)
	}
	if *storeKind != "" {
		cfg.Store.Kind = *storeKind
	}
	if *dsn != "" {
		cfg.Store.DSN = *dsn
	}

	var entity profile.Entity
	if *entityName != "" {
		e, ok := profile.ParseEntity(*entityName)
		if !ok {
			fatalf("unknown entity %q", *entityName)
		}
		entity = e
	}

	content, err := os.ReadFile(*filePath)
	if err != nil {
		fatalf("read %s: %v", *filePath, err)
	}

	ctx := context.Background()

	st, err := store.New(ctx, store.Config{
		Kind:       cfg.Store.Kind,
		DSN:        cfg.Store.DSN,
		Procedures: cfg.Store.Procedures,
	})
	if err != nil {
		fatalf("%v", err)
	}
	defer st.Close()

	if *ensureSchema {
		if err := st.EnsureTables(ctx, store.AllTables()); err != nil {
			fatalf("%v", err)
		}
	}

	var backend metrics.Backend = metrics.Noop{}
	if cfg.Metrics.Backend == "datadog" {
		dd, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    cfg.Metrics.Job,
			Tags:       datadog.ParseTagsCSV(cfg.Metrics.Tags),
			FlushEvery: cfg.Metrics.FlushEvery,
		})
		if err != nil {
			fatalf("metrics: %v", err)
		}
		defer func() {
			if err := dd.Close(); err != nil {
				log.Printf("metrics flush: %v", err)
			}
		}()
		backend = dd
	}

	runner := &pipeline.Runner{
		Store:           st,
		Metrics:         backend,
		BatchInsertSize: cfg.BatchInsertSize,
		MaxFileBytes:    cfg.MaxFileBytes,
	}

	out, err := runner.IngestFile(ctx, filepath.Base(*filePath), content, entity)
	printOutcome(out)
	if err != nil {
		fatalf("%v", err)
	}
}

func printOutcome(out pipeline.Outcome) {
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Printf("marshal outcome: %v", err)
		return
	}
	fmt.Println(string(b))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ingest: "+format+"\n", args...)
	os.Exit(1)
}
