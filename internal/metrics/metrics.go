// Package metrics defines the minimal instrumentation surface the pipeline
// emits to. Core code depends only on Backend; vendor-specific submission
// lives in subpackages.
package metrics

// Labels are the tag dimensions attached to an observation.
type Labels map[string]string

// Backend receives pipeline observations. Implementations must be safe for
// concurrent use; Flush and Close semantics are backend-specific.
type Backend interface {
	// IncCounter adds delta to a named counter. Non-positive deltas are
	// ignored.
	IncCounter(name string, delta float64, labels Labels)

	// ObserveHistogram records one sample of a named distribution.
	ObserveHistogram(name string, value float64, labels Labels)

	// Flush pushes buffered observations out.
	Flush() error

	// Close stops background work and performs a final Flush.
	Close() error
}

// Metric names emitted by the pipeline.
const (
	MetricRowsTotal           = "ingest_rows_total"
	MetricBatchesTotal        = "ingest_batches_total"
	MetricStepDurationSeconds = "ingest_step_duration_seconds"
)

// Noop discards every observation. Used when no metrics backend is
// configured.
type Noop struct{}

func (Noop) IncCounter(string, float64, Labels)       {}
func (Noop) ObserveHistogram(string, float64, Labels) {}
func (Noop) Flush() error                             { return nil }
func (Noop) Close() error                             { return nil }

var _ Backend = Noop{}
