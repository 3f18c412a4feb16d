// Package metrics is a small, pluggable instrumentation layer for the sync
// pipeline.
//
// The rest of the project depends only on the Backend interface and the
// helpers here. The global backend defaults to a no-op, so calls are always
// safe even when no metrics system is configured; concrete systems
// (Prometheus Pushgateway, Datadog) live in subpackages and are installed
// with SetBackend at startup.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal surface a metrics system has to provide.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration-style value.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics, for backends that need it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the current one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error { return backend.Flush() }

// RecordStage records one execution of a pipeline stage: a count partitioned
// by outcome plus its duration. Stages are the pipeline phases (parse,
// normalize, dedupe, lookup, write).
func RecordStage(job, stage string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"stage":  stage,
		"status": status,
	}

	backend.IncCounter("entitysync_stage_total", 1, lbls)
	backend.ObserveHistogram("entitysync_stage_duration_seconds", d.Seconds(), lbls)
}

// RecordRows counts records per kind. Kinds mirror the run summary:
// "read", "rejected", "duplicates", "inserted", "updated", "skipped".
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("entitysync_records_total", float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches counts write batches committed for a job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("entitysync_batches_total", float64(delta), Labels{
		"job": job,
	})
}
