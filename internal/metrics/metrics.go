// Package metrics is the backend-agnostic metrics surface used by the jobs.
//
// Jobs record through the package-level helpers; a concrete backend (for
// example internal/metrics/datadog) is installed once at startup with
// SetBackend. Until then every call is a no-op.
package metrics

import (
	"sync"
	"time"
)

// Labels are metric dimensions, e.g. {"step": "read", "status": "ok"}.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer observations.
type Flusher interface {
	Flush() error
}

// Metric names recorded by the jobs.
const (
	RowsTotal           = "rows_total"
	FilesTotal          = "files_total"
	StepTotal           = "step_total"
	StepDurationSeconds = "step_duration_seconds"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the
// no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter on the current backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample on the current backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush flushes the current backend if it buffers.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// RecordRows counts rows by kind: read, written, duplicate, excluded.
func RecordRows(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RowsTotal, float64(n), Labels{"kind": kind})
}

// RecordFile counts one input file.
func RecordFile() {
	IncCounter(FilesTotal, 1, nil)
}

// Step times one job step. Call the returned func with the step's error:
//
//	done := metrics.Step("read")
//	t, err := read()
//	done(err)
func Step(step string) func(err error) {
	start := time.Now()
	return func(err error) {
		status := "ok"
		if err != nil {
			status = "error"
		}
		l := Labels{"step": step, "status": status}
		IncCounter(StepTotal, 1, l)
		ObserveHistogram(StepDurationSeconds, time.Since(start).Seconds(), l)
	}
}
