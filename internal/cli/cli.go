// Package cli holds the plumbing shared by the aggregate and curate
// commands: exit codes, config issue reporting and metrics backend setup.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"albumcsv/internal/config"
	"albumcsv/internal/metrics"
	"albumcsv/internal/metrics/datadog"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// UsageError marks errors caused by how the command was invoked.
type UsageError struct{ Err error }

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// Usagef returns a formatted *UsageError.
func Usagef(format string, a ...any) error {
	return &UsageError{Err: fmt.Errorf(format, a...)}
}

// ExitCode reports err on w and maps it to a process exit code.
func ExitCode(w io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}
	fmt.Fprintf(w, "error: %v\n", err)
	var ue *UsageError
	if errors.As(err, &ue) {
		return ExitUsage
	}
	return ExitFailure
}

// ReportIssues prints config issues to w and returns a UsageError when any
// of them is an error.
func ReportIssues(w io.Writer, issues []config.Issue) error {
	for _, iss := range issues {
		fmt.Fprintln(w, iss.String())
	}
	if config.HasErrors(issues) {
		return Usagef("configuration is invalid")
	}
	return nil
}

// metricsBackend is what a concrete backend must provide for shutdown.
type metricsBackend interface {
	Close() error
}

// Test seams.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	setMetricsBackend = func(b any) {
		mb, _ := b.(metrics.Backend)
		metrics.SetBackend(mb)
	}
	logPrintf = log.Printf
)

// InitMetrics installs the backend named by m.Backend and returns a cleanup
// func that flushes and detaches it. The cleanup func is never nil.
//
// Tags come from m.Tags plus the comma-separated METRICS_TAGS variable.
func InitMetrics(ctx context.Context, job string, m config.Metrics) (func(), error) {
	name := strings.ToLower(strings.TrimSpace(m.Backend))
	switch name {
	case "", "none":
		return func() {}, nil

	case "datadog", "dd":
		tags := append(append([]string(nil), m.Tags...), datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...)
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    job,
			Tags:       tags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			return func() {}, fmt.Errorf("metrics: init datadog: %w", err)
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
			setMetricsBackend(nil)
		}, nil

	default:
		return func() {}, fmt.Errorf("unknown metrics backend %q (want none|datadog)", m.Backend)
	}
}
