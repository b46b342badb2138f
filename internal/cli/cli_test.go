package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"albumcsv/internal/config"
	"albumcsv/internal/metrics/datadog"
)

// fakeMetricsBackend is a deterministic metrics backend used by InitMetrics tests.
type fakeMetricsBackend struct {
	closeErr error
	closed   atomic.Int64
}

func (b *fakeMetricsBackend) Close() error {
	b.closed.Add(1)
	return b.closeErr
}

// swapSeams replaces the package seams for one test and restores them after.
// Tests using it must not run in parallel.
func swapSeams(t *testing.T, b metricsBackend, gotOpts *datadog.Options, sets *atomic.Int64, logged *bytes.Buffer) {
	t.Helper()
	oldNew, oldSet, oldLog := newDatadogBackend, setMetricsBackend, logPrintf
	t.Cleanup(func() {
		newDatadogBackend, setMetricsBackend, logPrintf = oldNew, oldSet, oldLog
	})

	newDatadogBackend = func(_ context.Context, opts datadog.Options) (metricsBackend, error) {
		if gotOpts != nil {
			*gotOpts = opts
		}
		return b, nil
	}
	setMetricsBackend = func(any) { sets.Add(1) }
	logPrintf = func(format string, v ...any) { fmt.Fprintf(logged, format, v...) }
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"runtime", errors.New("disk full"), ExitFailure},
		{"usage", Usagef("unknown flag %q", "--x"), ExitUsage},
		{"wrapped usage", fmt.Errorf("parse: %w", Usagef("bad")), ExitUsage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			if got := ExitCode(&buf, tc.err); got != tc.want {
				t.Fatalf("ExitCode=%d, want %d", got, tc.want)
			}
			if tc.err == nil && buf.Len() != 0 {
				t.Fatalf("unexpected output %q", buf.String())
			}
			if tc.err != nil && !strings.Contains(buf.String(), tc.err.Error()) {
				t.Fatalf("output=%q, want error text", buf.String())
			}
		})
	}
}

func TestReportIssues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	warn := config.Issue{Severity: config.SeverityWarning, Path: "patterns", Message: "empty"}
	if err := ReportIssues(&buf, []config.Issue{warn}); err != nil {
		t.Fatalf("warnings only: err=%v", err)
	}
	if !strings.Contains(buf.String(), "patterns") {
		t.Fatalf("warning not printed: %q", buf.String())
	}

	bad := config.Issue{Severity: config.SeverityError, Path: "input", Message: "required"}
	err := ReportIssues(&buf, []config.Issue{warn, bad})
	var ue *UsageError
	if !errors.As(err, &ue) {
		t.Fatalf("err=%v, want *UsageError", err)
	}
}

func TestInitMetrics_None(t *testing.T) {
	var sets atomic.Int64
	var logged bytes.Buffer
	swapSeams(t, &fakeMetricsBackend{}, nil, &sets, &logged)

	for _, name := range []string{"", "none", " NONE "} {
		cleanup, err := InitMetrics(context.Background(), "job", config.Metrics{Backend: name})
		if err != nil {
			t.Fatalf("backend %q: err=%v", name, err)
		}
		cleanup()
	}
	if sets.Load() != 0 {
		t.Fatalf("setMetricsBackend called %d times, want 0", sets.Load())
	}
}

func TestInitMetrics_Datadog_WiresBackendAndCloses(t *testing.T) {
	t.Setenv("METRICS_TAGS", "team:data, ,region:eu")

	b := &fakeMetricsBackend{}
	var sets atomic.Int64
	var logged bytes.Buffer
	var opts datadog.Options
	swapSeams(t, b, &opts, &sets, &logged)

	cleanup, err := InitMetrics(context.Background(), "curate", config.Metrics{Backend: "datadog", Tags: []string{"env:test"}})
	if err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}
	if opts.JobName != "curate" {
		t.Fatalf("JobName=%q, want curate", opts.JobName)
	}
	if got := strings.Join(opts.Tags, ","); got != "env:test,team:data,region:eu" {
		t.Fatalf("tags=%q", got)
	}
	if sets.Load() != 1 {
		t.Fatalf("setMetricsBackend calls=%d, want 1", sets.Load())
	}

	cleanup()
	if b.closed.Load() != 1 {
		t.Fatalf("closed=%d, want 1", b.closed.Load())
	}
	if sets.Load() != 2 {
		t.Fatalf("cleanup must detach the backend; set calls=%d", sets.Load())
	}
	if logged.Len() != 0 {
		t.Fatalf("unexpected log output: %q", logged.String())
	}
}

func TestInitMetrics_Datadog_CloseErrorIsLogged(t *testing.T) {
	b := &fakeMetricsBackend{closeErr: errors.New("flush failed")}
	var sets atomic.Int64
	var logged bytes.Buffer
	swapSeams(t, b, nil, &sets, &logged)

	cleanup, err := InitMetrics(context.Background(), "job", config.Metrics{Backend: "dd"})
	if err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}
	cleanup()

	if !strings.Contains(logged.String(), "metrics: datadog close error") || !strings.Contains(logged.String(), "flush failed") {
		t.Fatalf("log=%q", logged.String())
	}
}

func TestInitMetrics_UnknownBackendErrors(t *testing.T) {
	t.Parallel()

	cleanup, err := InitMetrics(context.Background(), "job", config.Metrics{Backend: "nope"})
	if err == nil || !strings.Contains(err.Error(), "none|datadog") {
		t.Fatalf("err=%v, want unknown backend error", err)
	}
	if cleanup == nil {
		t.Fatalf("cleanup=nil, want non-nil")
	}
	cleanup()
}
