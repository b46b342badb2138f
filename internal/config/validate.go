package config

import (
	"fmt"
	"strings"

	"albumcsv/internal/table"
)

// Severity classifies a validation Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is a dotted JSON path into the job
// config (e.g. "export.dsn").
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateAggregate checks an aggregate job configuration.
func ValidateAggregate(c Aggregate) []Issue {
	var out []Issue
	if strings.TrimSpace(c.InputDir) == "" {
		out = append(out, errorf("input_dir", "must not be empty"))
	}
	if strings.TrimSpace(c.Output) == "" {
		out = append(out, errorf("output", "must not be empty"))
	}
	if _, err := table.ParseSchemaPolicy(c.SchemaPolicy); err != nil {
		out = append(out, errorf("schema_policy", "%v", err))
	}
	out = append(out, validateParser(c.Parser)...)
	out = append(out, validateExport(c.Export)...)
	out = append(out, validateMetrics(c.Metrics)...)
	return out
}

// ValidateCurate checks a curate job configuration.
func ValidateCurate(c Curate) []Issue {
	var out []Issue
	if strings.TrimSpace(c.Input) == "" {
		out = append(out, errorf("input", "must not be empty"))
	}
	if strings.TrimSpace(c.Output) == "" {
		out = append(out, errorf("output", "must not be empty"))
	}
	if c.Input != "" && c.Input == c.Output {
		out = append(out, errorf("output", "must differ from input"))
	}
	if strings.TrimSpace(c.KeyColumn) == "" {
		out = append(out, errorf("key_column", "must not be empty"))
	}
	if len(c.Patterns) == 0 {
		out = append(out, Issue{Severity: SeverityWarning, Path: "patterns", Message: "empty pattern set; only duplicates will be removed"})
	}
	for i, p := range c.Patterns {
		if strings.TrimSpace(p) == "" {
			out = append(out, errorf(fmt.Sprintf("patterns[%d]", i), "must not be blank (it would match every title)"))
		}
	}
	out = append(out, validateParser(c.Parser)...)
	out = append(out, validateExport(c.Export)...)
	out = append(out, validateMetrics(c.Metrics)...)
	return out
}

func validateParser(p Parser) []Issue {
	var out []Issue
	if s, ok := p.Options.Any("comma").(string); ok {
		switch r := p.Options.Rune("comma", ','); {
		case s == "":
			out = append(out, errorf("parser.options.comma", "must not be empty"))
		case r == '"' || r == '\r' || r == '\n':
			out = append(out, errorf("parser.options.comma", "invalid delimiter %q", r))
		}
	}
	return out
}

func validateExport(e Export) []Issue {
	if !e.Enabled() {
		return nil
	}
	var out []Issue
	switch e.Kind {
	case "sqlite", "postgres", "mssql":
	default:
		out = append(out, errorf("export.kind", "unsupported kind %q (want sqlite|postgres|mssql)", e.Kind))
	}
	if strings.TrimSpace(e.DSN) == "" {
		out = append(out, errorf("export.dsn", "required when export.kind is set"))
	}
	if strings.TrimSpace(e.Table) == "" {
		out = append(out, errorf("export.table", "required when export.kind is set"))
	}
	if e.BatchSize < 0 {
		out = append(out, errorf("export.batch_size", "must be >= 0"))
	}
	return out
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none", "datadog", "dd":
		return nil
	default:
		return []Issue{errorf("metrics.backend", "unknown backend %q (want none|datadog)", m.Backend)}
	}
}

func errorf(path, format string, a ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, a...)}
}
