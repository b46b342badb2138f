package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Default paths used when a job runs without any flags or config file.
const (
	DefaultAggregateInputDir = "working_data"
	DefaultAggregateOutput   = "metal-music.csv"

	DefaultCurateInput  = "../working_data/data/all-metal-music-cleaned.csv"
	DefaultCurateOutput = "studio_albums_only.csv"

	DefaultKeyColumn = "title"

	DefaultExportBatchSize = 500
)

// DefaultPatterns are the keywords marking live albums, compilations and
// re-releases in a title.
var DefaultPatterns = []string{"live", "best", "collection", "alternate", "archive", "single", "edition"}

// Export configures the optional database load of a job's output table.
// An empty Kind disables export.
type Export struct {
	// Kind selects a registered storage backend: "sqlite" | "postgres" | "mssql".
	Kind string `json:"kind"`
	// DSN is passed to the backend; $VARS are expanded from the environment.
	DSN string `json:"dsn"`
	// Table is the destination table name.
	Table string `json:"table"`
	// BatchSize bounds rows per INSERT/COPY call.
	BatchSize int `json:"batch_size"`
}

// Metrics selects the metrics backend for a run.
type Metrics struct {
	Backend string   `json:"backend"` // "none" | "datadog"
	Tags    []string `json:"tags,omitempty"`
}

// Parser carries CSV parser options (see internal/parser/csv).
type Parser struct {
	Options Options `json:"options"`
}

// Aggregate is the configuration of the aggregate job.
type Aggregate struct {
	Job          string  `json:"job"`
	InputDir     string  `json:"input_dir"`
	Output       string  `json:"output"`
	SchemaPolicy string  `json:"schema_policy"` // "union" | "strict"
	Parser       Parser  `json:"parser"`
	Export       Export  `json:"export"`
	Metrics      Metrics `json:"metrics"`
}

// Curate is the configuration of the curate job.
type Curate struct {
	Job       string   `json:"job"`
	Input     string   `json:"input"`
	Output    string   `json:"output"`
	KeyColumn string   `json:"key_column"`
	Patterns  []string `json:"patterns"`
	Parser    Parser   `json:"parser"`
	Export    Export   `json:"export"`
	Metrics   Metrics  `json:"metrics"`
}

// DefaultAggregate returns the aggregate job configuration used when nothing
// is overridden.
func DefaultAggregate() Aggregate {
	return Aggregate{
		Job:          "aggregate",
		InputDir:     DefaultAggregateInputDir,
		Output:       DefaultAggregateOutput,
		SchemaPolicy: "union",
		Export:       Export{Table: "metal_music", BatchSize: DefaultExportBatchSize},
		Metrics:      Metrics{Backend: "none"},
	}
}

// DefaultCurate returns the curate job configuration used when nothing is
// overridden.
func DefaultCurate() Curate {
	return Curate{
		Job:       "curate",
		Input:     DefaultCurateInput,
		Output:    DefaultCurateOutput,
		KeyColumn: DefaultKeyColumn,
		Patterns:  append([]string(nil), DefaultPatterns...),
		Export:    Export{Table: "studio_albums", BatchSize: DefaultExportBatchSize},
		Metrics:   Metrics{Backend: "none"},
	}
}

// LoadAggregate decodes a JSON job file on top of DefaultAggregate.
func LoadAggregate(path string) (Aggregate, error) {
	cfg := DefaultAggregate()
	if err := decodeFile(path, &cfg); err != nil {
		return Aggregate{}, err
	}
	return cfg, nil
}

// LoadCurate decodes a JSON job file on top of DefaultCurate.
func LoadCurate(path string) (Curate, error) {
	cfg := DefaultCurate()
	if err := decodeFile(path, &cfg); err != nil {
		return Curate{}, err
	}
	return cfg, nil
}

func decodeFile(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ExpandDSN expands $VAR references so secrets can stay out of config files.
func (e Export) ExpandDSN() string {
	return os.ExpandEnv(strings.TrimSpace(e.DSN))
}

// Enabled reports whether a database export is configured.
func (e Export) Enabled() bool {
	return strings.TrimSpace(e.Kind) != ""
}
