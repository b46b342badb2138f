// Command aggregate concatenates the CSV files of a directory into a single
// CSV file.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"albumcsv/internal/aggregate"
	"albumcsv/internal/cli"
	"albumcsv/internal/config"
	"albumcsv/internal/export"
	"albumcsv/internal/report"
	"albumcsv/internal/table"

	// register all backends with the storage factory.
	_ "albumcsv/internal/storage/all"
)

var logPrintf = log.Printf

type appDeps struct {
	loadConfig  func(path string) (config.Aggregate, error)
	initMetrics func(ctx context.Context, job string, m config.Metrics) (func(), error)
	aggregate   func(ctx context.Context, cfg config.Aggregate) (aggregate.Result, error)
	export      func(ctx context.Context, cfg config.Export, t *table.Table) (export.Result, error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:  config.LoadAggregate,
		initMetrics: cli.InitMetrics,
		aggregate:   aggregate.Run,
		export:      export.Table,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	cmd := newRootCommand(deps)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cli.ExitCode(stderr, cmd.ExecuteContext(ctx))
}

func newRootCommand(deps appDeps) *cobra.Command {
	var (
		cfgPath  string
		inputDir string
		output   string
		policy   string
		kind     string
		dsn      string
		tableNm  string
		backend  string
		validate bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:           "aggregate",
		Short:         "Concatenate every .csv file in a directory into one CSV file",
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.DefaultAggregate()
			if cfgPath != "" {
				loaded, err := deps.loadConfig(cfgPath)
				if err != nil {
					return cli.Usagef("%v", err)
				}
				cfg = loaded
			}

			flags := cmd.Flags()
			if flags.Changed("input-dir") {
				cfg.InputDir = inputDir
			}
			if flags.Changed("output") {
				cfg.Output = output
			}
			if flags.Changed("schema") {
				cfg.SchemaPolicy = strings.ToLower(strings.TrimSpace(policy))
			}
			if flags.Changed("export-kind") {
				cfg.Export.Kind = kind
			}
			if flags.Changed("export-dsn") {
				cfg.Export.DSN = dsn
			}
			if flags.Changed("export-table") {
				cfg.Export.Table = tableNm
			}
			if flags.Changed("metrics-backend") {
				cfg.Metrics.Backend = backend
			}

			if err := cli.ReportIssues(cmd.ErrOrStderr(), config.ValidateAggregate(cfg)); err != nil {
				return err
			}
			if validate {
				logPrintf("configuration is valid")
				return nil
			}
			return execute(cmd.Context(), cmd.OutOrStdout(), cfg, deps, verbose)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfgPath, "config", "", "job config JSON path (flags override file values)")
	f.StringVar(&inputDir, "input-dir", config.DefaultAggregateInputDir, "directory holding the .csv files")
	f.StringVar(&output, "output", config.DefaultAggregateOutput, "output CSV file")
	f.StringVar(&policy, "schema", "union", "how differing headers combine: union|strict")
	f.StringVar(&kind, "export-kind", "", "also load the output into a database: sqlite|postgres|mssql")
	f.StringVar(&dsn, "export-dsn", "", "database DSN; $VARS are expanded")
	f.StringVar(&tableNm, "export-table", "metal_music", "destination table")
	f.StringVar(&backend, "metrics-backend", "none", "metrics backend: none|datadog")
	f.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	f.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logs")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &cli.UsageError{Err: err}
	})

	return cmd
}

func noArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return cli.Usagef("unexpected arguments: %s", strings.Join(args, " "))
	}
	return nil
}

func execute(ctx context.Context, stdout io.Writer, cfg config.Aggregate, deps appDeps, verbose bool) error {
	cleanup, err := deps.initMetrics(ctx, cfg.Job, cfg.Metrics)
	defer cleanup()
	if err != nil {
		return err
	}

	start := time.Now()
	if verbose {
		logPrintf("aggregate: input_dir=%s output=%s schema=%s", cfg.InputDir, cfg.Output, cfg.SchemaPolicy)
	}

	res, err := deps.aggregate(ctx, cfg)
	if err != nil {
		return err
	}
	if verbose {
		for _, f := range res.Files {
			logPrintf("aggregate: %s rows=%d columns=%d", filepath.Base(f.Path), f.Rows, f.Columns)
		}
	}
	if err := report.Aggregate(stdout, res); err != nil {
		return err
	}

	if cfg.Export.Enabled() {
		er, err := deps.export(ctx, cfg.Export, res.Table)
		if err != nil {
			return err
		}
		if err := report.Export(stdout, er); err != nil {
			return err
		}
	}

	if verbose {
		logPrintf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	return nil
}
