// Command curate keeps one row per album title and drops live albums,
// compilations and re-releases, writing the studio albums to a CSV file.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"albumcsv/internal/cli"
	"albumcsv/internal/config"
	"albumcsv/internal/curate"
	"albumcsv/internal/export"
	"albumcsv/internal/report"
	"albumcsv/internal/table"

	// register all backends with the storage factory.
	_ "albumcsv/internal/storage/all"
)

var logPrintf = log.Printf

// appDeps are the side-effecting steps of a run, replaced in tests.
type appDeps struct {
	loadConfig  func(path string) (config.Curate, error)
	initMetrics func(ctx context.Context, job string, m config.Metrics) (func(), error)
	curate      func(ctx context.Context, cfg config.Curate) (curate.Result, error)
	export      func(ctx context.Context, cfg config.Export, t *table.Table) (export.Result, error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:  config.LoadCurate,
		initMetrics: cli.InitMetrics,
		curate:      curate.Run,
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
		input    string
		output   string
		key      string
		patterns []string
		kind     string
		dsn      string
		tableNm  string
		backend  string
		validate bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:           "curate",
		Short:         "Deduplicate albums by title and keep studio albums only",
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.DefaultCurate()
			if cfgPath != "" {
				loaded, err := deps.loadConfig(cfgPath)
				if err != nil {
					return cli.Usagef("%v", err)
				}
				cfg = loaded
			}

			flags := cmd.Flags()
			if flags.Changed("input") {
				cfg.Input = input
			}
			if flags.Changed("output") {
				cfg.Output = output
			}
			if flags.Changed("key") {
				cfg.KeyColumn = key
			}
			if flags.Changed("patterns") {
				cfg.Patterns = patterns
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

			if err := cli.ReportIssues(cmd.ErrOrStderr(), config.ValidateCurate(cfg)); err != nil {
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
	f.StringVar(&input, "input", config.DefaultCurateInput, "input CSV file")
	f.StringVar(&output, "output", config.DefaultCurateOutput, "output CSV file")
	f.StringVar(&key, "key", config.DefaultKeyColumn, "column used for dedupe and pattern matching")
	f.StringSliceVar(&patterns, "patterns", config.DefaultPatterns, "case-insensitive substrings that exclude a title")
	f.StringVar(&kind, "export-kind", "", "also load the output into a database: sqlite|postgres|mssql")
	f.StringVar(&dsn, "export-dsn", "", "database DSN; $VARS are expanded")
	f.StringVar(&tableNm, "export-table", "studio_albums", "destination table")
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

func execute(ctx context.Context, stdout io.Writer, cfg config.Curate, deps appDeps, verbose bool) error {
	cleanup, err := deps.initMetrics(ctx, cfg.Job, cfg.Metrics)
	defer cleanup()
	if err != nil {
		return err
	}

	start := time.Now()
	if verbose {
		logPrintf("curate: input=%s output=%s key=%s patterns=%v", cfg.Input, cfg.Output, cfg.KeyColumn, cfg.Patterns)
	}

	res, err := deps.curate(ctx, cfg)
	if err != nil {
		return err
	}
	if err := report.Curate(stdout, res); err != nil {
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
