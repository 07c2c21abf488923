package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/phanatic/phanatic/internal/config"
	"github.com/phanatic/phanatic/internal/db"
	"github.com/phanatic/phanatic/internal/observability"
	"github.com/phanatic/phanatic/internal/pipeline"
	"github.com/phanatic/phanatic/internal/stages"
)

var reportCommand = &cobra.Command{
	Use:   "report [output-dir]",
	Short: "Summarise a finished run",
	Long: `Summarises a run from the run_summary.json in its output directory, or,
with --run, from the run database (--sqlite or --db-url / DATABASE_URL).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

var (
	reportRunID       string
	reportSQLitePath  string
	reportDatabaseURL string
)

func init() {
	reportCommand.Flags().StringVar(&reportRunID, "run", "", "Run ID to read from the run database")
	reportCommand.Flags().StringVar(&reportSQLitePath, "sqlite", "", "SQLite file the run was recorded in")
	reportCommand.Flags().StringVar(&reportDatabaseURL, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(reportCommand)
}

func runReport(_ *cobra.Command, args []string) error {
	if reportRunID != "" {
		return reportStoredRun(context.Background())
	}
	if len(args) != 1 {
		return fmt.Errorf("an output directory or --run is required")
	}

	sum, err := pipeline.ReadSummary(stages.Layout{Root: args[0]}.RunSummary())
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(os.Stdout)
	for _, r := range sum.Samples {
		printer.PrintSampleResult(r.Sample, r.Status, r.Genomes, r.Barcodes)
		if verbose && len(r.Verdicts) > 0 {
			printer.PrintVerdicts(r.Sample, r.Verdicts)
		}
		if r.FailedStage != "" {
			_, _ = fmt.Fprintf(os.Stdout, "  failed at %s: %s\n", r.FailedStage, r.Error)
		}
	}
	printer.PrintRunTotals(sum.RunID.String(), sum.Totals, sum.Genomes)
	return nil
}

func reportStoredRun(ctx context.Context) error {
	runID, err := uuid.Parse(reportRunID)
	if err != nil {
		return fmt.Errorf("invalid run ID %q: %w", reportRunID, err)
	}

	cfg := config.Default()
	cfg.SQLitePath = reportSQLitePath
	cfg.DatabaseURL = reportDatabaseURL
	if cfg.DatabaseURL == "" && cfg.SQLitePath == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	store, err := openStore(ctx, &cfg)
	if err != nil {
		return fmt.Errorf("failed to open run database: %w", err)
	}
	if store == nil {
		return fmt.Errorf("--run needs --sqlite, --db-url or DATABASE_URL")
	}
	defer func() { _ = store.Close() }()

	return writeStoredReport(ctx, store, runID, os.Stdout)
}

// writeStoredReport prints a run, its samples and their verdicts as recorded
// in store.
func writeStoredReport(ctx context.Context, store db.Store, runID uuid.UUID, w io.Writer) error {
	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	samples, err := store.ListSamples(ctx, runID)
	if err != nil {
		return err
	}
	verdicts, err := store.ListVerdicts(ctx, runID)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "Run %s [%s] %s\n", run.ID, run.Image, run.Status)
	_, _ = fmt.Fprintf(w, "Input:  %s\nOutput: %s\n", run.InputDir, run.OutputDir)
	for _, s := range samples {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d genomes\n", s.Sample, s.Status, s.Genomes)
		if s.FailedStage != "" {
			_, _ = fmt.Fprintf(w, "  failed at %s: %s\n", s.FailedStage, s.Error)
		}
		for _, v := range verdicts {
			if v.Sample != s.Sample {
				continue
			}
			_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\tcoverage=%s\tmapping=%s\n",
				v.ContigID, v.Decision, v.Reason, v.CoverageStatus, v.MappingStatus)
		}
	}
	return nil
}
