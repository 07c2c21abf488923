package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phanatic/phanatic/internal/config"
	"github.com/phanatic/phanatic/internal/db"
	"github.com/phanatic/phanatic/internal/ledger"
	"github.com/phanatic/phanatic/internal/metrics"
	"github.com/phanatic/phanatic/internal/observability"
	"github.com/phanatic/phanatic/internal/pipeline"
	"github.com/phanatic/phanatic/internal/publish"
	"github.com/phanatic/phanatic/internal/stages"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline over an input directory",
	Long: `Discovers read pairs in the input directory and processes each sample:
trim -> dedupe -> merge -> normalise -> assemble -> filter -> CheckV -> mapping
-> classify -> resolve -> extract -> barcode.

A failing sample is recorded in the run ledger and skipped; the run goes on.`,
	RunE: runPipelineCmd,
}

var (
	runInput          string
	runOutput         string
	runImage          string
	runThreads        int
	runMemory         string
	runMemoryGB       int
	runTargetCoverage int
	runFilterLength   int
	runMatchMode      string
	runBarcodeLength  int
	runBarcodePrefix  string
	runHostMapping    string
	runDatabaseURL    string
	runSQLitePath     string
	runPublishBucket  string
	runPublishPrefix  string

	runNormalise     bool
	runFilter        bool
	runFastQC        bool
	runBarcodeToggle bool
	runMapping       bool
	runReAssembly    bool
	runCleanUp       bool
)

func init() {
	runCommand.Flags().StringVarP(&runInput, "input", "i", "", "Directory containing paired read files")
	runCommand.Flags().StringVarP(&runOutput, "output", "o", "", "Output directory")
	runCommand.Flags().StringVar(&runImage, "image", "", "Label written into every ledger line")
	runCommand.Flags().IntVarP(&runThreads, "threads", "t", 0, "Threads for assembly, CheckV and FastQC")
	runCommand.Flags().StringVar(&runMemory, "memory", "", "JVM heap for bbtools, e.g. 20g")
	runCommand.Flags().IntVar(&runMemoryGB, "memory-gb", 0, "SPAdes memory limit in GB")
	runCommand.Flags().IntVar(&runTargetCoverage, "target-coverage", 0, "Normalisation target depth")
	runCommand.Flags().IntVar(&runFilterLength, "filter-length", 0, "Minimum contig length")
	runCommand.Flags().StringVar(&runMatchMode, "match-mode", "", "Contig matching for extraction: exact or substring")
	runCommand.Flags().IntVar(&runBarcodeLength, "barcode-length", 0, "Random characters per barcode (1-62)")
	runCommand.Flags().StringVar(&runBarcodePrefix, "barcode-prefix", "", "Barcode prefix")
	runCommand.Flags().StringVar(&runHostMapping, "host-mapping", "", "CSV of phage,host reference for the host check")

	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	runCommand.Flags().StringVar(&runSQLitePath, "sqlite", "", "SQLite file to record the run in (used when no PostgreSQL URL is set)")
	runCommand.Flags().StringVar(&runPublishBucket, "publish-bucket", "", "S3 bucket to upload run outputs to")
	runCommand.Flags().StringVar(&runPublishPrefix, "publish-prefix", "", "Key prefix for uploaded outputs")

	runCommand.Flags().BoolVar(&runNormalise, "normalise", true, "Normalise read depth before assembly")
	runCommand.Flags().BoolVar(&runFilter, "filter", true, "Drop contigs shorter than --filter-length")
	runCommand.Flags().BoolVar(&runFastQC, "fastqc", false, "Write FastQC reports for the raw reads")
	runCommand.Flags().BoolVar(&runBarcodeToggle, "barcode", true, "Barcode genomes of clean samples")
	runCommand.Flags().BoolVar(&runMapping, "mapping", true, "Map reads to contigs and check coverage and mapping")
	runCommand.Flags().BoolVar(&runReAssembly, "re-assembly", false, "Re-assemble each extracted genome from its reads")
	runCommand.Flags().BoolVar(&runCleanUp, "clean-up", false, "Remove intermediate read files after the run")

	rootCmd.AddCommand(runCommand)
}

// applyRunFlags overrides config values with the flags that were set.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.InputDir = runInput
	}
	if flags.Changed("output") {
		cfg.OutputDir = runOutput
	}
	if flags.Changed("image") {
		cfg.Image = runImage
	}
	if flags.Changed("threads") {
		cfg.ThreadCount = runThreads
	}
	if flags.Changed("memory") {
		cfg.MemoryBudget = runMemory
	}
	if flags.Changed("memory-gb") {
		cfg.MemoryGB = runMemoryGB
	}
	if flags.Changed("target-coverage") {
		cfg.TargetCoverage = runTargetCoverage
	}
	if flags.Changed("filter-length") {
		cfg.FilterLength = runFilterLength
	}
	if flags.Changed("match-mode") {
		cfg.MatchMode = runMatchMode
	}
	if flags.Changed("barcode-length") {
		cfg.BarcodeLength = runBarcodeLength
	}
	if flags.Changed("barcode-prefix") {
		cfg.BarcodePrefix = runBarcodePrefix
	}
	if flags.Changed("host-mapping") {
		cfg.HostMapping = runHostMapping
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}
	if flags.Changed("sqlite") {
		cfg.SQLitePath = runSQLitePath
	}
	if flags.Changed("publish-bucket") {
		cfg.PublishBucket = runPublishBucket
	}
	if flags.Changed("publish-prefix") {
		cfg.PublishPrefix = runPublishPrefix
	}

	if flags.Changed("normalise") {
		cfg.Pipeline.Normalise = runNormalise
	}
	if flags.Changed("filter") {
		cfg.Pipeline.Filter = runFilter
	}
	if flags.Changed("fastqc") {
		cfg.Pipeline.FastQC = runFastQC
	}
	if flags.Changed("barcode") {
		cfg.Pipeline.Barcode = runBarcodeToggle
	}
	if flags.Changed("mapping") {
		cfg.Pipeline.Mapping = runMapping
	}
	if flags.Changed("re-assembly") {
		cfg.Pipeline.ReAssembly = runReAssembly
	}
	if flags.Changed("clean-up") {
		cfg.Pipeline.CleanUp = runCleanUp
	}
	if verbose {
		cfg.Verbose = true
	}
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Step 1: Load config file if provided, then apply CLI overrides
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyRunFlags(cmd, cfg)

	// Step 2: Database URL falls back to the environment
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	// Step 3: Validate before any sample is touched
	if err := cfg.ValidateForRun(); err != nil {
		recordConfigError(cfg, err)
		return err
	}

	layout := stages.Layout{Root: cfg.OutputDir}
	runLedger, err := ledger.Open(layout.Ledger(), cfg.Image)
	if err != nil {
		return err
	}
	defer func() { _ = runLedger.Close() }()

	deps := pipeline.Deps{
		Recorder: runLedger,
		Logger:   logger,
		Metrics:  metrics.New(),
	}
	if cfg.Verbose {
		deps.Printer = observability.NewPrinter(os.Stdout)
	}

	// Step 4: Optional persistence; the run continues without it
	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to open run database, continuing without persistence", zap.Error(err))
	} else if store != nil {
		defer func() { _ = store.Close() }()
		deps.Store = store
	}

	if cfg.PublishBucket != "" {
		endpoint := os.Getenv("AWS_ENDPOINT_URL_S3")
		pub, err := publish.New(ctx, publish.Config{
			Bucket:    cfg.PublishBucket,
			Prefix:    cfg.PublishPrefix,
			Region:    os.Getenv("AWS_REGION"),
			Endpoint:  endpoint,
			PathStyle: endpoint != "",
		})
		if err != nil {
			return fmt.Errorf("failed to configure publishing: %w", err)
		}
		deps.Publisher = pub
	}

	p, err := pipeline.New(cfg, deps)
	if err != nil {
		return err
	}
	sum, err := p.Run(ctx)
	if ledgerErr := runLedger.Err(); ledgerErr != nil {
		logger.Error("Ledger write failed", zap.Error(ledgerErr))
	}
	if err != nil {
		return fmt.Errorf("run %s: %w", p.RunID(), err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "Run %s complete: %d samples, %d genomes\n", sum.RunID, len(sum.Samples), sum.Genomes)
	_, _ = fmt.Fprintf(os.Stdout, "Ledger: %s\n", runLedger.Path())
	return nil
}

// stageConfiguration labels ledger entries for a run rejected before it starts.
const stageConfiguration = "Configuration"

// recordConfigError appends a rejected configuration to the run ledger when
// the output directory is known.
func recordConfigError(cfg *config.Config, cfgErr error) {
	if cfg.OutputDir == "" {
		return
	}
	l, err := ledger.Open(stages.Layout{Root: cfg.OutputDir}.Ledger(), cfg.Image)
	if err != nil {
		if logger != nil {
			logger.Warn("Failed to record configuration error", zap.Error(err))
		}
		return
	}
	defer func() { _ = l.Close() }()
	l.Record(stageConfiguration, cfgErr.Error())
}

// openStore connects to PostgreSQL when a URL is configured, otherwise to
// the SQLite file. It returns nil when neither is set.
func openStore(ctx context.Context, cfg *config.Config) (db.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		return db.Connect(ctx, cfg.DatabaseURL)
	case cfg.SQLitePath != "":
		return db.OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, nil
	}
}
