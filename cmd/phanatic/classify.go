package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phanatic/phanatic/internal/classify"
	"github.com/phanatic/phanatic/internal/contamination"
	"github.com/phanatic/phanatic/internal/ledger"
	"github.com/phanatic/phanatic/internal/observability"
	"github.com/phanatic/phanatic/internal/statistics"
	"github.com/phanatic/phanatic/internal/summary"
)

var classifyCommand = &cobra.Command{
	Use:   "classify",
	Short: "Classify the contigs of one sample from existing statistics tables",
	Long: `Reads the CheckV and bbmap tables of one sample, decides which contigs
are complete genomes and reports the sample status. No external tool is run.

The CheckV directory supplies quality_summary.tsv and complete_genomes.tsv;
--covstats and --scafstats are optional and their values are indeterminate
when omitted.`,
	RunE: runClassify,
}

var (
	classifySample         string
	classifyCheckV         string
	classifyCovStats       string
	classifyScafStats      string
	classifyFilterLength   int
	classifyTargetCoverage int
	classifyMapping        bool
	classifyContigSummary  string
)

func init() {
	classifyCommand.Flags().StringVarP(&classifySample, "sample", "s", "", "Sample name")
	classifyCommand.Flags().StringVar(&classifyCheckV, "checkv", "", "CheckV output directory")
	classifyCommand.Flags().StringVar(&classifyCovStats, "covstats", "", "bbmap covstats table")
	classifyCommand.Flags().StringVar(&classifyScafStats, "scafstats", "", "bbmap scafstats table")
	classifyCommand.Flags().IntVar(&classifyFilterLength, "filter-length", 0, "Minimum candidate length")
	classifyCommand.Flags().IntVar(&classifyTargetCoverage, "target-coverage", 0, "Normalisation target depth")
	classifyCommand.Flags().BoolVar(&classifyMapping, "mapping", true, "Apply the coverage and mapping checks")
	classifyCommand.Flags().StringVar(&classifyContigSummary, "contig-summary", "", "Append candidate rows to this CSV")

	_ = classifyCommand.MarkFlagRequired("sample")
	_ = classifyCommand.MarkFlagRequired("checkv")

	rootCmd.AddCommand(classifyCommand)
}

func runClassify(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("filter-length") {
		cfg.FilterLength = classifyFilterLength
	}
	if cmd.Flags().Changed("target-coverage") {
		cfg.TargetCoverage = classifyTargetCoverage
	}
	if cmd.Flags().Changed("mapping") {
		cfg.Pipeline.Mapping = classifyMapping
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	set, gaps, err := statistics.Load(context.Background(), classifySample, statistics.Paths{
		QualitySummary:  filepath.Join(classifyCheckV, "quality_summary.tsv"),
		CompleteGenomes: filepath.Join(classifyCheckV, "complete_genomes.tsv"),
		CovStats:        classifyCovStats,
		ScafStats:       classifyScafStats,
	})
	if err != nil {
		return err
	}
	for _, gap := range gaps {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: %v\n", gap)
	}

	rec := &ledger.Buffer{}
	verdicts := classify.New(classify.OptionsFromConfig(cfg), rec).Classify(set)
	res := contamination.NewResolver(rec).Resolve(classifySample, verdicts)

	if classifyContigSummary != "" {
		if err := summary.NewContigTable(classifyContigSummary).AppendContigs(verdicts); err != nil {
			return err
		}
	}

	if verbose {
		observability.NewPrinter(os.Stdout).PrintVerdicts(classifySample, verdicts)
	} else {
		for _, v := range verdicts {
			_, _ = fmt.Fprintf(os.Stdout, "%s\t%s\t%s\tcoverage=%s\tmapping=%s\n",
				v.ContigID, v.Decision, v.Reason, v.CoverageStatus, v.MappingStatus)
		}
	}
	_, _ = fmt.Fprintf(os.Stdout, "Sample %s: %s (%d genomes)\n", classifySample, res.Status, res.Genomes())
	return nil
}
