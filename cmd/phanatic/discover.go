package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phanatic/phanatic/internal/ledger"
	"github.com/phanatic/phanatic/internal/observability"
	"github.com/phanatic/phanatic/internal/registry"
)

var discoverCommand = &cobra.Command{
	Use:   "discover",
	Short: "List the read pairs a run would process",
	RunE:  runDiscover,
}

var (
	discoverInput string
	discoverR1Ext string
	discoverR2Ext string
)

func init() {
	discoverCommand.Flags().StringVarP(&discoverInput, "input", "i", "", "Directory containing paired read files")
	discoverCommand.Flags().StringVar(&discoverR1Ext, "r1-ext", "", "Suffix of first read files")
	discoverCommand.Flags().StringVar(&discoverR2Ext, "r2-ext", "", "Suffix of second read files")

	rootCmd.AddCommand(discoverCommand)
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("input") {
		cfg.InputDir = discoverInput
	}
	if cmd.Flags().Changed("r1-ext") {
		cfg.R1Ext = discoverR1Ext
	}
	if cmd.Flags().Changed("r2-ext") {
		cfg.R2Ext = discoverR2Ext
	}
	if cfg.InputDir == "" {
		return fmt.Errorf("--input is required (via flag or config)")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rec := &ledger.Buffer{}
	samples, err := registry.New(cfg, rec).Discover()
	if err != nil {
		return err
	}
	for _, e := range rec.Entries() {
		if strings.HasPrefix(e.Message, "No second read file") {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: %s\n", e.Message)
		}
	}

	if verbose {
		observability.NewPrinter(os.Stdout).PrintSamples(samples)
		return nil
	}
	for _, s := range samples {
		_, _ = fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", s.Name, s.Read1, s.Read2)
	}
	return nil
}
