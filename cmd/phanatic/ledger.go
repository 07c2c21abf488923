package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phanatic/phanatic/internal/ledger"
	"github.com/phanatic/phanatic/internal/stages"
)

var ledgerCommand = &cobra.Command{
	Use:   "ledger [output-dir | ledger-file]",
	Short: "Show the run ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedger,
}

var (
	ledgerStage string
	ledgerGrep  string
)

func init() {
	ledgerCommand.Flags().StringVar(&ledgerStage, "stage", "", "Only show entries of this stage")
	ledgerCommand.Flags().StringVar(&ledgerGrep, "grep", "", "Only show entries whose message contains this text")

	rootCmd.AddCommand(ledgerCommand)
}

func runLedger(_ *cobra.Command, args []string) error {
	path := args[0]
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = stages.Layout{Root: path}.Ledger()
	}

	entries, err := ledger.ReadEntries(path)
	if err != nil {
		return fmt.Errorf("failed to read ledger %s: %w", filepath.Base(path), err)
	}
	for _, e := range entries {
		if ledgerStage != "" && !strings.EqualFold(e.Stage, ledgerStage) {
			continue
		}
		if ledgerGrep != "" && !strings.Contains(e.Message, ledgerGrep) {
			continue
		}
		_, _ = fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", e.Time.Format(ledger.TimeLayout), e.Stage, e.Message)
	}
	return nil
}
