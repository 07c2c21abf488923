package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phanatic/phanatic/internal/barcode"
	"github.com/phanatic/phanatic/internal/fasta"
	"github.com/phanatic/phanatic/internal/ledger"
	"github.com/phanatic/phanatic/internal/types"
)

var barcodeCommand = &cobra.Command{
	Use:   "barcode [genome.fasta]",
	Short: "Issue a barcode for an extracted genome",
	Long: `Issues a unique tag for one extracted genome and appends it to the
barcode index under --sample. A genome that already has a tag keeps it;
another genome of the same sample gets a new one.`,
	Args: cobra.ExactArgs(1),
	RunE: runBarcode,
}

var (
	barcodeIndex  string
	barcodeSample string
	barcodePrefix string
	barcodeLength int
)

func init() {
	barcodeCommand.Flags().StringVar(&barcodeIndex, "index", "barcodes.csv", "Barcode index CSV")
	barcodeCommand.Flags().StringVarP(&barcodeSample, "sample", "s", "", "Sample the genome was extracted from")
	barcodeCommand.Flags().StringVar(&barcodePrefix, "prefix", "", "Barcode prefix")
	barcodeCommand.Flags().IntVar(&barcodeLength, "length", 0, "Random characters per barcode (1-62)")

	_ = barcodeCommand.MarkFlagRequired("sample")

	rootCmd.AddCommand(barcodeCommand)
}

func runBarcode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("prefix") {
		cfg.BarcodePrefix = barcodePrefix
	}
	if cmd.Flags().Changed("length") {
		cfg.BarcodeLength = barcodeLength
	}

	records, err := fasta.ReadAll(context.Background(), args[0])
	if err != nil {
		return err
	}
	if len(records) != 1 {
		return fmt.Errorf("%s: expected one genome, found %d records", args[0], len(records))
	}
	g := types.ExtractedGenome{
		Sample:   barcodeSample,
		ContigID: strings.TrimPrefix(records[0].ID, barcodeSample+"_"),
		Name:     records[0].ID,
		Path:     args[0],
		Length:   records[0].Len(),
	}

	rec := &ledger.Buffer{}
	reg, err := barcode.Open(barcodeIndex, cfg.BarcodePrefix, cfg.BarcodeLength, rec)
	if err != nil {
		return err
	}
	b, err := reg.Issue(g)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(os.Stdout, "%s\t%s\n", b.Sample, b.Tag)
	return nil
}
