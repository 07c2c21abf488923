// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/phanatic/phanatic/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintSamples outputs the read pairs found in the input directory.
func (p *Printer) PrintSamples(samples []types.Sample) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Read pairs: %d\n", len(samples)))
	if len(samples) > 0 {
		sb.WriteString("\n")
	}

	count := min(len(samples), maxItemsToShow)
	for i := 0; i < count; i++ {
		s := samples[i]
		sb.WriteString(fmt.Sprintf("• %s\n", s.Name))
		sb.WriteString(fmt.Sprintf("  %s | %s\n", filepath.Base(s.Read1), filepath.Base(s.Read2)))
	}
	if len(samples) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(samples)-maxItemsToShow))
	}

	p.printBox("DISCOVERED READ PAIRS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintVerdicts outputs the classifier verdict of every candidate contig.
func (p *Printer) PrintVerdicts(sample string, verdicts []types.ClassificationVerdict) {
	if len(verdicts) == 0 {
		p.printBox("CLASSIFICATION: "+sample, "No complete or high-quality candidates")
		return
	}

	var sb strings.Builder
	for i, v := range verdicts {
		mark := "✗"
		switch v.Decision {
		case types.Accept:
			mark = "✓"
		case types.Review:
			mark = "?"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", mark, v.ContigID))
		sb.WriteString(fmt.Sprintf("  coverage %s (%s)  mapped %s (%s)\n",
			v.Coverage.Format(), v.CoverageStatus, v.MappedPercent.Format(), v.MappingStatus))
		if i < len(verdicts)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("CLASSIFICATION: "+sample, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSampleResult outputs the status of a sample with its genomes and barcodes.
func (p *Printer) PrintSampleResult(sample string, status types.SampleStatus, genomes []types.ExtractedGenome, barcodes []types.Barcode) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status:   %s\n", status))
	sb.WriteString(fmt.Sprintf("Genomes:  %d\n", len(genomes)))

	tags := make(map[string]string, len(barcodes))
	for _, b := range barcodes {
		tags[b.Genome] = b.Tag
	}
	count := min(len(genomes), maxItemsToShow)
	if count > 0 {
		sb.WriteString("\n")
	}
	for i := 0; i < count; i++ {
		g := genomes[i]
		sb.WriteString(fmt.Sprintf("• %s (%d bp)", g.Name, g.Length))
		if tag, ok := tags[g.Name]; ok {
			sb.WriteString(fmt.Sprintf(" [%s]", tag))
		}
		sb.WriteString("\n")
	}
	if len(genomes) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(genomes)-maxItemsToShow))
	}

	p.printBox("SAMPLE RESULT: "+sample, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRunTotals outputs the per-status sample counts of a finished run.
func (p *Printer) PrintRunTotals(runID string, totals map[types.SampleStatus]int, genomes int) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:           %s\n", runID))
	sb.WriteString(fmt.Sprintf("Clean:         %d\n", totals[types.SampleClean]))
	sb.WriteString(fmt.Sprintf("Contaminated:  %d\n", totals[types.SampleContaminated]))
	sb.WriteString(fmt.Sprintf("Failed:        %d\n", totals[types.SampleFailed]))
	sb.WriteString(fmt.Sprintf("Genomes:       %d", genomes))

	p.printBox("RUN SUMMARY", sb.String())
}
