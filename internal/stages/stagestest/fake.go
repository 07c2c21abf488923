// Package stagestest provides a fake tool executor that fabricates the files
// each external tool would write, for exercising the pipeline without the
// bioinformatics binaries installed.
package stagestest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/phanatic/phanatic/internal/stages"
)

// ErrToolFailed is returned for commands configured to fail.
var ErrToolFailed = errors.New("tool exited with status 1")

// Outputs supplies file contents for tools whose output is parsed later.
// Keys are sample names; a missing entry gets a generic placeholder.
type Outputs struct {
	Contigs        map[string]string // SPAdes contigs.fasta
	QualitySummary map[string]string // CheckV quality_summary.tsv
	CompleteTable  map[string]string // CheckV complete_genomes.tsv
	CovStats       map[string]string // bbmap covstats.tsv
	ScafStats      map[string]string // bbmap scafstats.tsv
	BaseCov        map[string]string // bbmap basecov.tsv
}

// Executor records every command and writes plausible outputs.
type Executor struct {
	mu       sync.Mutex
	Commands []stages.Command
	Outputs  Outputs
	// Fail makes a tool fail for a sample: key "tool/sample", e.g. "bbduk.sh/S1".
	Fail map[string]bool
	// Empty makes a tool succeed but write nothing: same keys as Fail.
	Empty map[string]bool
}

// Run implements stages.Executor.
func (e *Executor) Run(ctx context.Context, cmd stages.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	e.Commands = append(e.Commands, cmd)
	e.mu.Unlock()

	sample := sampleOf(cmd)
	key := cmd.Name + "/" + sample
	if e.Fail[key] {
		return ErrToolFailed
	}
	if e.Empty[key] {
		return nil
	}
	return e.write(cmd, sample)
}

// Ran reports how many commands used the named tool.
func (e *Executor) Ran(tool string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.Commands {
		if c.Name == tool {
			n++
		}
	}
	return n
}

func arg(cmd stages.Command, prefix string) string {
	for _, a := range cmd.Args {
		if strings.HasPrefix(a, prefix) {
			return strings.TrimPrefix(a, prefix)
		}
	}
	return ""
}

func flag(cmd stages.Command, name string) string {
	for i, a := range cmd.Args {
		if a == name && i+1 < len(cmd.Args) {
			return cmd.Args[i+1]
		}
	}
	return ""
}

// sampleOf recovers the sample name from the log path layout logs/<sample>/<stage>.log.
func sampleOf(cmd stages.Command) string {
	if cmd.LogPath == "" {
		return ""
	}
	return filepath.Base(filepath.Dir(cmd.LogPath))
}

func pick(m map[string]string, sample, fallback string) string {
	if v, ok := m[sample]; ok {
		return v
	}
	return fallback
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

const reads = "@read1\nACGTACGTACGT\n+\nIIIIIIIIIIII\n"

func (e *Executor) write(cmd stages.Command, sample string) error {
	switch cmd.Name {
	case "bbduk.sh", "dedupe.sh", "bbnorm.sh":
		return writeFile(arg(cmd, "out="), reads)
	case "reformat.sh":
		in, err := os.ReadFile(arg(cmd, "in="))
		if err != nil {
			return err
		}
		return writeFile(arg(cmd, "out="), string(in))
	case "bbmerge.sh":
		if err := writeFile(arg(cmd, "out="), reads); err != nil {
			return err
		}
		return writeFile(arg(cmd, "outu="), reads)
	case "spades.py":
		out := flag(cmd, "-o")
		return writeFile(filepath.Join(out, "contigs.fasta"),
			pick(e.Outputs.Contigs, sample, ">NODE_1_length_12_cov_100.0\nACGTACGTACGT\n"))
	case "checkv":
		dir := cmd.Args[2]
		if err := writeFile(filepath.Join(dir, "quality_summary.tsv"), pick(e.Outputs.QualitySummary, sample,
			"contig_id\tcontig_length\tprovirus\tproviral_length\tgene_count\tviral_genes\thost_genes\tcheckv_quality\n")); err != nil {
			return err
		}
		return writeFile(filepath.Join(dir, "complete_genomes.tsv"), pick(e.Outputs.CompleteTable, sample,
			"contig_id\tcontig_length\tkmer_freq\tprediction_type\tconfidence_level\n"))
	case "bbmap.sh":
		if err := writeFile(arg(cmd, "covstats="), pick(e.Outputs.CovStats, sample, "#ID\tAvg_fold\tLength\n")); err != nil {
			return err
		}
		if err := writeFile(arg(cmd, "scafstats="), pick(e.Outputs.ScafStats, sample, "#name\t%unambiguousReads\n")); err != nil {
			return err
		}
		if err := writeFile(arg(cmd, "basecov="), pick(e.Outputs.BaseCov, sample, "#RefName\tPos\tCoverage\n")); err != nil {
			return err
		}
		if outm := arg(cmd, "outm="); outm != "" {
			return writeFile(outm, reads)
		}
		return nil
	case "fastqc":
		return writeFile(filepath.Join(flag(cmd, "-o"), "report.html"), "<html></html>")
	default:
		return fmt.Errorf("fake executor: unknown tool %s", cmd.Name)
	}
}
