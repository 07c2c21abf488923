// Package extraction copies accepted genomes out of a sample's assembly into
// one FASTA file each.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phanatic/phanatic/internal/config"
	"github.com/phanatic/phanatic/internal/fasta"
	"github.com/phanatic/phanatic/internal/ledger"
	"github.com/phanatic/phanatic/internal/types"
)

// Stage is the ledger label for extraction entries.
const Stage = "Extraction"

// Extractor writes genomes into a single output directory.
type Extractor struct {
	outDir string
	mode   string
	rec    ledger.Recorder
}

// New creates an extractor. mode is config.MatchExact or config.MatchSubstring;
// anything else is treated as exact.
func New(outDir, mode string, rec ledger.Recorder) *Extractor {
	if mode != config.MatchSubstring {
		mode = config.MatchExact
	}
	return &Extractor{outDir: outDir, mode: mode, rec: rec}
}

// GenomeName is the file stem and FASTA header of an extracted genome.
func GenomeName(sample, contigID string) string {
	return sample + "_" + contigID
}

func (e *Extractor) matches(rec fasta.Record, contigID string) bool {
	if e.mode == config.MatchSubstring {
		return strings.Contains(rec.Header, contigID)
	}
	return rec.ID == contigID
}

// Extract finds contigID in contigsPath and writes it to
// {outDir}/{sample}_{contig_id}.fasta with the header >{sample}_{contig_id}.
// A missing contig returns an error wrapping ErrNoMatch.
func (e *Extractor) Extract(ctx context.Context, contigsPath, sample, contigID string) (types.ExtractedGenome, error) {
	var (
		found   *fasta.Record
		matched []string
	)
	err := fasta.ScanFile(ctx, contigsPath, func(r fasta.Record) error {
		if !e.matches(r, contigID) {
			return nil
		}
		matched = append(matched, r.ID)
		if found == nil {
			rec := r
			found = &rec
		}
		if e.mode == config.MatchExact {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return types.ExtractedGenome{}, fmt.Errorf("failed to read contigs for %s: %w", sample, err)
	}
	if found == nil {
		ledger.Recordf(e.rec, Stage, "%s: %s: no matching contig", sample, contigID)
		return types.ExtractedGenome{}, fmt.Errorf("%s in %s: %w", contigID, contigsPath, ErrNoMatch)
	}
	if len(matched) > 1 {
		e.rec.Record(Stage, (&AmbiguousMatch{Sample: sample, ContigID: contigID, Matches: matched}).Error())
	}

	name := GenomeName(sample, contigID)
	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return types.ExtractedGenome{}, fmt.Errorf("failed to create extraction directory: %w", err)
	}
	path := filepath.Join(e.outDir, name+".fasta")
	f, err := os.Create(path)
	if err != nil {
		return types.ExtractedGenome{}, fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fasta.Write(f, name, found.Seq); err != nil {
		_ = f.Close()
		return types.ExtractedGenome{}, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return types.ExtractedGenome{}, fmt.Errorf("failed to close %s: %w", path, err)
	}

	e.rec.Record(Stage, name)
	return types.ExtractedGenome{
		Sample:   sample,
		ContigID: contigID,
		Name:     name,
		Path:     path,
		Length:   found.Len(),
	}, nil
}

// ExtractAccepted extracts every accepted verdict. Genomes that cannot be
// found are recorded and skipped; other errors stop the sample.
func (e *Extractor) ExtractAccepted(ctx context.Context, contigsPath string, verdicts []types.ClassificationVerdict) ([]types.ExtractedGenome, error) {
	var out []types.ExtractedGenome
	for _, v := range verdicts {
		if !v.Accepted() {
			continue
		}
		g, err := e.Extract(ctx, contigsPath, v.Sample, v.ContigID)
		if errors.Is(err, ErrNoMatch) {
			continue
		}
		if err != nil {
			return out, err
		}
		out = append(out, g)
	}
	return out, nil
}

var errStop = errors.New("stop scan")
