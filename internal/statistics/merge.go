package statistics

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/phanatic/phanatic/internal/types"
)

// Table names used in gap reports.
const (
	TableQuality  = "quality_summary"
	TableComplete = "complete_genomes"
	TableCoverage = "covstats"
	TableMapping  = "scafstats"
)

// DataFusionGap reports a statistics table that could not be read. The
// affected fields stay indeterminate; it is a warning, never fatal.
type DataFusionGap struct {
	Sample string
	Table  string
	Path   string
	Cause  error
}

func (g *DataFusionGap) Error() string {
	return fmt.Sprintf("%s: %s table unavailable (%s): %v", g.Sample, g.Table, g.Path, g.Cause)
}

func (g *DataFusionGap) Unwrap() error {
	return g.Cause
}

// Missing reports whether the table file did not exist.
func (g *DataFusionGap) Missing() bool {
	return errors.Is(g.Cause, fs.ErrNotExist)
}

// Paths locates the statistics tables of one sample. An empty path means the
// table was not requested (for example mapping disabled) and is not a gap.
type Paths struct {
	QualitySummary  string
	CompleteGenomes string
	CovStats        string
	ScafStats       string
}

// Sources holds the parsed tables of one sample. A nil field is a table
// that was not available.
type Sources struct {
	Quality  []QualityRow
	Complete map[string]int
	Coverage map[string]CoverageRow
	Mapping  map[string]float64
	Skipped  int
}

// Set is the merged record set of one sample.
type Set struct {
	Sample  string
	Records []types.ContigRecord
	Skipped int // malformed or duplicate rows dropped while reading
}

// Lookup returns the record for a contig id.
func (s Set) Lookup(contigID string) (types.ContigRecord, bool) {
	for _, r := range s.Records {
		if r.ContigID == contigID {
			return r, true
		}
	}
	return types.ContigRecord{}, false
}

// Merge joins the tables by (sample, contig id). Contigs come from the
// quality summary in file order, followed by any ids only present in the
// complete-genome table. Coverage and mapping values absent for a contig are
// left indeterminate.
func Merge(sample string, src Sources) Set {
	set := Set{Sample: sample, Skipped: src.Skipped}
	seen := make(map[string]bool, len(src.Quality))

	for _, q := range src.Quality {
		seen[q.ContigID] = true
		rec := types.ContigRecord{
			Sample:       sample,
			ContigID:     q.ContigID,
			Length:       q.Length,
			Completeness: q.Completeness,
		}
		if n, ok := src.Complete[q.ContigID]; ok {
			rec.InCompleteTable = true
			if rec.Length == 0 {
				rec.Length = n
			}
		}
		set.Records = append(set.Records, fill(rec, src))
	}

	extra := make([]string, 0)
	for id := range src.Complete {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		rec := types.ContigRecord{
			Sample:          sample,
			ContigID:        id,
			Length:          src.Complete[id],
			Completeness:    types.Complete,
			InCompleteTable: true,
		}
		set.Records = append(set.Records, fill(rec, src))
	}
	return set
}

func fill(rec types.ContigRecord, src Sources) types.ContigRecord {
	rec.AverageCoverage = types.Indeterminate()
	rec.PercentUnambiguous = types.Indeterminate()
	if c, ok := src.Coverage[rec.ContigID]; ok {
		rec.AverageCoverage = types.Known(c.AvgFold)
		if rec.Length == 0 {
			rec.Length = c.Length
		}
	}
	if pct, ok := src.Mapping[rec.ContigID]; ok {
		rec.PercentUnambiguous = types.Known(pct)
	}
	return rec
}

// Load reads the tables of one sample concurrently and merges them. Tables
// that cannot be read are reported as gaps; Load itself fails only when ctx
// is cancelled.
func Load(ctx context.Context, sample string, p Paths) (Set, []*DataFusionGap, error) {
	var src Sources
	var qSkip, cSkip, covSkip, mapSkip int
	var qErr, cErr, covErr, mapErr error

	g, gctx := errgroup.WithContext(ctx)
	read := func(path string, fn func(string)) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if path == "" {
				return nil
			}
			fn(path)
			return nil
		})
	}
	read(p.QualitySummary, func(path string) {
		src.Quality, qSkip, qErr = ReadQualitySummary(path)
	})
	read(p.CompleteGenomes, func(path string) {
		src.Complete, cSkip, cErr = ReadCompleteGenomes(path)
	})
	read(p.CovStats, func(path string) {
		src.Coverage, covSkip, covErr = ReadCoverage(path)
	})
	read(p.ScafStats, func(path string) {
		src.Mapping, mapSkip, mapErr = ReadMapping(path)
	})
	if err := g.Wait(); err != nil {
		return Set{Sample: sample}, nil, fmt.Errorf("failed to load statistics for %s: %w", sample, err)
	}
	src.Skipped = qSkip + cSkip + covSkip + mapSkip

	var gaps []*DataFusionGap
	gap := func(table, path string, err error) {
		if path != "" && err != nil {
			gaps = append(gaps, &DataFusionGap{Sample: sample, Table: table, Path: path, Cause: err})
		}
	}
	gap(TableQuality, p.QualitySummary, qErr)
	gap(TableComplete, p.CompleteGenomes, cErr)
	gap(TableCoverage, p.CovStats, covErr)
	gap(TableMapping, p.ScafStats, mapErr)

	return Merge(sample, src), gaps, nil
}
