// Package classify decides which assembled contigs are genuine complete phage
// genomes from their completeness, coverage and mapping statistics.
package classify

import (
	"fmt"

	"github.com/phanatic/phanatic/internal/config"
	"github.com/phanatic/phanatic/internal/ledger"
	"github.com/phanatic/phanatic/internal/statistics"
	"github.com/phanatic/phanatic/internal/types"
)

// Stage is the ledger label for classifier entries.
const Stage = "Classify"

// MappingThreshold is the minimum percentage of unambiguously mapped reads
// for a genome to be accepted.
const MappingThreshold = 90.0

// Options are the classifier thresholds.
type Options struct {
	FilterLength      int
	CoverageThreshold float64
	MappingThreshold  float64
	// Mapping disables both statistic checks when false; candidates are then
	// accepted on completeness alone.
	Mapping bool
}

// OptionsFromConfig derives thresholds from the run configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FilterLength:      cfg.FilterLength,
		CoverageThreshold: cfg.CoverageThreshold(),
		MappingThreshold:  MappingThreshold,
		Mapping:           cfg.Pipeline.Mapping,
	}
}

// Classifier produces one verdict per candidate contig.
type Classifier struct {
	opts Options
	rec  ledger.Recorder
}

// New creates a classifier reporting to rec.
func New(opts Options, rec ledger.Recorder) *Classifier {
	if opts.MappingThreshold == 0 {
		opts.MappingThreshold = MappingThreshold
	}
	return &Classifier{opts: opts, rec: rec}
}

// IsCandidate reports whether a contig is eligible for classification: it is
// listed as complete or labelled high-quality, and is not shorter than the
// filter length when its length is known.
func (c *Classifier) IsCandidate(r types.ContigRecord) bool {
	if !r.InCompleteTable && r.Completeness != types.Complete && r.Completeness != types.HighQuality {
		return false
	}
	if r.Length > 0 && r.Length < c.opts.FilterLength {
		return false
	}
	return true
}

// Candidates filters a record set down to candidates, preserving order.
func (c *Classifier) Candidates(set statistics.Set) []types.ContigRecord {
	var out []types.ContigRecord
	for _, r := range set.Records {
		if c.IsCandidate(r) {
			out = append(out, r)
		}
	}
	ledger.Recordf(c.rec, Stage, "%s: %d of %d contigs are complete or high-quality candidates",
		set.Sample, len(out), len(set.Records))
	return out
}

// Classify selects candidates from set and returns a verdict for each.
func (c *Classifier) Classify(set statistics.Set) []types.ClassificationVerdict {
	candidates := c.Candidates(set)
	verdicts := make([]types.ClassificationVerdict, 0, len(candidates))
	for _, r := range candidates {
		verdicts = append(verdicts, c.Verdict(r))
	}
	return verdicts
}

// Verdict classifies a single candidate. Coverage is checked first and can
// only warn; mapping is checked second and decides.
func (c *Classifier) Verdict(r types.ContigRecord) types.ClassificationVerdict {
	v := types.ClassificationVerdict{
		Sample:        r.Sample,
		ContigID:      r.ContigID,
		Coverage:      r.AverageCoverage,
		MappedPercent: r.PercentUnambiguous,
	}

	if !c.opts.Mapping {
		v.CoverageStatus = types.StatusSkipped
		v.MappingStatus = types.StatusSkipped
		v.Decision = types.Accept
		v.Reason = types.ReasonPass
		c.record(v)
		return v
	}

	switch r.AverageCoverage.AtLeast(c.opts.CoverageThreshold) {
	case types.CheckPass:
		v.CoverageStatus = types.StatusPass
	case types.CheckFail:
		v.CoverageStatus = types.StatusWarning
		v.Warnings = append(v.Warnings, types.ReasonLowCoverageWarning)
	default:
		v.CoverageStatus = types.StatusIndeterminate
		v.Warnings = append(v.Warnings, types.ReasonIndeterminate)
	}

	switch r.PercentUnambiguous.AtLeast(c.opts.MappingThreshold) {
	case types.CheckPass:
		v.MappingStatus = types.StatusPass
		v.Decision = types.Accept
		v.Reason = types.ReasonPass
	case types.CheckFail:
		v.MappingStatus = types.StatusFail
		v.Decision = types.Reject
		v.Reason = types.ReasonMappingFail
	default:
		v.MappingStatus = types.StatusIndeterminate
		v.Decision = types.Review
		v.Reason = types.ReasonIndeterminate
	}

	c.record(v)
	return v
}

func (c *Classifier) record(v types.ClassificationVerdict) {
	c.rec.Record(Stage, fmt.Sprintf("%s: %s: coverage %s (%s, threshold %s), mapping %s (%s, threshold %s): %s",
		v.Sample, v.ContigID,
		v.CoverageStatus, v.Coverage.Format(), formatFloat(c.opts.CoverageThreshold),
		v.MappingStatus, v.MappedPercent.Format(), formatFloat(c.opts.MappingThreshold),
		v.Decision))
}

func formatFloat(f float64) string {
	return types.Known(f).Format()
}
