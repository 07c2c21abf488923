package pipeline

import (
	"context"
	"errors"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/phanatic/phanatic/internal/barcode"
	"github.com/phanatic/phanatic/internal/contamination"
	"github.com/phanatic/phanatic/internal/coverage"
	"github.com/phanatic/phanatic/internal/db"
	"github.com/phanatic/phanatic/internal/fasta"
	"github.com/phanatic/phanatic/internal/hostmap"
	"github.com/phanatic/phanatic/internal/ledger"
	"github.com/phanatic/phanatic/internal/stages"
	"github.com/phanatic/phanatic/internal/statistics"
	"github.com/phanatic/phanatic/internal/summary"
	"github.com/phanatic/phanatic/internal/types"
)

// assembly holds the artifacts later steps of a sample read from.
type assembly struct {
	reads   types.StageArtifact // merged reads, normalised when enabled; input of every mapping
	contigs types.StageArtifact // filtered contigs, or raw contigs with filter off
	checkv  types.StageArtifact
	mapping types.StageArtifact // zero value when mapping is off
}

// ProcessSample runs one sample to completion. The first failing stage ends
// the sample; the returned result then has status failed.
func (p *Pipeline) ProcessSample(ctx context.Context, s types.Sample) SampleResult {
	log := p.log.With(zap.String("sample", s.Name))
	log.Info("Processing sample")
	res := SampleResult{Sample: s.Name}

	if p.cfg.Pipeline.FastQC {
		// Advisory: the runner records a failure but the chain goes on.
		p.runner.FastQC(ctx, s)
	}

	a, err := p.assemble(ctx, s)
	if err != nil {
		return p.fail(ctx, res, err)
	}

	set, err := p.statistics(ctx, s.Name, a, &res)
	if err != nil {
		return p.fail(ctx, res, err)
	}

	res.Verdicts = p.classifier.Classify(set)
	if err := p.contigs.AppendContigs(res.Verdicts); err != nil {
		log.Warn("Failed to append contig summary", zap.Error(err))
	}
	if p.deps.Metrics != nil {
		for _, v := range res.Verdicts {
			p.deps.Metrics.ObserveVerdict(string(v.Decision))
		}
	}
	p.persist(ctx, "save verdicts", func(ctx context.Context, st db.Store) error {
		return st.SaveVerdicts(ctx, p.runID, res.Verdicts)
	})
	if p.deps.Printer != nil {
		p.deps.Printer.PrintVerdicts(s.Name, res.Verdicts)
	}

	resolution := p.resolver.Resolve(s.Name, res.Verdicts)
	res.Status = resolution.Status
	if resolution.Failed() {
		return p.complete(ctx, res)
	}

	res.Genomes, err = p.extractor.ExtractAccepted(ctx, a.contigs.Path, resolution.Accepted)
	if err != nil {
		log.Warn("Extraction stopped", zap.Error(err))
		res.Error = err.Error()
	}
	if p.deps.Metrics != nil {
		for range res.Genomes {
			p.deps.Metrics.GenomeExtracted()
		}
	}

	p.validateCoverage(a, &res)
	if res.Status == types.SampleClean {
		p.checkHost(ctx, s, a, &res)
	}
	if p.cfg.Pipeline.ReAssembly {
		p.reassemble(ctx, a, &res)
	}
	if res.Status == types.SampleClean {
		p.issueBarcodes(ctx, &res)
	}
	return p.complete(ctx, res)
}

// assemble runs the read processing, assembly and quality stages.
func (p *Pipeline) assemble(ctx context.Context, s types.Sample) (assembly, error) {
	var a assembly
	r := p.runner

	trimmed := r.Trim(ctx, s)
	if !trimmed.OK {
		return a, trimmed.Err
	}
	deduped := r.Dedupe(ctx, s, trimmed)
	if !deduped.OK {
		return a, deduped.Err
	}
	reads := r.Merge(ctx, s, deduped)
	if !reads.OK {
		return a, reads.Err
	}
	if p.cfg.Pipeline.Normalise {
		reads = r.Normalise(ctx, s, reads)
		if !reads.OK {
			return a, reads.Err
		}
	}
	a.reads = reads

	contigs := r.Assemble(ctx, s, reads)
	if !contigs.OK {
		return a, contigs.Err
	}
	if p.cfg.Pipeline.Filter {
		contigs = r.Filter(ctx, s, contigs)
		if !contigs.OK {
			return a, contigs.Err
		}
	}
	a.contigs = contigs

	a.checkv = r.CheckV(ctx, s, contigs)
	if !a.checkv.OK {
		return a, a.checkv.Err
	}
	if p.cfg.Pipeline.Mapping {
		a.mapping = r.MapToContigs(ctx, s, reads, contigs)
		if !a.mapping.OK {
			return a, a.mapping.Err
		}
	}
	return a, nil
}

// statistics loads and merges the tables of one sample. Missing tables are
// recorded as gaps and leave their values indeterminate.
func (p *Pipeline) statistics(ctx context.Context, sample string, a assembly, res *SampleResult) (statistics.Set, error) {
	paths := statistics.Paths{
		QualitySummary:  filepath.Join(a.checkv.Path, "quality_summary.tsv"),
		CompleteGenomes: filepath.Join(a.checkv.Path, "complete_genomes.tsv"),
	}
	if a.mapping.OK {
		paths.CovStats = a.mapping.Path
		paths.ScafStats = a.mapping.ExtraPath(stages.ExtraScafStats)
	}

	set, gaps, err := statistics.Load(ctx, sample, paths)
	if err != nil {
		return set, err
	}
	for _, gap := range gaps {
		res.Gaps = append(res.Gaps, gap.Table)
		ledger.Recordf(p.rec, stageStatistics, "%s: warning: %v", sample, gap)
		if p.deps.Metrics != nil {
			p.deps.Metrics.ObserveGap(gap.Table)
		}
	}
	if set.Skipped > 0 {
		ledger.Recordf(p.rec, stageStatistics, "%s: skipped %d malformed or duplicate rows", sample, set.Skipped)
	}
	return set, nil
}

// validateCoverage grades each extracted genome from its mapping depth.
func (p *Pipeline) validateCoverage(a assembly, res *SampleResult) {
	if !a.mapping.OK {
		return
	}
	basecov := a.mapping.ExtraPath(stages.ExtraBaseCov)
	for _, g := range res.Genomes {
		avg, ok := coverageOf(res.Verdicts, g.ContigID).Value()
		if !ok {
			ledger.Recordf(p.rec, stageCoverage, "%s: no coverage statistic", g.Name)
			continue
		}
		report, err := coverage.Validate(g.Name, g.ContigID, avg, basecov)
		if err != nil {
			ledger.Recordf(p.rec, stageCoverage, "%s: %v", g.Name, err)
			continue
		}
		p.rec.Record(stageCoverage, report.String())
		res.Coverage = append(res.Coverage, report)
	}
}

func coverageOf(verdicts []types.ClassificationVerdict, contigID string) types.Metric {
	for _, v := range verdicts {
		if v.ContigID == contigID {
			return v.Coverage
		}
	}
	return types.Indeterminate()
}

// checkHost maps the QC reads to the sample's host, when one is listed, and
// records how much of the host genome the reads cover.
func (p *Pipeline) checkHost(ctx context.Context, s types.Sample, a assembly, res *SampleResult) {
	if p.hosts == nil {
		return
	}
	host, ok := p.hosts.Host(s.Name)
	if !ok {
		return
	}
	mapped := p.runner.MapToHost(ctx, s, a.reads, host)
	if !mapped.OK {
		return
	}
	t, err := hostmap.Assess(s.Name, host, mapped.Path)
	if err != nil {
		ledger.Recordf(p.rec, stages.StageHostMapping, "%s: %v", s.Name, err)
		return
	}
	p.rec.Record(stages.StageHostMapping, t.String())
	res.Host = &t
}

// reassemble re-assembles the reads behind each extracted genome and
// compares the longest new contig with the extracted length.
func (p *Pipeline) reassemble(ctx context.Context, a assembly, res *SampleResult) {
	for _, g := range res.Genomes {
		art := p.runner.Reassemble(ctx, g, a.reads)
		if !art.OK {
			continue
		}
		records, err := fasta.ReadAll(ctx, art.Path)
		if err != nil {
			ledger.Recordf(p.rec, stages.StageReassembly, "%s: %v", g.Name, err)
			continue
		}
		check := ReassemblyCheck{Genome: g.Name, ExtractedLength: g.Length}
		for _, rec := range records {
			check.ReassembledLength = max(check.ReassembledLength, rec.Len())
		}
		check.Match = check.ReassembledLength == g.Length
		verdict := "mismatch"
		if check.Match {
			verdict = "match"
		}
		ledger.Recordf(p.rec, stages.StageReassembly, "%s: %s (extracted %d bp, re-assembled %d bp)",
			g.Name, verdict, check.ExtractedLength, check.ReassembledLength)
		res.Reassembly = append(res.Reassembly, check)
	}
}

// issueBarcodes tags the genomes of a clean sample. An exhausted generator
// leaves the genome unbarcoded.
func (p *Pipeline) issueBarcodes(ctx context.Context, res *SampleResult) {
	if p.barcodes == nil {
		return
	}
	for _, g := range res.Genomes {
		b, err := p.barcodes.Issue(g)
		if errors.Is(err, barcode.ErrExhausted) {
			p.log.Warn("Barcode generation exhausted", zap.String("genome", g.Name))
			continue
		}
		if err != nil {
			ledger.Recordf(p.rec, barcode.Stage, "%s: %v", g.Name, err)
			continue
		}
		res.Barcodes = append(res.Barcodes, b)
		if p.deps.Metrics != nil {
			p.deps.Metrics.BarcodeIssued()
		}
		p.persist(ctx, "save barcode", func(ctx context.Context, st db.Store) error {
			return st.SaveBarcode(ctx, p.runID, b)
		})
	}
}

// fail ends a sample at a stage failure.
func (p *Pipeline) fail(ctx context.Context, res SampleResult, err error) SampleResult {
	res.Status = types.SampleFailed
	res.Error = err.Error()
	var sf *stages.StageFailure
	if errors.As(err, &sf) {
		res.FailedStage = sf.Stage
	}
	if res.FailedStage != "" {
		ledger.Recordf(p.rec, contamination.Stage, "%s: Sample failed at %s", res.Sample, res.FailedStage)
	} else {
		ledger.Recordf(p.rec, contamination.Stage, "%s: Sample failed", res.Sample)
	}
	p.log.Warn("Sample failed",
		zap.String("sample", res.Sample),
		zap.String("stage", res.FailedStage),
		zap.Error(err))
	return p.complete(ctx, res)
}

// complete writes the sample summary row and reports the outcome.
func (p *Pipeline) complete(ctx context.Context, res SampleResult) SampleResult {
	row := summary.SampleRow{Sample: res.Sample, Genomes: len(res.Genomes), Status: res.Status}
	if res.Status != types.SampleFailed {
		row.Genomes = countAccepted(res.Verdicts)
	}
	if err := p.samples.AppendSample(row); err != nil {
		p.log.Warn("Failed to append sample summary", zap.String("sample", res.Sample), zap.Error(err))
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.ObserveSample(string(res.Status))
	}
	p.persist(ctx, "save sample", func(ctx context.Context, st db.Store) error {
		return st.SaveSample(ctx, db.SampleResult{
			RunID:       p.runID,
			Sample:      res.Sample,
			Status:      string(res.Status),
			Genomes:     row.Genomes,
			FailedStage: res.FailedStage,
			Error:       res.Error,
		})
	})
	if p.deps.Printer != nil {
		p.deps.Printer.PrintSampleResult(res.Sample, res.Status, res.Genomes, res.Barcodes)
	}
	p.log.Info("Sample complete",
		zap.String("sample", res.Sample),
		zap.String("status", string(res.Status)),
		zap.Int("genomes", len(res.Genomes)))
	return res
}

func countAccepted(verdicts []types.ClassificationVerdict) int {
	n := 0
	for _, v := range verdicts {
		if v.Accepted() {
			n++
		}
	}
	return n
}
