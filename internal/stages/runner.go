// Package stages runs the external sequence-processing tools of the pipeline,
// one blocking invocation per stage, and hands typed artifacts from one stage
// to the next.
package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/phanatic/phanatic/internal/config"
	"github.com/phanatic/phanatic/internal/ledger"
	"github.com/phanatic/phanatic/internal/types"
)

// Extra artifact keys.
const (
	ExtraUnmerged  = "unmerged"
	ExtraScafStats = "scafstats"
	ExtraBaseCov   = "basecov"
	ExtraMapped    = "mapped"
)

// Observer receives the outcome and wall time of every tool invocation.
type Observer interface {
	ObserveStage(stage string, ok bool, d time.Duration)
}

// Runner invokes one external tool per stage for a sample. It never retries:
// a failure is recorded once and returned as a failed artifact.
type Runner struct {
	cfg    *config.Config
	exec   Executor
	rec    ledger.Recorder
	log    *zap.Logger
	layout Layout
	obs    Observer
}

// NewRunner creates a Runner writing under cfg.OutputDir.
func NewRunner(cfg *config.Config, exec Executor, rec ledger.Recorder, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{cfg: cfg, exec: exec, rec: rec, log: log, layout: Layout{Root: cfg.OutputDir}}
}

// SetObserver registers o for stage outcomes.
func (r *Runner) SetObserver(o Observer) { r.obs = o }

// Layout returns the output directory layout.
func (r *Runner) Layout() Layout { return r.layout }

func (r *Runner) logPath(sample, stage string) string {
	return filepath.Join(r.layout.Logs(), sample, stage+".log")
}

// run executes cmd and checks that path was produced. Every outcome is
// written to the ledger.
func (r *Runner) run(ctx context.Context, stage, sample string, cmd Command, path string, extra map[string]string) types.StageArtifact {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return r.fail(stage, sample, "cannot create output directory", err)
	}
	if cmd.LogPath == "" {
		cmd.LogPath = r.logPath(sample, stage)
	}

	r.log.Debug("Running stage",
		zap.String("stage", stage),
		zap.String("sample", sample),
		zap.String("command", cmd.String()))

	start := time.Now()
	err := r.exec.Run(ctx, cmd)
	elapsed := time.Since(start)
	if err != nil {
		r.observe(stage, false, elapsed)
		return r.fail(stage, sample, "tool exited with error", err)
	}

	art := types.StageArtifact{Stage: stage, Sample: sample, Path: path, Extra: extra, OK: true}
	if !art.Usable() {
		r.observe(stage, false, elapsed)
		return r.fail(stage, sample, fmt.Sprintf("output missing or empty: %s", path), nil)
	}
	r.observe(stage, true, elapsed)
	r.rec.Record(stage, sample)
	return art
}

func (r *Runner) observe(stage string, ok bool, d time.Duration) {
	if r.obs != nil {
		r.obs.ObserveStage(stage, ok, d)
	}
}

func (r *Runner) fail(stage, sample, msg string, cause error) types.StageArtifact {
	err := &StageFailure{Stage: stage, Sample: sample, Message: msg, Cause: cause}
	r.rec.Record(stage, fmt.Sprintf("%s: %s: failed (%s)", sample, stage, msg))
	r.log.Warn("Stage failed",
		zap.String("stage", stage),
		zap.String("sample", sample),
		zap.Error(err))
	return types.Failed(stage, sample, err)
}

func (r *Runner) blocked(stage, sample string, in types.StageArtifact) types.StageArtifact {
	return types.Failed(stage, sample, &StageFailure{
		Stage:   stage,
		Sample:  sample,
		Message: fmt.Sprintf("input from %s is not usable", in.Stage),
		Cause:   in.Err,
	})
}

// Trim adapter- and quality-trims the raw read pair into one interleaved file.
func (r *Runner) Trim(ctx context.Context, s types.Sample) types.StageArtifact {
	out := filepath.Join(r.layout.Trimmed(), s.Name+".fastq")
	return r.run(ctx, StageTrim, s.Name, trimCommand(r.cfg, s.Read1, s.Read2, out), out, nil)
}

// Dedupe removes duplicate reads.
func (r *Runner) Dedupe(ctx context.Context, s types.Sample, in types.StageArtifact) types.StageArtifact {
	if !in.Usable() {
		return r.blocked(StageDedupe, s.Name, in)
	}
	out := filepath.Join(r.layout.Deduped(), s.Name+".fastq")
	return r.run(ctx, StageDedupe, s.Name, dedupeCommand(r.cfg, in.Path, out), out, nil)
}

// Merge overlaps read pairs. The unmerged remainder is carried as an extra output.
func (r *Runner) Merge(ctx context.Context, s types.Sample, in types.StageArtifact) types.StageArtifact {
	if !in.Usable() {
		return r.blocked(StageMerge, s.Name, in)
	}
	merged := filepath.Join(r.layout.Merged(), s.Name+"_merged.fastq")
	unmerged := filepath.Join(r.layout.Merged(), s.Name+"_unmerged.fastq")
	return r.run(ctx, StageMerge, s.Name, mergeCommand(r.cfg, in.Path, merged, unmerged), merged,
		map[string]string{ExtraUnmerged: unmerged})
}

// Normalise down-samples merged reads to the target coverage.
func (r *Runner) Normalise(ctx context.Context, s types.Sample, in types.StageArtifact) types.StageArtifact {
	if !in.Usable() {
		return r.blocked(StageNormalise, s.Name, in)
	}
	out := filepath.Join(r.layout.Normalised(), s.Name+".fastq")
	art := r.run(ctx, StageNormalise, s.Name, normaliseCommand(r.cfg, in.Path, out), out, nil)
	if art.OK {
		art.Extra = in.Extra
	}
	return art
}

// Assemble runs SPAdes on the merged reads plus the unmerged remainder.
func (r *Runner) Assemble(ctx context.Context, s types.Sample, in types.StageArtifact) types.StageArtifact {
	if !in.Usable() {
		return r.blocked(StageAssembly, s.Name, in)
	}
	outDir := filepath.Join(r.layout.Assembly(), s.Name)
	contigs := filepath.Join(outDir, "contigs.fasta")
	unmerged := in.ExtraPath(ExtraUnmerged)
	if unmerged != "" {
		if info, err := os.Stat(unmerged); err != nil || info.Size() == 0 {
			unmerged = ""
		}
	}
	return r.run(ctx, StageAssembly, s.Name, assemblyCommand(r.cfg, in.Path, unmerged, outDir), contigs, nil)
}

// Filter drops contigs shorter than the configured filter length.
func (r *Runner) Filter(ctx context.Context, s types.Sample, in types.StageArtifact) types.StageArtifact {
	if !in.Usable() {
		return r.blocked(StageFilter, s.Name, in)
	}
	out := filepath.Join(r.layout.Filtered(), s.Name+".fasta")
	return r.run(ctx, StageFilter, s.Name, filterCommand(r.cfg, in.Path, out), out, nil)
}

// CheckV assesses completeness of every contig. The artifact path is the
// CheckV output directory.
func (r *Runner) CheckV(ctx context.Context, s types.Sample, in types.StageArtifact) types.StageArtifact {
	if !in.Usable() {
		return r.blocked(StageCheckV, s.Name, in)
	}
	outDir := filepath.Join(r.layout.CheckV(), s.Name)
	art := r.run(ctx, StageCheckV, s.Name, checkvCommand(r.cfg, in.Path, outDir),
		filepath.Join(outDir, "quality_summary.tsv"), nil)
	if art.OK {
		art.Extra = map[string]string{"dir": outDir}
		art.Path = outDir
	}
	return art
}

// FastQC writes read quality reports for the raw pair. It is advisory: the
// result is recorded but callers do not stop the chain on failure.
func (r *Runner) FastQC(ctx context.Context, s types.Sample) types.StageArtifact {
	outDir := filepath.Join(r.layout.FastQC(), s.Name)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return r.fail(StageFastQC, s.Name, "cannot create output directory", err)
	}
	return r.run(ctx, StageFastQC, s.Name, fastqcCommand(r.cfg, outDir, s.Read1, s.Read2), outDir, nil)
}

// MapToContigs maps QC reads onto the candidate contigs and produces the
// coverage (covstats), mapping (scafstats) and per-base coverage tables.
func (r *Runner) MapToContigs(ctx context.Context, s types.Sample, reads, contigs types.StageArtifact) types.StageArtifact {
	if !reads.Usable() {
		return r.blocked(StageMapping, s.Name, reads)
	}
	if !contigs.Usable() {
		return r.blocked(StageMapping, s.Name, contigs)
	}
	return r.mapReads(ctx, StageMapping, s.Name, contigs.Path, reads.Path,
		filepath.Join(r.layout.PhageMapping(), s.Name), false)
}

// MapToHost maps QC reads onto a host reference genome.
func (r *Runner) MapToHost(ctx context.Context, s types.Sample, reads types.StageArtifact, hostRef string) types.StageArtifact {
	if !reads.Usable() {
		return r.blocked(StageHostMapping, s.Name, reads)
	}
	return r.mapReads(ctx, StageHostMapping, s.Name, hostRef, reads.Path,
		filepath.Join(r.layout.HostMapping(), s.Name), false)
}

func (r *Runner) mapReads(ctx context.Context, stage, sample, ref, reads, dir string, keepMapped bool) types.StageArtifact {
	out := newMappingOutputs(dir, keepMapped)
	extra := map[string]string{ExtraScafStats: out.ScafStats, ExtraBaseCov: out.BaseCov}
	if keepMapped {
		extra[ExtraMapped] = out.Mapped
	}
	return r.run(ctx, stage, sample, mappingCommand(r.cfg, ref, reads, out), out.CovStats, extra)
}

// Reassemble collects the reads that map to an extracted genome and
// assembles them again. The artifact path is the new contigs file.
func (r *Runner) Reassemble(ctx context.Context, g types.ExtractedGenome, reads types.StageArtifact) types.StageArtifact {
	if !reads.Usable() {
		return r.blocked(StageReassembly, g.Sample, reads)
	}
	dir := filepath.Join(r.layout.Reassembly(), g.Name)
	mapped := r.mapReads(ctx, StageReassembly, g.Sample, g.Path, reads.Path, filepath.Join(dir, "mapping"), true)
	if !mapped.OK {
		return mapped
	}
	mappedReads := types.StageArtifact{Stage: StageReassembly, Sample: g.Sample, Path: mapped.ExtraPath(ExtraMapped), OK: true}
	if !mappedReads.Usable() {
		return r.fail(StageReassembly, g.Sample, "no reads mapped to extracted genome", nil)
	}
	outDir := filepath.Join(dir, "spades")
	cmd := Command{
		Name: "spades.py",
		Args: []string{
			"-t", fmt.Sprint(r.cfg.ThreadCount),
			"-m", fmt.Sprint(r.cfg.MemoryGB),
			"--only-assembler",
			"-k", spadesKmers,
			"-o", outDir,
			"-s", mappedReads.Path,
		},
	}
	return r.run(ctx, StageReassembly, g.Sample, cmd, filepath.Join(outDir, "contigs.fasta"), nil)
}
