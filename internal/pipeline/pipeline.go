// Package pipeline provides the high-level orchestration of a run: samples
// are discovered, assembled, classified, resolved, extracted and barcoded
// one at a time, with every decision written to the run ledger.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phanatic/phanatic/internal/barcode"
	"github.com/phanatic/phanatic/internal/classify"
	"github.com/phanatic/phanatic/internal/config"
	"github.com/phanatic/phanatic/internal/contamination"
	"github.com/phanatic/phanatic/internal/db"
	"github.com/phanatic/phanatic/internal/extraction"
	"github.com/phanatic/phanatic/internal/hostmap"
	"github.com/phanatic/phanatic/internal/ledger"
	"github.com/phanatic/phanatic/internal/metrics"
	"github.com/phanatic/phanatic/internal/observability"
	"github.com/phanatic/phanatic/internal/publish"
	"github.com/phanatic/phanatic/internal/registry"
	"github.com/phanatic/phanatic/internal/stages"
	"github.com/phanatic/phanatic/internal/summary"
	"github.com/phanatic/phanatic/internal/types"
)

// Ledger labels used by the orchestrator itself.
const (
	stageRun        = "Run"
	stageStatistics = "Statistics"
	stageCoverage   = "Coverage"
	stageCleanUp    = "Clean up"
)

// Deps holds the collaborators of a run. Only Recorder is required.
type Deps struct {
	Recorder  ledger.Recorder
	Executor  stages.Executor // defaults to stages.ExecExecutor
	Logger    *zap.Logger
	Store     db.Store               // optional run persistence
	Metrics   *metrics.Metrics       // optional textfile metrics
	Publisher *publish.Publisher     // optional upload of outputs
	Printer   *observability.Printer // verbose boxes, nil when quiet

	// BarcodeOptions are passed to barcode.Open, e.g. a seeded source in tests.
	BarcodeOptions []barcode.Option
	Now            func() time.Time
}

// Pipeline runs every sample of an input directory through the chain.
type Pipeline struct {
	cfg  *config.Config
	deps Deps
	log  *zap.Logger
	rec  ledger.Recorder

	runner      *stages.Runner
	classifier  *classify.Classifier
	resolver    *contamination.Resolver
	extractor   *extraction.Extractor
	barcodes    *barcode.Registrar // nil when barcoding is off
	hosts       hostmap.Table      // nil without a host table
	samples     *summary.Table
	contigs     *summary.Table
	runID       uuid.UUID
	persistWarn bool
}

// New wires the components for one run. The output directory is created.
func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	if deps.Recorder == nil {
		return nil, errors.New("pipeline: ledger recorder is required")
	}
	if deps.Executor == nil {
		deps.Executor = stages.ExecExecutor{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	p := &Pipeline{
		cfg:        cfg,
		deps:       deps,
		log:        deps.Logger,
		rec:        deps.Recorder,
		runner:     stages.NewRunner(cfg, deps.Executor, deps.Recorder, deps.Logger),
		classifier: classify.New(classify.OptionsFromConfig(cfg), deps.Recorder),
		resolver:   contamination.NewResolver(deps.Recorder),
		runID:      uuid.New(),
	}
	layout := p.runner.Layout()
	p.extractor = extraction.New(layout.Extractions(), cfg.MatchMode, deps.Recorder)
	p.samples = summary.NewSampleTable(layout.SampleSummary())
	p.contigs = summary.NewContigTable(layout.ContigSummary())
	if deps.Metrics != nil {
		p.runner.SetObserver(deps.Metrics)
	}

	if cfg.Pipeline.Barcode {
		reg, err := barcode.Open(layout.BarcodeIndex(), cfg.BarcodePrefix, cfg.BarcodeLength, deps.Recorder, deps.BarcodeOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to open barcode index: %w", err)
		}
		p.barcodes = reg
	}

	if cfg.HostMapping != "" {
		hosts, err := hostmap.Load(cfg.HostMapping)
		if err != nil {
			ledger.Recordf(p.rec, stages.StageHostMapping, "host table unavailable, skipping host check: %v", err)
			p.log.Warn("Host table unavailable", zap.String("path", cfg.HostMapping), zap.Error(err))
		} else {
			p.hosts = hosts
		}
	}
	return p, nil
}

// RunID identifies this run in the ledger, run summary and database.
func (p *Pipeline) RunID() uuid.UUID { return p.runID }

// Run discovers the read pairs and processes them sequentially. A sample
// failure never stops the run; only discovery failure or cancellation does.
// The summary is returned even when the run is cancelled part way.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{
		RunID:     p.runID,
		Image:     p.cfg.Image,
		StartedAt: p.deps.Now().UTC(),
		Totals:    make(map[types.SampleStatus]int),
	}
	ledger.Recordf(p.rec, stageRun, "Starting run %s", p.runID)
	p.log.Info("Starting run",
		zap.String("run_id", p.runID.String()),
		zap.String("input_dir", p.cfg.InputDir),
		zap.String("output_dir", p.cfg.OutputDir))
	p.persist(ctx, "create run", func(ctx context.Context, s db.Store) error {
		return s.CreateRun(ctx, db.Run{
			ID:        p.runID,
			Image:     p.cfg.Image,
			InputDir:  p.cfg.InputDir,
			OutputDir: p.cfg.OutputDir,
			Status:    db.RunStatusRunning,
			CreatedAt: sum.StartedAt,
		})
	})

	found, err := registry.New(p.cfg, p.rec).Discover()
	if err != nil {
		p.finish(ctx, sum, db.RunStatusFailed)
		return sum, err
	}
	if p.deps.Printer != nil {
		p.deps.Printer.PrintSamples(found)
	}

	var runErr error
	for _, s := range found {
		if err := ctx.Err(); err != nil {
			ledger.Recordf(p.rec, stageRun, "Run cancelled before %s", s.Name)
			runErr = fmt.Errorf("run cancelled: %w", err)
			break
		}
		sum.add(p.ProcessSample(ctx, s))
	}

	if runErr == nil && p.cfg.Pipeline.CleanUp {
		p.cleanUp()
	}
	status := db.RunStatusCompleted
	if runErr != nil {
		status = db.RunStatusFailed
	}
	p.finish(ctx, sum, status)
	return sum, runErr
}

// finish writes the run-level outputs. Failures here are logged, never
// returned, so a finished run keeps its sample results.
func (p *Pipeline) finish(ctx context.Context, sum *Summary, status string) {
	layout := p.runner.Layout()
	sum.FinishedAt = p.deps.Now().UTC()

	if p.deps.Metrics != nil {
		if err := p.deps.Metrics.WriteTextfile(layout.Metrics()); err != nil {
			p.log.Warn("Failed to write metrics", zap.Error(err))
		}
	}
	if err := sum.Write(layout.RunSummary()); err != nil {
		p.log.Warn("Failed to write run summary", zap.Error(err))
	}

	if p.deps.Publisher != nil {
		// Publishing runs even after cancellation so partial results are kept.
		keys, err := p.deps.Publisher.PublishRun(context.WithoutCancel(ctx), p.runID.String(), p.cfg.OutputDir, p.outputFiles(sum))
		sum.Published = keys
		if err != nil {
			ledger.Recordf(p.rec, stageRun, "publish failed: %v", err)
			p.log.Warn("Failed to publish run outputs", zap.Error(err))
		} else {
			ledger.Recordf(p.rec, stageRun, "Published %d files", len(keys))
		}
	}

	p.persist(ctx, "complete run", func(ctx context.Context, s db.Store) error {
		return s.CompleteRun(ctx, p.runID, status)
	})
	ledger.Recordf(p.rec, stageRun, "Finished run %s: %d clean, %d contaminated, %d failed",
		p.runID, sum.Totals[types.SampleClean], sum.Totals[types.SampleContaminated], sum.Totals[types.SampleFailed])
	if p.deps.Printer != nil {
		p.deps.Printer.PrintRunTotals(p.runID.String(), sum.Totals, sum.Genomes)
	}
}

func (p *Pipeline) outputFiles(sum *Summary) []string {
	layout := p.runner.Layout()
	files := []string{
		layout.Ledger(),
		layout.SampleSummary(),
		layout.ContigSummary(),
		layout.BarcodeIndex(),
		layout.RunSummary(),
		layout.Metrics(),
	}
	for _, r := range sum.Samples {
		for _, g := range r.Genomes {
			files = append(files, g.Path)
		}
	}
	return files
}

// persist runs fn against the store when one is configured. Store errors
// are warnings: the files in the output directory remain the record.
// Writes are not cancelled with the run so a stopped run is still recorded.
func (p *Pipeline) persist(ctx context.Context, what string, fn func(context.Context, db.Store) error) {
	if p.deps.Store == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx), p.deps.Store); err != nil {
		p.log.Warn("Database write failed", zap.String("operation", what), zap.Error(err))
		if !p.persistWarn {
			ledger.Recordf(p.rec, stageRun, "database unavailable: %v", err)
			p.persistWarn = true
		}
	}
}

func (p *Pipeline) cleanUp() {
	for _, dir := range p.runner.Layout().Intermediate() {
		if err := os.RemoveAll(dir); err != nil {
			ledger.Recordf(p.rec, stageCleanUp, "failed to remove %s: %v", filepath.Base(dir), err)
		}
	}
	p.rec.Record(stageCleanUp, "Removed intermediate read files")
}
