package db

import (
	"context"

	"github.com/google/uuid"

	"github.com/phanatic/phanatic/internal/types"
)

// Store persists run results. The output directory stays the source of
// truth; a store is an optional queryable copy.
type Store interface {
	CreateRun(ctx context.Context, run Run) error
	CompleteRun(ctx context.Context, runID uuid.UUID, status string) error
	SaveSample(ctx context.Context, result SampleResult) error
	SaveVerdicts(ctx context.Context, runID uuid.UUID, verdicts []types.ClassificationVerdict) error
	SaveBarcode(ctx context.Context, runID uuid.UUID, b types.Barcode) error
	GetRun(ctx context.Context, runID uuid.UUID) (*Run, error)
	ListSamples(ctx context.Context, runID uuid.UUID) ([]SampleResult, error)
	ListVerdicts(ctx context.Context, runID uuid.UUID) ([]ContigResult, error)
	Close() error
}

// ContigResultFromVerdict converts a verdict for storage.
func ContigResultFromVerdict(runID uuid.UUID, v types.ClassificationVerdict) ContigResult {
	return ContigResult{
		RunID:          runID,
		Sample:         v.Sample,
		ContigID:       v.ContigID,
		Decision:       string(v.Decision),
		Reason:         string(v.Reason),
		CoverageStatus: v.CoverageStatus,
		MappingStatus:  v.MappingStatus,
		Coverage:       metricPtr(v.Coverage),
		MappedPercent:  metricPtr(v.MappedPercent),
	}
}

func metricPtr(m types.Metric) *float64 {
	v, ok := m.Value()
	if !ok {
		return nil
	}
	return &v
}

// schema creates the tables shared by both backends. Column types are the
// common subset of PostgreSQL and SQLite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		image TEXT NOT NULL,
		input_dir TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		completed_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS sample_results (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		sample TEXT NOT NULL,
		status TEXT NOT NULL,
		genomes INTEGER NOT NULL,
		failed_stage TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, sample)
	)`,
	`CREATE TABLE IF NOT EXISTS contig_verdicts (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		sample TEXT NOT NULL,
		contig_id TEXT NOT NULL,
		decision TEXT NOT NULL,
		reason TEXT NOT NULL,
		coverage_status TEXT NOT NULL,
		mapping_status TEXT NOT NULL,
		coverage DOUBLE PRECISION,
		mapped_percent DOUBLE PRECISION,
		PRIMARY KEY (run_id, sample, contig_id)
	)`,
	`CREATE TABLE IF NOT EXISTS barcodes (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		tag TEXT PRIMARY KEY,
		sample TEXT NOT NULL,
		genome TEXT NOT NULL
	)`,
}
