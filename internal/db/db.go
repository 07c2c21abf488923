// Package db persists run results to PostgreSQL or SQLite.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phanatic/phanatic/internal/types"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

var _ Store = (*DB)(nil)

// Connect establishes a connection pool to the database and creates the
// tables if they do not exist
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

// CreateRun inserts a run record
func (db *DB) CreateRun(ctx context.Context, run Run) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO runs (id, image, input_dir, output_dir, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID.String(), run.Image, run.InputDir, run.OutputDir, run.Status, formatTime(run.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun marks a run as finished with the given status
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE runs SET status = $1, completed_at = $2 WHERE id = $3`,
		status, formatTime(time.Now()), runID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// SaveSample stores the outcome of one sample
func (db *DB) SaveSample(ctx context.Context, r SampleResult) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO sample_results (run_id, sample, status, genomes, failed_stage, error)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (run_id, sample) DO UPDATE SET status = excluded.status, genomes = excluded.genomes,
		   failed_stage = excluded.failed_stage, error = excluded.error`,
		r.RunID.String(), r.Sample, r.Status, r.Genomes, r.FailedStage, r.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save sample %s: %w", r.Sample, err)
	}
	return nil
}

// SaveVerdicts stores classifier verdicts in one transaction
func (db *DB) SaveVerdicts(ctx context.Context, runID uuid.UUID, verdicts []types.ClassificationVerdict) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, v := range verdicts {
		c := ContigResultFromVerdict(runID, v)
		if _, err := tx.Exec(ctx,
			`INSERT INTO contig_verdicts (run_id, sample, contig_id, decision, reason, coverage_status, mapping_status, coverage, mapped_percent)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (run_id, sample, contig_id) DO UPDATE SET decision = excluded.decision, reason = excluded.reason,
			   coverage_status = excluded.coverage_status, mapping_status = excluded.mapping_status,
			   coverage = excluded.coverage, mapped_percent = excluded.mapped_percent`,
			runID.String(), c.Sample, c.ContigID, c.Decision, c.Reason, c.CoverageStatus, c.MappingStatus, c.Coverage, c.MappedPercent,
		); err != nil {
			return fmt.Errorf("failed to save verdict %s: %w", c.ContigID, err)
		}
	}
	return tx.Commit(ctx)
}

// SaveBarcode stores an issued barcode
func (db *DB) SaveBarcode(ctx context.Context, runID uuid.UUID, b types.Barcode) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO barcodes (run_id, tag, sample, genome) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tag) DO NOTHING`,
		runID.String(), b.Tag, b.Sample, b.Genome,
	)
	if err != nil {
		return fmt.Errorf("failed to save barcode %s: %w", b.Tag, err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var (
		id, created string
		completed   *string
		run         Run
	)
	err := db.pool.QueryRow(ctx,
		`SELECT id, image, input_dir, output_dir, status, created_at, completed_at
		 FROM runs WHERE id = $1`,
		runID.String(),
	).Scan(&id, &run.Image, &run.InputDir, &run.OutputDir, &run.Status, &created, &completed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if err := fillRun(&run, id, created, completed); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListSamples retrieves the sample results of a run
func (db *DB) ListSamples(ctx context.Context, runID uuid.UUID) ([]SampleResult, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT sample, status, genomes, failed_stage, error
		 FROM sample_results WHERE run_id = $1 ORDER BY sample`,
		runID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	defer rows.Close()

	var out []SampleResult
	for rows.Next() {
		r := SampleResult{RunID: runID}
		if err := rows.Scan(&r.Sample, &r.Status, &r.Genomes, &r.FailedStage, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListVerdicts retrieves the stored verdicts of a run
func (db *DB) ListVerdicts(ctx context.Context, runID uuid.UUID) ([]ContigResult, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT sample, contig_id, decision, reason, coverage_status, mapping_status, coverage, mapped_percent
		 FROM contig_verdicts WHERE run_id = $1 ORDER BY sample, contig_id`,
		runID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list verdicts: %w", err)
	}
	defer rows.Close()

	var out []ContigResult
	for rows.Next() {
		c := ContigResult{RunID: runID}
		if err := rows.Scan(&c.Sample, &c.ContigID, &c.Decision, &c.Reason, &c.CoverageStatus, &c.MappingStatus, &c.Coverage, &c.MappedPercent); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func fillRun(run *Run, id, created string, completed *string) error {
	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid run id %q: %w", id, err)
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return fmt.Errorf("invalid created_at %q: %w", created, err)
	}
	if completed != nil && *completed != "" {
		t, err := time.Parse(time.RFC3339Nano, *completed)
		if err != nil {
			return fmt.Errorf("invalid completed_at %q: %w", *completed, err)
		}
		run.CompletedAt = &t
	}
	return nil
}
