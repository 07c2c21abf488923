package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/phanatic/phanatic/internal/types"
)

// SQLiteStore keeps run results in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)
	if _, err := sqldb.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	for _, stmt := range schema {
		if _, err := sqldb.ExecContext(ctx, stmt); err != nil {
			_ = sqldb.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &SQLiteStore{db: sqldb}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) CreateRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, image, input_dir, output_dir, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Image, run.InputDir, run.OutputDir, run.Status, formatTime(run.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID uuid.UUID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ? WHERE id = ?`,
		status, formatTime(time.Now()), runID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveSample(ctx context.Context, r SampleResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sample_results (run_id, sample, status, genomes, failed_stage, error)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, sample) DO UPDATE SET status = excluded.status, genomes = excluded.genomes,
		   failed_stage = excluded.failed_stage, error = excluded.error`,
		r.RunID.String(), r.Sample, r.Status, r.Genomes, r.FailedStage, r.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save sample %s: %w", r.Sample, err)
	}
	return nil
}

func (s *SQLiteStore) SaveVerdicts(ctx context.Context, runID uuid.UUID, verdicts []types.ClassificationVerdict) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, v := range verdicts {
		c := ContigResultFromVerdict(runID, v)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO contig_verdicts (run_id, sample, contig_id, decision, reason, coverage_status, mapping_status, coverage, mapped_percent)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (run_id, sample, contig_id) DO UPDATE SET decision = excluded.decision, reason = excluded.reason,
			   coverage_status = excluded.coverage_status, mapping_status = excluded.mapping_status,
			   coverage = excluded.coverage, mapped_percent = excluded.mapped_percent`,
			runID.String(), c.Sample, c.ContigID, c.Decision, c.Reason, c.CoverageStatus, c.MappingStatus, c.Coverage, c.MappedPercent,
		); err != nil {
			return fmt.Errorf("failed to save verdict %s: %w", c.ContigID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveBarcode(ctx context.Context, runID uuid.UUID, b types.Barcode) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO barcodes (run_id, tag, sample, genome) VALUES (?, ?, ?, ?) ON CONFLICT (tag) DO NOTHING`,
		runID.String(), b.Tag, b.Sample, b.Genome,
	)
	if err != nil {
		return fmt.Errorf("failed to save barcode %s: %w", b.Tag, err)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var (
		id, created string
		completed   sql.NullString
		run         Run
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, image, input_dir, output_dir, status, created_at, completed_at FROM runs WHERE id = ?`,
		runID.String(),
	).Scan(&id, &run.Image, &run.InputDir, &run.OutputDir, &run.Status, &created, &completed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	var completedPtr *string
	if completed.Valid {
		completedPtr = &completed.String
	}
	if err := fillRun(&run, id, created, completedPtr); err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *SQLiteStore) ListSamples(ctx context.Context, runID uuid.UUID) ([]SampleResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sample, status, genomes, failed_stage, error FROM sample_results WHERE run_id = ? ORDER BY sample`,
		runID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

func (s *SQLiteStore) ListVerdicts(ctx context.Context, runID uuid.UUID) ([]ContigResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sample, contig_id, decision, reason, coverage_status, mapping_status, coverage, mapped_percent
		 FROM contig_verdicts WHERE run_id = ? ORDER BY sample, contig_id`,
		runID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list verdicts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ContigResult
	for rows.Next() {
		c := ContigResult{RunID: runID}
		var cov, mapped sql.NullFloat64
		if err := rows.Scan(&c.Sample, &c.ContigID, &c.Decision, &c.Reason, &c.CoverageStatus, &c.MappingStatus, &cov, &mapped); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		if cov.Valid {
			c.Coverage = &cov.Float64
		}
		if mapped.Valid {
			c.MappedPercent = &mapped.Float64
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
