package db

import (
	"time"

	"github.com/google/uuid"
)

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run represents one pipeline invocation
type Run struct {
	ID          uuid.UUID  `json:"id"`
	Image       string     `json:"image"`
	InputDir    string     `json:"input_dir"`
	OutputDir   string     `json:"output_dir"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SampleResult is the outcome of one sample within a run
type SampleResult struct {
	RunID       uuid.UUID `json:"run_id"`
	Sample      string    `json:"sample"`
	Status      string    `json:"status"`
	Genomes     int       `json:"genomes"`
	FailedStage string    `json:"failed_stage,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// ContigResult is a stored classifier verdict
type ContigResult struct {
	RunID          uuid.UUID `json:"run_id"`
	Sample         string    `json:"sample"`
	ContigID       string    `json:"contig_id"`
	Decision       string    `json:"decision"`
	Reason         string    `json:"reason"`
	CoverageStatus string    `json:"coverage_status"`
	MappingStatus  string    `json:"mapping_status"`
	Coverage       *float64  `json:"coverage,omitempty"`
	MappedPercent  *float64  `json:"mapped_percent,omitempty"`
}

// BarcodeRecord is a stored barcode assignment
type BarcodeRecord struct {
	RunID  uuid.UUID `json:"run_id"`
	Tag    string    `json:"phage_id"`
	Sample string    `json:"sample_name"`
	Genome string    `json:"genome"`
}
