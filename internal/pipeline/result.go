package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/phanatic/phanatic/internal/coverage"
	"github.com/phanatic/phanatic/internal/hostmap"
	"github.com/phanatic/phanatic/internal/types"
)

// ReassemblyCheck compares an extracted genome with the longest contig
// re-assembled from the reads that map to it.
type ReassemblyCheck struct {
	Genome            string `json:"genome"`
	ExtractedLength   int    `json:"extracted_length"`
	ReassembledLength int    `json:"reassembled_length"`
	Match             bool   `json:"match"`
}

// SampleResult is everything the run learned about one sample.
type SampleResult struct {
	Sample      string                        `json:"sample"`
	Status      types.SampleStatus            `json:"status"`
	FailedStage string                        `json:"failed_stage,omitempty"`
	Error       string                        `json:"error,omitempty"`
	Verdicts    []types.ClassificationVerdict `json:"verdicts,omitempty"`
	Genomes     []types.ExtractedGenome       `json:"genomes,omitempty"`
	Barcodes    []types.Barcode               `json:"barcodes,omitempty"`
	Coverage    []coverage.Report             `json:"coverage,omitempty"`
	Host        *hostmap.Transduction         `json:"host,omitempty"`
	Reassembly  []ReassemblyCheck             `json:"reassembly,omitempty"`
	Gaps        []string                      `json:"gaps,omitempty"`
}

// Summary is written to run_summary.json at the end of a run.
type Summary struct {
	RunID      uuid.UUID                  `json:"run_id"`
	Image      string                     `json:"image"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
	Samples    []SampleResult             `json:"samples"`
	Totals     map[types.SampleStatus]int `json:"totals"`
	Genomes    int                        `json:"genomes"`
	Published  []string                   `json:"published,omitempty"`
}

func (s *Summary) add(r SampleResult) {
	s.Samples = append(s.Samples, r)
	s.Totals[r.Status]++
	s.Genomes += len(r.Genomes)
}

// Write saves the summary as indented JSON.
func (s *Summary) Write(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}
	return nil
}

// ReadSummary loads a run_summary.json file.
func ReadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse run summary: %w", err)
	}
	return &s, nil
}
