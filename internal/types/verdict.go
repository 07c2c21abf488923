package types

// Decision is the classifier outcome for a contig.
type Decision string

const (
	Accept Decision = "accept"
	Reject Decision = "reject"
	// Review marks a candidate whose mapping statistic was unavailable. It is
	// kept for manual review and is neither extracted nor counted as accepted.
	Review Decision = "review"
)

// Reason explains a verdict.
type Reason string

const (
	ReasonPass               Reason = "pass"
	ReasonLowCoverageWarning Reason = "low_coverage_warning"
	ReasonMappingFail        Reason = "mapping_fail"
	ReasonIndeterminate      Reason = "indeterminate"
)

// Status strings written to the contig summary table.
const (
	StatusPass          = "PASS"
	StatusWarning       = "WARNING"
	StatusFail          = "FAIL"
	StatusIndeterminate = "INDETERMINATE"
	StatusSkipped       = "SKIPPED"
)

// ClassificationVerdict is the per-contig outcome of the classifier.
type ClassificationVerdict struct {
	Sample         string   `json:"sample"`
	ContigID       string   `json:"contig_id"`
	Decision       Decision `json:"decision"`
	Reason         Reason   `json:"reason"`
	Warnings       []Reason `json:"warnings,omitempty"`
	CoverageStatus string   `json:"coverage_status"`
	MappingStatus  string   `json:"mapping_status"`
	Coverage       Metric   `json:"coverage"`
	MappedPercent  Metric   `json:"mapped_percent"`
}

// Accepted reports whether the contig may be extracted.
func (v ClassificationVerdict) Accepted() bool { return v.Decision == Accept }

// SampleStatus is the aggregate classification of a sample.
type SampleStatus string

const (
	SampleFailed       SampleStatus = "failed"
	SampleClean        SampleStatus = "clean"
	SampleContaminated SampleStatus = "contaminated"
)

// StatusForCount maps a number of accepted contigs to a sample status.
func StatusForCount(accepted int) SampleStatus {
	switch {
	case accepted <= 0:
		return SampleFailed
	case accepted == 1:
		return SampleClean
	default:
		return SampleContaminated
	}
}
