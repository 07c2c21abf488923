package types

import "strings"

// Completeness is the CheckV quality category of a contig.
type Completeness string

const (
	Complete      Completeness = "Complete"
	HighQuality   Completeness = "High-quality"
	MediumQuality Completeness = "Medium-quality"
	LowQuality    Completeness = "Low-quality"
	NotDetermined Completeness = "Not-determined"
)

// ParseCompleteness maps a quality column value to a category. Unrecognised
// values fall back to NotDetermined.
func ParseCompleteness(s string) Completeness {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "complete":
		return Complete
	case "high-quality", "high quality", "high_quality":
		return HighQuality
	case "medium-quality", "medium quality", "medium_quality":
		return MediumQuality
	case "low-quality", "low quality", "low_quality":
		return LowQuality
	default:
		return NotDetermined
	}
}

// ContigRecord is one assembled sequence candidate with statistics merged from
// the completeness, coverage and mapping tables.
type ContigRecord struct {
	Sample             string       `json:"sample"`
	ContigID           string       `json:"contig_id"`
	Length             int          `json:"length"`
	Completeness       Completeness `json:"completeness"`
	InCompleteTable    bool         `json:"in_complete_table"`
	AverageCoverage    Metric       `json:"average_coverage"`
	PercentUnambiguous Metric       `json:"percent_unambiguous_mapped"`
}

// Key returns the merge key of the record.
func (r ContigRecord) Key() ContigKey {
	return ContigKey{Sample: r.Sample, ContigID: r.ContigID}
}

// ContigKey identifies a contig within a run.
type ContigKey struct {
	Sample   string
	ContigID string
}
