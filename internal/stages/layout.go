package stages

import "path/filepath"

// Layout names the output directories of a run.
type Layout struct {
	Root string
}

func (l Layout) dir(parts ...string) string {
	return filepath.Join(append([]string{l.Root}, parts...)...)
}

func (l Layout) Trimmed() string { return l.dir("trimmed") }
func (l Layout) Deduped() string { return l.dir("deduped") }
func (l Layout) Merged() string { return l.dir("merged") }
func (l Layout) Normalised() string { return l.dir("normalised") }
func (l Layout) Assembly() string { return l.dir("spades") }
func (l Layout) Filtered() string { return l.dir("filtered_contigs") }
func (l Layout) CheckV() string { return l.dir("checkv") }
func (l Layout) PhageMapping() string { return l.dir("mapping_QC_to_phage") }
func (l Layout) HostMapping() string { return l.dir("mapping_QC_to_host") }
func (l Layout) Extractions() string { return l.dir("genome_extractions") }
func (l Layout) FastQC() string { return l.dir("fastqc") }
func (l Layout) Reassembly() string { return l.dir("reassembly") }
func (l Layout) Logs() string { return l.dir("logs") }

// Intermediate lists the read-processing directories removed by clean_up.
func (l Layout) Intermediate() []string {
	return []string{l.Trimmed(), l.Deduped(), l.Merged(), l.Normalised()}
}

// Ledger is the run ledger file.
func (l Layout) Ledger() string { return l.dir("phanatic_log.tsv") }

// SampleSummary is the sample-level summary table.
func (l Layout) SampleSummary() string { return l.dir("sample_summary.csv") }

// ContigSummary is the contig-level summary table.
func (l Layout) ContigSummary() string { return l.dir("contig_summary.csv") }

// BarcodeIndex is the barcode index table.
func (l Layout) BarcodeIndex() string { return l.dir("barcodes.csv") }

// RunSummary is the JSON summary written at the end of a run.
func (l Layout) RunSummary() string { return l.dir("run_summary.json") }

// Metrics is the Prometheus textfile written at the end of a run.
func (l Layout) Metrics() string { return l.dir("metrics.prom") }
