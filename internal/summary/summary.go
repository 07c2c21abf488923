// Package summary appends rows to the sample and contig summary tables.
package summary

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/phanatic/phanatic/internal/types"
)

// Table headers.
var (
	SampleHeader = []string{"sample", "genomes", "status"}
	ContigHeader = []string{"sample", "contig_name", "coverage", "coverage_status", "mapped_percent", "mapping_status"}
)

// SampleRow is one row of the sample summary.
type SampleRow struct {
	Sample  string
	Genomes int
	Status  types.SampleStatus
}

func (r SampleRow) fields() []string {
	return []string{r.Sample, strconv.Itoa(r.Genomes), string(r.Status)}
}

// ContigRow is one row of the contig summary.
type ContigRow struct {
	Sample         string
	ContigName     string
	Coverage       types.Metric
	CoverageStatus string
	MappedPercent  types.Metric
	MappingStatus  string
}

// ContigRowFromVerdict builds the summary row for a classified candidate.
func ContigRowFromVerdict(v types.ClassificationVerdict) ContigRow {
	return ContigRow{
		Sample:         v.Sample,
		ContigName:     v.ContigID,
		Coverage:       v.Coverage,
		CoverageStatus: v.CoverageStatus,
		MappedPercent:  v.MappedPercent,
		MappingStatus:  v.MappingStatus,
	}
}

func (r ContigRow) fields() []string {
	return []string{r.Sample, r.ContigName, r.Coverage.Format(), r.CoverageStatus, r.MappedPercent.Format(), r.MappingStatus}
}

// Table is an append-only CSV file. The header is written when the file is
// created or empty.
type Table struct {
	mu     sync.Mutex
	path   string
	header []string
}

// NewSampleTable returns the sample summary at path.
func NewSampleTable(path string) *Table { return &Table{path: path, header: SampleHeader} }

// NewContigTable returns the contig summary at path.
func NewContigTable(path string) *Table { return &Table{path: path, header: ContigHeader} }

// Path returns the table location.
func (t *Table) Path() string { return t.path }

// AppendSample writes one sample row.
func (t *Table) AppendSample(r SampleRow) error { return t.append(r.fields()) }

// AppendContigs writes one row per verdict.
func (t *Table) AppendContigs(verdicts []types.ClassificationVerdict) error {
	rows := make([][]string, 0, len(verdicts))
	for _, v := range verdicts {
		rows = append(rows, ContigRowFromVerdict(v).fields())
	}
	return t.append(rows...)
}

func (t *Table) append(rows ...[]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", t.path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", t.path, err)
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(t.header); err != nil {
			return fmt.Errorf("failed to write header to %s: %w", t.path, err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to append to %s: %w", t.path, err)
	}
	return nil
}

// ReadSamples reads a sample summary table.
func ReadSamples(path string) ([]SampleRow, error) {
	records, err := readRows(path, SampleHeader)
	if err != nil {
		return nil, err
	}
	out := make([]SampleRow, 0, len(records))
	for _, rec := range records {
		n, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("%s: bad genome count %q", path, rec[1])
		}
		out = append(out, SampleRow{Sample: rec[0], Genomes: n, Status: types.SampleStatus(rec[2])})
	}
	return out, nil
}

func readRows(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)
	var out [][]string
	first := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if first {
			first = false
			if rec[0] == header[0] {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
