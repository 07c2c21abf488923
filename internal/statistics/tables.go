// Package statistics reads the completeness, coverage and mapping tables
// written by CheckV and bbmap and merges them into one record per contig.
package statistics

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/phanatic/phanatic/internal/types"
)

// QualityRow is one row of a CheckV quality summary.
type QualityRow struct {
	ContigID     string
	Length       int // 0 when the column is absent or unparseable
	Completeness types.Completeness
}

// CoverageRow is one row of a bbmap covstats table.
type CoverageRow struct {
	AvgFold        float64
	Length         int
	CoveredPercent types.Metric
}

// BaseCoverage is one position of a bbmap basecov table.
type BaseCoverage struct {
	Pos      int
	Coverage float64
}

// table is a parsed tab-separated file with its header.
type table struct {
	header []string
	rows   [][]string
}

func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	t := &table{}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if t.header == nil {
			for i := range rec {
				rec[i] = strings.TrimSpace(rec[i])
			}
			t.header = rec
			continue
		}
		t.rows = append(t.rows, rec)
	}
	if t.header == nil {
		return nil, fmt.Errorf("%s: missing header", path)
	}
	return t, nil
}

// column returns the index of the first header name present, or fallback.
func (t *table) column(fallback int, names ...string) int {
	for _, name := range names {
		for i, h := range t.header {
			if strings.EqualFold(strings.TrimPrefix(h, "#"), strings.TrimPrefix(name, "#")) {
				return i
			}
		}
	}
	return fallback
}

func field(row []string, i int) (string, bool) {
	if i < 0 || i >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[i]), true
}

// contigKey reduces a bbmap reference name (the whole FASTA header) to the
// contig id used everywhere else.
func contigKey(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.IndexAny(name, " \t"); i >= 0 {
		return name[:i]
	}
	return name
}

// ReadQualitySummary reads CheckV quality_summary.tsv. Columns are found by
// header name, falling back to the positions CheckV has always used. It
// returns the rows in file order and the number of rows skipped.
func ReadQualitySummary(path string) ([]QualityRow, int, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, 0, err
	}
	idCol := t.column(0, "contig_id")
	lenCol := t.column(1, "contig_length")
	qualCol := t.column(7, "checkv_quality")

	seen := make(map[string]bool)
	var out []QualityRow
	skipped := 0
	for _, row := range t.rows {
		id, ok := field(row, idCol)
		if !ok || id == "" {
			skipped++
			continue
		}
		id = contigKey(id)
		if seen[id] {
			skipped++
			continue
		}
		seen[id] = true

		q := QualityRow{ContigID: id, Completeness: types.NotDetermined}
		if v, ok := field(row, lenCol); ok {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				q.Length = n
			}
		}
		if v, ok := field(row, qualCol); ok {
			q.Completeness = types.ParseCompleteness(v)
		}
		out = append(out, q)
	}
	return out, skipped, nil
}

// ReadCompleteGenomes reads CheckV complete_genomes.tsv and returns the
// listed contig ids mapped to their length (0 when unknown).
func ReadCompleteGenomes(path string) (map[string]int, int, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, 0, err
	}
	idCol := t.column(0, "contig_id")
	lenCol := t.column(1, "contig_length")

	out := make(map[string]int)
	skipped := 0
	for _, row := range t.rows {
		id, ok := field(row, idCol)
		if !ok || id == "" {
			skipped++
			continue
		}
		n := 0
		if v, ok := field(row, lenCol); ok {
			if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
				n = parsed
			}
		}
		out[contigKey(id)] = n
	}
	return out, skipped, nil
}

// ReadCoverage reads a bbmap covstats table keyed by contig id.
func ReadCoverage(path string) (map[string]CoverageRow, int, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, 0, err
	}
	idCol := t.column(0, "#ID", "ID")
	foldCol := t.column(1, "Avg_fold")
	lenCol := t.column(2, "Length")
	pctCol := t.column(4, "Covered_percent")

	out := make(map[string]CoverageRow)
	skipped := 0
	for _, row := range t.rows {
		id, ok := field(row, idCol)
		fold, fok := field(row, foldCol)
		if !ok || !fok || id == "" {
			skipped++
			continue
		}
		avg, err := strconv.ParseFloat(fold, 64)
		if err != nil {
			skipped++
			continue
		}
		c := CoverageRow{AvgFold: avg}
		if v, ok := field(row, lenCol); ok {
			c.Length, _ = strconv.Atoi(v)
		}
		if v, ok := field(row, pctCol); ok {
			if pct, err := strconv.ParseFloat(v, 64); err == nil {
				c.CoveredPercent = types.Known(pct)
			}
		}
		out[contigKey(id)] = c
	}
	return out, skipped, nil
}

// ReadMapping reads a bbmap scafstats table and returns the percentage of
// unambiguously mapped reads per contig id.
func ReadMapping(path string) (map[string]float64, int, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, 0, err
	}
	idCol := t.column(0, "#name", "name")
	pctCol := t.column(1, "%unambiguousReads")

	out := make(map[string]float64)
	skipped := 0
	for _, row := range t.rows {
		id, ok := field(row, idCol)
		v, vok := field(row, pctCol)
		if !ok || !vok || id == "" {
			skipped++
			continue
		}
		pct, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		if err != nil {
			skipped++
			continue
		}
		out[contigKey(id)] = pct
	}
	return out, skipped, nil
}

// ReadBaseCoverage returns the per-position depth of one contig from a bbmap
// basecov table, in file order.
func ReadBaseCoverage(path, contigID string) ([]BaseCoverage, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	idCol := t.column(0, "#RefName", "RefName")
	posCol := t.column(1, "Pos")
	covCol := t.column(2, "Coverage")

	var out []BaseCoverage
	for _, row := range t.rows {
		id, ok := field(row, idCol)
		if !ok || contigKey(id) != contigID {
			continue
		}
		ps, _ := field(row, posCol)
		cs, _ := field(row, covCol)
		pos, perr := strconv.Atoi(ps)
		cov, cerr := strconv.ParseFloat(cs, 64)
		if perr != nil || cerr != nil {
			continue
		}
		out = append(out, BaseCoverage{Pos: pos, Coverage: cov})
	}
	return out, nil
}
