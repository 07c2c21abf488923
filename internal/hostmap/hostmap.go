// Package hostmap loads the phage-to-host reference table and summarises
// how much of a host genome is covered by reads from a phage sample, a
// signal for transduced host DNA.
package hostmap

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/phanatic/phanatic/internal/statistics"
)

// Table maps sample names to host reference FASTA paths.
type Table map[string]string

// Host returns the reference for a sample.
func (t Table) Host(sample string) (string, bool) {
	ref, ok := t[sample]
	return ref, ok && ref != ""
}

// Load reads a CSV with phage and host columns. Relative host paths are
// resolved against the directory of the table.
func Load(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open host mapping: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read host mapping header: %w", err)
	}
	phageCol, hostCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "phage":
			phageCol = i
		case "host":
			hostCol = i
		}
	}
	if phageCol < 0 || hostCol < 0 {
		return nil, fmt.Errorf("host mapping %s: header must contain phage and host columns", path)
	}

	base := filepath.Dir(path)
	t := make(Table)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse host mapping: %w", err)
		}
		if phageCol >= len(rec) || hostCol >= len(rec) {
			continue
		}
		phage := strings.TrimSpace(rec[phageCol])
		host := strings.TrimSpace(rec[hostCol])
		if phage == "" || host == "" {
			continue
		}
		if !filepath.IsAbs(host) {
			host = filepath.Join(base, host)
		}
		t[phage] = host
	}
	return t, nil
}

// Transduction is the host coverage observed for one sample.
type Transduction struct {
	Sample         string  `json:"sample"`
	Host           string  `json:"host"`
	AvgFold        float64 `json:"avg_fold"`
	CoveredPercent float64 `json:"covered_percent"`
	Contigs        int     `json:"contigs"`
}

func (t Transduction) String() string {
	return fmt.Sprintf("%s: host %s covered %.2f%% at %.2fx across %d contigs",
		t.Sample, filepath.Base(t.Host), t.CoveredPercent, t.AvgFold, t.Contigs)
}

// Assess combines the per-contig rows of a host covstats table, weighting
// each contig by its length.
func Assess(sample, host, covstatsPath string) (Transduction, error) {
	rows, _, err := statistics.ReadCoverage(covstatsPath)
	if err != nil {
		return Transduction{}, fmt.Errorf("failed to read host coverage: %w", err)
	}
	t := Transduction{Sample: sample, Host: host, Contigs: len(rows)}
	var total, fold, covered float64
	for _, row := range rows {
		w := float64(row.Length)
		if w <= 0 {
			w = 1
		}
		total += w
		fold += row.AvgFold * w
		if pct, ok := row.CoveredPercent.Value(); ok {
			covered += pct * w
		}
	}
	if total > 0 {
		t.AvgFold = fold / total
		t.CoveredPercent = covered / total
	}
	return t, nil
}
