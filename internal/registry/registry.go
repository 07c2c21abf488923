// Package registry discovers paired read files and forms the samples a run
// processes.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phanatic/phanatic/internal/config"
	"github.com/phanatic/phanatic/internal/ledger"
	"github.com/phanatic/phanatic/internal/types"
)

const stageInput = "Input file"

// Registry finds read pairs by their R1/R2 file suffixes.
type Registry struct {
	dir   string
	r1Ext string
	r2Ext string
	rec   ledger.Recorder
}

// New builds a registry over cfg.InputDir.
func New(cfg *config.Config, rec ledger.Recorder) *Registry {
	return &Registry{dir: cfg.InputDir, r1Ext: cfg.R1Ext, r2Ext: cfg.R2Ext, rec: rec}
}

// Discover returns one Sample per R1 file that has a matching R2 file, in
// name order. An R1 file without a mate is recorded and skipped.
func (r *Registry) Discover() ([]types.Sample, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory %s: %w", r.dir, err)
	}

	var samples []types.Sample
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), r.r1Ext) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), r.r1Ext)
		if name == "" {
			continue
		}
		read2 := filepath.Join(r.dir, name+r.r2Ext)
		if info, err := os.Stat(read2); err != nil || info.IsDir() {
			r.rec.Record(stageInput, fmt.Sprintf("No second read file found for: %s", name))
			continue
		}
		r.rec.Record(stageInput, fmt.Sprintf("Adding pair: %s", name))
		samples = append(samples, types.Sample{
			Name:  name,
			Read1: filepath.Join(r.dir, entry.Name()),
			Read2: read2,
		})
	}

	r.rec.Record("Finish", fmt.Sprintf("Read pairs = %d", len(samples)))
	return samples, nil
}
