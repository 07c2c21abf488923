// Package types provides type definitions for structured data used throughout the phanatic pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"os"
)

// Sample is one paired-end read set discovered in the input directory.
type Sample struct {
	Name  string `json:"name"`
	Read1 string `json:"read_1"`
	Read2 string `json:"read_2"`
}

// StageArtifact is the typed output of one processing stage for one sample.
// A stage that failed, or whose primary file is missing or empty, yields an
// artifact with OK=false and the sample's chain stops there.
type StageArtifact struct {
	Stage  string            `json:"stage"`
	Sample string            `json:"sample"`
	Path   string            `json:"path,omitempty"`
	Extra  map[string]string `json:"extra,omitempty"` // secondary outputs (e.g. unmerged reads)
	OK     bool              `json:"ok"`
	Err    error             `json:"-"`
}

// Failed builds a failed artifact for stage.
func Failed(stage, sample string, err error) StageArtifact {
	return StageArtifact{Stage: stage, Sample: sample, OK: false, Err: err}
}

// Usable reports whether the artifact can feed the next stage: the stage
// succeeded and its primary output exists with non-zero size. Directory
// outputs only need to exist.
func (a StageArtifact) Usable() bool {
	if !a.OK || a.Path == "" {
		return false
	}
	info, err := os.Stat(a.Path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return true
	}
	return info.Size() > 0
}

// ExtraPath returns a named secondary output or "" when absent.
func (a StageArtifact) ExtraPath(key string) string {
	if a.Extra == nil {
		return ""
	}
	return a.Extra[key]
}

func (a StageArtifact) String() string {
	if a.OK {
		return fmt.Sprintf("%s/%s -> %s", a.Sample, a.Stage, a.Path)
	}
	return fmt.Sprintf("%s/%s failed", a.Sample, a.Stage)
}
