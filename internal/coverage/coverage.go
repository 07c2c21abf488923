// Package coverage grades the read depth of extracted genomes and counts
// positions where per-base depth falls below the grade's cutoff.
package coverage

import (
	"fmt"

	"github.com/phanatic/phanatic/internal/statistics"
)

// Grade is a read-depth bucket.
type Grade string

const (
	Finished Grade = "finished" // >= 400x
	Complete Grade = "complete" // 100-400x
	Check    Grade = "check"    // 50-100x, needs manual curation
	Low      Grade = "low"      // < 50x
)

const (
	finishedDepth = 400
	completeDepth = 100
	checkDepth    = 50
)

// Assess buckets an average fold coverage.
func Assess(avgFold float64) Grade {
	switch {
	case avgFold >= finishedDepth:
		return Finished
	case avgFold >= completeDepth:
		return Complete
	case avgFold >= checkDepth:
		return Check
	default:
		return Low
	}
}

// Cutoff is the per-base depth every position should reach for the grade.
func (g Grade) Cutoff() float64 {
	if g == Finished {
		return finishedDepth
	}
	return completeDepth
}

// Dips counts positions with depth below cutoff.
func Dips(points []statistics.BaseCoverage, cutoff float64) int {
	n := 0
	for _, p := range points {
		if p.Coverage < cutoff {
			n++
		}
	}
	return n
}

// Report is the coverage validation result of one genome.
type Report struct {
	Genome    string  `json:"genome"`
	AvgFold   float64 `json:"avg_fold"`
	Grade     Grade   `json:"grade"`
	Cutoff    float64 `json:"cutoff"`
	Positions int     `json:"positions"`
	Dips      int     `json:"dips"`
}

func (r Report) String() string {
	return fmt.Sprintf("%s: %.1fx (%s), %d of %d positions below %.0fx",
		r.Genome, r.AvgFold, r.Grade, r.Dips, r.Positions, r.Cutoff)
}

// Validate grades a genome from its covstats average and basecov table.
func Validate(genome, contigID string, avgFold float64, basecovPath string) (Report, error) {
	grade := Assess(avgFold)
	r := Report{Genome: genome, AvgFold: avgFold, Grade: grade, Cutoff: grade.Cutoff()}
	points, err := statistics.ReadBaseCoverage(basecovPath, contigID)
	if err != nil {
		return r, fmt.Errorf("failed to read base coverage for %s: %w", genome, err)
	}
	r.Positions = len(points)
	r.Dips = Dips(points, r.Cutoff)
	return r, nil
}
