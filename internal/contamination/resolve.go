// Package contamination turns a sample's classifier verdicts into a sample
// status: no accepted genome means failed, exactly one means clean and more
// than one means the sample is contaminated.
package contamination

import (
	"github.com/phanatic/phanatic/internal/ledger"
	"github.com/phanatic/phanatic/internal/types"
)

// Stage is the ledger label for resolver entries.
const Stage = "Sample"

// Resolution is the outcome for one sample.
type Resolution struct {
	Sample   string
	Status   types.SampleStatus
	Accepted []types.ClassificationVerdict
	Review   []types.ClassificationVerdict
}

// Genomes returns the number of accepted genomes.
func (r Resolution) Genomes() int { return len(r.Accepted) }

// Failed reports whether the sample produced no accepted genome.
func (r Resolution) Failed() bool { return r.Status == types.SampleFailed }

// Resolver classifies samples by their accepted genome count.
type Resolver struct {
	rec ledger.Recorder
}

// NewResolver creates a resolver reporting to rec.
func NewResolver(rec ledger.Recorder) *Resolver {
	return &Resolver{rec: rec}
}

// Resolve counts accepted verdicts. The count is the only signal.
func (r *Resolver) Resolve(sample string, verdicts []types.ClassificationVerdict) Resolution {
	res := Resolution{Sample: sample}
	for _, v := range verdicts {
		switch v.Decision {
		case types.Accept:
			res.Accepted = append(res.Accepted, v)
		case types.Review:
			res.Review = append(res.Review, v)
		}
	}
	res.Status = types.StatusForCount(len(res.Accepted))

	switch res.Status {
	case types.SampleFailed:
		ledger.Recordf(r.rec, Stage, "%s: Sample failed", sample)
	case types.SampleContaminated:
		ledger.Recordf(r.rec, Stage, "%s: contaminated (%d genomes)", sample, len(res.Accepted))
	default:
		ledger.Recordf(r.rec, Stage, "%s: clean", sample)
	}
	if len(res.Review) > 0 {
		ledger.Recordf(r.rec, Stage, "%s: %d candidates need manual review", sample, len(res.Review))
	}
	return res
}
