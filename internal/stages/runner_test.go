package stages_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanatic/phanatic/internal/config"
	"github.com/phanatic/phanatic/internal/ledger"
	"github.com/phanatic/phanatic/internal/stages"
	"github.com/phanatic/phanatic/internal/stages/stagestest"
	"github.com/phanatic/phanatic/internal/types"
)

func newRunner(t *testing.T, exec stages.Executor) (*stages.Runner, *ledger.Buffer, types.Sample) {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	rec := &ledger.Buffer{}
	sample := types.Sample{Name: "S1", Read1: "/in/S1_R1_001.fastq.gz", Read2: "/in/S1_R2_001.fastq.gz"}
	return stages.NewRunner(&cfg, exec, rec, nil), rec, sample
}

func TestRunner_ReadChain(t *testing.T) {
	fake := &stagestest.Executor{}
	r, rec, s := newRunner(t, fake)
	ctx := context.Background()

	trimmed := r.Trim(ctx, s)
	require.True(t, trimmed.OK)
	assert.Equal(t, filepath.Join(r.Layout().Trimmed(), "S1.fastq"), trimmed.Path)

	deduped := r.Dedupe(ctx, s, trimmed)
	require.True(t, deduped.OK)

	merged := r.Merge(ctx, s, deduped)
	require.True(t, merged.OK)
	assert.Equal(t, filepath.Join(r.Layout().Merged(), "S1_unmerged.fastq"), merged.ExtraPath(stages.ExtraUnmerged))

	normalised := r.Normalise(ctx, s, merged)
	require.True(t, normalised.OK)
	assert.Equal(t, merged.ExtraPath(stages.ExtraUnmerged), normalised.ExtraPath(stages.ExtraUnmerged))

	assembly := r.Assemble(ctx, s, normalised)
	require.True(t, assembly.OK)
	assert.Equal(t, "contigs.fasta", filepath.Base(assembly.Path))

	filtered := r.Filter(ctx, s, assembly)
	require.True(t, filtered.OK)

	checkv := r.CheckV(ctx, s, filtered)
	require.True(t, checkv.OK)
	info, err := os.Stat(checkv.Path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	mapping := r.MapToContigs(ctx, s, deduped, filtered)
	require.True(t, mapping.OK)
	assert.Equal(t, "covstats.tsv", filepath.Base(mapping.Path))
	assert.NotEmpty(t, mapping.ExtraPath(stages.ExtraScafStats))

	assert.True(t, rec.Contains(stages.StageTrim, "S1"))
	assert.True(t, rec.Contains(stages.StageCheckV, "S1"))
	assert.Equal(t, 1, fake.Ran("spades.py"))
	assert.Equal(t, 1, fake.Ran("bbmap.sh"))
}

func TestRunner_ToolFailureStopsChain(t *testing.T) {
	fake := &stagestest.Executor{Fail: map[string]bool{"dedupe.sh/S1": true}}
	r, rec, s := newRunner(t, fake)
	ctx := context.Background()

	trimmed := r.Trim(ctx, s)
	require.True(t, trimmed.OK)

	deduped := r.Dedupe(ctx, s, trimmed)
	assert.False(t, deduped.OK)
	var failure *stages.StageFailure
	require.True(t, errors.As(deduped.Err, &failure))
	assert.Equal(t, stages.StageDedupe, failure.Stage)
	assert.ErrorIs(t, deduped.Err, stagestest.ErrToolFailed)
	assert.True(t, rec.Contains(stages.StageDedupe, "Dedupe: failed"))

	// Downstream stages refuse the failed artifact without invoking a tool
	merged := r.Merge(ctx, s, deduped)
	assert.False(t, merged.OK)
	assert.Equal(t, 0, fake.Ran("bbmerge.sh"))
}

func TestRunner_EmptyOutputIsFailure(t *testing.T) {
	fake := &stagestest.Executor{Empty: map[string]bool{"bbduk.sh/S1": true}}
	r, rec, s := newRunner(t, fake)

	trimmed := r.Trim(context.Background(), s)
	assert.False(t, trimmed.OK)
	assert.Contains(t, trimmed.Err.Error(), "output missing or empty")
	assert.True(t, rec.Contains(stages.StageTrim, "Trim: failed"))
}

func TestRunner_AssembleWithoutUnmerged(t *testing.T) {
	fake := &stagestest.Executor{}
	r, _, s := newRunner(t, fake)
	ctx := context.Background()

	trimmed := r.Trim(ctx, s)
	assembly := r.Assemble(ctx, s, trimmed)
	require.True(t, assembly.OK)

	last := fake.Commands[len(fake.Commands)-1]
	assert.NotContains(t, last.Args, "-s")
}

func TestRunner_CancelledContext(t *testing.T) {
	fake := &stagestest.Executor{}
	r, _, s := newRunner(t, fake)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	trimmed := r.Trim(ctx, s)
	assert.False(t, trimmed.OK)
	assert.ErrorIs(t, trimmed.Err, context.Canceled)
}

func TestRunner_Reassemble(t *testing.T) {
	fake := &stagestest.Executor{}
	r, rec, s := newRunner(t, fake)
	ctx := context.Background()

	trimmed := r.Trim(ctx, s)
	genomePath := filepath.Join(t.TempDir(), "S1_NODE_1.fasta")
	require.NoError(t, os.WriteFile(genomePath, []byte(">S1_NODE_1\nACGT\n"), 0644))
	g := types.ExtractedGenome{Sample: "S1", ContigID: "NODE_1", Name: "S1_NODE_1", Path: genomePath}

	art := r.Reassemble(ctx, g, trimmed)
	require.True(t, art.OK)
	assert.Equal(t, "contigs.fasta", filepath.Base(art.Path))
	assert.True(t, rec.Contains(stages.StageReassembly, "S1"))
}

type stageCounter map[string]int

func (c stageCounter) ObserveStage(stage string, ok bool, _ time.Duration) {
	if ok {
		c[stage+"/ok"]++
	} else {
		c[stage+"/fail"]++
	}
}

func TestRunner_Observer(t *testing.T) {
	fake := &stagestest.Executor{Fail: map[string]bool{"dedupe.sh/S1": true}}
	r, _, s := newRunner(t, fake)
	counts := stageCounter{}
	r.SetObserver(counts)
	ctx := context.Background()

	trimmed := r.Trim(ctx, s)
	r.Dedupe(ctx, s, trimmed)

	assert.Equal(t, stageCounter{"Trim/ok": 1, "Dedupe/fail": 1}, counts)
}
