package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanatic/phanatic/internal/types"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state", "phanatic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newRun() Run {
	return Run{
		ID:        uuid.New(),
		Image:     "phanatic",
		InputDir:  "/data/in",
		OutputDir: "/data/out",
		Status:    RunStatusRunning,
		CreatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	run := newRun()

	require.NoError(t, s.CreateRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, RunStatusRunning, got.Status)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, s.CompleteRun(ctx, run.ID, RunStatusCompleted))
	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestSQLiteStore_GetRunNotFound(t *testing.T) {
	s := openTestSQLite(t)
	got, err := s.GetRun(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_SamplesUpsert(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	run := newRun()
	require.NoError(t, s.CreateRun(ctx, run))

	require.NoError(t, s.SaveSample(ctx, SampleResult{RunID: run.ID, Sample: "S2", Status: "failed", FailedStage: "Trim", Error: "exit 1"}))
	require.NoError(t, s.SaveSample(ctx, SampleResult{RunID: run.ID, Sample: "S1", Status: "running"}))
	require.NoError(t, s.SaveSample(ctx, SampleResult{RunID: run.ID, Sample: "S1", Status: "clean", Genomes: 1}))

	samples, err := s.ListSamples(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, SampleResult{RunID: run.ID, Sample: "S1", Status: "clean", Genomes: 1}, samples[0])
	assert.Equal(t, "Trim", samples[1].FailedStage)
}

func TestSQLiteStore_Verdicts(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	run := newRun()
	require.NoError(t, s.CreateRun(ctx, run))

	verdicts := []types.ClassificationVerdict{
		{Sample: "S1", ContigID: "NODE_1", Decision: types.Accept, Reason: types.ReasonPass,
			CoverageStatus: types.StatusPass, MappingStatus: types.StatusPass,
			Coverage: types.Known(120), MappedPercent: types.Known(95)},
		{Sample: "S1", ContigID: "NODE_2", Decision: types.Review, Reason: types.ReasonIndeterminate,
			CoverageStatus: types.StatusIndeterminate, MappingStatus: types.StatusIndeterminate},
	}
	require.NoError(t, s.SaveVerdicts(ctx, run.ID, verdicts))

	got, err := s.ListVerdicts(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].Coverage)
	assert.InDelta(t, 120.0, *got[0].Coverage, 1e-9)
	assert.Equal(t, "accept", got[0].Decision)
	assert.Nil(t, got[1].Coverage)
	assert.Nil(t, got[1].MappedPercent)
	assert.Equal(t, "review", got[1].Decision)
}

func TestSQLiteStore_BarcodeRequiresRun(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	err := s.SaveBarcode(ctx, uuid.New(), types.Barcode{Tag: "PHGabc", Sample: "S1", Genome: "S1_NODE_1"})
	assert.Error(t, err, "foreign key to runs is enforced")

	run := newRun()
	require.NoError(t, s.CreateRun(ctx, run))
	require.NoError(t, s.SaveBarcode(ctx, run.ID, types.Barcode{Tag: "PHGabc", Sample: "S1", Genome: "S1_NODE_1"}))
	// Re-saving an issued tag is a no-op.
	require.NoError(t, s.SaveBarcode(ctx, run.ID, types.Barcode{Tag: "PHGabc", Sample: "S1", Genome: "S1_NODE_1"}))
}

func TestContigResultFromVerdict(t *testing.T) {
	id := uuid.New()
	c := ContigResultFromVerdict(id, types.ClassificationVerdict{
		Sample: "S1", ContigID: "NODE_1", Decision: types.Reject, Reason: types.ReasonMappingFail,
		Coverage: types.Known(50), MappedPercent: types.Indeterminate(),
	})
	assert.Equal(t, id, c.RunID)
	assert.Equal(t, "mapping_fail", c.Reason)
	require.NotNil(t, c.Coverage)
	assert.Nil(t, c.MappedPercent)
}
