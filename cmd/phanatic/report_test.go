package main

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanatic/phanatic/internal/db"
	"github.com/phanatic/phanatic/internal/types"
)

func TestWriteStoredReport(t *testing.T) {
	ctx := context.Background()
	store, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "phanatic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	runID := uuid.New()
	require.NoError(t, store.CreateRun(ctx, db.Run{
		ID:        runID,
		Image:     "phanatic",
		InputDir:  "/data/in",
		OutputDir: "/data/out",
		Status:    db.RunStatusRunning,
		CreatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.SaveSample(ctx, db.SampleResult{RunID: runID, Sample: "S1", Status: "clean", Genomes: 1}))
	require.NoError(t, store.SaveSample(ctx, db.SampleResult{RunID: runID, Sample: "S2", Status: "failed", FailedStage: "Trim", Error: "exit status 1"}))
	require.NoError(t, store.SaveVerdicts(ctx, runID, []types.ClassificationVerdict{{
		Sample:         "S1",
		ContigID:       "NODE_1",
		Decision:       types.Accept,
		Reason:         types.ReasonPass,
		CoverageStatus: types.StatusPass,
		MappingStatus:  types.StatusPass,
		Coverage:       types.Known(120),
		MappedPercent:  types.Known(95),
	}}))
	require.NoError(t, store.CompleteRun(ctx, runID, db.RunStatusCompleted))

	var out bytes.Buffer
	require.NoError(t, writeStoredReport(ctx, store, runID, &out))

	assert.Equal(t, "Run "+runID.String()+" [phanatic] completed\n"+
		"Input:  /data/in\nOutput: /data/out\n"+
		"S1\tclean\t1 genomes\n"+
		"  NODE_1\taccept\tpass\tcoverage=PASS\tmapping=PASS\n"+
		"S2\tfailed\t0 genomes\n"+
		"  failed at Trim: exit status 1\n", out.String())
}

func TestWriteStoredReport_UnknownRun(t *testing.T) {
	ctx := context.Background()
	store, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "phanatic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	err = writeStoredReport(ctx, store, uuid.New(), &bytes.Buffer{})
	assert.ErrorContains(t, err, "not found")
}

func TestReportCommand_FromSQLite(t *testing.T) {
	binaryPath := getBinaryPath(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "phanatic.db")

	output, err := exec.Command(binaryPath, "run", "--input", t.TempDir(), "--output", filepath.Join(dir, "out"), "--sqlite", dbPath).CombinedOutput()
	require.NoError(t, err, string(output))
	var runID string
	for _, line := range strings.Split(string(output), "\n") {
		if strings.HasPrefix(line, "Run ") && strings.Contains(line, " complete:") {
			runID = strings.Fields(line)[1]
		}
	}
	require.NotEmpty(t, runID, string(output))

	output, err = exec.Command(binaryPath, "report", "--run", runID, "--sqlite", dbPath).CombinedOutput()
	require.NoError(t, err, string(output))
	assert.Contains(t, string(output), "Run "+runID+" [phanatic] completed")
}
