package coverage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanatic/phanatic/internal/statistics"
)

func TestAssess(t *testing.T) {
	tests := []struct {
		fold float64
		want Grade
	}{
		{fold: 1200, want: Finished},
		{fold: 400, want: Finished},
		{fold: 399.9, want: Complete},
		{fold: 100, want: Complete},
		{fold: 75, want: Check},
		{fold: 50, want: Check},
		{fold: 49, want: Low},
		{fold: 0, want: Low},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Assess(tt.fold), "fold %v", tt.fold)
	}
}

func TestCutoff(t *testing.T) {
	assert.Equal(t, 400.0, Finished.Cutoff())
	assert.Equal(t, 100.0, Complete.Cutoff())
	assert.Equal(t, 100.0, Check.Cutoff())
}

func TestDips(t *testing.T) {
	pts := []statistics.BaseCoverage{{Pos: 0, Coverage: 99}, {Pos: 1, Coverage: 100}, {Pos: 2, Coverage: 3}}
	assert.Equal(t, 2, Dips(pts, 100))
	assert.Equal(t, 0, Dips(nil, 100))
}

func TestValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "basecov.tsv")
	require.NoError(t, os.WriteFile(path, []byte("#RefName\tPos\tCoverage\nNODE_1\t0\t450\nNODE_1\t1\t390\nNODE_2\t0\t1\n"), 0o644))

	r, err := Validate("S1_NODE_1", "NODE_1", 420, path)
	require.NoError(t, err)
	assert.Equal(t, Finished, r.Grade)
	assert.Equal(t, 2, r.Positions)
	assert.Equal(t, 1, r.Dips)
	assert.Contains(t, r.String(), "1 of 2 positions below 400x")
}

func TestValidate_MissingTable(t *testing.T) {
	r, err := Validate("S1_NODE_1", "NODE_1", 120, filepath.Join(t.TempDir(), "nope.tsv"))
	assert.Error(t, err)
	assert.Equal(t, Complete, r.Grade)
}
