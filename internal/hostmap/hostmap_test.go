package hostmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host_mapping.csv")
	require.NoError(t, os.WriteFile(path, []byte("phage,host\nS1, hosts/PAO1.fasta\nS2,/refs/PA14.fasta\n,orphan.fasta\nS3,\n"), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, table, 2)

	ref, ok := table.Host("S1")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "hosts", "PAO1.fasta"), ref)

	ref, ok = table.Host("S2")
	assert.True(t, ok)
	assert.Equal(t, "/refs/PA14.fasta", ref)

	_, ok = table.Host("S3")
	assert.False(t, ok)
}

func TestLoad_BadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host_mapping.csv")
	require.NoError(t, os.WriteFile(path, []byte("sample,reference\nS1,x.fasta\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAssess_LengthWeighted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "covstats.tsv")
	require.NoError(t, os.WriteFile(path, []byte(
		"#ID\tAvg_fold\tLength\tRef_GC\tCovered_percent\n"+
			"chromosome\t2.0\t3000\t0.6\t10.0\n"+
			"plasmid\t10.0\t1000\t0.5\t50.0\n"), 0o644))

	tr, err := Assess("S1", "/refs/PAO1.fasta", path)
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Contigs)
	assert.InDelta(t, 4.0, tr.AvgFold, 1e-9)
	assert.InDelta(t, 20.0, tr.CoveredPercent, 1e-9)
	assert.Contains(t, tr.String(), "PAO1.fasta covered 20.00% at 4.00x")
}
