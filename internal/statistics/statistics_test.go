package statistics

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanatic/phanatic/internal/types"
)

const qualitySummary = "contig_id\tcontig_length\tprovirus\tproviral_length\tgene_count\tviral_genes\thost_genes\tcheckv_quality\tmiuvig_quality\n" +
	"NODE_1_length_41000_cov_310.2\t41000\tNo\tNA\t55\t30\t0\tComplete\tHigh-quality\n" +
	"NODE_2_length_39000_cov_12.0\t39000\tNo\tNA\t50\t28\t0\tHigh-quality\tHigh-quality\n" +
	"NODE_3_length_2000_cov_4.0\t2000\tNo\tNA\t3\t1\t0\tLow-quality\tGenome-fragment\n" +
	"\t\t\n"

const completeGenomes = "contig_id\tcontig_length\tkmer_freq\tprediction_type\tconfidence_level\n" +
	"NODE_1_length_41000_cov_310.2\t41000\t1.0\tDTR\thigh\n" +
	"NODE_9_length_50000_cov_90.0\t50000\t1.0\tDTR\thigh\n"

const covStats = "#ID\tAvg_fold\tLength\tRef_GC\tCovered_percent\tCovered_bases\tPlus_reads\tMinus_reads\tRead_GC\tMedian_fold\tStd_Dev\n" +
	"NODE_1_length_41000_cov_310.2\t120.5\t41000\t0.4\t100.0\t41000\t10\t10\t0.4\t120\t5\n" +
	"NODE_2_length_39000_cov_12.0\t50.0\t39000\t0.4\t99.0\t39000\t10\t10\t0.4\t50\t5\n" +
	"NODE_3_length_2000_cov_4.0\tnot-a-number\t2000\t0.4\t90.0\t1800\t1\t1\t0.4\t4\t1\n"

const scafStats = "#name\t%unambiguousReads\tunambiguousMB\t%ambiguousReads\n" +
	"NODE_1_length_41000_cov_310.2\t95.0\t1.0\t0.1\n" +
	"NODE_2_length_39000_cov_12.0\t40.0\t1.0\t0.1\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fixturePaths(t *testing.T) Paths {
	dir := t.TempDir()
	return Paths{
		QualitySummary:  writeFile(t, dir, "quality_summary.tsv", qualitySummary),
		CompleteGenomes: writeFile(t, dir, "complete_genomes.tsv", completeGenomes),
		CovStats:        writeFile(t, dir, "covstats.tsv", covStats),
		ScafStats:       writeFile(t, dir, "scafstats.tsv", scafStats),
	}
}

func TestReadQualitySummary_ByHeaderName(t *testing.T) {
	p := fixturePaths(t)
	rows, skipped, err := ReadQualitySummary(p.QualitySummary)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, rows, 3)
	assert.Equal(t, "NODE_1_length_41000_cov_310.2", rows[0].ContigID)
	assert.Equal(t, 41000, rows[0].Length)
	assert.Equal(t, types.Complete, rows[0].Completeness)
	assert.Equal(t, types.HighQuality, rows[1].Completeness)
	assert.Equal(t, types.LowQuality, rows[2].Completeness)
}

func TestReadQualitySummary_PositionalFallback(t *testing.T) {
	path := writeFile(t, t.TempDir(), "q.tsv",
		"a\tb\tc\td\te\tf\tg\th\n"+
			"NODE_5\t45000\tx\tx\tx\tx\tx\tHigh-quality\n")
	rows, _, err := ReadQualitySummary(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "NODE_5", rows[0].ContigID)
	assert.Equal(t, 45000, rows[0].Length)
	assert.Equal(t, types.HighQuality, rows[0].Completeness)
}

func TestReadCoverage_SkipsMalformed(t *testing.T) {
	p := fixturePaths(t)
	cov, skipped, err := ReadCoverage(p.CovStats)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Contains(t, cov, "NODE_1_length_41000_cov_310.2")
	assert.InDelta(t, 120.5, cov["NODE_1_length_41000_cov_310.2"].AvgFold, 1e-9)
	pct, ok := cov["NODE_2_length_39000_cov_12.0"].CoveredPercent.Value()
	assert.True(t, ok)
	assert.InDelta(t, 99.0, pct, 1e-9)
}

func TestReadMapping_FullHeaderKey(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scafstats.tsv",
		"#name\t%unambiguousReads\nNODE_7 some description\t91.5\n")
	m, _, err := ReadMapping(path)
	require.NoError(t, err)
	assert.InDelta(t, 91.5, m["NODE_7"], 1e-9)
}

func TestReadBaseCoverage(t *testing.T) {
	path := writeFile(t, t.TempDir(), "basecov.tsv",
		"#RefName\tPos\tCoverage\nNODE_1\t0\t410\nNODE_1\t1\t380\nNODE_2\t0\t5\n")
	pts, err := ReadBaseCoverage(path, "NODE_1")
	require.NoError(t, err)
	assert.Equal(t, []BaseCoverage{{Pos: 0, Coverage: 410}, {Pos: 1, Coverage: 380}}, pts)
}

func TestLoad_MergesBySampleAndContig(t *testing.T) {
	set, gaps, err := Load(context.Background(), "S1", fixturePaths(t))
	require.NoError(t, err)
	assert.Empty(t, gaps)
	assert.Equal(t, 2, set.Skipped)
	require.Len(t, set.Records, 4)

	n1, ok := set.Lookup("NODE_1_length_41000_cov_310.2")
	require.True(t, ok)
	assert.True(t, n1.InCompleteTable)
	assert.Equal(t, "S1", n1.Sample)
	assert.Equal(t, types.Known(120.5), n1.AverageCoverage)
	assert.Equal(t, types.Known(95.0), n1.PercentUnambiguous)

	n3, ok := set.Lookup("NODE_3_length_2000_cov_4.0")
	require.True(t, ok)
	assert.False(t, n3.AverageCoverage.IsKnown())
	assert.False(t, n3.PercentUnambiguous.IsKnown())

	// Present only in the complete table
	n9, ok := set.Lookup("NODE_9_length_50000_cov_90.0")
	require.True(t, ok)
	assert.Equal(t, types.Complete, n9.Completeness)
	assert.Equal(t, 50000, n9.Length)
	assert.Equal(t, "NODE_9_length_50000_cov_90.0", set.Records[3].ContigID)
}

func TestLoad_Idempotent(t *testing.T) {
	p := fixturePaths(t)
	first, _, err := Load(context.Background(), "S1", p)
	require.NoError(t, err)
	second, _, err := Load(context.Background(), "S1", p)
	require.NoError(t, err)

	opt := cmp.Comparer(func(a, b types.Metric) bool { return a == b })
	if diff := cmp.Diff(first, second, opt); diff != "" {
		t.Errorf("reload changed the record set (-first +second):\n%s", diff)
	}
}

func TestLoad_MissingTablesAreGaps(t *testing.T) {
	dir := t.TempDir()
	p := Paths{
		QualitySummary:  writeFile(t, dir, "quality_summary.tsv", qualitySummary),
		CompleteGenomes: filepath.Join(dir, "complete_genomes.tsv"),
		CovStats:        filepath.Join(dir, "covstats.tsv"),
	}
	set, gaps, err := Load(context.Background(), "S1", p)
	require.NoError(t, err)
	require.Len(t, gaps, 2)
	assert.Equal(t, TableComplete, gaps[0].Table)
	assert.True(t, gaps[0].Missing())
	assert.Equal(t, TableCoverage, gaps[1].Table)

	require.Len(t, set.Records, 3)
	for _, r := range set.Records {
		assert.False(t, r.AverageCoverage.IsKnown())
		assert.False(t, r.InCompleteTable)
	}
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Load(ctx, "S1", fixturePaths(t))
	assert.ErrorIs(t, err, context.Canceled)
}
