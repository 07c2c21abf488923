package barcode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanatic/phanatic/internal/config"
	"github.com/phanatic/phanatic/internal/ledger"
	"github.com/phanatic/phanatic/internal/types"
)

// fixedSource always draws the same index, so every tag collides.
type fixedSource struct{ n int }

func (f fixedSource) IntN(int) int { return f.n }

// scriptedSource replays offsets; the first tags repeat before new ones appear.
type scriptedSource struct {
	seq []int
	pos int
}

func (s *scriptedSource) IntN(n int) int {
	v := s.seq[s.pos%len(s.seq)] % n
	s.pos++
	return v
}

func genome(sample string) types.ExtractedGenome {
	return types.ExtractedGenome{Sample: sample, ContigID: "NODE_1", Name: sample + "_NODE_1"}
}

func TestOpen_RejectsLength(t *testing.T) {
	for _, n := range []int{0, -1, 63} {
		_, err := Open(filepath.Join(t.TempDir(), "barcodes.csv"), "PHG", n, &ledger.Buffer{})
		var cfgErr *config.ConfigurationError
		require.ErrorAs(t, err, &cfgErr, "length %d", n)
		assert.Equal(t, "barcode_length", cfgErr.Field)
	}
}

func TestIssue_FormatAndIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barcodes.csv")
	rec := &ledger.Buffer{}
	r, err := Open(path, "PHG", 8, rec)
	require.NoError(t, err)

	b, err := r.Issue(genome("S1"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(b.Tag, "PHG"))
	body := strings.TrimPrefix(b.Tag, "PHG")
	assert.Len(t, body, 8)

	seen := map[rune]bool{}
	for _, c := range body {
		assert.True(t, strings.ContainsRune(Alphabet, c))
		assert.False(t, seen[c], "characters are drawn without replacement")
		seen[c] = true
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sample_name,phage_ID,genome\nS1,"+b.Tag+",S1_NODE_1\n", string(data))
	assert.True(t, rec.Contains(Stage, "S1_NODE_1: "+b.Tag))
}

func TestIssue_UniqueUnderForcedCollisions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barcodes.csv")
	// Two length-2 draws per tag: the first two tags are identical, then new.
	src := &scriptedSource{seq: []int{0, 0, 0, 0, 0, 0, 1, 1, 2, 2, 3, 3}}
	r, err := Open(path, "", 2, &ledger.Buffer{}, WithSource(src))
	require.NoError(t, err)

	tags := map[string]bool{}
	for i := 0; i < 4; i++ {
		b, err := r.Issue(genome(fmt.Sprintf("S%d", i)))
		require.NoError(t, err)
		assert.False(t, tags[b.Tag], "tag %s issued twice", b.Tag)
		tags[b.Tag] = true
	}
	assert.Equal(t, 4, r.Issued())
}

func TestIssue_Exhausted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barcodes.csv")
	rec := &ledger.Buffer{}
	r, err := Open(path, "PHG", 4, rec, WithSource(fixedSource{}), WithMaxAttempts(5))
	require.NoError(t, err)

	_, err = r.Issue(genome("S1"))
	require.NoError(t, err)

	_, err = r.Issue(genome("S2"))
	assert.ErrorIs(t, err, ErrExhausted)
	assert.True(t, rec.Contains(Stage, "S2_NODE_1: failed (5 attempts collided)"))

	rows, err := ReadIndex(path)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestIssue_ResumesFromExistingIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barcodes.csv")
	first, err := Open(path, "PHG", 4, &ledger.Buffer{}, WithSource(fixedSource{}))
	require.NoError(t, err)
	b1, err := first.Issue(genome("S1"))
	require.NoError(t, err)

	// A new registrar with the same colliding source must not reuse the tag.
	second, err := Open(path, "PHG", 4, &ledger.Buffer{}, WithSource(fixedSource{}), WithMaxAttempts(3))
	require.NoError(t, err)
	assert.Equal(t, 1, second.Issued())
	_, err = second.Issue(genome("S2"))
	assert.ErrorIs(t, err, ErrExhausted)

	// The already barcoded genome keeps its tag without a new row.
	again, err := second.Issue(genome("S1"))
	require.NoError(t, err)
	assert.Equal(t, b1.Tag, again.Tag)

	rows, err := ReadIndex(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.Barcode{Sample: "S1", Tag: b1.Tag, Genome: "S1_NODE_1"}, rows[0])
}

func TestIssue_GenomesOfOneSampleGetDistinctTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barcodes.csv")
	r, err := Open(path, "PHG", 8, &ledger.Buffer{})
	require.NoError(t, err)

	first, err := r.Issue(types.ExtractedGenome{Sample: "S1", ContigID: "NODE_1", Name: "S1_NODE_1"})
	require.NoError(t, err)
	second, err := r.Issue(types.ExtractedGenome{Sample: "S1", ContigID: "NODE_2", Name: "S1_NODE_2"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Tag, second.Tag)
	assert.Equal(t, "S1_NODE_2", second.Genome)

	rows, err := ReadIndex(path)
	require.NoError(t, err)
	assert.Equal(t, []types.Barcode{
		{Sample: "S1", Tag: first.Tag, Genome: "S1_NODE_1"},
		{Sample: "S1", Tag: second.Tag, Genome: "S1_NODE_2"},
	}, rows)
}

func TestOpen_TwoColumnIndexReservesTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barcodes.csv")
	require.NoError(t, os.WriteFile(path, []byte("sample_name,phage_ID\nS1,PHGAB\n"), 0o644))

	// The first draw spells the reserved tag, so a second draw is needed.
	r, err := Open(path, "PHG", 2, &ledger.Buffer{}, WithSource(&scriptedSource{seq: []int{0, 0, 2, 2}}))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Issued())

	b, err := r.Issue(genome("S1"))
	require.NoError(t, err)
	assert.NotEqual(t, "PHGAB", b.Tag)
}

func TestIssue_FullAlphabetLength(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "barcodes.csv"), "", len(Alphabet), &ledger.Buffer{})
	require.NoError(t, err)
	b, err := r.Issue(genome("S1"))
	require.NoError(t, err)
	assert.Len(t, b.Tag, len(Alphabet))
}
