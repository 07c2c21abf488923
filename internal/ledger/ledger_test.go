package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "phanatic_log.tsv")
	l, err := Open(path, "phanatic:test")
	require.NoError(t, err)

	fixed := time.Date(2024, 3, 1, 12, 30, 0, 0, time.Local)
	l.now = func() time.Time { return fixed }

	require.NoError(t, l.Append("Trim", "S1"))
	l.Record("Sample", "Sample failed")
	Recordf(l, "Classify", "%s: %d candidates", "S1", 2)
	require.NoError(t, l.Close())
	require.NoError(t, l.Err())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[phanatic:test]\t[2024-03-01 12:30:00]\t[Trim]\t[S1]", lines[0])

	entries, err := ReadEntries(path)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Sample", entries[1].Stage)
	assert.Equal(t, "Sample failed", entries[1].Message)
	assert.Equal(t, "S1: 2 candidates", entries[2].Message)
	assert.True(t, entries[0].Time.Equal(fixed))
}

func TestLedger_AppendOnlyAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.tsv")

	first, err := Open(path, "img")
	require.NoError(t, err)
	require.NoError(t, first.Append("Input file", "Adding pair: S1"))
	require.NoError(t, first.Close())

	second, err := Open(path, "img")
	require.NoError(t, err)
	require.NoError(t, second.Append("Input file", "Adding pair: S2"))
	require.NoError(t, second.Close())

	entries, err := ReadEntries(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Adding pair: S1", entries[0].Message)
	assert.Equal(t, "Adding pair: S2", entries[1].Message)
}

func TestLedger_SanitisesSeparators(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.tsv")
	l, err := Open(path, "img")
	require.NoError(t, err)
	require.NoError(t, l.Append("Stage\tname", "line one\nline two"))
	require.NoError(t, l.Close())

	entries, err := ReadEntries(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Stage name", entries[0].Stage)
	assert.Equal(t, "line one line two", entries[0].Message)
}

func TestLedger_AppendAfterClose(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "ledger.tsv"), "img")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	assert.Error(t, l.Append("Trim", "S1"))
	l.Record("Trim", "S1")
	assert.Error(t, l.Err())
}

func TestReadEntries_SkipsForeignLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.tsv")
	content := "not a ledger line\n" +
		"[img]\t[2024-01-01 00:00:00]\t[Trim]\t[S1]\n" +
		"[img]\t[yesterday]\t[Trim]\t[S2]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	entries, err := ReadEntries(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "S1", entries[0].Message)
}

func TestBuffer_ContainsAndTee(t *testing.T) {
	var a, b Buffer
	tee := Tee{&a, &b}
	tee.Record("Sample", "Sample failed")

	assert.True(t, a.Contains("Sample", "failed"))
	assert.True(t, b.Contains("Sample", "Sample failed"))
	assert.False(t, a.Contains("Trim", "failed"))
	assert.Len(t, a.Entries(), 1)
}

func TestLedger_AppendfAndEntries(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "ledger.tsv"), "img")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	require.NoError(t, l.Appendf("Finish", "Read pairs = %d", 3))

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Read pairs = 3", entries[0].Message)
}
