package fasta

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const spadesContigs = `>NODE_1_length_40000_cov_120.5
ACGTACGT
ACGT

>NODE_2_length_900_cov_3.1 extra words
TTTT
`

func TestScan_ParsesRecords(t *testing.T) {
	var got []Record
	err := Scan(context.Background(), strings.NewReader(spadesContigs), func(r Record) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "NODE_1_length_40000_cov_120.5", got[0].ID)
	assert.Equal(t, "ACGTACGTACGT", string(got[0].Seq))
	assert.Equal(t, 12, got[0].Len())

	assert.Equal(t, "NODE_2_length_900_cov_3.1", got[1].ID)
	assert.Equal(t, "NODE_2_length_900_cov_3.1 extra words", got[1].Header)
}

func TestScan_CallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := Scan(context.Background(), strings.NewReader(spadesContigs), func(Record) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestScan_SequenceBeforeHeader(t *testing.T) {
	err := Scan(context.Background(), strings.NewReader("ACGT\n>x\nA\n"), func(Record) error { return nil })
	assert.Error(t, err)
}

func TestScan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Scan(ctx, strings.NewReader(spadesContigs), func(Record) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadAll_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contigs.fasta.gz")
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(spadesContigs))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	recs, err := ReadAll(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestReadAll_MissingFile(t *testing.T) {
	_, err := ReadAll(context.Background(), filepath.Join(t.TempDir(), "nope.fasta"))
	assert.Error(t, err)
}
