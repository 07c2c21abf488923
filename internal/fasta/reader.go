// Package fasta reads and writes FASTA files produced by the assembly tools.
package fasta

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record is one FASTA entry. ID is the first whitespace-delimited token of
// the header; Header is the full line without '>'.
type Record struct {
	ID     string
	Header string
	Seq    []byte
}

// Len returns the sequence length.
func (r Record) Len() int { return len(r.Seq) }

const maxLine = 64 * 1024 * 1024

// Scan parses FASTA from r and calls fn once per record. Blank lines are
// skipped and sequence lines are concatenated with whitespace removed.
// Returning an error from fn stops the scan and returns that error.
func Scan(ctx context.Context, r io.Reader, fn func(Record) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	var (
		cur    Record
		inside bool
	)
	flush := func() error {
		if !inside {
			return nil
		}
		return fn(cur)
	}

	for sc.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return err
			}
			header := strings.TrimSpace(string(line[1:]))
			cur = Record{ID: headerID(header), Header: header}
			inside = true
			continue
		}
		if !inside {
			return fmt.Errorf("fasta: sequence data before first header")
		}
		cur.Seq = append(cur.Seq, bytes.TrimSpace(line)...)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("fasta scan: %w", err)
	}
	return flush()
}

// ScanFile opens path (gzip detected by magic bytes or .gz suffix) and scans it.
func ScanFile(ctx context.Context, path string, fn func(Record) error) error {
	rc, err := Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	return Scan(ctx, rc, fn)
}

// ReadAll returns every record in path.
func ReadAll(ctx context.Context, path string) ([]Record, error) {
	var out []Record
	err := ScanFile(ctx, path, func(r Record) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if ferr := g.f.Close(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}

// Open returns a reader over path, transparently decompressing gzip.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	var sig [2]byte
	n, _ := f.Read(sig[:])
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to rewind %s: %w", path, err)
	}
	if (n == 2 && sig[0] == 0x1f && sig[1] == 0x8b) || strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to read gzip %s: %w", path, err)
		}
		return &gzipFile{Reader: gr, f: f}, nil
	}
	return f, nil
}

func headerID(header string) string {
	if i := strings.IndexAny(header, " \t"); i >= 0 {
		return header[:i]
	}
	return header
}
