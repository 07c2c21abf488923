// Package barcode issues short unique identifiers to extracted genomes and
// keeps them in an append-only CSV index.
package barcode

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"

	"github.com/phanatic/phanatic/internal/config"
	"github.com/phanatic/phanatic/internal/ledger"
	"github.com/phanatic/phanatic/internal/types"
)

// Stage is the ledger label for barcoding entries.
const Stage = "Barcode"

// Alphabet is the set tag characters are drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultMaxAttempts bounds collision retries for one tag.
const DefaultMaxAttempts = 1000

var indexHeader = []string{"sample_name", "phage_ID", "genome"}

// ErrExhausted is returned when no unused tag was found within the retry bound.
var ErrExhausted = errors.New("barcode: no unused tag found")

// Source yields random integers in [0, n).
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Option configures a Registrar.
type Option func(*Registrar)

// WithSource replaces the random source.
func WithSource(src Source) Option {
	return func(r *Registrar) { r.src = src }
}

// WithMaxAttempts changes the collision retry bound.
func WithMaxAttempts(n int) Option {
	return func(r *Registrar) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// Registrar generates tags unique across everything in its index.
type Registrar struct {
	mu          sync.Mutex
	path        string
	prefix      string
	length      int
	maxAttempts int
	src         Source
	rec         ledger.Recorder
	issued      map[string]bool   // tag -> used
	byGenome    map[string]string // genome name -> tag
}

// Open loads the index at path, if any, so previously issued tags are never
// reused, and returns a registrar appending to it.
func Open(path, prefix string, length int, rec ledger.Recorder, opts ...Option) (*Registrar, error) {
	if length < 1 || length > len(Alphabet) {
		return nil, &config.ConfigurationError{
			Field:   "barcode_length",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", len(Alphabet), length),
		}
	}
	r := &Registrar{
		path:        path,
		prefix:      prefix,
		length:      length,
		maxAttempts: DefaultMaxAttempts,
		src:         globalSource{},
		rec:         rec,
		issued:      make(map[string]bool),
		byGenome:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}

	rows, err := ReadIndex(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	for _, b := range rows {
		r.issued[b.Tag] = true
		if b.Genome != "" {
			r.byGenome[b.Genome] = b.Tag
		}
	}
	return r, nil
}

// Issued returns the number of tags known to the registrar.
func (r *Registrar) Issued() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.issued)
}

// generate draws length distinct characters from Alphabet.
func (r *Registrar) generate() string {
	pool := []byte(Alphabet)
	out := make([]byte, r.length)
	for i := 0; i < r.length; i++ {
		j := i + r.src.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
		out[i] = pool[i]
	}
	return r.prefix + string(out)
}

// Issue assigns a tag to g and appends it to the index. A genome already in
// the index gets its tag back without a new row; every other genome gets a
// fresh tag, including further genomes of the same sample.
func (r *Registrar) Issue(g types.ExtractedGenome) (types.Barcode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tag, ok := r.byGenome[g.Name]; ok {
		ledger.Recordf(r.rec, Stage, "%s: already barcoded as %s", g.Name, tag)
		return types.Barcode{Tag: tag, Sample: g.Sample, Genome: g.Name}, nil
	}

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		tag := r.generate()
		if r.issued[tag] {
			continue
		}
		if err := r.append(g.Sample, tag, g.Name); err != nil {
			return types.Barcode{}, err
		}
		r.issued[tag] = true
		r.byGenome[g.Name] = tag
		ledger.Recordf(r.rec, Stage, "%s: %s", g.Name, tag)
		return types.Barcode{Tag: tag, Sample: g.Sample, Genome: g.Name}, nil
	}

	ledger.Recordf(r.rec, Stage, "%s: failed (%d attempts collided)", g.Name, r.maxAttempts)
	return types.Barcode{}, fmt.Errorf("%s after %d attempts: %w", g.Name, r.maxAttempts, ErrExhausted)
}

func (r *Registrar) append(sample, tag, genome string) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open barcode index: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat barcode index: %w", err)
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(indexHeader); err != nil {
			return fmt.Errorf("failed to write barcode index header: %w", err)
		}
	}
	if err := w.Write([]string{sample, tag, genome}); err != nil {
		return fmt.Errorf("failed to append barcode: %w", err)
	}
	w.Flush()
	return w.Error()
}

// ReadIndex returns the rows of a barcode index. Rows written without a
// genome column keep their tag reserved but leave Genome empty.
func ReadIndex(path string) ([]types.Barcode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	var out []types.Barcode
	for line := 0; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse barcode index %s: %w", path, err)
		}
		if line == 0 && len(rec) >= 2 && rec[0] == indexHeader[0] {
			continue
		}
		if len(rec) < 2 || rec[1] == "" {
			continue
		}
		b := types.Barcode{Sample: rec[0], Tag: rec[1]}
		if len(rec) > 2 {
			b.Genome = rec[2]
		}
		out = append(out, b)
	}
	return out, nil
}
