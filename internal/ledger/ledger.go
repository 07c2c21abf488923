// Package ledger implements the run ledger: an append-only, tab-delimited
// text log with one line per pipeline decision. It is a forensic trail, not a
// queryable event store; there is no rotation and no structured payload.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/phanatic/phanatic/internal/types"
)

// TimeLayout is the timestamp format of ledger lines.
const TimeLayout = "2006-01-02 15:04:05"

// Recorder is implemented by anything components can report decisions to.
type Recorder interface {
	Record(stage, message string)
}

// Recordf formats a message and records it.
func Recordf(r Recorder, stage, format string, args ...any) {
	r.Record(stage, fmt.Sprintf(format, args...))
}

// Ledger appends entries to a file. Writes are serialised with a mutex; the
// pipeline itself has a single writer.
type Ledger struct {
	mu    sync.Mutex
	file  *os.File
	path  string
	image string
	now   func() time.Time
	err   error
}

// Open opens (or creates) the ledger at path for appending. image labels
// every line with the pipeline build that wrote it.
func Open(path, image string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	return &Ledger{file: f, path: path, image: image, now: time.Now}, nil
}

// Path returns the ledger file location.
func (l *Ledger) Path() string { return l.path }

// Append writes one entry.
func (l *Ledger) Append(stage, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errors.New("ledger is closed")
	}
	line := fmt.Sprintf("[%s]\t[%s]\t[%s]\t[%s]\n",
		clean(l.image), l.now().Format(TimeLayout), clean(stage), clean(message))
	if _, err := l.file.WriteString(line); err != nil {
		return fmt.Errorf("failed to append to ledger: %w", err)
	}
	return nil
}

// Appendf formats and writes one entry.
func (l *Ledger) Appendf(stage, format string, args ...any) error {
	return l.Append(stage, fmt.Sprintf(format, args...))
}

// Entries re-reads everything written to the ledger file so far.
func (l *Ledger) Entries() ([]types.LedgerEntry, error) {
	return ReadEntries(l.path)
}

// Record implements Recorder. The first write error is retained and
// reported by Err.
func (l *Ledger) Record(stage, message string) {
	if err := l.Append(stage, message); err != nil {
		l.mu.Lock()
		if l.err == nil {
			l.err = err
		}
		l.mu.Unlock()
	}
}

// Err returns the first error swallowed by Record.
func (l *Ledger) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Close syncs and closes the file.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	syncErr := l.file.Sync()
	closeErr := l.file.Close()
	l.file = nil
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

// clean keeps an entry on one line and free of field separators.
func clean(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
}

// ReadEntries parses a ledger file back into entries. Lines that do not
// match the ledger layout are skipped.
func ReadEntries(path string) ([]types.LedgerEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var entries []types.LedgerEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		entry, ok := parseLine(scanner.Text())
		if ok {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return entries, nil
}

func parseLine(line string) (types.LedgerEntry, bool) {
	fields := strings.Split(line, "\t")
	if len(fields) != 4 {
		return types.LedgerEntry{}, false
	}
	for i, f := range fields {
		if len(f) < 2 || f[0] != '[' || f[len(f)-1] != ']' {
			return types.LedgerEntry{}, false
		}
		fields[i] = f[1 : len(f)-1]
	}
	ts, err := time.ParseInLocation(TimeLayout, fields[1], time.Local)
	if err != nil {
		return types.LedgerEntry{}, false
	}
	return types.LedgerEntry{Time: ts, Stage: fields[2], Message: fields[3]}, true
}
