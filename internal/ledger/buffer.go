package ledger

import (
	"strings"
	"sync"
	"time"

	"github.com/phanatic/phanatic/internal/types"
)

// Buffer is an in-memory Recorder, used where no ledger file is wanted
// (single-step CLI commands and tests).
type Buffer struct {
	mu      sync.Mutex
	entries []types.LedgerEntry
}

// Record implements Recorder.
func (b *Buffer) Record(stage, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, types.LedgerEntry{Time: time.Now(), Stage: stage, Message: message})
}

// Entries returns a copy of everything recorded so far.
func (b *Buffer) Entries() []types.LedgerEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.LedgerEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Contains reports whether any entry for stage has a message containing substr.
func (b *Buffer) Contains(stage, substr string) bool {
	for _, e := range b.Entries() {
		if e.Stage == stage && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// Tee forwards every record to all recorders.
type Tee []Recorder

// Record implements Recorder.
func (t Tee) Record(stage, message string) {
	for _, r := range t {
		r.Record(stage, message)
	}
}
