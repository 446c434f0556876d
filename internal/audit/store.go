// Package audit provides an append-only JSON-lines record of every
// completed open/close cycle, for operator inspection only. It is never
// read back to restore state — startup always re-derives the initial
// state from venue balances (see internal/reconcile) rather than trusting
// a local file. Unlike a crash-safe snapshot that must always be valid to
// read back (write-to-tmp-then-rename), this file never needs to be read
// back at all, only durable to append to, so each record is written and
// synced independently rather than replacing the whole file on every write.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cexdexarb/internal/strategy"
)

// Record is one line of the audit log: a completed cycle plus the wall-clock
// time it was written, independent of CycleEvent.CompletedAt (which is the
// machine's own clock read under its mutex).
type Record struct {
	CycleSeq    int64     `json:"cycle_seq"`
	Opened      bool      `json:"opened"`
	Qty         string    `json:"qty"`
	CompletedAt time.Time `json:"completed_at"`
	WrittenAt   time.Time `json:"written_at"`
}

// Store appends cycle-completion records to a JSON-lines file.
type Store struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates (or appends to) the audit log file under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	path := filepath.Join(dir, "cycles.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Store{file: f}, nil
}

// Close flushes and closes the underlying file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// RecordCycle appends one completed-cycle record. Wired to
// Machine.OnCycleComplete. Errors are not fatal to the caller — a failed
// audit write must never block or abort a live trading cycle — so this
// returns an error purely for the caller to log.
func (s *Store) RecordCycle(evt strategy.CycleEvent) error {
	rec := Record{
		CycleSeq:    evt.CycleSeq,
		Opened:      evt.Opened,
		Qty:         evt.Qty.String(),
		CompletedAt: evt.CompletedAt,
		WrittenAt:   time.Now(),
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return s.file.Sync()
}
