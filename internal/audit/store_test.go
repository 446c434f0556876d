package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cexdexarb/internal/strategy"
)

func TestRecordCycleAppendsLine(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	evt := strategy.CycleEvent{
		CycleSeq:    1,
		Opened:      true,
		Qty:         decimal.RequireFromString("0.01"),
		CompletedAt: time.Now(),
	}
	if err := s.RecordCycle(evt); err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}

	lines := readLines(t, dir)
	if len(lines) != 1 {
		t.Fatalf("len(lines) = %d, want 1", len(lines))
	}

	var rec Record
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if rec.CycleSeq != 1 || !rec.Opened || rec.Qty != "0.01" {
		t.Errorf("record = %+v, want cycle_seq=1 opened=true qty=0.01", rec)
	}
}

func TestRecordCycleAppendsAcrossMultipleCalls(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	for i := int64(1); i <= 3; i++ {
		evt := strategy.CycleEvent{CycleSeq: i, Opened: i%2 == 0, Qty: decimal.RequireFromString("0.01"), CompletedAt: time.Now()}
		if err := s.RecordCycle(evt); err != nil {
			t.Fatalf("RecordCycle(%d): %v", i, err)
		}
	}

	lines := readLines(t, dir)
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
}

func TestRecordCyclePersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.RecordCycle(strategy.CycleEvent{CycleSeq: 1, Opened: true, Qty: decimal.RequireFromString("0.01"), CompletedAt: time.Now()}); err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	defer s2.Close()
	if err := s2.RecordCycle(strategy.CycleEvent{CycleSeq: 2, Opened: false, Qty: decimal.RequireFromString("0.01"), CompletedAt: time.Now()}); err != nil {
		t.Fatalf("RecordCycle after reopen: %v", err)
	}

	lines := readLines(t, dir)
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2 (append survives reopen)", len(lines))
	}
}

func readLines(t *testing.T, dir string) []string {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, "cycles.jsonl"))
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}
