package store

import (
	"path/filepath"
	"testing"
	"time"
)

func TestTraceWriteAndRead(t *testing.T) {
	runDir := filepath.Join(t.TempDir(), "runs", "run-1")

	tw, err := NewTraceWriter(runDir)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	for gen := 1; gen <= 3; gen++ {
		err := tw.Write(TraceEntry{
			Generation:    gen,
			Evaluations:   gen * 10,
			Objective:     float64(10 - gen),
			BestObjective: float64(10 - gen),
			Feasible:      gen > 1,
			Timestamp:     time.Now(),
		})
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := ReadTrace(runDir)
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Generation != 1 || entries[2].Generation != 3 {
		t.Errorf("Entries out of order: %+v", entries)
	}
	if entries[2].Evaluations != 30 {
		t.Errorf("Evaluations = %d, want 30", entries[2].Evaluations)
	}
	if entries[0].Feasible || !entries[1].Feasible {
		t.Errorf("Feasibility flags wrong: %+v", entries)
	}
}

func TestTraceFlushMakesEntriesVisible(t *testing.T) {
	runDir := t.TempDir()

	tw, err := NewTraceWriter(runDir)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	defer tw.Close()

	if err := tw.Write(TraceEntry{Generation: 1}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := tw.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	entries, err := ReadTrace(runDir)
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 entry after flush, got %d", len(entries))
	}
}

func TestReadTraceMissingFile(t *testing.T) {
	entries, err := ReadTrace(t.TempDir())
	if err != nil {
		t.Fatalf("ReadTrace should tolerate a missing file, got %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(entries))
	}
}

func TestTraceWriterTruncatesPrevious(t *testing.T) {
	runDir := t.TempDir()

	tw, err := NewTraceWriter(runDir)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	tw.Write(TraceEntry{Generation: 1})
	tw.Write(TraceEntry{Generation: 2})
	tw.Close()

	tw, err = NewTraceWriter(runDir)
	if err != nil {
		t.Fatalf("Second NewTraceWriter failed: %v", err)
	}
	tw.Write(TraceEntry{Generation: 99})
	tw.Close()

	entries, err := ReadTrace(runDir)
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Generation != 99 {
		t.Errorf("Expected a fresh trace, got %+v", entries)
	}
}
