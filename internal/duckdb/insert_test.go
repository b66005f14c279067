package duckdb

import (
	"context"
	"errors"
	"testing"

	"github.com/tinytelemetry/locallog/internal/model"
)

type recordingWriter struct {
	batches [][]model.LogEntry
	segment string
	err     error
}

func (w *recordingWriter) InsertEntries(_ context.Context, segment string, entries []model.LogEntry) error {
	if w.err != nil {
		return w.err
	}
	w.segment = segment
	w.batches = append(w.batches, append([]model.LogEntry(nil), entries...))
	return nil
}

func TestInsertBufferBatches(t *testing.T) {
	w := &recordingWriter{}
	b := NewInsertBuffer(w, InsertBufferConfig{BatchSize: 2, Segment: "seg"})
	ctx := context.Background()

	for _, line := range []string{"a", "b", "c", "d", "e"} {
		if err := b.Add(ctx, model.LogEntry{Line: line}); err != nil {
			t.Fatalf("Add(%s): %v", line, err)
		}
	}
	if len(w.batches) != 2 {
		t.Fatalf("flushed %d batches before Close, want 2", len(w.batches))
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(w.batches) != 3 || len(w.batches[2]) != 1 || w.batches[2][0].Line != "e" {
		t.Fatalf("unexpected batches after Close: %+v", w.batches)
	}
	if w.segment != "seg" {
		t.Errorf("segment = %q, want seg", w.segment)
	}
	if b.Written() != 5 {
		t.Errorf("Written = %d, want 5", b.Written())
	}
}

func TestInsertBufferKeepsPendingOnError(t *testing.T) {
	boom := errors.New("disk full")
	w := &recordingWriter{err: boom}
	b := NewInsertBuffer(w, InsertBufferConfig{BatchSize: 1})

	if err := b.Add(context.Background(), model.LogEntry{Line: "x"}); !errors.Is(err, boom) {
		t.Fatalf("Add error = %v, want %v", err, boom)
	}
	w.err = nil
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(w.batches) != 1 || w.batches[0][0].Line != "x" {
		t.Fatalf("pending entry lost: %+v", w.batches)
	}
}

func TestInsertBufferIntoStore(t *testing.T) {
	store := newTestStore(t)
	b := NewInsertBuffer(store, InsertBufferConfig{BatchSize: 3})
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if err := b.Add(ctx, model.LogEntry{Source: "stdout", Line: "entry"}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	count, err := store.EntryCount(ctx)
	if err != nil {
		t.Fatalf("EntryCount: %v", err)
	}
	if count != 7 {
		t.Errorf("EntryCount = %d, want 7", count)
	}
}
