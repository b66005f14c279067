package duckdb

import (
	"context"
	"log"

	"github.com/tinytelemetry/locallog/internal/model"
)

// entryWriter is the write side of Store used by InsertBuffer.
type entryWriter interface {
	InsertEntries(ctx context.Context, segment string, entries []model.LogEntry) error
}

// InsertBufferConfig holds tunable parameters for the insert buffer.
type InsertBufferConfig struct {
	BatchSize int
	Segment   string
}

// InsertBuffer batches decoded entries and writes them to the store once a
// batch is full. It is used from the single decode consumer and is not safe
// for concurrent use.
type InsertBuffer struct {
	writer   entryWriter
	segment  string
	pending  []model.LogEntry
	maxBatch int
	written  int64
}

// NewInsertBuffer creates an insert buffer that flushes to writer.
func NewInsertBuffer(writer entryWriter, conf ...InsertBufferConfig) *InsertBuffer {
	batchSize := model.DefaultBatchSize
	var segment string
	if len(conf) > 0 {
		if conf[0].BatchSize > 0 {
			batchSize = conf[0].BatchSize
		}
		segment = conf[0].Segment
	}
	return &InsertBuffer{
		writer:   writer,
		segment:  segment,
		pending:  make([]model.LogEntry, 0, batchSize),
		maxBatch: batchSize,
	}
}

// Add queues an entry, writing the batch once it is full.
func (b *InsertBuffer) Add(ctx context.Context, entry model.LogEntry) error {
	b.pending = append(b.pending, entry)
	if len(b.pending) < b.maxBatch {
		return nil
	}
	return b.Flush(ctx)
}

// Flush writes any queued entries.
func (b *InsertBuffer) Flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	if err := b.writer.InsertEntries(ctx, b.segment, b.pending); err != nil {
		return err
	}
	b.written += int64(len(b.pending))
	b.pending = b.pending[:0]
	return nil
}

// Close flushes the remaining entries, ignoring any cancellation of the
// decode that produced them.
func (b *InsertBuffer) Close() error {
	err := b.Flush(context.Background())
	if err != nil {
		log.Printf("duckdb: final flush of %d entries failed: %v", len(b.pending), err)
	}
	return err
}

// Written returns how many entries have been flushed.
func (b *InsertBuffer) Written() int64 {
	return b.written
}
