package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/locallog/internal/duckdb"
	"github.com/tinytelemetry/locallog/internal/logframe"
	"github.com/tinytelemetry/locallog/internal/logsource"
	"github.com/tinytelemetry/locallog/internal/model"
)

// decodeFiles prints every entry of paths to out and, when configured, also
// exports them to DuckDB. Entries written before a failure stay written.
func decodeFiles(ctx context.Context, cfg appConfig, paths []string, out io.Writer) error {
	src, err := logsource.NewFileSource(ctx, paths, logsource.FileConfig{
		ReadSize:         cfg.ReadBufferSize,
		MaxFrameSize:     cfg.MaxFrameSize,
		SkipTrailerCheck: !cfg.VerifyTrailer,
	})
	if err != nil {
		return err
	}
	defer src.Stop()

	var (
		store *duckdb.Store
		sink  *duckdb.InsertBuffer
	)
	if cfg.ExportPath != "" {
		store, err = duckdb.NewStore(ctx, cfg.ExportPath)
		if err != nil {
			return fmt.Errorf("failed to open export database: %w", err)
		}
		defer store.Close()
		sink = duckdb.NewInsertBuffer(store, duckdb.InsertBufferConfig{
			BatchSize: cfg.ExportBatchSize,
			Segment:   src.Name(),
		})
	}

	p := newPrinter(out, cfg)
	g, gctx := errgroup.WithContext(ctx)

	var exportCh chan model.LogEntry
	if sink != nil {
		exportCh = make(chan model.LogEntry, cfg.ExportBatchSize)
		// Entries decoded before an interrupt are still exported.
		exportCtx := context.WithoutCancel(ctx)
		g.Go(func() error {
			for entry := range exportCh {
				if err := sink.Add(exportCtx, entry); err != nil {
					return fmt.Errorf("export: %w", err)
				}
			}
			if err := sink.Close(); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			log.Printf("locallog: exported %d entries to %s", sink.Written(), store.Path())
			return nil
		})
	}

	g.Go(func() error {
		if exportCh != nil {
			defer close(exportCh)
		}
		defer p.Flush()

		entries := src.Entries()
		for entry := range entries {
			// Entries still queued when the run is cancelled are dropped.
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := p.Print(entry); err != nil {
				return err
			}
			// Flush whenever the decoder has nothing queued so slow
			// inputs such as stdin show up promptly.
			if len(entries) == 0 {
				if err := p.Flush(); err != nil {
					return err
				}
			}
			if exportCh != nil {
				select {
				case exportCh <- entry:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
		if err := src.Err(); err != nil {
			if logframe.IsCorrupt(err) {
				return fmt.Errorf("corrupt log data in %s: %w", src.Name(), err)
			}
			return err
		}
		return nil
	})

	return g.Wait()
}
