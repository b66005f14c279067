package logsource

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tinytelemetry/locallog/internal/logframe"
	"github.com/tinytelemetry/locallog/internal/model"
)

func encodeFrames(t *testing.T, n int) []byte {
	t.Helper()
	var out []byte
	for i := range n {
		var p []byte
		p = protowire.AppendTag(p, 1, protowire.BytesType)
		p = protowire.AppendString(p, "stdout")
		p = protowire.AppendTag(p, 2, protowire.VarintType)
		p = protowire.AppendVarint(p, uint64(time.Date(2024, 11, 6, 9, 13, i, 0, time.UTC).UnixNano()))
		p = protowire.AppendTag(p, 3, protowire.BytesType)
		p = protowire.AppendString(p, fmt.Sprintf("Log entry %d", i+1))

		out = binary.BigEndian.AppendUint32(out, uint32(len(p)))
		out = append(out, p...)
		out = binary.BigEndian.AppendUint32(out, uint32(len(p)))
	}
	return out
}

// writeSegments splits data at the given offsets into numbered files.
func writeSegments(t *testing.T, data []byte, cuts ...int) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	prev := 0
	for i, cut := range append(cuts, len(data)) {
		path := filepath.Join(dir, fmt.Sprintf("container.log.%d", i))
		if err := os.WriteFile(path, data[prev:cut], 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		paths = append(paths, path)
		prev = cut
	}
	return paths
}

func drain(t *testing.T, src LogSource) []model.LogEntry {
	t.Helper()
	var got []model.LogEntry
	timeout := time.After(5 * time.Second)
	for {
		select {
		case entry, ok := <-src.Entries():
			if !ok {
				return got
			}
			got = append(got, entry)
		case <-timeout:
			t.Fatal("timed out waiting for entries channel to close")
		}
	}
}

func TestFileSourceDecodesSegments(t *testing.T) {
	data := encodeFrames(t, 5)
	paths := writeSegments(t, data, 10, 50, 51, 120)

	src, err := NewFileSource(context.Background(), paths, FileConfig{ReadSize: 16})
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	defer src.Stop()

	got := drain(t, src)
	if err := src.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d entries, want 5", len(got))
	}
	for i, entry := range got {
		if want := fmt.Sprintf("Log entry %d", i+1); entry.Line != want {
			t.Errorf("entry %d line = %q, want %q", i, entry.Line, want)
		}
		if want := time.Date(2024, 11, 6, 9, 13, i, 0, time.UTC); !entry.Timestamp.Equal(want) {
			t.Errorf("entry %d timestamp = %v, want %v", i, entry.Timestamp, want)
		}
	}
}

func TestFileSourceReportsTruncation(t *testing.T) {
	data := encodeFrames(t, 2)
	paths := writeSegments(t, data[:len(data)-3])

	src, err := NewFileSource(context.Background(), paths)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	defer src.Stop()

	got := drain(t, src)
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if !errors.Is(src.Err(), logframe.ErrTruncatedFrame) {
		t.Fatalf("Err = %v, want ErrTruncatedFrame", src.Err())
	}
}

func TestFileSourceStopClosesEntries(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer func() { _ = w.Close() }()

	src := newFileSource(context.Background(), "pipe", []io.ReadCloser{r}, FileConfig{BufferSize: 1})
	if _, err := w.Write(encodeFrames(t, 3)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case <-src.Entries():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first entry")
	}

	src.Stop()
	src.Stop()

	drain(t, src)
	if !errors.Is(src.Err(), context.Canceled) {
		t.Fatalf("Err = %v, want context.Canceled", src.Err())
	}
}

func TestOpenFiles(t *testing.T) {
	paths := writeSegments(t, []byte("abcdef"), 3)

	sources, err := OpenFiles(paths)
	if err != nil {
		t.Fatalf("OpenFiles: %v", err)
	}
	for _, s := range sources {
		_ = s.Close()
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}

	if _, err := OpenFiles(nil); !errors.Is(err, ErrNoPaths) {
		t.Fatalf("OpenFiles(nil) error = %v, want ErrNoPaths", err)
	}

	missing := append(paths, filepath.Join(t.TempDir(), "missing.log"))
	if _, err := OpenFiles(missing); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("OpenFiles with missing file error = %v, want ErrNotExist", err)
	}

	if _, err := OpenFiles([]string{t.TempDir()}); err == nil {
		t.Fatal("OpenFiles on a directory succeeded")
	}
}

func TestOpenFilesStdinIsNotClosed(t *testing.T) {
	sources, err := OpenFiles([]string{StdinPath})
	if err != nil {
		t.Fatalf("OpenFiles: %v", err)
	}
	if err := sources[0].Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stdin.Stat(); err != nil {
		t.Fatalf("stdin unusable after Close: %v", err)
	}
}
