package logsource

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// StdinPath is the path argument that selects standard input.
const StdinPath = "-"

// ErrNoPaths is returned when no paths are given.
var ErrNoPaths = errors.New("logsource: no paths given")

// OpenFiles opens paths in order. If any path fails to open, every file
// opened so far is closed again.
func OpenFiles(paths []string) ([]io.ReadCloser, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}

	sources := make([]io.ReadCloser, 0, len(paths))
	for _, path := range paths {
		src, err := open(path)
		if err != nil {
			for _, s := range sources {
				_ = s.Close()
			}
			return nil, fmt.Errorf("logsource: open %s: %w", path, err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func open(path string) (io.ReadCloser, error) {
	if path == StdinPath {
		return stdinReader{}, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.New("is a directory")
	}
	return os.Open(path)
}

// stdinReader reads os.Stdin without ever closing it.
type stdinReader struct{}

func (stdinReader) Read(p []byte) (int, error) { return os.Stdin.Read(p) }
func (stdinReader) Close() error               { return nil }
