package logsource

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/tinytelemetry/locallog/internal/logframe"
	"github.com/tinytelemetry/locallog/internal/model"
)

// DefaultFileBuffer is the default channel buffer size for decoded entries.
const DefaultFileBuffer = 1024

// FileConfig holds tunable parameters for the file source.
type FileConfig struct {
	BufferSize   int
	ReadSize     int
	MaxFrameSize int
	// SkipTrailerCheck accepts frames whose trailing length differs from
	// the leading one.
	SkipTrailerCheck bool
}

func (c FileConfig) options() []logframe.Option {
	opts := []logframe.Option{logframe.WithTrailerCheck(!c.SkipTrailerCheck)}
	if c.ReadSize > 0 {
		opts = append(opts, logframe.WithReadSize(c.ReadSize))
	}
	if c.MaxFrameSize > 0 {
		opts = append(opts, logframe.WithMaxFrameSize(c.MaxFrameSize))
	}
	return opts
}

// FileSource decodes an ordered list of log file segments in a background
// goroutine and publishes the entries on a channel.
type FileSource struct {
	name   string
	ch     chan model.LogEntry
	cancel context.CancelFunc
	stop   sync.Once

	// err is written before ch is closed.
	err error
}

// NewFileSource opens paths and starts decoding them as one stream.
func NewFileSource(ctx context.Context, paths []string, conf ...FileConfig) (*FileSource, error) {
	var cfg FileConfig
	if len(conf) > 0 {
		cfg = conf[0]
	}
	sources, err := OpenFiles(paths)
	if err != nil {
		return nil, err
	}
	return newFileSource(ctx, strings.Join(paths, ","), sources, cfg), nil
}

func newFileSource(ctx context.Context, name string, sources []io.ReadCloser, cfg FileConfig) *FileSource {
	bufferSize := DefaultFileBuffer
	if cfg.BufferSize > 0 {
		bufferSize = cfg.BufferSize
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &FileSource{
		name:   name,
		ch:     make(chan model.LogEntry, bufferSize),
		cancel: cancel,
	}
	go s.read(ctx, sources, cfg.options())
	return s
}

func (s *FileSource) read(ctx context.Context, sources []io.ReadCloser, opts []logframe.Option) {
	defer close(s.ch)

	for entry, err := range logframe.Decode(ctx, sources, opts...) {
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("logsource: %s: %v", s.name, err)
			}
			s.err = err
			return
		}
		select {
		case s.ch <- entry:
		case <-ctx.Done():
			s.err = ctx.Err()
			return
		}
	}
}

func (s *FileSource) Entries() <-chan model.LogEntry { return s.ch }
func (s *FileSource) Err() error                     { return s.err }
func (s *FileSource) Stop()                          { s.stop.Do(s.cancel) }
func (s *FileSource) Name() string                   { return s.name }
