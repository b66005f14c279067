// Package chainreader presents an ordered list of byte sources as one
// continuous, forward-only stream.
package chainreader

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnsupported is returned by Seek and Size. The stream is forward-only.
	ErrUnsupported = fmt.Errorf("chainreader: %w", errors.ErrUnsupported)

	// ErrClosed is returned by Read after the reader has been torn down.
	ErrClosed = errors.New("chainreader: reader closed")
)

// Reader reads its sources one after another. Each source is closed as soon as
// a read against it reports io.EOF, or when the Reader itself is closed.
//
// Reader is not safe for concurrent use, except that Close and CloseAsync may
// race with each other: exactly one of them releases the sources, and the
// others wait for that release to finish. Use New to create a Reader.
type Reader struct {
	active  io.ReadCloser
	pending []io.ReadCloser

	// pendingEOF is set when the active source returned data together with
	// io.EOF; the next Read advances without touching the source again.
	pendingEOF bool

	closed   atomic.Bool
	released chan struct{}
}

// New returns a Reader over sources, in order. The Reader takes ownership of
// every source.
func New(sources ...io.ReadCloser) *Reader {
	r := &Reader{released: make(chan struct{})}
	if len(sources) > 0 {
		r.active = sources[0]
		r.pending = append([]io.ReadCloser(nil), sources[1:]...)
	}
	return r
}

// Read fills p from the active source. A short read is returned only when the
// active source itself returned one; an exhausted source is released and the
// read retried on the next source. io.EOF is returned once every source is
// exhausted.
func (r *Reader) Read(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	for r.active != nil {
		if !r.pendingEOF {
			n, err := r.active.Read(p)
			switch {
			case n > 0:
				if errors.Is(err, io.EOF) {
					r.pendingEOF = true
				} else if err != nil {
					return n, err
				}
				return n, nil
			case err == nil:
				return 0, nil
			case !errors.Is(err, io.EOF):
				return 0, err
			}
		}

		if err := r.advance(); err != nil {
			return 0, err
		}
	}
	return 0, io.EOF
}

// advance releases the exhausted active source and promotes the next one.
func (r *Reader) advance() error {
	done := r.active
	r.active = nil
	r.pendingEOF = false
	if len(r.pending) > 0 {
		r.active = r.pending[0]
		r.pending[0] = nil
		r.pending = r.pending[1:]
	}
	if err := done.Close(); err != nil {
		return fmt.Errorf("chainreader: close exhausted source: %w", err)
	}
	return nil
}

// Seek always fails.
func (r *Reader) Seek(int64, int) (int64, error) {
	return 0, ErrUnsupported
}

// Size always fails.
func (r *Reader) Size() (int64, error) {
	return 0, ErrUnsupported
}

// Remaining reports how many sources have not been released yet.
func (r *Reader) Remaining() int {
	if r.closed.Load() {
		return 0
	}
	n := len(r.pending)
	if r.active != nil {
		n++
	}
	return n
}

// Close releases the active source and every queued source. The sources are
// closed concurrently; Close returns once all of them are released. Only the
// first call does any work and reports close errors; later calls wait for
// that release and return nil.
func (r *Reader) Close() error {
	sources, ok := r.take()
	if !ok {
		<-r.released
		return nil
	}
	defer close(r.released)
	return closeAll(sources)
}

// CloseAsync is Close without blocking the caller. The returned channel
// receives the result once every source has been released and is then closed.
// Calls after the first receive nil, also only after the release finished.
func (r *Reader) CloseAsync() <-chan error {
	done := make(chan error, 1)
	sources, ok := r.take()
	go func() {
		defer close(done)
		if !ok {
			<-r.released
			done <- nil
			return
		}
		err := closeAll(sources)
		close(r.released)
		done <- err
	}()
	return done
}

// take flips the closed flag and hands the unreleased sources to the caller.
func (r *Reader) take() ([]io.ReadCloser, bool) {
	if !r.closed.CompareAndSwap(false, true) {
		return nil, false
	}
	sources := make([]io.ReadCloser, 0, len(r.pending)+1)
	if r.active != nil {
		sources = append(sources, r.active)
	}
	sources = append(sources, r.pending...)
	r.active = nil
	r.pending = nil
	return sources, true
}

func closeAll(sources []io.ReadCloser) error {
	errs := make([]error, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			errs[i] = src.Close()
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("chainreader: close: %w", err)
	}
	return nil
}
