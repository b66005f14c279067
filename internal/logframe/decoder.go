// Package logframe decodes local log files: a stream of frames, each holding
// one protobuf-encoded log entry between two big-endian length fields.
//
//	[len:4][entry:len][len:4][len:4][entry:len][len:4]...
package logframe

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"math"

	"github.com/tinytelemetry/locallog/internal/chainreader"
	"github.com/tinytelemetry/locallog/internal/model"
)

const (
	lengthSize = 4

	// frameOverhead is the leading and trailing length fields.
	frameOverhead = 2 * lengthSize

	maxConsecutiveEmptyReads = 100
)

// Option configures a Decoder.
type Option func(*Decoder)

// WithReadSize sets how many bytes are requested from the source per read.
func WithReadSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.readSize = n
		}
	}
}

// WithMaxFrameSize caps the declared payload length. Zero disables the cap.
func WithMaxFrameSize(n int) Option {
	return func(d *Decoder) {
		if n >= 0 {
			d.maxFrameSize = n
		}
	}
}

// WithTrailerCheck controls whether the trailing length of every frame must
// equal its leading length.
func WithTrailerCheck(enabled bool) Option {
	return func(d *Decoder) {
		d.checkTrailer = enabled
	}
}

// Decoder pulls bytes from a reader and extracts log entries one frame at a
// time. A Decoder is not safe for concurrent use.
type Decoder struct {
	r   io.Reader
	buf bytes.Buffer

	// offset is the stream position of the first unread byte in buf.
	offset int64
	eof    bool
	err    error

	readSize     int
	maxFrameSize int
	checkTrailer bool
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{
		r:            r,
		readSize:     model.DefaultReadSize,
		maxFrameSize: model.DefaultMaxFrameSize,
		checkTrailer: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Offset returns the number of stream bytes consumed by decoded frames.
func (d *Decoder) Offset() int64 {
	return d.offset
}

// Next returns the next entry. It returns io.EOF once the stream ends on a
// frame boundary. Any other error is sticky: later calls return it again.
func (d *Decoder) Next(ctx context.Context) (model.LogEntry, error) {
	if d.err != nil {
		return model.LogEntry{}, d.err
	}
	entry, err := d.next(ctx)
	if err != nil {
		d.err = err
	}
	return entry, err
}

func (d *Decoder) next(ctx context.Context) (model.LogEntry, error) {
	for {
		if err := ctx.Err(); err != nil {
			return model.LogEntry{}, err
		}

		entry, need, err := d.extract()
		if err != nil {
			return model.LogEntry{}, &FrameError{Offset: d.offset, Err: err}
		}
		if need == 0 {
			return entry, nil
		}

		if d.eof {
			if d.buf.Len() == 0 {
				return model.LogEntry{}, io.EOF
			}
			return model.LogEntry{}, &FrameError{
				Offset: d.offset,
				Err:    fmt.Errorf("%w: %d of %d bytes present", ErrTruncatedFrame, d.buf.Len(), need),
			}
		}
		if err := d.fill(need - d.buf.Len()); err != nil {
			return model.LogEntry{}, err
		}
	}
}

// extract decodes one frame from the buffered bytes. When the buffer holds
// less than a full frame nothing is consumed and need reports the size the
// buffer must reach.
func (d *Decoder) extract() (entry model.LogEntry, need int, err error) {
	b := d.buf.Bytes()
	if len(b) < lengthSize {
		return entry, lengthSize, nil
	}

	length := binary.BigEndian.Uint32(b)
	if length > math.MaxInt32 {
		return entry, 0, fmt.Errorf("%w: %#x", ErrInvalidLength, length)
	}
	if d.maxFrameSize > 0 && int(length) > d.maxFrameSize {
		return entry, 0, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, d.maxFrameSize)
	}

	total := int(length) + frameOverhead
	if len(b) < total {
		return entry, total, nil
	}

	if d.checkTrailer {
		if trailer := binary.BigEndian.Uint32(b[lengthSize+int(length):]); trailer != length {
			return entry, 0, fmt.Errorf("%w: leading %d, trailing %d", ErrTrailerMismatch, length, trailer)
		}
	}

	entry, err = DecodePayload(b[lengthSize : lengthSize+int(length)])
	if err != nil {
		return model.LogEntry{}, 0, err
	}
	d.buf.Next(total)
	d.offset += int64(total)
	return entry, 0, nil
}

// fill appends the result of one read to the buffer. missing is how many
// bytes the pending frame still lacks; the read asks for at least that much.
func (d *Decoder) fill(missing int) error {
	size := max(d.readSize, missing)
	d.buf.Grow(size)
	for range maxConsecutiveEmptyReads {
		p := d.buf.AvailableBuffer()[:size]
		n, err := d.r.Read(p)
		d.buf.Write(p[:n])
		if err == io.EOF {
			d.eof = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("logframe: read: %w", err)
		}
		if n > 0 {
			return nil
		}
	}
	return fmt.Errorf("logframe: read: %w", io.ErrNoProgress)
}

// Entries returns the remaining entries as a sequence. The sequence ends
// quietly at the end of the stream; on any other error it yields the error
// once and stops. Cancelling ctx ends it with ctx's error.
func (d *Decoder) Entries(ctx context.Context) iter.Seq2[model.LogEntry, error] {
	return func(yield func(model.LogEntry, error) bool) {
		for {
			entry, err := d.Next(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(model.LogEntry{}, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

// Decode reads sources in order as one stream and yields the entries it
// contains. The sources are released when the sequence finishes, fails, is
// cancelled, or the consumer stops early. A sequence that is never iterated
// leaves the sources open.
func Decode(ctx context.Context, sources []io.ReadCloser, opts ...Option) iter.Seq2[model.LogEntry, error] {
	return func(yield func(model.LogEntry, error) bool) {
		chain := chainreader.New(sources...)
		completed := false
		defer func() {
			err := chain.Close()
			if err == nil {
				return
			}
			if completed {
				yield(model.LogEntry{}, err)
				return
			}
			log.Printf("logframe: releasing sources: %v", err)
		}()

		for entry, err := range NewDecoder(chain, opts...).Entries(ctx) {
			if !yield(entry, err) || err != nil {
				return
			}
		}
		completed = true
	}
}

// IsCorrupt reports whether err describes malformed input rather than an I/O
// failure or cancellation.
func IsCorrupt(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe)
}
