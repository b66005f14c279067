package logframe

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncatedFrame means the stream ended inside a frame.
	ErrTruncatedFrame = errors.New("logframe: truncated frame")

	// ErrInvalidLength means a length prefix has its high bit set.
	ErrInvalidLength = errors.New("logframe: invalid frame length")

	// ErrFrameTooLarge means a length prefix exceeds the configured maximum.
	ErrFrameTooLarge = errors.New("logframe: frame exceeds maximum size")

	// ErrTrailerMismatch means the trailing length differs from the leading one.
	ErrTrailerMismatch = errors.New("logframe: frame trailer does not match length")

	// ErrMalformedField means a tag, varint or length inside a payload could
	// not be parsed, usually because the payload ends mid-field.
	ErrMalformedField = errors.New("logframe: malformed field")

	// ErrInvalidUTF8 means a string field is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("logframe: invalid UTF-8 in string field")

	// ErrUnsupportedWireType means a payload uses the group wire types.
	ErrUnsupportedWireType = errors.New("logframe: unsupported wire type")
)

// FrameError reports a decoding failure together with the stream offset of
// the frame it occurred in.
type FrameError struct {
	Offset int64
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame at offset %d: %v", e.Offset, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }
