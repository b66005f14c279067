package logframe

import (
	"fmt"
	"time"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tinytelemetry/locallog/internal/model"
)

// Field numbers of the on-disk log entry message:
//
//	message LogEntry {
//	  string source = 1;
//	  int64 time_nano = 2;
//	  bytes line = 3;
//	  ...
//	}
const (
	fieldSource   protowire.Number = 1
	fieldTimeNano protowire.Number = 2
	fieldLine     protowire.Number = 3
)

// DecodePayload decodes one frame payload into a LogEntry. Unknown fields are
// skipped by their wire type; missing fields keep their zero value.
func DecodePayload(b []byte) (model.LogEntry, error) {
	var entry model.LogEntry
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return model.LogEntry{}, fmt.Errorf("%w: tag: %w", ErrMalformedField, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldSource && typ == protowire.BytesType:
			entry.Source, n = consumeString(b)
		case num == fieldTimeNano && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			if n >= 0 {
				entry.Timestamp = nanosToTime(v)
			}
		case num == fieldLine && typ == protowire.BytesType:
			entry.Line, n = consumeString(b)
		case typ == protowire.StartGroupType || typ == protowire.EndGroupType:
			return model.LogEntry{}, fmt.Errorf("%w: field %d has group wire type %d", ErrUnsupportedWireType, num, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}

		switch {
		case n == errInvalidUTF8:
			return model.LogEntry{}, fmt.Errorf("%w: field %d", ErrInvalidUTF8, num)
		case n < 0:
			return model.LogEntry{}, fmt.Errorf("%w: field %d: %w", ErrMalformedField, num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return entry, nil
}

// errInvalidUTF8 sits outside protowire's negative error codes (-1 to -6).
const errInvalidUTF8 = -100

func consumeString(b []byte) (string, int) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return "", n
	}
	if !utf8.Valid(v) {
		return "", errInvalidUTF8
	}
	return string(v), n
}

// nanosToTime converts nanoseconds since the Unix epoch, truncated to milliseconds.
func nanosToTime(nanos uint64) time.Time {
	return time.UnixMilli(int64(nanos / uint64(time.Millisecond))).UTC()
}
