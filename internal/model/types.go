package model

import "time"

// LogEntry is one decoded record from a local log file.
// It is the canonical type handed from the decoder to printers and sinks.
type LogEntry struct {
	Source    string    // "stdout", "stderr"
	Timestamp time.Time // UTC, millisecond precision; zero value when absent
	Line      string
}
