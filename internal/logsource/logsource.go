package logsource

import "github.com/tinytelemetry/locallog/internal/model"

// LogSource is a unified interface for decoded log entry producers.
type LogSource interface {
	Entries() <-chan model.LogEntry // closed when the source is done
	Err() error                     // valid once Entries is closed
	Stop()                          // graceful shutdown
	Name() string
}
