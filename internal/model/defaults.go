package model

// Shared defaults used by the decoder, the sources and the CLI.
const (
	DefaultReadSize     = 8192
	DefaultMaxFrameSize = 16 << 20
	DefaultBatchSize    = 2000
)
