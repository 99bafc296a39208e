package config

const (
	// MaxChunks is the maximum number of chunks in one streamed message.
	// Chat replies are a handful of paragraphs; more indicates a caller bug.
	MaxChunks = 64

	// MaxChunkLength is the maximum length of a single chunk in runes.
	// At the default 30ms per character this is already over eight minutes
	// of reveal time.
	MaxChunkLength = 16384

	// MaxMessageIDLength is the maximum length for caller-supplied stream ids.
	MaxMessageIDLength = 255
)
