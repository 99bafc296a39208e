package models

import "time"

// ChunkSeparator is appended between consecutive chunks of one message
const ChunkSeparator = "<br><br>"

// StreamUpdate is a snapshot emitted on every reveal step
type StreamUpdate struct {
	ID          string  `json:"id"`
	Content     string  `json:"content"`
	IsStreaming bool    `json:"isStreaming"`
	Progress    float64 `json:"progress"`
	ChunkIndex  int     `json:"chunkIndex"`
	TotalChunks int     `json:"totalChunks"`
	// CharIndex and ChunkLength are rune positions within the current chunk.
	// Both are zero for separator updates.
	CharIndex   int `json:"charIndex"`
	ChunkLength int `json:"chunkLength"`
}

// StreamResult is emitted once when a stream completes
type StreamResult struct {
	ID string `json:"id"`
	ProcessedContent
	IsStreaming bool `json:"isStreaming"`
}

// StreamStatus is a point-in-time view of an active stream
type StreamStatus struct {
	ID           string        `json:"id"`
	IsActive     bool          `json:"isActive"`
	Progress     float64       `json:"progress"`
	CurrentChunk int           `json:"currentChunk"`
	TotalChunks  int           `json:"totalChunks"`
	Elapsed      time.Duration `json:"elapsed"`
}

// HistoryEntry records one completed stream
type HistoryEntry struct {
	ID              string        `json:"id"`
	Content         string        `json:"content"`
	OriginalContent string        `json:"originalContent"`
	Timestamp       time.Time     `json:"timestamp"`
	ProcessingTime  time.Duration `json:"processingTime"`
	WordCount       int           `json:"wordCount"`
}

// StreamEventType discriminates StreamEvent variants
type StreamEventType string

const (
	StreamEventUpdate   StreamEventType = "update"
	StreamEventComplete StreamEventType = "complete"
	StreamEventError    StreamEventType = "error"
)

// StreamEvent is one item of the channel form of a stream.
// Exactly one of Update, Result or Err is set, matching Type.
type StreamEvent struct {
	Type   StreamEventType
	Update *StreamUpdate
	Result *StreamResult
	Err    error
}
