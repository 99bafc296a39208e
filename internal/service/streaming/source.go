package streaming

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatwidget/internal/domain/services"
)

// StaticSource serves a fixed chunk list
type StaticSource []string

// Chunks implements services.ChunkSource
func (s StaticSource) Chunks(ctx context.Context) ([]string, error) {
	return []string(s), nil
}

// convertingSource normalizes every chunk before it is streamed
type convertingSource struct {
	src       services.ChunkSource
	processor services.ContentProcessor
}

// ConvertingSource wraps src so each chunk is converted to sanitized HTML by
// its detected type. Completion always processes the joined content as HTML,
// so markdown or plain text chunks only render as such when converted first.
func ConvertingSource(src services.ChunkSource, processor services.ContentProcessor) services.ChunkSource {
	return &convertingSource{src: src, processor: processor}
}

// Chunks implements services.ChunkSource
func (s *convertingSource) Chunks(ctx context.Context) ([]string, error) {
	chunks, err := s.src.Chunks(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(chunks))
	for i, chunk := range chunks {
		processed, err := s.processor.ProcessContent(ctx, chunk, nil)
		if err != nil {
			return nil, fmt.Errorf("convert chunk %d: %w", i, err)
		}
		out[i] = processed.SanitizedContent
	}
	return out, nil
}

type retryingSource struct {
	src        services.ChunkSource
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// RetryingSource wraps src so failed fetches are retried with RetryWithBackoff.
func RetryingSource(src services.ChunkSource, maxRetries int, baseDelay time.Duration, logger *slog.Logger) services.ChunkSource {
	return &retryingSource{src: src, maxRetries: maxRetries, baseDelay: baseDelay, logger: logger}
}

// Chunks implements services.ChunkSource
func (s *retryingSource) Chunks(ctx context.Context) ([]string, error) {
	var chunks []string
	err := RetryWithBackoff(ctx, s.maxRetries, s.baseDelay, s.logger, func() error {
		var err error
		chunks, err = s.src.Chunks(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}
