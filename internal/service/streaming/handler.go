// Package streaming reveals chat responses incrementally.
//
// A Handler owns a registry of active streams. Each stream walks its chunks,
// appending a separator between chunks and revealing every chunk one rune (or
// one whole tag) at a time with a fixed delay between steps. Cancelling a
// stream removes it from the registry; the reveal loop notices at its next
// delay and stops without further callbacks.
package streaming

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"chatwidget/internal/config"
	"chatwidget/internal/domain"
	"chatwidget/internal/domain/models"
	"chatwidget/internal/domain/services"
	"chatwidget/internal/service/content"
)

// Callbacks receive the events of one stream.
// Zero or more OnUpdate calls are followed by exactly one OnComplete or OnError,
// or by nothing when the stream is cancelled. Nil callbacks are skipped.
type Callbacks struct {
	OnUpdate   func(models.StreamUpdate)
	OnComplete func(models.StreamResult)
	OnError    func(error)
}

// WordCounter counts visible words of sanitized HTML for history entries
type WordCounter interface {
	CountWords(html string) int
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Handler
type Option func(*Handler)

// WithSleep replaces the delay implementation
func WithSleep(sleep SleepFunc) Option {
	return func(h *Handler) { h.sleep = sleep }
}

// WithIDGenerator replaces the generator used for empty stream ids
func WithIDGenerator(newID func() string) Option {
	return func(h *Handler) { h.newID = newID }
}

// WithWordCounter replaces the history word counter
func WithWordCounter(counter WordCounter) Option {
	return func(h *Handler) { h.words = counter }
}

// streamState is owned by one reveal loop. Fields below mu-guarded are only
// written by that loop while holding Handler.mu, so status reads are consistent.
type streamState struct {
	id        string
	chunks    []string
	startTime time.Time
	ctx       context.Context
	cancel    context.CancelFunc

	// guarded by Handler.mu
	currentChunk int
	currentChar  int
	progress     float64
	content      strings.Builder
}

// Handler orchestrates streams. It is safe for concurrent use.
type Handler struct {
	cfg       config.StreamingConfig
	processor services.ContentProcessor
	words     WordCounter
	logger    *slog.Logger
	sleep     SleepFunc
	newID     func() string

	mu      sync.Mutex
	active  map[string]*streamState
	history []models.HistoryEntry
}

// NewHandler creates a streaming handler.
func NewHandler(processor services.ContentProcessor, cfg config.StreamingConfig, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		cfg:       cfg,
		processor: processor,
		words:     content.NewAnalyzer(),
		logger:    logger,
		sleep:     sleepContext,
		newID:     uuid.NewString,
		active:    make(map[string]*streamState),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// StartStreaming reveals chunks under id and blocks until the stream completes,
// fails or is cancelled. An empty id is replaced by a generated one.
//
// Returns nil on completion and on cancellation. Any failure has already been
// reported to OnError and is also returned. Starting an id that is still active
// fails with ErrStreamActive and leaves the running stream untouched.
func (h *Handler) StartStreaming(ctx context.Context, id string, chunks []string, cb Callbacks) error {
	st, err := h.register(ctx, id, chunks)
	if err != nil {
		h.logger.Warn("stream rejected",
			"id", id,
			"chunks", len(chunks),
			"error", err,
		)
		cb.reportError(h.logger, err)
		return err
	}

	h.logger.Info("stream started",
		"id", st.id,
		"chunks", len(st.chunks),
		"chunk_delay", h.cfg.ChunkDelay,
		"response_delay", h.cfg.ResponseDelay,
	)

	return h.run(st, cb)
}

// StartFromSource fetches chunks from src and streams them under id.
// A source failure is reported like any other streaming failure.
func (h *Handler) StartFromSource(ctx context.Context, id string, src services.ChunkSource, cb Callbacks) error {
	chunks, err := src.Chunks(ctx)
	if err != nil {
		err = fmt.Errorf("%w: stream %s: load content: %w", domain.ErrStreamFailed, id, err)
		h.logger.Error("stream source failed",
			"id", id,
			"error", err,
		)
		cb.reportError(h.logger, err)
		return err
	}
	return h.StartStreaming(ctx, id, chunks, cb)
}

// Stream is the channel form of StartStreaming. The channel carries zero or
// more update events followed by one complete or error event, and is closed
// afterwards. A cancelled stream closes the channel without a terminal event.
//
// The reveal loop blocks while the channel is full, so callers must drain it
// or cancel ctx.
func (h *Handler) Stream(ctx context.Context, id string, chunks []string) <-chan models.StreamEvent {
	events := make(chan models.StreamEvent, 16)

	send := func(ev models.StreamEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(events)
		_ = h.StartStreaming(ctx, id, chunks, Callbacks{
			OnUpdate: func(u models.StreamUpdate) {
				send(models.StreamEvent{Type: models.StreamEventUpdate, Update: &u})
			},
			OnComplete: func(r models.StreamResult) {
				send(models.StreamEvent{Type: models.StreamEventComplete, Result: &r})
			},
			OnError: func(err error) {
				send(models.StreamEvent{Type: models.StreamEventError, Err: err})
			},
		})
	}()

	return events
}

// CancelStream removes id from the registry. Returns whether it was active.
// The reveal loop stops at its next delay; at most one update already in
// flight may still be delivered.
func (h *Handler) CancelStream(id string) bool {
	h.mu.Lock()
	st, ok := h.active[id]
	if ok {
		delete(h.active, id)
	}
	h.mu.Unlock()

	if !ok {
		return false
	}
	st.cancel()
	h.logger.Info("stream cancelled", "id", id)
	return true
}

// CancelAllStreams clears the registry and returns how many streams it held.
func (h *Handler) CancelAllStreams() int {
	h.mu.Lock()
	cancelled := make([]*streamState, 0, len(h.active))
	for id, st := range h.active {
		cancelled = append(cancelled, st)
		delete(h.active, id)
	}
	h.mu.Unlock()

	for _, st := range cancelled {
		st.cancel()
	}
	if len(cancelled) > 0 {
		h.logger.Info("all streams cancelled", "count", len(cancelled))
	}
	return len(cancelled)
}

// GetStreamStatus returns a snapshot of an active stream.
func (h *Handler) GetStreamStatus(id string) (models.StreamStatus, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.active[id]
	if !ok {
		return models.StreamStatus{}, false
	}
	return models.StreamStatus{
		ID:           st.id,
		IsActive:     true,
		Progress:     st.progress,
		CurrentChunk: st.currentChunk,
		TotalChunks:  len(st.chunks),
		Elapsed:      time.Since(st.startTime),
	}, true
}

// ActiveStreams returns the number of registered streams
func (h *Handler) ActiveStreams() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.active)
}

// GetMessageHistory returns a copy of the completed stream history, oldest first.
func (h *Handler) GetMessageHistory() []models.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]models.HistoryEntry, len(h.history))
	copy(out, h.history)
	return out
}

// ClearHistory drops all history entries
func (h *Handler) ClearHistory() {
	h.mu.Lock()
	h.history = nil
	h.mu.Unlock()
}

func (h *Handler) register(ctx context.Context, id string, chunks []string) (*streamState, error) {
	if err := validateChunks(id, chunks); err != nil {
		return nil, err
	}
	if id == "" {
		id = h.newID()
	}

	streamCtx, cancel := context.WithCancel(ctx)
	st := &streamState{
		id:        id,
		chunks:    chunks,
		startTime: time.Now(),
		ctx:       streamCtx,
		cancel:    cancel,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.active[id]; exists {
		cancel()
		return nil, fmt.Errorf("%w: %s", domain.ErrStreamActive, id)
	}
	h.active[id] = st
	return st, nil
}

func validateChunks(id string, chunks []string) error {
	if len(id) > config.MaxMessageIDLength {
		return &domain.ValidationError{Message: fmt.Sprintf("stream id exceeds %d characters", config.MaxMessageIDLength)}
	}
	if len(chunks) == 0 {
		return &domain.ValidationError{Message: "no content to stream"}
	}
	if len(chunks) > config.MaxChunks {
		return &domain.ValidationError{Message: fmt.Sprintf("too many chunks: %d (max %d)", len(chunks), config.MaxChunks)}
	}
	for i, chunk := range chunks {
		if n := utf8.RuneCountInString(chunk); n > config.MaxChunkLength {
			return &domain.ValidationError{Message: fmt.Sprintf("chunk %d is %d characters (max %d)", i, n, config.MaxChunkLength)}
		}
	}
	return nil
}

// run drives st to a terminal state
func (h *Handler) run(st *streamState, cb Callbacks) (err error) {
	defer st.cancel()
	defer func() {
		if r := recover(); r != nil {
			err = h.fail(st, cb, fmt.Errorf("panic during reveal: %v", r))
		}
	}()

	revealed, err := h.reveal(st, cb)
	if err != nil {
		return h.fail(st, cb, err)
	}
	if !revealed {
		h.unregister(st)
		h.logger.Debug("stream stopped after cancellation",
			"id", st.id,
			"chunk", st.currentChunk,
		)
		return nil
	}
	return h.complete(st, cb)
}

// reveal walks all chunks. Returns false when the stream was cancelled.
func (h *Handler) reveal(st *streamState, cb Callbacks) (bool, error) {
	total := len(st.chunks)

	for i, chunk := range st.chunks {
		if i > 0 {
			update, ok := h.advance(st, i, 0, 0, models.ChunkSeparator, float64(i)/float64(total))
			if !ok {
				return false, nil
			}
			cb.update(update)
			if !h.wait(st, h.cfg.ResponseDelay) {
				return false, nil
			}
		}

		tagAware := h.cfg.PreserveHTMLStructure && content.HasTags(chunk)
		steps := revealSteps(chunk, tagAware)
		length := utf8.RuneCountInString(chunk)

		h.logger.Debug("revealing chunk",
			"id", st.id,
			"chunk", i,
			"length", length,
			"steps", len(steps),
			"tag_aware", tagAware,
		)

		for _, step := range steps {
			progress := (float64(i) + float64(step.end)/float64(length)) / float64(total)
			update, ok := h.advance(st, i, step.end, length, step.text, progress)
			if !ok {
				return false, nil
			}
			cb.update(update)
			if !h.wait(st, h.cfg.ChunkDelay) {
				return false, nil
			}
		}
	}

	return true, nil
}

// advance appends text if st is still registered and returns the update to emit.
func (h *Handler) advance(st *streamState, chunk, char, length int, text string, progress float64) (models.StreamUpdate, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active[st.id] != st {
		return models.StreamUpdate{}, false
	}

	st.content.WriteString(text)
	st.currentChunk = chunk
	st.currentChar = char
	if progress > st.progress {
		st.progress = progress
	}

	return models.StreamUpdate{
		ID:          st.id,
		Content:     st.content.String(),
		IsStreaming: true,
		Progress:    st.progress,
		ChunkIndex:  chunk,
		TotalChunks: len(st.chunks),
		CharIndex:   char,
		ChunkLength: length,
	}, true
}

// wait sleeps for d and reports whether st is still registered afterwards.
func (h *Handler) wait(st *streamState, d time.Duration) bool {
	if err := h.sleep(st.ctx, d); err != nil {
		return false
	}
	return h.isActive(st)
}

func (h *Handler) isActive(st *streamState) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active[st.id] == st
}

func (h *Handler) unregister(st *streamState) {
	h.mu.Lock()
	if h.active[st.id] == st {
		delete(h.active, st.id)
	}
	h.mu.Unlock()
}

// complete processes the accumulated content and reports the result.
// The registry check and removal happen under one lock so a concurrent
// CancelStream either wins (no OnComplete) or returns false.
func (h *Handler) complete(st *streamState, cb Callbacks) error {
	h.mu.Lock()
	accumulated := st.content.String()
	h.mu.Unlock()

	// Accumulated content carries separator tags, so it is always treated as HTML
	htmlType := models.ContentTypeHTML
	processed, err := h.processor.ProcessContent(st.ctx, accumulated, &htmlType)
	if err != nil {
		return h.fail(st, cb, err)
	}

	elapsed := time.Since(st.startTime)
	entry := models.HistoryEntry{
		ID:              st.id,
		Content:         processed.SanitizedContent,
		OriginalContent: accumulated,
		Timestamp:       time.Now(),
		ProcessingTime:  elapsed,
		WordCount:       h.words.CountWords(processed.SanitizedContent),
	}

	h.mu.Lock()
	if h.active[st.id] != st {
		h.mu.Unlock()
		h.logger.Debug("stream cancelled before completion", "id", st.id)
		return nil
	}
	h.history = append(h.history, entry)
	delete(h.active, st.id)
	h.mu.Unlock()

	h.logger.Info("stream completed",
		"id", st.id,
		"elapsed", elapsed,
		"type", processed.DetectedType,
		"is_safe", processed.IsSafe,
		"words", entry.WordCount,
	)

	cb.complete(h.logger, models.StreamResult{
		ID: st.id,
		ProcessedContent: models.ProcessedContent{
			SanitizedContent: processed.SanitizedContent,
			OriginalContent:  accumulated,
			DetectedType:     processed.DetectedType,
			IsHTML:           processed.IsHTML,
			IsSafe:           processed.IsSafe,
		},
		IsStreaming: false,
	})
	return nil
}

// fail tears st down and reports cause once
func (h *Handler) fail(st *streamState, cb Callbacks, cause error) error {
	h.unregister(st)

	err := fmt.Errorf("%w: stream %s: %w", domain.ErrStreamFailed, st.id, cause)
	h.logger.Error("stream failed",
		"id", st.id,
		"chunk", st.currentChunk,
		"error", cause,
	)
	cb.reportError(h.logger, err)
	return err
}

func (cb Callbacks) update(u models.StreamUpdate) {
	if cb.OnUpdate != nil {
		cb.OnUpdate(u)
	}
}

// complete and reportError run terminal callbacks. A panic there is logged
// and swallowed: the stream is already terminal and no other callback may follow.
func (cb Callbacks) complete(logger *slog.Logger, r models.StreamResult) {
	if cb.OnComplete == nil {
		return
	}
	defer recoverCallback(logger, "OnComplete", r.ID)
	cb.OnComplete(r)
}

func (cb Callbacks) reportError(logger *slog.Logger, err error) {
	if cb.OnError == nil {
		return
	}
	defer recoverCallback(logger, "OnError", "")
	cb.OnError(err)
}

func recoverCallback(logger *slog.Logger, name, id string) {
	if r := recover(); r != nil {
		logger.Error("stream callback panicked",
			"callback", name,
			"id", id,
			"error", r,
		)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
