package streaming_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwidget/internal/config"
	"chatwidget/internal/domain"
	"chatwidget/internal/domain/models"
	"chatwidget/internal/service/content"
	"chatwidget/internal/service/content/markdown"
	"chatwidget/internal/service/content/sanitizer"
	"chatwidget/internal/service/streaming"
)

// recorder collects callback invocations
type recorder struct {
	mu        sync.Mutex
	updates   []models.StreamUpdate
	completes []models.StreamResult
	errs      []error
}

func (r *recorder) callbacks() streaming.Callbacks {
	return streaming.Callbacks{
		OnUpdate: func(u models.StreamUpdate) {
			r.mu.Lock()
			r.updates = append(r.updates, u)
			r.mu.Unlock()
		},
		OnComplete: func(res models.StreamResult) {
			r.mu.Lock()
			r.completes = append(r.completes, res)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) counts() (updates, completes, errs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates), len(r.completes), len(r.errs)
}

func newTestProcessor() *content.Processor {
	return content.NewProcessor(sanitizer.NewHTMLSanitizer(nil), markdown.NewConverter(), nil)
}

func instantConfig() config.StreamingConfig {
	cfg := config.DefaultStreamingConfig()
	cfg.ChunkDelay = 0
	cfg.ResponseDelay = 0
	return cfg
}

func newInstantHandler(opts ...streaming.Option) *streaming.Handler {
	return streaming.NewHandler(newTestProcessor(), instantConfig(), nil, opts...)
}

// blockingSleep never lets the reveal loop proceed until the stream is cancelled
func blockingSleep(ctx context.Context, d time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

// ============================================================================
// Completion
// ============================================================================

func TestStartStreaming_CompletesWithJoinedContent(t *testing.T) {
	h := newInstantHandler()
	rec := &recorder{}
	chunks := []string{"Hello", "<strong>World</strong>"}

	err := h.StartStreaming(context.Background(), "msg-1", chunks, rec.callbacks())
	require.NoError(t, err)

	updates, completes, errs := rec.counts()
	assert.Equal(t, 13, updates) // 5 runes + separator + 7 tag-aware steps
	require.Equal(t, 1, completes)
	assert.Zero(t, errs)

	joined := streaming.JoinChunks(chunks, models.ChunkSeparator)
	html := models.ContentTypeHTML
	expected, err := newTestProcessor().ProcessContent(context.Background(), joined, &html)
	require.NoError(t, err)

	res := rec.completes[0]
	assert.Equal(t, "msg-1", res.ID)
	assert.False(t, res.IsStreaming)
	assert.Equal(t, joined, res.OriginalContent)
	assert.Equal(t, expected.SanitizedContent, res.SanitizedContent)
	assert.Equal(t, models.ContentTypeHTML, res.DetectedType)
	assert.True(t, res.IsHTML)
	assert.True(t, res.IsSafe)

	last := rec.updates[len(rec.updates)-1]
	assert.Equal(t, joined, last.Content)
	assert.Equal(t, 1.0, last.Progress)
	assert.Zero(t, h.ActiveStreams())
}

func TestStartStreaming_UpdateSequence(t *testing.T) {
	h := newInstantHandler()
	rec := &recorder{}
	chunks := []string{"<p>Hi <em>there</em> &amp; you</p>", "ok", `<a href="https://example.com" title="more">link</a>`}

	require.NoError(t, h.StartStreaming(context.Background(), "seq", chunks, rec.callbacks()))

	prev := 0.0
	prevContent := ""
	for i, u := range rec.updates {
		assert.True(t, u.IsStreaming)
		assert.Equal(t, "seq", u.ID)
		assert.Equal(t, len(chunks), u.TotalChunks)
		assert.GreaterOrEqual(t, u.Progress, prev, "update %d", i)
		assert.LessOrEqual(t, u.Progress, 1.0)
		assert.True(t, strings.HasPrefix(u.Content, prevContent), "content only grows")

		// tag-aware reveal never exposes half a tag or half an entity
		assert.Equal(t, strings.Count(u.Content, "<"), strings.Count(u.Content, ">"), "update %d: %s", i, u.Content)
		assert.False(t, strings.HasSuffix(u.Content, "&") || strings.HasSuffix(u.Content, "&amp"), "update %d", i)

		prev = u.Progress
		prevContent = u.Content
	}
	assert.Equal(t, 1.0, prev)
}

func TestStartStreaming_SeparatorUpdates(t *testing.T) {
	h := newInstantHandler()
	rec := &recorder{}

	require.NoError(t, h.StartStreaming(context.Background(), "sep", []string{"ab", "cd"}, rec.callbacks()))

	require.Len(t, rec.updates, 5)
	sep := rec.updates[2]
	assert.Equal(t, "ab"+models.ChunkSeparator, sep.Content)
	assert.Equal(t, 1, sep.ChunkIndex)
	assert.Zero(t, sep.CharIndex)
	assert.Zero(t, sep.ChunkLength)
	assert.Equal(t, 0.5, sep.Progress)

	first := rec.updates[0]
	assert.Equal(t, 0, first.ChunkIndex)
	assert.Equal(t, 1, first.CharIndex)
	assert.Equal(t, 2, first.ChunkLength)
	assert.Equal(t, 0.25, first.Progress)
}

func TestStartStreaming_WithoutTagAwareness(t *testing.T) {
	cfg := instantConfig()
	cfg.PreserveHTMLStructure = false
	h := streaming.NewHandler(newTestProcessor(), cfg, nil)
	rec := &recorder{}

	require.NoError(t, h.StartStreaming(context.Background(), "raw", []string{"<b>x</b>"}, rec.callbacks()))

	require.Len(t, rec.updates, 8)
	assert.Equal(t, "<", rec.updates[0].Content)
	assert.Equal(t, "<b>x</b>", rec.updates[7].Content)
	require.Len(t, rec.completes, 1)
	assert.Equal(t, "<b>x</b>", rec.completes[0].SanitizedContent)
}

func TestStartStreaming_SanitizesFinalContent(t *testing.T) {
	h := newInstantHandler()
	rec := &recorder{}

	require.NoError(t, h.StartStreaming(context.Background(), "xss", []string{`<p onclick="x()">hi</p>`, "<script>alert(1)</script>"}, rec.callbacks()))

	require.Len(t, rec.completes, 1)
	res := rec.completes[0]
	assert.Equal(t, "<p>hi</p><br><br>", res.SanitizedContent)
	assert.NotContains(t, res.SanitizedContent, "script")
	assert.True(t, res.IsSafe)
}

func TestStartStreaming_GeneratesID(t *testing.T) {
	h := newInstantHandler(streaming.WithIDGenerator(func() string { return "generated-1" }))
	rec := &recorder{}

	require.NoError(t, h.StartStreaming(context.Background(), "", []string{"x"}, rec.callbacks()))

	require.Len(t, rec.completes, 1)
	assert.Equal(t, "generated-1", rec.completes[0].ID)
	assert.Equal(t, "generated-1", rec.updates[0].ID)
}

func TestStartStreaming_NilCallbacks(t *testing.T) {
	h := newInstantHandler()
	assert.NoError(t, h.StartStreaming(context.Background(), "quiet", []string{"a", "b"}, streaming.Callbacks{}))
	assert.Len(t, h.GetMessageHistory(), 1)
}

// ============================================================================
// Validation
// ============================================================================

func TestStartStreaming_RejectsInvalidInput(t *testing.T) {
	tooMany := make([]string, config.MaxChunks+1)
	for i := range tooMany {
		tooMany[i] = "x"
	}

	tests := []struct {
		name   string
		id     string
		chunks []string
	}{
		{"no chunks", "a", nil},
		{"too many chunks", "b", tooMany},
		{"chunk too long", "c", []string{strings.Repeat("x", config.MaxChunkLength+1)}},
		{"id too long", strings.Repeat("i", config.MaxMessageIDLength+1), []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newInstantHandler()
			rec := &recorder{}

			err := h.StartStreaming(context.Background(), tt.id, tt.chunks, rec.callbacks())
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))

			updates, completes, errs := rec.counts()
			assert.Zero(t, updates)
			assert.Zero(t, completes)
			assert.Equal(t, 1, errs)
			assert.Zero(t, h.ActiveStreams())
		})
	}
}

func TestStartStreaming_DuplicateIDRejected(t *testing.T) {
	h := newInstantHandler(streaming.WithSleep(blockingSleep))
	first := &recorder{}

	done := make(chan error, 1)
	go func() {
		done <- h.StartStreaming(context.Background(), "dup", []string{"first"}, first.callbacks())
	}()
	require.Eventually(t, func() bool { return h.ActiveStreams() == 1 }, time.Second, time.Millisecond)

	second := &recorder{}
	err := h.StartStreaming(context.Background(), "dup", []string{"second"}, second.callbacks())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStreamActive))
	_, _, errs := second.counts()
	assert.Equal(t, 1, errs)

	status, ok := h.GetStreamStatus("dup")
	require.True(t, ok, "original stream is untouched")
	assert.True(t, status.IsActive)

	assert.True(t, h.CancelStream("dup"))
	require.NoError(t, <-done)
	_, completes, firstErrs := first.counts()
	assert.Zero(t, completes)
	assert.Zero(t, firstErrs)
}

// ============================================================================
// Cancellation
// ============================================================================

func TestCancelStream_StopsWithoutCallbacks(t *testing.T) {
	h := newInstantHandler()
	rec := &recorder{}
	var cancelled bool

	cb := rec.callbacks()
	onUpdate := cb.OnUpdate
	cb.OnUpdate = func(u models.StreamUpdate) {
		onUpdate(u)
		if !cancelled {
			cancelled = h.CancelStream(u.ID)
		}
	}

	err := h.StartStreaming(context.Background(), "cancel-me", []string{"hello world", "more"}, cb)
	require.NoError(t, err)
	assert.True(t, cancelled)

	updates, completes, errs := rec.counts()
	assert.Equal(t, 1, updates)
	assert.Zero(t, completes)
	assert.Zero(t, errs)
	assert.Zero(t, h.ActiveStreams())
	assert.Empty(t, h.GetMessageHistory())

	_, ok := h.GetStreamStatus("cancel-me")
	assert.False(t, ok)
	assert.False(t, h.CancelStream("cancel-me"), "second cancel is a no-op")
}

func TestCancelStream_UnknownID(t *testing.T) {
	assert.False(t, newInstantHandler().CancelStream("nope"))
}

func TestCancelAllStreams(t *testing.T) {
	h := newInstantHandler(streaming.WithSleep(blockingSleep))
	rec := &recorder{}

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, h.StartStreaming(context.Background(), id, []string{"text"}, rec.callbacks()))
		}(id)
	}
	require.Eventually(t, func() bool { return h.ActiveStreams() == 3 }, time.Second, time.Millisecond)

	assert.Equal(t, 3, h.CancelAllStreams())
	wg.Wait()

	_, completes, errs := rec.counts()
	assert.Zero(t, completes)
	assert.Zero(t, errs)
	assert.Zero(t, h.ActiveStreams())
	assert.Zero(t, h.CancelAllStreams())
}

func TestStartStreaming_ContextCancelIsSilent(t *testing.T) {
	h := newInstantHandler(streaming.WithSleep(blockingSleep))
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- h.StartStreaming(ctx, "ctx", []string{"text"}, rec.callbacks())
	}()
	require.Eventually(t, func() bool { return h.ActiveStreams() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	_, completes, errs := rec.counts()
	assert.Zero(t, completes)
	assert.Zero(t, errs)
	assert.Zero(t, h.ActiveStreams())
}

func TestGetStreamStatus_DuringStream(t *testing.T) {
	h := newInstantHandler(streaming.WithSleep(blockingSleep))
	updated := make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		done <- h.StartStreaming(context.Background(), "status", []string{"abcd", "efgh"}, streaming.Callbacks{
			OnUpdate: func(models.StreamUpdate) {
				select {
				case updated <- struct{}{}:
				default:
				}
			},
		})
	}()
	<-updated

	status, ok := h.GetStreamStatus("status")
	require.True(t, ok)
	assert.Equal(t, "status", status.ID)
	assert.True(t, status.IsActive)
	assert.Equal(t, 0, status.CurrentChunk)
	assert.Equal(t, 2, status.TotalChunks)
	assert.Equal(t, 0.125, status.Progress)
	assert.GreaterOrEqual(t, status.Elapsed, time.Duration(0))

	h.CancelStream("status")
	require.NoError(t, <-done)
}

// ============================================================================
// Failures
// ============================================================================

type sourceFunc func(ctx context.Context) ([]string, error)

func (f sourceFunc) Chunks(ctx context.Context) ([]string, error) { return f(ctx) }

func TestStartFromSource(t *testing.T) {
	h := newInstantHandler()
	rec := &recorder{}

	err := h.StartFromSource(context.Background(), "src", streaming.StaticSource{"a", "b"}, rec.callbacks())
	require.NoError(t, err)
	require.Len(t, rec.completes, 1)
	assert.Equal(t, "a<br><br>b", rec.completes[0].SanitizedContent)
}

func TestStartFromSource_SourceFailure(t *testing.T) {
	h := newInstantHandler()
	rec := &recorder{}
	miss := &domain.NotFoundError{Message: "response preset \"x\" not found"}

	err := h.StartFromSource(context.Background(), "src", sourceFunc(func(context.Context) ([]string, error) {
		return nil, miss
	}), rec.callbacks())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStreamFailed))
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	updates, completes, errs := rec.counts()
	assert.Zero(t, updates)
	assert.Zero(t, completes)
	require.Equal(t, 1, errs)
	assert.Equal(t, err, rec.errs[0])
}

func TestStartStreaming_PanicInUpdateFailsStream(t *testing.T) {
	h := newInstantHandler()
	rec := &recorder{}
	cb := rec.callbacks()
	cb.OnUpdate = func(models.StreamUpdate) { panic("render crashed") }

	err := h.StartStreaming(context.Background(), "panic", []string{"abc"}, cb)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStreamFailed))
	assert.Contains(t, err.Error(), "render crashed")
	_, completes, errs := rec.counts()
	assert.Zero(t, completes)
	assert.Equal(t, 1, errs)
	assert.Zero(t, h.ActiveStreams())
}

func TestStartStreaming_PanicInTerminalCallbackIsContained(t *testing.T) {
	h := newInstantHandler()
	cb := streaming.Callbacks{
		OnComplete: func(models.StreamResult) { panic("listener bug") },
	}

	assert.NotPanics(t, func() {
		assert.NoError(t, h.StartStreaming(context.Background(), "terminal", []string{"x"}, cb))
	})
	assert.Len(t, h.GetMessageHistory(), 1)
}

type failingProcessor struct{ err error }

func (p failingProcessor) DetectContentType(string) models.ContentType { return models.ContentTypeHTML }
func (p failingProcessor) ProcessContent(context.Context, string, *models.ContentType) (models.ProcessedContent, error) {
	return models.ProcessedContent{}, p.err
}

func TestStartStreaming_ProcessorFailure(t *testing.T) {
	boom := errors.New("processor down")
	h := streaming.NewHandler(failingProcessor{err: boom}, instantConfig(), nil)
	rec := &recorder{}

	err := h.StartStreaming(context.Background(), "proc", []string{"abc"}, rec.callbacks())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStreamFailed)
	assert.ErrorIs(t, err, boom)
	updates, completes, errs := rec.counts()
	assert.Equal(t, 3, updates)
	assert.Zero(t, completes)
	assert.Equal(t, 1, errs)
	assert.Empty(t, h.GetMessageHistory())
}

// ============================================================================
// History
// ============================================================================

func TestMessageHistory(t *testing.T) {
	h := newInstantHandler()
	ctx := context.Background()

	require.NoError(t, h.StartStreaming(ctx, "one", []string{"<p>Hello there</p>"}, streaming.Callbacks{}))
	require.NoError(t, h.StartStreaming(ctx, "two", []string{"<p>a b</p>", "<p>c</p>"}, streaming.Callbacks{}))

	history := h.GetMessageHistory()
	require.Len(t, history, 2)

	assert.Equal(t, "one", history[0].ID)
	assert.Equal(t, "<p>Hello there</p>", history[0].Content)
	assert.Equal(t, 2, history[0].WordCount)
	assert.False(t, history[0].Timestamp.IsZero())

	assert.Equal(t, "two", history[1].ID)
	assert.Equal(t, "<p>a b</p><br><br><p>c</p>", history[1].OriginalContent)
	assert.Equal(t, 3, history[1].WordCount)

	history[0].ID = "mutated"
	assert.Equal(t, "one", h.GetMessageHistory()[0].ID, "history is returned as a copy")

	h.ClearHistory()
	assert.Empty(t, h.GetMessageHistory())
}

// ============================================================================
// Channel form
// ============================================================================

func TestStream_Events(t *testing.T) {
	h := newInstantHandler()

	var events []models.StreamEvent
	for ev := range h.Stream(context.Background(), "chan", []string{"ab", "c"}) {
		events = append(events, ev)
	}

	require.Len(t, events, 5)
	for _, ev := range events[:4] {
		assert.Equal(t, models.StreamEventUpdate, ev.Type)
		require.NotNil(t, ev.Update)
	}
	last := events[4]
	assert.Equal(t, models.StreamEventComplete, last.Type)
	require.NotNil(t, last.Result)
	assert.Equal(t, "ab<br><br>c", last.Result.SanitizedContent)
}

func TestStream_ErrorEvent(t *testing.T) {
	h := newInstantHandler()

	var events []models.StreamEvent
	for ev := range h.Stream(context.Background(), "chan", nil) {
		events = append(events, ev)
	}

	require.Len(t, events, 1)
	assert.Equal(t, models.StreamEventError, events[0].Type)
	assert.ErrorIs(t, events[0].Err, domain.ErrValidation)
}

// ============================================================================
// Sources
// ============================================================================

func TestConvertingSource(t *testing.T) {
	src := streaming.ConvertingSource(streaming.StaticSource{"**bold**", "plain words", "<p>html</p>"}, newTestProcessor())

	chunks, err := src.Chunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"<strong>bold</strong>", "<p>plain words</p>", "<p>html</p>"}, chunks)
}

func TestRetryingSource(t *testing.T) {
	calls := 0
	src := streaming.RetryingSource(sourceFunc(func(context.Context) ([]string, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("flaky")
		}
		return []string{"ok"}, nil
	}), 3, time.Millisecond, nil)

	chunks, err := src.Chunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, chunks)
	assert.Equal(t, 2, calls)
}
