package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chatwidget/internal/domain"
	"chatwidget/internal/domain/models"
	"chatwidget/internal/domain/services"
	"chatwidget/internal/render"
	"chatwidget/internal/service/streaming"
)

type streamOptions struct {
	preset        string
	id            string
	chunkDelay    time.Duration
	responseDelay time.Duration
	latency       time.Duration
	raw           bool
	noPreserve    bool
	convert       bool
	final         bool
}

func newStreamCmd(a *app) *cobra.Command {
	var opts streamOptions

	cmd := &cobra.Command{
		Use:   "stream [chunk...]",
		Short: "Reveal a response chunk by chunk",
		Long: `Stream reveals each chunk one character (or one whole tag) at a time,
separating chunks with a paragraph break. Without chunks it streams --preset,
or a random preset when none is named.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStream(cmd, args, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.preset, "preset", "", "Response preset to stream (see 'chatstream presets')")
	flags.StringVar(&opts.id, "id", "", "Stream id (generated when empty)")
	flags.DurationVar(&opts.chunkDelay, "chunk-delay", 0, "Delay between revealed characters (overrides config)")
	flags.DurationVar(&opts.responseDelay, "response-delay", 0, "Delay after each chunk separator (overrides config)")
	flags.DurationVar(&opts.latency, "latency", 0, "Simulated preset fetch latency")
	flags.BoolVar(&opts.raw, "raw", false, "Print revealed HTML instead of text")
	flags.BoolVar(&opts.noPreserve, "no-preserve-html", false, "Reveal tags character by character")
	flags.BoolVar(&opts.convert, "convert", true, "Convert markdown and plain text chunks to HTML before streaming")
	flags.BoolVar(&opts.final, "final", false, "Print the completed message as markdown")

	return cmd
}

func (a *app) runStream(cmd *cobra.Command, args []string, opts streamOptions) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg := a.cfg.Streaming
	if cmd.Flags().Changed("chunk-delay") {
		cfg.ChunkDelay = opts.chunkDelay
	}
	if cmd.Flags().Changed("response-delay") {
		cfg.ResponseDelay = opts.responseDelay
	}
	if opts.noPreserve {
		cfg.PreserveHTMLStructure = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	a.handler = streaming.NewHandler(a.processor, cfg, a.logger)

	src, err := a.streamSource(args, opts)
	if err != nil {
		return err
	}

	// Interrupts cancel the caller context; cancel the registry too so the
	// reveal loop stops at its next delay.
	go func() {
		<-ctx.Done()
		a.handler.CancelAllStreams()
	}()

	term := render.NewTerminal(cmd.OutOrStdout(), opts.raw, opts.final)
	var renderErr error

	err = a.handler.StartFromSource(ctx, opts.id, src, streaming.Callbacks{
		OnUpdate: term.Update,
		OnComplete: func(r models.StreamResult) {
			var entry models.HistoryEntry
			if history := a.handler.GetMessageHistory(); len(history) > 0 {
				entry = history[len(history)-1]
			}
			renderErr = term.Complete(r, entry)
		},
		OnError: func(error) {
			term.Break()
		},
	})
	if err != nil {
		return err
	}
	if ctxErr := cmd.Context().Err(); ctxErr != nil {
		term.Break()
		return ctxErr
	}
	return renderErr
}

func (a *app) streamSource(args []string, opts streamOptions) (services.ChunkSource, error) {
	var src services.ChunkSource
	switch {
	case len(args) > 0:
		src = streaming.StaticSource(args)
	case opts.preset != "":
		src = a.catalogue.WithLatency(opts.latency).Source(opts.preset)
	default:
		p, err := a.catalogue.Random()
		if err != nil {
			return nil, err
		}
		src = a.catalogue.WithLatency(opts.latency).Source(p.Name)
	}

	src = streaming.RetryingSource(src, a.cfg.Streaming.MaxRetries, streaming.RetryBaseDelay, a.logger)
	if opts.convert {
		src = streaming.ConvertingSource(src, a.processor)
	}
	return src, nil
}
