// Package cli wires the chatstream command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"chatwidget/internal/config"
	"chatwidget/internal/domain/services"
	"chatwidget/internal/service/content"
	"chatwidget/internal/service/content/markdown"
	"chatwidget/internal/service/content/sanitizer"
	"chatwidget/internal/service/responses"
	"chatwidget/internal/service/streaming"
)

// app holds the services shared by every subcommand
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	logFile   *os.File
	sanitizer *sanitizer.HTMLSanitizer
	renderer  services.MarkdownRenderer
	processor *content.Processor
	handler   *streaming.Handler
	catalogue *responses.Catalogue
}

// NewRootCmd builds the command tree. Services are created before any
// subcommand runs and torn down after it returns.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "chatstream",
		Short:         "Stream, sanitize and render chat widget content",
		Long:          `chatstream reveals chat responses incrementally the way the chat widget does, and exposes the sanitizer and markdown converter it uses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.AddCommand(
		newStreamCmd(a),
		newProcessCmd(a),
		newSanitizeCmd(a),
		newMarkdownCmd(a),
		newPresetsCmd(a),
	)
	return root
}

func (a *app) setup(stderr io.Writer) error {
	// Load .env file (silently ignore if it doesn't exist)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if cfg.LogDir != "" {
		f, err := config.SetupLogFile(cfg.LogDir, cfg.MaxLogFiles)
		if err != nil {
			return err
		}
		a.logFile = f
		a.logger = config.NewLogger(f, cfg.LogLevel, true)
	} else {
		a.logger = config.NewLogger(stderr, cfg.LogLevel, false)
	}
	slog.SetDefault(a.logger)

	a.logger.Debug("chatstream starting",
		"environment", cfg.Environment,
		"markdown_engine", cfg.MarkdownEngine,
		"chunk_delay", cfg.Streaming.ChunkDelay,
		"response_delay", cfg.Streaming.ResponseDelay,
	)

	a.renderer, err = markdown.NewRenderer(cfg.MarkdownEngine, a.logger)
	if err != nil {
		return err
	}
	a.sanitizer = sanitizer.NewHTMLSanitizer(a.logger)
	a.processor = content.NewProcessor(a.sanitizer, a.renderer, a.logger)
	a.handler = streaming.NewHandler(a.processor, cfg.Streaming, a.logger)

	if cfg.ResponsesFile != "" {
		a.catalogue, err = responses.Load(cfg.ResponsesFile, a.logger)
	} else {
		a.catalogue, err = responses.Default(a.logger)
	}
	return err
}

func (a *app) close() error {
	if a.handler != nil {
		a.handler.CancelAllStreams()
	}
	if a.logFile != nil {
		err := a.logFile.Close()
		a.logFile = nil
		return err
	}
	return nil
}

// readInput returns args joined by spaces, or stdin when the only arg is "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}
