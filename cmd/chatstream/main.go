package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"chatwidget/internal/cli"
	"chatwidget/internal/domain"
	"chatwidget/internal/render"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		stop()
		os.Exit(130)
	}
	render.Error(os.Stderr, err)
	stop()
	os.Exit(domain.ExitCodeFor(err))
}
