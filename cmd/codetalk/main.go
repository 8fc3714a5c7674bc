package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/codetalk/internal/ui"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		ui.NewPrinter(os.Stdout, os.Stderr).Error(err)
		stop()
		os.Exit(1)
	}
}
