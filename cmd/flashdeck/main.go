package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/conorfennell/flashdeck/internal/cli"
)

func main() {
	// Ctrl-C ends a review session early; answered cards are still saved.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
