// Command vocalnav runs the Spanish voice navigation daemon and its control client.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/vocalnav/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(app.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr))
}
