// Command bake evaluates //bake:eval members at build time and writes their
// values back as Go declarations.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/bake/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	os.Exit(cli.GetExitCode(err))
}
