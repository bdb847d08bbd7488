// Command composite manages entities and cascades deletes through composite
// reference fields.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/composite/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err != nil && !cli.Reported(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}
