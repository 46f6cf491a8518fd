package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/signalsfoundry/mapengine/internal/cli"
)

// exitInterrupted is the conventional status for a SIGINT-terminated process.
const exitInterrupted = 130

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		// Restore default handling so a second interrupt kills the process.
		<-ctx.Done()
		stop()
	}()

	err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:])
	os.Exit(exitCode(ctx, err, os.Stderr))
}

// run executes the command tree against the given streams so tests can drive
// the binary end to end.
func run(ctx context.Context, in io.Reader, out, errOut io.Writer, args []string) error {
	return cli.Execute(ctx, args, cli.Streams{
		In:     in,
		Out:    out,
		Err:    errOut,
		Getenv: os.Getenv,
	})
}

// exitCode maps the result of run to a process status, reporting errors on
// errOut. An interrupt ends quietly with status 130.
func exitCode(ctx context.Context, err error, errOut io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		fmt.Fprintln(errOut)
		return exitInterrupted
	default:
		fmt.Fprintf(errOut, "mapengine: %v\n", err)
		return 1
	}
}
