// Package appshell runs a command under signal-driven cancellation.
package appshell

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Command is the signature shared by every RunContext.
type Command func(ctx context.Context, argv []string, stdout, stderr io.Writer) int

// Main runs cmd with a context cancelled by SIGINT or SIGTERM and exits
// with its code. Once the first signal arrives the default handlers are
// restored, so a second one kills a run that is still finishing a job.
func Main(cmd Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	context.AfterFunc(ctx, stop)

	code := execute(ctx, cmd, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, cmd Command, argv []string, stdout, stderr io.Writer) int {
	if len(argv) == 0 {
		argv = []string{"-h"}
	}
	code := cmd(ctx, argv, stdout, stderr)
	// Normalize cancellation exit code.
	if ctx.Err() != nil && code == 0 {
		code = 130
	}
	return code
}
