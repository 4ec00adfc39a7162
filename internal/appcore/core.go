// internal/appcore/core.go
package appcore

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"seqmap/internal/cli"
	"seqmap/internal/config"
	"seqmap/internal/ledger"
	"seqmap/internal/logging"
	"seqmap/internal/version"
	"seqmap/internal/writers"
	"seqmap/pkg/api"
)

// Exit codes shared by every command.
const (
	ExitOK        = 0
	ExitUsage     = 2
	ExitRuntime   = 3
	ExitCancelled = 130
)

// Parse parses argv for the named command. When done is set the command
// has already been handled (help, version, --save-config, or a usage
// error) and the caller returns code.
func Parse(name string, argv []string, stdout, stderr io.Writer) (opts cli.Options, code int, done bool) {
	outw := bufio.NewWriter(stdout)
	flush := func(c int) int {
		if e := outw.Flush(); writers.IsBrokenPipe(e) {
			return ExitOK
		} else if e != nil {
			_, _ = fmt.Fprintln(stderr, e)
			return ExitRuntime
		}
		return c
	}

	fs := cli.NewFlagSet(name)
	fs.SetOutput(io.Discard)
	opts, err := cli.ParseArgs(fs, argv)
	if err != nil {
		fs.SetOutput(outw)
		if errors.Is(err, flag.ErrHelp) {
			fs.Usage()
			return opts, flush(ExitOK), true
		}
		_, _ = fmt.Fprintln(stderr, err)
		fs.Usage()
		return opts, flush(ExitUsage), true
	}
	if opts.Version {
		_, _ = fmt.Fprintf(outw, "%s version %s\n", name, version.String())
		return opts, flush(ExitOK), true
	}
	if opts.SaveConfig != "" {
		if err := config.SaveTo(opts.Params, opts.SaveConfig); err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return opts, ExitRuntime, true
		}
		return opts, ExitOK, true
	}
	return opts, ExitOK, false
}

// Env is the ambient state of one command run: logger, job ledger, and
// job statistics stream.
type Env struct {
	Log      *zap.Logger
	Ledger   *ledger.Ledger
	Stats    chan<- api.JobStatsV1
	Progress io.Writer

	statsErr <-chan error
	statsOut io.Closer
}

// Open builds the Env for p. Logs go to stderr; the progress line is only
// enabled when verbose and stderr is a terminal.
func Open(ctx context.Context, p config.Params, stdout, stderr io.Writer) (*Env, error) {
	level := p.LogLevel
	if level == "" || level == "info" {
		level = logging.LevelForVerbosity(p.Verbose)
	}
	log, err := logging.New(stderr, level, p.LogFormat)
	if err != nil {
		return nil, err
	}
	env := &Env{Log: log}

	if p.Verbose > 0 {
		if f, ok := stderr.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			env.Progress = stderr
		}
	}

	if env.Ledger, err = ledger.Open(ctx, p.LedgerPath); err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	switch p.StatsPath {
	case "":
	case "-":
		env.Stats, env.statsErr = writers.StartJobStatsWriter(stdout, 16)
	default:
		f, err := os.OpenFile(p.StatsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			_ = env.Ledger.Close()
			return nil, fmt.Errorf("opening stats: %w", err)
		}
		env.statsOut = f
		env.Stats, env.statsErr = writers.StartJobStatsWriter(f, 16)
	}
	return env, nil
}

// Close drains the stats stream and releases everything Open acquired.
func (e *Env) Close() error {
	var err error
	if e.Stats != nil {
		close(e.Stats)
		err = <-e.statsErr
		e.Stats = nil
	}
	if e.statsOut != nil {
		if cerr := e.statsOut.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := e.Ledger.Close(); err == nil {
		err = cerr
	}
	_ = e.Log.Sync()
	return err
}

// ExitCode maps a run error onto the process exit code and reports it.
func ExitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil, writers.IsBrokenPipe(err):
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	}
	_, _ = fmt.Fprintln(stderr, "error:", err)
	return ExitRuntime
}
