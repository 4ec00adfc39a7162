// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"seqmap/internal/appcore"
	"seqmap/internal/cli"
	"seqmap/internal/config"
	"seqmap/internal/ledger"
	"seqmap/internal/mapping"
	"seqmap/pkg/api"
)

// RunContext is the seqmap command: map one reads file, or every file of a
// reads directory, against the reference.
func RunContext(parent context.Context, argv []string, stdout, stderr io.Writer) int {
	opts, code, done := appcore.Parse(cli.MapName, argv, stdout, stderr)
	if done {
		return code
	}
	p := opts.Params

	env, err := appcore.Open(parent, p, stdout, stderr)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return appcore.ExitUsage
	}

	eng := mapping.New(p, env.Log,
		mapping.WithProgress(env.Progress),
		mapping.WithStdout(stdout))
	if err := eng.Initialize(); err != nil {
		env.Log.Error("index", zap.Error(err))
		_ = env.Close()
		return appcore.ExitCode(err, stderr)
	}
	defer eng.Close()
	if p.IndexOnly {
		return appcore.ExitCode(env.Close(), stderr)
	}

	start := time.Now().UTC()
	res, runErr := eng.Run(parent)
	record(parent, env, p, res, start, runErr)

	if err := env.Close(); runErr == nil {
		runErr = err
	}
	return appcore.ExitCode(runErr, stderr)
}

func record(ctx context.Context, env *appcore.Env, p config.Params, res mapping.Result, start time.Time, err error) {
	finish := time.Now().UTC()
	s := api.JobStatsV1{
		JobID:      uuid.NewString(),
		File:       p.Reads,
		Output:     res.Output,
		Status:     ledger.StatusDone,
		StartedAt:  start.Format(time.RFC3339),
		FinishedAt: finish.Format(time.RFC3339),
		ElapsedMS:  finish.Sub(start).Milliseconds(),
		Batches:    res.Batches,
		Reads:      res.Reads,
		Bases:      res.Bases,
		Mapped:     res.Mapped,
		Unmapped:   res.Unmapped,
		Ambiguous:  res.Ambiguous,
		Errors:     res.Errors,
	}
	if p.ReadsDir != "" {
		s.File = p.ReadsDir
	}
	if err != nil {
		s.Status = ledger.StatusFailed
		s.Error = err.Error()
	}
	if lerr := env.Ledger.Record(context.WithoutCancel(ctx), s); lerr != nil {
		env.Log.Warn("recording job", zap.Error(lerr))
	}
	if env.Stats != nil {
		env.Stats <- s
	}
}

// Run is RunContext without cancellation.
func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}
