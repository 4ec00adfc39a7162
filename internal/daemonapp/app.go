// internal/daemonapp/app.go
package daemonapp

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"seqmap/internal/appcore"
	"seqmap/internal/cli"
	"seqmap/internal/daemon"
	"seqmap/internal/mapping"
	"seqmap/internal/ledger"
	"seqmap/internal/metrics"
	"seqmap/internal/writers"
)

// RunContext is the seqmapd command: load the index once, then map every
// completed file that appears in the watch directory until parent is
// cancelled.
func RunContext(parent context.Context, argv []string, stdout, stderr io.Writer) int {
	opts, code, done := appcore.Parse(cli.DaemonName, argv, stdout, stderr)
	if done {
		return code
	}
	p := opts.Params

	env, err := appcore.Open(parent, p, stdout, stderr)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return appcore.ExitUsage
	}
	defer func() { _ = env.Close() }()
	log := env.Log
	if opts.ListJobs {
		return listJobs(parent, env.Ledger, stdout, stderr)
	}

	if !p.IndexOnly {
		if err := daemon.CheckDirs(p); err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return appcore.ExitUsage
		}
	}

	m := metrics.New()
	eng := mapping.New(p, log, mapping.WithMetrics(m), mapping.WithStdout(stdout))
	if err := eng.Initialize(); err != nil {
		log.Error("index", zap.Error(err))
		return appcore.ExitCode(err, stderr)
	}
	defer eng.Close()
	if p.IndexOnly {
		return appcore.ExitOK
	}

	d, err := daemon.New(p, eng, log,
		daemon.WithLedger(env.Ledger),
		daemon.WithStats(env.Stats),
		daemon.WithMetrics(m),
	)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return appcore.ExitUsage
	}

	if p.MetricsAddr != "" {
		go func() {
			if err := m.Serve(parent, p.MetricsAddr, log); err != nil {
				log.Error("metrics endpoint", zap.Error(err))
			}
		}()
	}

	if err := d.Run(parent); err != nil {
		return appcore.ExitCode(err, stderr)
	}
	if errors.Is(parent.Err(), context.Canceled) {
		log.Info("interrupted")
	}
	return appcore.ExitOK
}

// listJobs prints every ledger record, oldest first, one JSON line each.
func listJobs(ctx context.Context, l *ledger.Ledger, stdout, stderr io.Writer) int {
	jobs, err := l.Jobs(ctx, "")
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return appcore.ExitRuntime
	}
	out, errc := writers.StartJobStatsWriter(stdout, len(jobs))
	for _, j := range jobs {
		out <- j
	}
	close(out)
	if err := <-errc; err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return appcore.ExitRuntime
	}
	return appcore.ExitOK
}
