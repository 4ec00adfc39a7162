// Package daemon watches a directory and maps every completed query file
// that lands in it, one at a time and in arrival order.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"seqmap/internal/config"
	"seqmap/internal/ledger"
	"seqmap/internal/mapping"
	"seqmap/internal/metrics"
	"seqmap/internal/notify"
	"seqmap/internal/queue"
	"seqmap/pkg/api"
)

var (
	// ErrWatchDirMissing is returned when the watch directory does not exist.
	ErrWatchDirMissing = errors.New("watch directory does not exist")
	// ErrNoOutputDir is returned when no output directory is configured.
	ErrNoOutputDir = errors.New("output directory is required")
)

// Processor maps one query file into one output file.
type Processor interface {
	RunOnFile(ctx context.Context, readsPath, outPath string) (mapping.Result, error)
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithBackend uses b instead of opening the configured watch backend.
func WithBackend(b notify.Backend) Option { return func(d *Daemon) { d.backend = b } }

// WithLedger records every job in l.
func WithLedger(l *ledger.Ledger) Option { return func(d *Daemon) { d.ledger = l } }

// WithStats sends one record per finished job to ch.
func WithStats(ch chan<- api.JobStatsV1) Option { return func(d *Daemon) { d.stats = ch } }

// WithMetrics counts events and jobs and exposes the queue depth.
func WithMetrics(m *metrics.Metrics) Option { return func(d *Daemon) { d.metrics = m } }

// Daemon owns the queue shared by the watcher and the dispatcher. Both run
// inside Run; Stop, or cancelling Run's context, ends them.
type Daemon struct {
	p    config.Params
	proc Processor
	log  *zap.Logger

	backend notify.Backend
	ledger  *ledger.Ledger
	stats   chan<- api.JobStatsV1
	metrics *metrics.Metrics

	queue    *queue.Queue
	notifier *notify.Notifier
	running  atomic.Bool
	stopOnce sync.Once
}

// New checks the directories, enqueues the files already present (unless
// skip_existing is set), and starts watching. Files are mapped only once
// Run is called.
func New(p config.Params, proc Processor, log *zap.Logger, opts ...Option) (*Daemon, error) {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Daemon{p: p, proc: proc, log: log.Named("daemon")}
	for _, o := range opts {
		o(d)
	}

	if err := CheckDirs(p); err != nil {
		return nil, err
	}
	if !p.DryRun {
		if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output dir: %w", err)
		}
	}

	seed, err := d.existing()
	if err != nil {
		return nil, err
	}
	d.queue = queue.New(seed)
	d.metrics.RegisterQueueDepth(func() float64 { return float64(d.queue.Len()) })

	if d.backend == nil {
		if d.backend, err = notify.Open(p.WatchDir, p.WatchBackend, p.QuietPeriod); err != nil {
			return nil, fmt.Errorf("watching %s: %w", p.WatchDir, err)
		}
	}
	d.notifier = notify.New(d.backend, d.enqueue,
		notify.WithLogger(log.Named("watch")),
		notify.WithOnEvent(func(ev notify.Event) { d.metrics.WatchEvent(ev.Op.String()) }),
	)
	d.running.Store(true)
	return d, nil
}

// CheckDirs reports whether p names an existing watch directory and an
// output directory. It touches nothing, so callers can run it before any
// expensive startup work.
func CheckDirs(p config.Params) error {
	fi, err := os.Stat(p.WatchDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrWatchDirMissing, p.WatchDir)
	case err != nil:
		return err
	case !fi.IsDir():
		return fmt.Errorf("%s is not a directory", p.WatchDir)
	}
	if p.OutputDir == "" {
		return ErrNoOutputDir
	}
	return nil
}

// existing lists the regular entries of the watch directory in name order.
func (d *Daemon) existing() ([]string, error) {
	if d.p.SkipExisting {
		d.log.Info("skipping files already in the watch directory")
		return nil, nil
	}
	entries, err := os.ReadDir(d.p.WatchDir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.p.WatchDir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	d.log.Info("queued existing files", zap.Int("count", len(names)))
	return names, nil
}

func (d *Daemon) enqueue(name string) {
	d.queue.Push(name)
	d.log.Debug("queued", zap.String("file", name), zap.Int("pending", d.queue.Len()))
}

// Pending is the number of queued jobs.
func (d *Daemon) Pending() int { return d.queue.Len() }

// Stop asks the watcher and the dispatcher to exit. A job already being
// mapped runs to completion; nothing further is dequeued.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		d.running.Store(false)
		d.queue.Terminate()
		d.notifier.Stop()
	})
}

// Run watches and dispatches until ctx is cancelled or Stop is called, and
// returns after both loops have exited.
func (d *Daemon) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, d.Stop)
	defer stop()

	d.log.Info("watching",
		zap.String("dir", d.p.WatchDir),
		zap.String("output_dir", d.p.OutputDir),
		zap.String("suffix", d.p.Suffix),
		zap.Bool("dry_run", d.p.DryRun))

	var (
		wg       sync.WaitGroup
		watchErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if watchErr = d.notifier.Run(); watchErr != nil {
			d.Stop()
		}
	}()
	go func() {
		defer wg.Done()
		d.dispatch(context.WithoutCancel(ctx))
	}()
	wg.Wait()
	d.log.Info("stopped", zap.Int("pending", d.queue.Len()))
	return watchErr
}

func (d *Daemon) dispatch(ctx context.Context) {
	for {
		name, ok := d.queue.Pop()
		if !ok || !d.running.Load() {
			return
		}
		if !strings.HasSuffix(name, d.p.Suffix) {
			d.log.Debug("ignoring file without suffix", zap.String("file", name))
			d.metrics.JobFinished("filtered")
			continue
		}
		d.process(ctx, name)
	}
}

func (d *Daemon) process(ctx context.Context, name string) {
	start := time.Now().UTC()
	rec := api.JobStatsV1{
		JobID:     uuid.NewString(),
		File:      filepath.Join(d.p.WatchDir, name),
		Output:    filepath.Join(d.p.OutputDir, name+".sam"),
		Status:    ledger.StatusRunning,
		StartedAt: start.Format(time.RFC3339),
	}
	log := d.log.With(zap.String("job", name), zap.String("id", rec.JobID))
	log.Info("job started", zap.Time("at", start))
	d.record(ctx, log, rec)

	var (
		res mapping.Result
		err error
	)
	if d.p.DryRun {
		log.Info("dry run, not mapping", zap.String("output", rec.Output))
		rec.Status = ledger.StatusSkipped
	} else {
		res, err = d.proc.RunOnFile(ctx, rec.File, rec.Output)
		rec.Status = ledger.StatusDone
	}

	finish := time.Now().UTC()
	rec.FinishedAt = finish.Format(time.RFC3339)
	rec.ElapsedMS = finish.Sub(start).Milliseconds()
	rec.Batches = res.Batches
	rec.Reads = res.Reads
	rec.Bases = res.Bases
	rec.Mapped = res.Mapped
	rec.Unmapped = res.Unmapped
	rec.Ambiguous = res.Ambiguous
	rec.Errors = res.Errors
	if err != nil {
		rec.Status = ledger.StatusFailed
		rec.Error = err.Error()
		log.Error("job failed", zap.Error(err), zap.Time("at", finish))
	} else {
		log.Info("job finished",
			zap.String("status", rec.Status),
			zap.Int64("reads", rec.Reads),
			zap.Int64("mapped", rec.Mapped),
			zap.Time("at", finish),
			zap.Duration("elapsed", finish.Sub(start)))
	}

	d.record(ctx, log, rec)
	d.metrics.JobFinished(rec.Status)
	if d.stats != nil {
		d.stats <- rec
	}
}

func (d *Daemon) record(ctx context.Context, log *zap.Logger, rec api.JobStatsV1) {
	if err := d.ledger.Record(ctx, rec); err != nil {
		log.Warn("recording job", zap.Error(err))
	}
}
