// Package mapping runs the mapping pipeline for one reference: indexes are
// built once, limits calibrated once, then each query file is loaded in
// batches and mapped in parallel into its own output.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"seqmap-core/engine"
	"seqmap-core/index"
	"seqmap/internal/batch"
	"seqmap/internal/calibrate"
	"seqmap/internal/config"
	"seqmap/internal/indexmgr"
	"seqmap/internal/mapper"
	"seqmap/internal/metrics"
	"seqmap/internal/output"
	"seqmap/internal/version"
)

// ErrNotInitialized is returned when a run starts before Initialize.
var ErrNotInitialized = errors.New("mapping engine not initialized")

// AlignerFunc builds the per-query aligner for one job.
type AlignerFunc func(indexes []*index.Index, p config.Params) mapper.Aligner

// CollectorFunc builds the per-query collector for one job.
type CollectorFunc func(primary *index.Index, p config.Params) mapper.Collector

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records read outcomes and batch durations.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithProgress sends the mapper's status line to w.
func WithProgress(w io.Writer) Option { return func(e *Engine) { e.progress = w } }

// WithStdout sends output for "" or "-" to w instead of os.Stdout.
func WithStdout(w io.Writer) Option { return func(e *Engine) { e.stdout = w } }

// WithAligner replaces the diagonal-vote aligner.
func WithAligner(fn AlignerFunc) Option { return func(e *Engine) { e.newAligner = fn } }

// WithCollector replaces the SAM collector.
func WithCollector(fn CollectorFunc) Option { return func(e *Engine) { e.newCollector = fn } }

// Result summarizes one query file.
type Result struct {
	mapper.Stats
	Batches int
	Reads   int64
	Bases   int64
	Output  string
}

// Engine is the mapping pipeline shared by every job of one process.
type Engine struct {
	params  config.Params
	log     *zap.Logger
	indexes *indexmgr.Manager
	ready   bool

	metrics      *metrics.Metrics
	progress     io.Writer
	stdout       io.Writer
	newAligner   AlignerFunc
	newCollector CollectorFunc
}

// New returns an Engine for p. Nothing is loaded until Initialize.
func New(p config.Params, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		params:       p.Clone(),
		log:          log,
		stdout:       os.Stdout,
		newAligner:   defaultAligner,
		newCollector: defaultCollector,
	}
	for _, o := range opts {
		o(e)
	}
	e.indexes = indexmgr.New(log)
	return e
}

func defaultAligner(indexes []*index.Index, p config.Params) mapper.Aligner {
	return engine.NewAligner(indexes, engine.Params{
		MaxRegions:    p.MaxRegions,
		RegionsCutoff: p.MaxRegionsCutoff,
		MaxHits:       p.MaxHits,
	})
}

func defaultCollector(primary *index.Index, p config.Params) mapper.Collector {
	return engine.NewCollector(primary, engine.CollectorOptions{
		MinVotes:  p.MinVotes,
		Multiple:  p.Multiple,
		FullNames: headerOptions(p).FullNames(),
	})
}

// Initialize builds or loads the indexes and calibrates the search limits.
// In index-only mode it stops after the indexes are stored.
func (e *Engine) Initialize() error {
	e.ready = false
	if err := e.indexes.Build(e.params); err != nil {
		return err
	}
	if e.params.IndexOnly {
		e.log.Info("index-only mode, nothing to map")
		return nil
	}
	calibrate.Apply(&e.params, e.indexes.Primary(), e.log.Named("calibrate"))

	if e.params.Circular {
		e.log.Info("reference is circular")
	} else {
		e.log.Info("reference is linear")
	}
	if e.params.Multiple {
		e.log.Info("reporting multiple alignments")
	} else {
		e.log.Info("reporting single alignments")
	}
	e.ready = true
	return nil
}

// Params is the calibrated snapshot every job copies.
func (e *Engine) Params() config.Params { return e.params.Clone() }

// Close releases the indexes.
func (e *Engine) Close() { e.indexes.Discard(); e.ready = false }

func headerOptions(p config.Params) output.HeaderOptions {
	return output.HeaderOptions{
		Program:     "seqmap",
		Version:     version.Version,
		BuildDate:   version.BuildDate,
		CommandLine: p.CommandLine,
		Verbosity:   p.SAMVerbosity,
	}
}

// RunOnFile maps every query in readsPath into outPath ("" or "-" is
// stdout). The job works on its own copy of the parameters.
func (e *Engine) RunOnFile(ctx context.Context, readsPath, outPath string) (Result, error) {
	res := Result{Output: outPath}
	if !e.ready {
		return res, ErrNotInitialized
	}
	p := e.params.Clone()
	p.Reads, p.Output = readsPath, outPath
	log := e.log.With(zap.String("reads", readsPath))

	loader, err := batch.Open(readsPath, p.BatchMB)
	if err != nil {
		return res, err
	}
	defer loader.Close()

	w, err := output.OpenWith(outPath, e.stdout)
	if err != nil {
		return res, err
	}
	res.Output = w.Name()

	primary := e.indexes.Primary()
	format := strings.ToLower(p.OutputFormat)
	if format != config.FormatSAM {
		log.Warn("unknown output format, writing SAM", zap.String("format", p.OutputFormat))
	}
	if err := w.WriteLines(output.SAMHeader(primary, headerOptions(p))); err != nil {
		_ = w.Close()
		return res, fmt.Errorf("writing header: %w", err)
	}

	m := mapper.New(
		e.newAligner(e.indexes.Indexes(), p),
		e.newCollector(primary, p),
		mapper.Options{
			Threads:   p.Threads,
			Ordered:   p.Ordered,
			StartRead: p.StartRead,
			NumReads:  p.NumReads,
			Progress:  e.progress,
		},
		log,
	)
	log.Info("mapping", zap.String("output", res.Output), zap.Int("threads", m.Threads()))

	runErr := e.mapBatches(ctx, loader, m, w, &res, log)
	if err := w.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("closing output: %w", err)
	}
	log.Info("mapping finished",
		zap.Int("batches", res.Batches),
		zap.Int64("reads", res.Reads),
		zap.String("bases", humanize.Comma(res.Bases)),
		zap.Int64("mapped", res.Mapped),
		zap.Int64("unmapped", res.Unmapped),
		zap.Int64("ambiguous", res.Ambiguous),
		zap.Int64("errors", res.Errors),
		zap.Duration("elapsed", res.Elapsed))
	return res, runErr
}

func (e *Engine) mapBatches(ctx context.Context, loader *batch.Loader, m *mapper.Mapper, w *output.Writer, res *Result, log *zap.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := loader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		res.Batches++
		res.Reads += int64(b.Len())
		res.Bases += b.Bases
		log.Debug("batch loaded",
			zap.Int("batch", res.Batches),
			zap.Int("reads", b.Len()),
			zap.String("bases", humanize.Comma(b.Bases)),
			zap.String("size", humanize.IBytes(uint64(b.Bytes))))

		st, err := m.Process(ctx, b, w)
		res.Add(st)
		e.metrics.ObserveReads(st.Mapped, st.Unmapped, st.Ambiguous, st.Errors)
		e.metrics.ObserveBatch(st.Elapsed)
		if err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flushing output: %w", err)
		}
	}
}

// OutputPath is where the results for a query file named name go inside
// dir: the file name with its extension replaced by ".sam".
func OutputPath(dir, name string) string {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
		if ext == ".gz" {
			if inner := filepath.Ext(base); inner != "" && inner != base {
				base = strings.TrimSuffix(base, inner)
			}
		}
	}
	return filepath.Join(dir, base+".sam")
}

// Run executes one-shot mode: the single reads file into the configured
// output, or, with a reads directory, every regular file in it into
// <output_dir>/<stem>.sam in name order.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	p := e.params
	if p.ReadsDir == "" {
		return e.RunOnFile(ctx, p.Reads, p.Output)
	}

	entries, err := os.ReadDir(p.ReadsDir)
	if err != nil {
		return Result{}, fmt.Errorf("reading reads dir: %w", err)
	}
	outDir := p.OutputDir
	if outDir == "" {
		outDir = p.ReadsDir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating output dir: %w", err)
	}

	var total Result
	total.Output = outDir
	for _, ent := range entries {
		if ent.IsDir() || (p.Suffix != "" && !strings.HasSuffix(ent.Name(), p.Suffix)) {
			continue
		}
		start := time.Now()
		r, err := e.RunOnFile(ctx, filepath.Join(p.ReadsDir, ent.Name()), OutputPath(outDir, ent.Name()))
		total.Stats.Add(r.Stats)
		total.Batches += r.Batches
		total.Reads += r.Reads
		total.Bases += r.Bases
		if err != nil {
			return total, fmt.Errorf("%s: %w", ent.Name(), err)
		}
		e.log.Debug("file done", zap.String("file", ent.Name()), zap.Duration("elapsed", time.Since(start)))
	}
	return total, nil
}
