// Package mapper maps one batch of queries in parallel.
package mapper

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"seqmap-core/engine"
	"seqmap-core/fastx"
	"seqmap/internal/batch"
	"seqmap/internal/runutil"
)

// Aligner finds candidate placements for one query. Implementations must
// be safe for concurrent use.
type Aligner interface {
	Map(rec fastx.Record) engine.MappingData
}

// Collector classifies and serializes one query's result. Implementations
// must be safe for concurrent use.
type Collector interface {
	Collect(rec fastx.Record, md engine.MappingData) (engine.State, []string)
}

// Sink receives the serialized lines of one query at a time.
type Sink interface {
	WriteLines(lines []string) error
}

// Options controls one Mapper.
type Options struct {
	Threads   int   // workers; <= 0 picks runutil.EffectiveThreads
	Ordered   bool  // write results in input order after the batch completes
	StartRead int64 // first query (0-based, across batches) to map
	NumReads  int64 // queries to map from StartRead; < 0 means all

	// Progress receives a throttled status line; nil disables it.
	Progress io.Writer
}

// Stats are the outcome counters of one batch.
type Stats struct {
	Mapped    int64
	Unmapped  int64
	Ambiguous int64
	Errors    int64
	Elapsed   time.Duration
}

// Processed is the number of queries that reached the collector.
func (s Stats) Processed() int64 { return s.Mapped + s.Unmapped + s.Ambiguous + s.Errors }

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Mapped += o.Mapped
	s.Unmapped += o.Unmapped
	s.Ambiguous += o.Ambiguous
	s.Errors += o.Errors
	s.Elapsed += o.Elapsed
}

type counters struct {
	mapped, unmapped, ambiguous, errors atomic.Int64
}

func (c *counters) count(s engine.State) {
	switch s {
	case engine.StateMapped:
		c.mapped.Add(1)
	case engine.StateAmbiguous:
		c.ambiguous.Add(1)
	case engine.StateError:
		c.errors.Add(1)
	default:
		c.unmapped.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Mapped:    c.mapped.Load(),
		Unmapped:  c.unmapped.Load(),
		Ambiguous: c.ambiguous.Load(),
		Errors:    c.errors.Load(),
	}
}

// Mapper fans queries out to workers that claim indices dynamically.
type Mapper struct {
	aligner   Aligner
	collector Collector
	o         Options
	log       *zap.Logger
}

// New returns a Mapper. The worker count is resolved once here.
func New(a Aligner, c Collector, o Options, log *zap.Logger) *Mapper {
	o.Threads = runutil.EffectiveThreads(o.Threads, numCPU())
	if log == nil {
		log = zap.NewNop()
	}
	return &Mapper{aligner: a, collector: c, o: o, log: log.Named("mapper")}
}

// Threads is the resolved worker count.
func (m *Mapper) Threads() int { return m.o.Threads }

// Process maps the windowed part of b and writes every non-empty result to
// out. Unordered output is written as soon as each query finishes; ordered
// output is held and written in input order once all workers are done.
// Cancelling ctx stops workers from claiming further queries.
func (m *Mapper) Process(ctx context.Context, b batch.Batch, out Sink) (Stats, error) {
	start := time.Now()
	lo, hi := runutil.Window(m.o.StartRead, m.o.NumReads, b.Offset, b.Len())
	total := hi - lo

	var (
		c       counters
		next    atomic.Int64
		results [][]string
	)
	if m.o.Ordered {
		results = make([][]string, total)
	}
	progress := newProgress(m.o.Progress, int64(total), start)

	workers := min(m.o.Threads, max(total, 1))
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				i := int(next.Add(1) - 1)
				if i >= total {
					return nil
				}
				rec := b.Records[lo+i]
				state, lines := m.collector.Collect(rec, m.aligner.Map(rec))
				c.count(state)
				progress.tick(&c)

				if m.o.Ordered {
					results[i] = lines
					continue
				}
				if len(lines) > 0 {
					if err := out.WriteLines(lines); err != nil {
						return err
					}
				}
			}
		})
	}
	err := g.Wait()
	progress.done(&c)

	if err == nil && m.o.Ordered {
		for _, lines := range results {
			if len(lines) == 0 {
				continue
			}
			if err = out.WriteLines(lines); err != nil {
				break
			}
		}
	}

	st := c.snapshot()
	st.Elapsed = time.Since(start)
	m.log.Debug("batch mapped",
		zap.Int64("offset", b.Offset),
		zap.Int("queries", total),
		zap.Int("workers", workers),
		zap.Int64("mapped", st.Mapped),
		zap.Int64("unmapped", st.Unmapped),
		zap.Int64("ambiguous", st.Ambiguous),
		zap.Int64("errors", st.Errors),
		zap.Duration("elapsed", st.Elapsed))
	return st, err
}
