package mapper

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pbnjay/memory"
	"golang.org/x/time/rate"
)

func numCPU() int { return runtime.NumCPU() }

// progress prints an advisory status line at most a few times per second.
type progress struct {
	w      io.Writer
	total  int64
	start  time.Time
	every  *rate.Sometimes
	sysMem uint64
}

func newProgress(w io.Writer, total int64, start time.Time) *progress {
	if w == nil {
		return nil
	}
	return &progress{
		w:      w,
		total:  total,
		start:  start,
		every:  &rate.Sometimes{First: 1, Interval: 500 * time.Millisecond},
		sysMem: memory.TotalMemory(),
	}
}

func (p *progress) tick(c *counters) {
	if p == nil {
		return
	}
	p.every.Do(func() { p.print(c) })
}

func (p *progress) done(c *counters) {
	if p == nil {
		return
	}
	p.print(c)
	fmt.Fprintln(p.w)
}

func (p *progress) print(c *counters) {
	s := c.snapshot()
	n := s.Processed()
	pct := 100.0
	if p.total > 0 {
		pct = 100 * float64(n) / float64(p.total)
	}
	fmt.Fprintf(p.w, "\r[mapping] %d/%d (%.2f%%) mapped %d unmapped %d ambiguous %d | %s | peak RSS %s / %s ",
		n, p.total, pct, s.Mapped, s.Unmapped, s.Ambiguous,
		time.Since(p.start).Truncate(10*time.Millisecond),
		humanize.IBytes(peakRSS()), humanize.IBytes(p.sysMem))
}
