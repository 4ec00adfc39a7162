// Package batch loads query records in memory-bounded batches.
package batch

import (
	"errors"
	"fmt"
	"io"

	"seqmap-core/fastx"
)

// Batch is a contiguous run of query records.
type Batch struct {
	Records []fastx.Record
	Bases   int64
	Bytes   int64
	Offset  int64 // index of Records[0] within the whole input
}

// Len is the number of records in the batch.
func (b Batch) Len() int { return len(b.Records) }

// Loader reads batches from one query source.
type Loader struct {
	r      *fastx.Reader
	budget int64
	read   int64
	done   bool
}

// NewLoader wraps r. A batch holds roughly budgetMB MiB of sequence data;
// budgetMB <= 0 loads everything in one batch.
func NewLoader(r *fastx.Reader, budgetMB int64) *Loader {
	var budget int64
	if budgetMB > 0 {
		budget = budgetMB << 20
	}
	return &Loader{r: r, budget: budget}
}

// Open opens path and returns a Loader that owns it.
func Open(path string, budgetMB int64) (*Loader, error) {
	r, err := fastx.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening reads: %w", err)
	}
	return NewLoader(r, budgetMB), nil
}

// Close releases the underlying source.
func (l *Loader) Close() error { return l.r.Close() }

// Next returns the next non-empty batch or io.EOF. A record that crosses
// the budget still belongs to the batch it started in.
func (l *Loader) Next() (Batch, error) {
	if l.done {
		return Batch{}, io.EOF
	}
	b := Batch{Offset: l.read}
	for l.budget <= 0 || b.Bytes < l.budget {
		rec, err := l.r.Next()
		if errors.Is(err, io.EOF) {
			l.done = true
			break
		}
		if err != nil {
			return Batch{}, fmt.Errorf("loading batch at record %d: %w", l.read, err)
		}
		b.Records = append(b.Records, rec)
		b.Bases += int64(len(rec.Seq))
		b.Bytes += int64(rec.Size())
		l.read++
	}
	if len(b.Records) == 0 {
		return Batch{}, io.EOF
	}
	return b, nil
}
