// internal/jsonlutil/jsonlutil.go
package jsonlutil

import (
	"bufio"
	"io"
	"sync"

	"github.com/goccy/go-json"
)

// Reuse a 64 KiB buffered writer across JSONL writers to avoid per-writer mallocs.
var bwPool = sync.Pool{
	New: func() any {
		return bufio.NewWriterSize(io.Discard, 64<<10)
	},
}

// Start spins up a JSONL encoder goroutine for values of type T.
//   - encode: fn to encode one value (convert to wire type & enc.Encode)
//   - isBroken: recognizer for broken/closed pipe errors to suppress them
//
// Each value is flushed as soon as it is encoded so a tailing reader sees
// complete lines. Close the returned channel, then read the error channel.
func Start[T any](out io.Writer, bufSize int, encode func(*json.Encoder, T) error, isBroken func(error) bool) (chan<- T, <-chan error) {
	if bufSize <= 0 {
		bufSize = 64
	}
	in := make(chan T, bufSize)
	done := make(chan error, 1)

	go func() {
		bw := bwPool.Get().(*bufio.Writer)
		bw.Reset(out)
		defer func() {
			bw.Reset(io.Discard)
			bwPool.Put(bw)
		}()

		enc := json.NewEncoder(bw)
		var firstErr error
		for v := range in {
			if firstErr != nil {
				continue // drain so senders never block
			}
			if err := encode(enc, v); err != nil {
				firstErr = err
				continue
			}
			if err := bw.Flush(); err != nil && !isBroken(err) {
				firstErr = err
			}
		}
		if firstErr == nil {
			if err := bw.Flush(); err != nil && !isBroken(err) {
				firstErr = err
			}
		}
		done <- firstErr
	}()

	return in, done
}
