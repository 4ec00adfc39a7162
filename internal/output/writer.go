// internal/output/writer.go
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"seqmap/internal/writers"
)

// Writer serializes mapping records to one destination. WriteLines is safe
// for concurrent use and never interleaves the lines of two calls.
type Writer struct {
	mu     sync.Mutex
	bw     *bufio.Writer
	closer io.Closer
	name   string
}

// New wraps w. Close flushes but does not close w.
func New(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, 256<<10), name: "stream"}
}

// Open creates path, or uses stdout when path is "" or "-".
func Open(path string) (*Writer, error) { return OpenWith(path, os.Stdout) }

// OpenWith is Open with stdout standing in for the process's standard
// output.
func OpenWith(path string, stdout io.Writer) (*Writer, error) {
	if path == "" || path == "-" {
		w := New(stdout)
		w.name = "stdout"
		return w, nil
	}
	fh, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("opening output: %w", err)
	}
	w := New(fh)
	w.closer = fh
	w.name = path
	return w, nil
}

// Name is the destination path, or "stdout".
func (w *Writer) Name() string { return w.name }

// WriteLines writes each line followed by a newline as one unit.
func (w *Writer) WriteLines(lines []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, l := range lines {
		if _, err := w.bw.WriteString(l); err != nil {
			return err
		}
		if err := w.bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

// Flush pushes buffered lines to the destination.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bw.Flush()
}

// Close flushes and closes the destination. A downstream reader that went
// away (broken pipe) is not an error.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.bw.Flush()
	if writers.IsBrokenPipe(err) {
		err = nil
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
		w.closer = nil
	}
	return err
}
