// core/fastx/reader.go
package fastx

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrFormat reports input that is neither FASTA nor FASTQ.
var ErrFormat = errors.New("fastx: malformed input")

// Record is one parsed FASTA or FASTQ entry.
// Qual is nil for FASTA input.
type Record struct {
	ID     string // header up to the first whitespace
	Header string // full header line without the leading marker
	Seq    []byte
	Qual   []byte
}

// Size approximates the in-memory footprint of r in bytes.
func (r Record) Size() int {
	return len(r.Header) + len(r.Seq) + len(r.Qual)
}

// Reader parses FASTA/FASTQ records one at a time. The format is chosen per
// record from its leading marker, so either format (but not a mix within one
// record) is accepted.
type Reader struct {
	sc      *bufio.Scanner
	closer  io.Closer
	pending []byte
	line    int
}

// NewReader wraps r. The caller keeps ownership of r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	const maxLine = 64 * 1024 * 1024 // allow very long single-line sequences (64 MiB)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	return &Reader{sc: sc}
}

// Open opens path ("-" for stdin, gzip auto-detected) and returns a Reader
// that owns the underlying file.
func Open(path string) (*Reader, error) {
	rc, err := openReader(path)
	if err != nil {
		return nil, err
	}
	r := NewReader(rc)
	r.closer = rc
	return r, nil
}

// Close releases the underlying file when the Reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

func (r *Reader) scan() ([]byte, bool) {
	for r.sc.Scan() {
		r.line++
		line := bytes.TrimRight(r.sc.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		return line, true
	}
	return nil, false
}

func (r *Reader) eof() error {
	if err := r.sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

// Next returns the next record, or io.EOF once the input is exhausted.
func (r *Reader) Next() (Record, error) {
	head := r.pending
	r.pending = nil
	if head == nil {
		line, ok := r.scan()
		if !ok {
			return Record{}, r.eof()
		}
		head = append([]byte(nil), line...)
	}

	switch head[0] {
	case '>':
		return r.fasta(head)
	case '@':
		return r.fastq(head)
	default:
		return Record{}, fmt.Errorf("%w: line %d: unexpected %q", ErrFormat, r.line, head[0])
	}
}

func (r *Reader) fasta(head []byte) (Record, error) {
	rec := newRecord(head[1:])
	for {
		line, ok := r.scan()
		if !ok {
			if err := r.sc.Err(); err != nil {
				return Record{}, err
			}
			return rec, nil
		}
		if line[0] == '>' {
			r.pending = append([]byte(nil), line...)
			return rec, nil
		}
		rec.Seq = append(rec.Seq, line...)
	}
}

func (r *Reader) fastq(head []byte) (Record, error) {
	rec := newRecord(head[1:])
	for {
		line, ok := r.scan()
		if !ok {
			return Record{}, fmt.Errorf("%w: line %d: record %q has no quality section", ErrFormat, r.line, rec.ID)
		}
		if line[0] == '+' {
			break
		}
		rec.Seq = append(rec.Seq, line...)
	}
	rec.Qual = make([]byte, 0, len(rec.Seq))
	for len(rec.Qual) < len(rec.Seq) {
		line, ok := r.scan()
		if !ok {
			return Record{}, fmt.Errorf("%w: line %d: record %q quality truncated", ErrFormat, r.line, rec.ID)
		}
		rec.Qual = append(rec.Qual, line...)
	}
	if len(rec.Qual) != len(rec.Seq) {
		return Record{}, fmt.Errorf("%w: line %d: record %q quality length %d != sequence length %d",
			ErrFormat, r.line, rec.ID, len(rec.Qual), len(rec.Seq))
	}
	return rec, nil
}

func newRecord(header []byte) Record {
	h := string(bytes.TrimSpace(header))
	id := h
	if i := strings.IndexAny(h, " \t"); i >= 0 {
		id = h[:i]
	}
	return Record{ID: id, Header: h}
}

// ReadAll loads every record from path.
func ReadAll(path string) ([]Record, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, rec)
	}
}
