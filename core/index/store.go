// core/index/store.go
package index

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"seqmap-core/fastx"
)

var (
	// ErrCorrupt reports a blob that fails its checksum or cannot be decoded.
	ErrCorrupt = errors.New("index: corrupt blob")
	// ErrShapeMismatch reports a blob built with a different seed shape.
	ErrShapeMismatch = errors.New("index: shape mismatch")
)

var magic = [8]byte{'S', 'E', 'Q', 'M', 'A', 'P', 'I', 'X'}

const blobVersion uint32 = 2

var le = binary.LittleEndian

// Generate reads the reference at refPath and indexes it.
func Generate(refPath string, shape Shape) (*Index, error) {
	recs, err := fastx.ReadAll(refPath)
	if err != nil {
		return nil, fmt.Errorf("reading reference: %w", err)
	}
	ix, err := Build(recs, shape)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", refPath, err)
	}
	return ix, nil
}

// LoadOrGenerate loads the blob at blobPath, or generates the index from
// refPath and persists it when no file exists there. A present blob that
// cannot be loaded is an error and is left untouched. generated reports
// which path was taken.
func LoadOrGenerate(refPath, blobPath string, shape Shape) (ix *Index, generated bool, err error) {
	ix, err = Load(blobPath, shape)
	if err == nil {
		return ix, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}
	ix, err = Generate(refPath, shape)
	if err != nil {
		return nil, true, err
	}
	if err := ix.Store(blobPath); err != nil {
		return nil, true, err
	}
	return ix, true, nil
}

// Store writes the index to path, replacing any existing file atomically.
func (ix *Index) Store(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("storing index: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	bw := bufio.NewWriterSize(tmp, 1<<20)
	digest := xxhash.New()
	if err := ix.encode(io.MultiWriter(bw, digest)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storing index: %w", err)
	}
	if err := binary.Write(bw, le, digest.Sum64()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storing index: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storing index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storing index: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("storing index: %w", err)
	}
	return nil
}

func (ix *Index) encode(w io.Writer) error {
	var werr error
	put := func(v any) {
		if werr == nil {
			werr = binary.Write(w, le, v)
		}
	}
	putBytes := func(b []byte) {
		put(uint64(len(b)))
		if werr == nil {
			_, werr = w.Write(b)
		}
	}
	put(magic)
	put(blobVersion)
	putBytes([]byte(ix.shape.String()))
	put(uint32(len(ix.seqs)))
	for i := range ix.seqs {
		putBytes([]byte(ix.headers[i]))
		putBytes(ix.seqs[i])
	}
	put(uint64(len(ix.keys)))
	put(ix.keys)
	put(ix.offsets)
	put(uint64(len(ix.positions)))
	put(ix.positions)
	return werr
}

// Load reads a blob written by Store. The stored shape must equal want.
func Load(path string, want Shape) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) < len(magic)+8 {
		return nil, fmt.Errorf("%w: %s: truncated", ErrCorrupt, path)
	}
	body, trailer := raw[:len(raw)-8], raw[len(raw)-8:]
	if xxhash.Sum64(body) != le.Uint64(trailer) {
		return nil, fmt.Errorf("%w: %s: checksum mismatch", ErrCorrupt, path)
	}
	ix, err := decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if ix.shape.String() != want.String() {
		return nil, fmt.Errorf("%w: %s holds %q, want %q", ErrShapeMismatch, path, ix.shape, want)
	}
	return ix, nil
}

func decode(r *bytes.Reader) (*Index, error) {
	var rerr error
	get := func(v any) {
		if rerr == nil {
			rerr = binary.Read(r, le, v)
		}
	}
	getBytes := func() []byte {
		var n uint64
		get(&n)
		if rerr != nil {
			return nil
		}
		if n > uint64(r.Len()) {
			rerr = fmt.Errorf("length %d exceeds remaining %d bytes", n, r.Len())
			return nil
		}
		b := make([]byte, n)
		_, rerr = io.ReadFull(r, b)
		return b
	}

	var m [8]byte
	get(&m)
	if rerr == nil && m != magic {
		return nil, errors.New("bad magic")
	}
	var ver uint32
	get(&ver)
	if rerr == nil && ver != blobVersion {
		return nil, fmt.Errorf("unsupported version %d", ver)
	}
	mask := getBytes()
	if rerr != nil {
		return nil, rerr
	}
	shape, err := ParseShape(string(mask))
	if err != nil {
		return nil, err
	}
	ix := &Index{shape: shape}

	var nseq uint32
	get(&nseq)
	for i := uint32(0); i < nseq && rerr == nil; i++ {
		h := getBytes()
		s := getBytes()
		ix.headers = append(ix.headers, string(h))
		ix.seqs = append(ix.seqs, s)
		ix.fwdLen += int64(len(s))
	}

	var nkeys uint64
	get(&nkeys)
	if rerr == nil && nkeys > uint64(r.Len())/16 {
		return nil, fmt.Errorf("key count %d exceeds blob size", nkeys)
	}
	if rerr == nil {
		ix.keys = make([]uint64, nkeys)
		ix.offsets = make([]uint64, nkeys+1)
	}
	get(ix.keys)
	get(ix.offsets)
	var npos uint64
	get(&npos)
	if rerr == nil && (npos > uint64(r.Len())/8 || npos*8 != uint64(r.Len())) {
		return nil, fmt.Errorf("position count %d does not match blob size", npos)
	}
	if rerr == nil {
		ix.positions = make([]uint64, npos)
	}
	get(ix.positions)
	if rerr != nil {
		return nil, rerr
	}
	if ix.offsets[0] != 0 || ix.offsets[nkeys] != npos {
		return nil, errors.New("offset table does not cover positions")
	}
	for i := uint64(1); i <= nkeys; i++ {
		if ix.offsets[i] < ix.offsets[i-1] {
			return nil, fmt.Errorf("offset table decreases at key %d", i)
		}
	}
	ix.buildFilter()
	return ix, nil
}
