// core/index/index.go
package index

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"gonum.org/v1/gonum/stat"

	"seqmap-core/fastx"
)

// ErrEmpty is returned when a reference holds no indexable sequence.
var ErrEmpty = errors.New("index: reference holds no sequences")

const (
	maxSequences = 1 << 31
	maxSeqLen    = 1 << 32
)

// Hit is one seed occurrence in the reference.
type Hit struct {
	Seq     int  // reference sequence ordinal
	Reverse bool // occurrence lies on the reverse-complement strand
	Pos     int  // 0-based start on the strand it was found on
}

func packHit(seq int, reverse bool, pos int) uint64 {
	v := uint64(seq)<<33 | uint64(pos)
	if reverse {
		v |= 1 << 32
	}
	return v
}

// DecodeHit unpacks a value returned by Lookup.
func DecodeHit(v uint64) Hit {
	return Hit{
		Seq:     int(v >> 33),
		Reverse: v&(1<<32) != 0,
		Pos:     int(v & (1<<32 - 1)),
	}
}

// Index is an immutable spaced-seed index over both strands of a reference.
// All read methods are safe for concurrent use.
type Index struct {
	shape   Shape
	headers []string
	seqs    [][]byte
	fwdLen  int64

	keys      []uint64
	offsets   []uint64
	positions []uint64

	filter *bloom.BloomFilter
}

// Build indexes recs with shape. Sequences are upper-cased; seeds touching
// non-ACGT bases are skipped.
func Build(recs []fastx.Record, shape Shape) (*Index, error) {
	if len(recs) == 0 {
		return nil, ErrEmpty
	}
	if len(recs) >= maxSequences {
		return nil, fmt.Errorf("index: %d sequences exceeds limit", len(recs))
	}
	ix := &Index{shape: shape}

	type entry struct{ key, hit uint64 }
	var entries []entry
	for i, r := range recs {
		if len(r.Seq) >= maxSeqLen {
			return nil, fmt.Errorf("index: sequence %q too long (%d)", r.ID, len(r.Seq))
		}
		seq := bytes.ToUpper(r.Seq)
		ix.headers = append(ix.headers, r.Header)
		ix.seqs = append(ix.seqs, seq)
		ix.fwdLen += int64(len(seq))

		shape.ForEachSeed(seq, func(pos int, key uint64) {
			entries = append(entries, entry{key, packHit(i, false, pos)})
		})
		shape.ForEachSeed(RevComp(seq), func(pos int, key uint64) {
			entries = append(entries, entry{key, packHit(i, true, pos)})
		})
	}
	if ix.fwdLen == 0 {
		return nil, ErrEmpty
	}

	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(a.key, b.key); c != 0 {
			return c
		}
		return cmp.Compare(a.hit, b.hit)
	})
	ix.positions = make([]uint64, len(entries))
	for i, e := range entries {
		ix.positions[i] = e.hit
		if i == 0 || e.key != entries[i-1].key {
			ix.keys = append(ix.keys, e.key)
			ix.offsets = append(ix.offsets, uint64(i))
		}
	}
	ix.offsets = append(ix.offsets, uint64(len(entries)))
	ix.buildFilter()
	return ix, nil
}

func (ix *Index) buildFilter() {
	n := uint(len(ix.keys))
	if n == 0 {
		n = 1
	}
	ix.filter = bloom.NewWithEstimates(n, 0.01)
	var buf [8]byte
	for _, k := range ix.keys {
		binary.LittleEndian.PutUint64(buf[:], k)
		ix.filter.Add(buf[:])
	}
}

// Shape returns the seed shape the index was built with.
func (ix *Index) Shape() Shape { return ix.shape }

// DataLengthForward is the summed length of the reference sequences.
func (ix *Index) DataLengthForward() int64 { return ix.fwdLen }

// DataLength is the total indexed length, both strands.
func (ix *Index) DataLength() int64 { return 2 * ix.fwdLen }

// NumSequences is the number of reference sequences.
func (ix *Index) NumSequences() int { return len(ix.seqs) }

// Header returns the full header of reference i.
func (ix *Index) Header(i int) string { return ix.headers[i] }

// Length returns the length of reference i.
func (ix *Index) Length(i int) int { return len(ix.seqs[i]) }

// Sequence returns the forward strand of reference i. Callers must not modify it.
func (ix *Index) Sequence(i int) []byte { return ix.seqs[i] }

// NumKeys is the number of distinct seeds.
func (ix *Index) NumKeys() int { return len(ix.keys) }

// Lookup returns packed occurrences of key (see DecodeHit). The returned
// slice aliases index memory and must not be modified.
func (ix *Index) Lookup(key uint64) []uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	if !ix.filter.Test(buf[:]) {
		return nil
	}
	i, ok := slices.BinarySearch(ix.keys, key)
	if !ok {
		return nil
	}
	return ix.positions[ix.offsets[i]:ix.offsets[i+1]]
}

// Count returns the number of occurrences of key.
func (ix *Index) Count(key uint64) int { return len(ix.Lookup(key)) }

// PercentileHits returns the p-quantile (0 < p <= 1) of per-seed occurrence
// counts together with the maximum count.
func (ix *Index) PercentileHits(p float64) (int64, int64) {
	if len(ix.keys) == 0 {
		return 0, 0
	}
	counts := make([]float64, len(ix.keys))
	for i := range ix.keys {
		counts[i] = float64(ix.offsets[i+1] - ix.offsets[i])
	}
	sort.Float64s(counts)
	q := stat.Quantile(p, stat.Empirical, counts, nil)
	return int64(q), int64(counts[len(counts)-1])
}
