// core/engine/engine.go
package engine

import (
	"cmp"
	"errors"
	"slices"

	"seqmap-core/fastx"
	"seqmap-core/index"
)

// ErrQueryTooShort is reported for queries shorter than every seed shape.
var ErrQueryTooShort = errors.New("query shorter than seed span")

// Params bounds the per-query search. Values come from calibration.
type Params struct {
	MaxRegions    int64 // candidate regions kept per query; <= 0 keeps all
	RegionsCutoff int64 // past this many candidates, weak ones are dropped; <= 0 disables
	MaxHits       int64 // seeds with more occurrences are skipped; <= 0 disables
}

// Region is a candidate placement of a query on one reference strand.
type Region struct {
	Ref     int
	Reverse bool
	Start   int // 0-based forward-strand start; may be negative when the query overhangs
	Votes   int // number of query seeds supporting this placement
}

// MappingData is the aligner's per-query result, consumed by a Collector.
type MappingData struct {
	QueryLen int
	Regions  []Region // best first
	Skipped  int      // seed lookups dropped by MaxHits
	Err      error
}

// Aligner places queries by diagonal seed voting over one or more indexes
// built from the same reference.
type Aligner struct {
	indexes []*index.Index
	p       Params
	minSpan int
}

// NewAligner returns an Aligner over indexes; indexes[0] is the primary.
func NewAligner(indexes []*index.Index, p Params) *Aligner {
	a := &Aligner{indexes: indexes, p: p}
	for i, ix := range indexes {
		if s := ix.Shape().Span(); i == 0 || s < a.minSpan {
			a.minSpan = s
		}
	}
	return a
}

type diagKey struct {
	ref     int
	reverse bool
	start   int
}

// Map finds candidate regions for rec. It never fails hard: problems are
// reported through MappingData.Err.
func (a *Aligner) Map(rec fastx.Record) MappingData {
	md := MappingData{QueryLen: len(rec.Seq)}
	if len(a.indexes) == 0 || len(rec.Seq) < a.minSpan {
		md.Err = ErrQueryTooShort
		return md
	}

	votes := make(map[diagKey]int)
	qlen := len(rec.Seq)
	for _, ix := range a.indexes {
		// Shapes are counted separately so overlapping shapes never double a
		// placement's support; the strongest shape wins.
		local := make(map[diagKey]int)
		ix.Shape().ForEachSeed(rec.Seq, func(qpos int, key uint64) {
			hits := ix.Lookup(key)
			if a.p.MaxHits > 0 && int64(len(hits)) > a.p.MaxHits {
				md.Skipped++
				return
			}
			for _, v := range hits {
				h := index.DecodeHit(v)
				start := h.Pos - qpos
				if h.Reverse {
					start = ix.Length(h.Seq) - start - qlen
				}
				local[diagKey{h.Seq, h.Reverse, start}]++
			}
		})
		for k, n := range local {
			if n > votes[k] {
				votes[k] = n
			}
		}
	}

	md.Regions = make([]Region, 0, len(votes))
	for k, n := range votes {
		md.Regions = append(md.Regions, Region{Ref: k.ref, Reverse: k.reverse, Start: k.start, Votes: n})
	}
	slices.SortFunc(md.Regions, func(x, y Region) int {
		if c := cmp.Compare(y.Votes, x.Votes); c != 0 {
			return c
		}
		if c := cmp.Compare(x.Ref, y.Ref); c != 0 {
			return c
		}
		if x.Reverse != y.Reverse {
			if x.Reverse {
				return 1
			}
			return -1
		}
		return cmp.Compare(x.Start, y.Start)
	})
	if c := a.p.RegionsCutoff; c > 0 && int64(len(md.Regions)) > c {
		best := md.Regions[0].Votes
		keep := int(c)
		for keep < len(md.Regions) && 2*md.Regions[keep].Votes >= best {
			keep++
		}
		md.Regions = md.Regions[:keep]
	}
	if a.p.MaxRegions > 0 && int64(len(md.Regions)) > a.p.MaxRegions {
		md.Regions = md.Regions[:a.p.MaxRegions]
	}
	return md
}
