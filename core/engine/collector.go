// core/engine/collector.go
package engine

import (
	"strconv"
	"strings"

	"seqmap-core/fastx"
	"seqmap-core/index"
)

// State classifies the outcome of mapping one query.
type State int

const (
	StateUnmapped State = iota
	StateMapped
	StateAmbiguous
	StateError
)

func (s State) String() string {
	switch s {
	case StateMapped:
		return "mapped"
	case StateAmbiguous:
		return "ambiguous"
	case StateError:
		return "error"
	default:
		return "unmapped"
	}
}

// SAM flag bits used here.
const (
	flagUnmapped  = 0x4
	flagReverse   = 0x10
	flagSecondary = 0x100
)

const maxMapQ = 60

// ReferenceName returns the record name used for header and RNAME: the
// header cut at its first whitespace, or the full header when full is set.
func ReferenceName(header string, full bool) string {
	if full {
		return header
	}
	if i := strings.IndexAny(header, " \t"); i >= 0 {
		return header[:i]
	}
	return header
}

// CollectorOptions tunes how regions become records.
type CollectorOptions struct {
	MinVotes  int  // a placement needs at least this many seeds; < 1 means 1
	Multiple  bool // emit secondary records for tied placements
	FullNames bool // use full reference headers as RNAME
}

// Collector turns MappingData into a State and SAM-like lines.
type Collector struct {
	ref *index.Index
	o   CollectorOptions
}

// NewCollector returns a Collector resolving reference names and bases from ref.
func NewCollector(ref *index.Index, o CollectorOptions) *Collector {
	if o.MinVotes < 1 {
		o.MinVotes = 1
	}
	return &Collector{ref: ref, o: o}
}

// Collect classifies md and serializes the query's records (no trailing newline).
func (c *Collector) Collect(rec fastx.Record, md MappingData) (State, []string) {
	if md.Err != nil {
		return StateError, []string{c.unmapped(rec, "ZE:Z:"+md.Err.Error())}
	}
	if len(md.Regions) == 0 || md.Regions[0].Votes < c.o.MinVotes {
		return StateUnmapped, []string{c.unmapped(rec, "")}
	}

	best := md.Regions[0]
	state := StateMapped
	mapq := maxMapQ
	if len(md.Regions) > 1 {
		second := md.Regions[1].Votes
		if second == best.Votes {
			state, mapq = StateAmbiguous, 0
		} else {
			mapq = maxMapQ * (best.Votes - second) / best.Votes
		}
	}

	line, ok := c.placed(rec, best, 0, mapq, true)
	if !ok {
		return StateUnmapped, []string{c.unmapped(rec, "")}
	}
	lines := []string{line}
	if state == StateAmbiguous && c.o.Multiple {
		for _, r := range md.Regions[1:] {
			if r.Votes != best.Votes {
				break
			}
			if l, ok := c.placed(rec, r, flagSecondary, 0, false); ok {
				lines = append(lines, l)
			}
		}
	}
	return state, lines
}

func (c *Collector) unmapped(rec fastx.Record, tag string) string {
	var b strings.Builder
	b.WriteString(rec.ID)
	b.WriteString("\t4\t*\t0\t0\t*\t*\t0\t0\t")
	b.Write(orStar(rec.Seq))
	b.WriteByte('\t')
	b.Write(orStar(rec.Qual))
	if tag != "" {
		b.WriteByte('\t')
		b.WriteString(tag)
	}
	return b.String()
}

func (c *Collector) placed(rec fastx.Record, r Region, flag, mapq int, withSeq bool) (string, bool) {
	qlen := len(rec.Seq)
	refSeq := c.ref.Sequence(r.Ref)
	left := max(0, -r.Start)
	right := max(0, r.Start+qlen-len(refSeq))
	if left+right >= qlen {
		return "", false
	}

	seq, qual := rec.Seq, rec.Qual
	if r.Reverse {
		flag |= flagReverse
		seq = index.RevComp(seq)
		qual = reversed(qual)
	}

	refStart := max(r.Start, 0)
	aligned := qlen - left - right
	nm := 0
	for i := 0; i < aligned; i++ {
		if upper(seq[left+i]) != refSeq[refStart+i] {
			nm++
		}
	}

	var b strings.Builder
	b.WriteString(rec.ID)
	b.WriteByte('\t')
	b.WriteString(strconv.Itoa(flag))
	b.WriteByte('\t')
	b.WriteString(ReferenceName(c.ref.Header(r.Ref), c.o.FullNames))
	b.WriteByte('\t')
	b.WriteString(strconv.Itoa(refStart + 1))
	b.WriteByte('\t')
	b.WriteString(strconv.Itoa(mapq))
	b.WriteByte('\t')
	if left > 0 {
		b.WriteString(strconv.Itoa(left))
		b.WriteByte('S')
	}
	b.WriteString(strconv.Itoa(aligned))
	b.WriteByte('M')
	if right > 0 {
		b.WriteString(strconv.Itoa(right))
		b.WriteByte('S')
	}
	b.WriteString("\t*\t0\t0\t")
	if withSeq {
		b.Write(orStar(seq))
		b.WriteByte('\t')
		b.Write(orStar(qual))
	} else {
		b.WriteString("*\t*")
	}
	b.WriteString("\tNM:i:")
	b.WriteString(strconv.Itoa(nm))
	b.WriteString("\tAS:i:")
	b.WriteString(strconv.Itoa(r.Votes))
	return b.String(), true
}

var star = []byte{'*'}

func orStar(b []byte) []byte {
	if len(b) == 0 {
		return star
	}
	return b
}

func reversed(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

func upper(b byte) byte {
	if 'a' <= b && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}
