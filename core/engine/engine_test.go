package engine

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"seqmap-core/fastx"
	"seqmap-core/index"
)

func randomSeq(seed uint64, n int) []byte {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]byte, n)
	for i := range out {
		out[i] = "ACGT"[r.IntN(4)]
	}
	return out
}

func buildIndexes(t *testing.T, ref []byte, sensitive bool) []*index.Index {
	t.Helper()
	recs := []fastx.Record{{ID: "chr1", Header: "chr1 synthetic", Seq: ref}}
	prim, err := index.Build(recs, index.MustShape(index.ShapePrimary))
	require.NoError(t, err)
	out := []*index.Index{prim}
	if sensitive {
		sec, err := index.Build(recs, index.MustShape(index.ShapeSecondary))
		require.NoError(t, err)
		out = append(out, sec)
	}
	return out
}

func fields(line string) []string { return strings.Split(line, "\t") }

func TestMapForward(t *testing.T) {
	ref := randomSeq(1, 400)
	ixs := buildIndexes(t, ref, true)
	a := NewAligner(ixs, Params{MaxRegions: 500})
	c := NewCollector(ixs[0], CollectorOptions{})

	q := fastx.Record{ID: "q1", Seq: append([]byte(nil), ref[100:160]...), Qual: []byte(strings.Repeat("I", 60))}
	md := a.Map(q)
	require.NoError(t, md.Err)
	require.NotEmpty(t, md.Regions)
	require.Equal(t, 100, md.Regions[0].Start)

	state, lines := c.Collect(q, md)
	require.Equal(t, StateMapped, state)
	require.Len(t, lines, 1)
	f := fields(lines[0])
	require.Equal(t, "q1", f[0])
	require.Equal(t, "0", f[1])
	require.Equal(t, "chr1", f[2])
	require.Equal(t, "101", f[3])
	require.Equal(t, "60", f[4])
	require.Equal(t, "60M", f[5])
	require.Equal(t, "NM:i:0", f[11])
}

func TestMapReverse(t *testing.T) {
	ref := randomSeq(2, 400)
	ixs := buildIndexes(t, ref, false)
	a := NewAligner(ixs, Params{})
	c := NewCollector(ixs[0], CollectorOptions{FullNames: true})

	q := fastx.Record{ID: "q2", Seq: index.RevComp(ref[200:250])}
	state, lines := c.Collect(q, a.Map(q))
	require.Equal(t, StateMapped, state)
	f := fields(lines[0])
	require.Equal(t, "16", f[1])
	require.Equal(t, "chr1 synthetic", f[2])
	require.Equal(t, "201", f[3])
	require.Equal(t, string(ref[200:250]), f[9], "SEQ is reported on the forward strand")
	require.Equal(t, "*", f[10])
}

func TestMapOverhangSoftClips(t *testing.T) {
	ref := randomSeq(3, 300)
	ixs := buildIndexes(t, ref, false)
	a := NewAligner(ixs, Params{})
	c := NewCollector(ixs[0], CollectorOptions{})

	seq := append(append([]byte(nil), ref[270:]...), []byte("NNNNNNNNNN")...)
	q := fastx.Record{ID: "q3", Seq: seq}
	state, lines := c.Collect(q, a.Map(q))
	require.Equal(t, StateMapped, state)
	f := fields(lines[0])
	require.Equal(t, "271", f[3])
	require.Equal(t, "30M10S", f[5])
}

func TestMapShortQueryIsError(t *testing.T) {
	ixs := buildIndexes(t, randomSeq(4, 100), false)
	a := NewAligner(ixs, Params{})
	c := NewCollector(ixs[0], CollectorOptions{})
	q := fastx.Record{ID: "tiny", Seq: []byte("ACGT")}
	md := a.Map(q)
	require.ErrorIs(t, md.Err, ErrQueryTooShort)
	state, lines := c.Collect(q, md)
	require.Equal(t, StateError, state)
	require.Len(t, lines, 1)
	require.Equal(t, "4", fields(lines[0])[1])
}

func TestMapUnmapped(t *testing.T) {
	ixs := buildIndexes(t, randomSeq(5, 200), false)
	a := NewAligner(ixs, Params{})
	c := NewCollector(ixs[0], CollectorOptions{})
	q := fastx.Record{ID: "nn", Seq: []byte(strings.Repeat("N", 50))}
	state, lines := c.Collect(q, a.Map(q))
	require.Equal(t, StateUnmapped, state)
	require.Equal(t, "nn\t4\t*\t0\t0\t*\t*\t0\t0\t"+strings.Repeat("N", 50)+"\t*", lines[0])
}

func TestAmbiguousRepeat(t *testing.T) {
	rep := randomSeq(6, 40)
	var ref []byte
	ref = append(ref, randomSeq(7, 80)...)
	ref = append(ref, rep...)
	ref = append(ref, randomSeq(8, 80)...)
	ref = append(ref, rep...)
	ref = append(ref, randomSeq(9, 80)...)
	ixs := buildIndexes(t, ref, false)
	a := NewAligner(ixs, Params{})
	q := fastx.Record{ID: "rep", Seq: rep}
	md := a.Map(q)

	state, lines := NewCollector(ixs[0], CollectorOptions{}).Collect(q, md)
	require.Equal(t, StateAmbiguous, state)
	require.Len(t, lines, 1)
	require.Equal(t, "0", fields(lines[0])[4], "tied placements get MAPQ 0")

	state, lines = NewCollector(ixs[0], CollectorOptions{Multiple: true}).Collect(q, md)
	require.Equal(t, StateAmbiguous, state)
	require.Len(t, lines, 2)
	require.Equal(t, "256", fields(lines[1])[1])
}

func TestMaxRegionsAndHits(t *testing.T) {
	rep := randomSeq(10, 40)
	var ref []byte
	for i := 0; i < 4; i++ {
		ref = append(ref, randomSeq(uint64(20+i), 60)...)
		ref = append(ref, rep...)
	}
	ixs := buildIndexes(t, ref, false)
	q := fastx.Record{ID: "rep", Seq: rep}

	md := NewAligner(ixs, Params{MaxRegions: 2}).Map(q)
	require.Len(t, md.Regions, 2)

	md = NewAligner(ixs, Params{MaxHits: 3}).Map(q)
	require.Empty(t, md.Regions, "every seed occurs four times and is skipped")
	require.Positive(t, md.Skipped)
}

func TestReferenceName(t *testing.T) {
	require.Equal(t, "chr1", ReferenceName("chr1 desc here", false))
	require.Equal(t, "chr1 desc here", ReferenceName("chr1 desc here", true))
	require.Equal(t, "chr2", ReferenceName("chr2", false))
}

func TestStateString(t *testing.T) {
	require.Equal(t, "mapped", StateMapped.String())
	require.Equal(t, "error", StateError.String())
}

func TestRegionsCutoffDropsWeakTail(t *testing.T) {
	rep := randomSeq(30, 40)
	var ref []byte
	ref = append(ref, randomSeq(31, 60)...)
	ref = append(ref, rep...)
	ref = append(ref, randomSeq(32, 60)...)
	ref = append(ref, rep[:20]...) // weak partial copy
	ref = append(ref, randomSeq(33, 60)...)
	ixs := buildIndexes(t, ref, false)
	q := fastx.Record{ID: "rep", Seq: rep}

	all := NewAligner(ixs, Params{}).Map(q)
	require.GreaterOrEqual(t, len(all.Regions), 2)

	cut := NewAligner(ixs, Params{RegionsCutoff: 1}).Map(q)
	require.Len(t, cut.Regions, 1)
	require.Equal(t, all.Regions[0], cut.Regions[0])
}
