// core/index/shape.go
package index

import (
	"fmt"
	"strings"
)

// Spaced-seed shapes. A '1' is a position that contributes to the key, a
// '0' is skipped.
const (
	ShapePrimary   = "11110111101111" // weight 12, span 14
	ShapeSecondary = "1111110111111"  // weight 12, span 13
)

// maxWeight keeps a packed key inside 64 bits (2 bits per base).
const maxWeight = 32

// Shape is a parsed spaced-seed mask.
type Shape struct {
	mask  string
	cares []int
}

// ParseShape validates a 0/1 mask. The first and last positions must be
// cared for so the span is well defined.
func ParseShape(mask string) (Shape, error) {
	if mask == "" {
		return Shape{}, fmt.Errorf("index: empty shape")
	}
	if strings.Trim(mask, "01") != "" {
		return Shape{}, fmt.Errorf("index: shape %q contains characters other than 0/1", mask)
	}
	if mask[0] != '1' || mask[len(mask)-1] != '1' {
		return Shape{}, fmt.Errorf("index: shape %q must start and end with 1", mask)
	}
	var cares []int
	for i := 0; i < len(mask); i++ {
		if mask[i] == '1' {
			cares = append(cares, i)
		}
	}
	if len(cares) > maxWeight {
		return Shape{}, fmt.Errorf("index: shape %q weight %d exceeds %d", mask, len(cares), maxWeight)
	}
	return Shape{mask: mask, cares: cares}, nil
}

// MustShape is ParseShape for compile-time constants.
func MustShape(mask string) Shape {
	s, err := ParseShape(mask)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Shape) String() string { return s.mask }

// Span is the number of bases one seed covers.
func (s Shape) Span() int { return len(s.mask) }

// Weight is the number of bases that contribute to the key.
func (s Shape) Weight() int { return len(s.cares) }

// code maps a base to 2 bits; ok is false for anything but ACGT (any case).
func code(b byte) (uint64, bool) {
	switch b {
	case 'A', 'a':
		return 0, true
	case 'C', 'c':
		return 1, true
	case 'G', 'g':
		return 2, true
	case 'T', 't':
		return 3, true
	}
	return 0, false
}

// Key packs the seed starting at seq[pos]. ok is false when the window runs
// past the end or a cared position holds an ambiguous base.
func (s Shape) Key(seq []byte, pos int) (uint64, bool) {
	if pos < 0 || pos+len(s.mask) > len(seq) {
		return 0, false
	}
	var k uint64
	for _, off := range s.cares {
		c, ok := code(seq[pos+off])
		if !ok {
			return 0, false
		}
		k = k<<2 | c
	}
	return k, true
}

// ForEachSeed calls fn for every valid seed in seq, left to right.
func (s Shape) ForEachSeed(seq []byte, fn func(pos int, key uint64)) {
	for pos := 0; pos+len(s.mask) <= len(seq); pos++ {
		if k, ok := s.Key(seq, pos); ok {
			fn(pos, k)
		}
	}
}

var complement = func() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = 'N'
	}
	for _, p := range [][2]byte{{'A', 'T'}, {'C', 'G'}, {'G', 'C'}, {'T', 'A'}, {'a', 't'}, {'c', 'g'}, {'g', 'c'}, {'t', 'a'}} {
		t[p[0]] = p[1]
	}
	return t
}()

// RevComp returns the reverse complement of seq. Non-ACGT bases become N.
func RevComp(seq []byte) []byte {
	out := make([]byte, len(seq))
	for i, b := range seq {
		out[len(seq)-1-i] = complement[b]
	}
	return out
}
