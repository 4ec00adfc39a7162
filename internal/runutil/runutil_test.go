package runutil

import "testing"

func TestEffectiveThreads(t *testing.T) {
	cases := []struct{ override, ncpu, want int }{
		{0, 8, 4},
		{0, 64, 24},
		{0, 1, 1},
		{0, 0, 1},
		{6, 64, 6},
		{-3, 16, 8},
	}
	for _, c := range cases {
		if got := EffectiveThreads(c.override, c.ncpu); got != c.want {
			t.Fatalf("EffectiveThreads(%d,%d) = %d, want %d", c.override, c.ncpu, got, c.want)
		}
	}
}

func TestWindow(t *testing.T) {
	cases := []struct {
		start, count, offset int64
		n, lo, hi            int
	}{
		{-1, -1, 0, 10, 0, 10},
		{2, -1, 0, 10, 2, 10},
		{2, 3, 0, 10, 2, 5},
		{8, 5, 0, 10, 8, 10},
		{20, 5, 0, 10, 10, 10},
		{0, 0, 0, 10, 0, 0},
		{5, 10, 10, 10, 0, 5},  // window tail falls in the second batch
		{15, 2, 10, 10, 5, 7},  // window entirely inside the second batch
		{0, 5, 10, 10, 0, 0},   // window ended before this batch
		{0, -1, 30, 10, 0, 10}, // open-ended
	}
	for _, c := range cases {
		lo, hi := Window(c.start, c.count, c.offset, c.n)
		if lo != c.lo || hi != c.hi {
			t.Fatalf("Window(%d,%d,%d,%d) = [%d,%d), want [%d,%d)", c.start, c.count, c.offset, c.n, lo, hi, c.lo, c.hi)
		}
	}
}

func TestLRUMapEvictsLeastRecent(t *testing.T) {
	m := NewLRUMap[string, int](2)
	m.Put("a", 1)
	m.Put("b", 2)
	if _, ok := m.Get("a"); !ok {
		t.Fatalf("a missing")
	}
	if evicted := m.Put("c", 3); !evicted {
		t.Fatalf("expected eviction at capacity")
	}
	if _, ok := m.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %d,%v", v, ok)
	}
	m.Put("a", 9)
	if v, _ := m.Get("a"); v != 9 {
		t.Fatalf("update lost: %d", v)
	}
	m.Delete("a")
	if m.Len() != 1 {
		t.Fatalf("len after delete: %d", m.Len())
	}
}
