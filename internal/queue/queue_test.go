package queue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestSeededOrder(t *testing.T) {
	q := New([]string{"a.fastq", "b.fastq"})
	if q.Len() != 2 {
		t.Fatalf("len: %d", q.Len())
	}
	for _, want := range []string{"a.fastq", "b.fastq"} {
		got, ok := q.Pop()
		if !ok || got != want {
			t.Fatalf("want %q, got %q ok=%v", want, got, ok)
		}
	}
}

func TestFIFOProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.SliceOf(rapid.StringMatching(`[a-z]{1,8}\.fq`)).Draw(t, "seed")
		pushed := rapid.SliceOf(rapid.StringMatching(`[a-z]{1,8}\.fa`)).Draw(t, "pushed")

		q := New(seed)
		for _, p := range pushed {
			q.Push(p)
		}
		want := append(append([]string{}, seed...), pushed...)
		for i, w := range want {
			got, ok := q.Pop()
			if !ok || got != w {
				t.Fatalf("pop %d: want %q, got %q ok=%v", i, w, got, ok)
			}
		}
		if q.Len() != 0 {
			t.Fatalf("len after drain: %d", q.Len())
		}
	})
}

func TestConcurrentProducerKeepsOrder(t *testing.T) {
	const n = 500
	q := New(nil)
	go func() {
		for i := 0; i < n; i++ {
			q.Push(fmt.Sprintf("f%04d", i))
		}
	}()
	for i := 0; i < n; i++ {
		got, ok := q.Pop()
		if want := fmt.Sprintf("f%04d", i); !ok || got != want {
			t.Fatalf("want %q got %q", want, got)
		}
	}
}

func TestTerminateUnblocksPop(t *testing.T) {
	q := New(nil)
	done := make(chan bool)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	q.Terminate()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("Pop after Terminate must report ok=false")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Pop still blocked after Terminate")
	}
}

func TestTerminateStopsDequeue(t *testing.T) {
	q := New([]string{"a", "b"})
	q.Terminate()
	if _, ok := q.Pop(); ok {
		t.Fatalf("pending items must not be dequeued after Terminate")
	}
	if q.Len() != 2 {
		t.Fatalf("items were removed: len=%d", q.Len())
	}
}

func TestTerminateReleasesAllWaiters(t *testing.T) {
	q := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Pop()
		}()
	}
	time.Sleep(20 * time.Millisecond)
	q.Terminate()
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("waiters not released")
	}
	if !q.Terminated() {
		t.Fatalf("Terminated() false")
	}
}
