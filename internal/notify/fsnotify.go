package notify

import (
	"errors"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultQuietPeriod is how long a created file must stay unwritten before
// the portable backend reports it as closed.
const DefaultQuietPeriod = 2 * time.Second

// FSOption configures the portable backend.
type FSOption func(*fsBackend)

// WithQuietPeriod sets the write-quiescence delay that stands in for
// close-after-write.
func WithQuietPeriod(d time.Duration) FSOption {
	return func(b *fsBackend) {
		if d > 0 {
			b.quiet = d
		}
	}
}

// fsBackend adapts fsnotify, which has no close-after-write event. A created
// file is reported closed once no write has been seen for the quiet period.
// Moves into the directory surface as creates and follow the same path.
type fsBackend struct {
	w     *fsnotify.Watcher
	dir   string
	quiet time.Duration

	// deadlines is owned by the goroutine calling Next.
	deadlines map[string]time.Time

	wake     chan struct{}
	wakeOnce sync.Once
}

// NewFSNotify watches dir with fsnotify.
func NewFSNotify(dir string, opts ...FSOption) (Backend, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	b := &fsBackend{
		w:         w,
		dir:       dir,
		quiet:     DefaultQuietPeriod,
		deadlines: make(map[string]time.Time),
		wake:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *fsBackend) Next() (iter.Seq[Event], error) {
	var timer <-chan time.Time
	if d, ok := b.earliest(); ok {
		t := time.NewTimer(time.Until(d))
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-b.wake:
		return nil, ErrClosed
	case ev, ok := <-b.w.Events:
		if !ok {
			return nil, ErrClosed
		}
		return slices.Values(b.translate(ev)), nil
	case err, ok := <-b.w.Errors:
		if !ok {
			return nil, ErrClosed
		}
		if errors.Is(err, fsnotify.ErrEventOverflow) {
			return slices.Values([]Event{{Op: OpOverflow}}), nil
		}
		return nil, err
	case now := <-timer:
		return slices.Values(b.expire(now)), nil
	}
}

func (b *fsBackend) earliest() (time.Time, bool) {
	var first time.Time
	for _, d := range b.deadlines {
		if first.IsZero() || d.Before(first) {
			first = d
		}
	}
	return first, !first.IsZero()
}

func (b *fsBackend) expire(now time.Time) []Event {
	var out []Event
	for name, d := range b.deadlines {
		if !d.After(now) {
			out = append(out, Event{Name: name, Op: OpCloseWrite})
			delete(b.deadlines, name)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (b *fsBackend) translate(ev fsnotify.Event) []Event {
	name, err := filepath.Rel(b.dir, ev.Name)
	if err != nil {
		name = filepath.Base(ev.Name)
	}
	switch {
	case ev.Has(fsnotify.Create):
		isDir := false
		if fi, err := os.Lstat(ev.Name); err == nil && fi.IsDir() {
			isDir = true
		}
		if !isDir {
			b.deadlines[name] = time.Now().Add(b.quiet)
		}
		return []Event{{Name: name, Op: OpCreate, IsDir: isDir}}
	case ev.Has(fsnotify.Write):
		if _, ok := b.deadlines[name]; ok {
			b.deadlines[name] = time.Now().Add(b.quiet)
		}
		return []Event{{Name: name, Op: OpModify}}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		delete(b.deadlines, name)
		return []Event{{Name: name, Op: OpIgnored}}
	}
	return nil
}

func (b *fsBackend) Wake() {
	b.wakeOnce.Do(func() { close(b.wake) })
}

func (b *fsBackend) Close() error {
	b.Wake()
	return b.w.Close()
}

// Backend kinds accepted by Open.
const (
	KindAuto     = "auto"
	KindInotify  = "inotify"
	KindFSNotify = "fsnotify"
)

// Open returns the backend named by kind. "auto" prefers inotify and falls
// back to fsnotify where inotify is unavailable.
func Open(dir, kind string, quiet time.Duration) (Backend, error) {
	switch kind {
	case KindInotify:
		return NewInotify(dir)
	case KindFSNotify:
		return NewFSNotify(dir, WithQuietPeriod(quiet))
	case "", KindAuto:
		if b, err := NewInotify(dir); err == nil {
			return b, nil
		}
		return NewFSNotify(dir, WithQuietPeriod(quiet))
	}
	return nil, errors.New("notify: unknown backend " + kind)
}
