package notify

import (
	"errors"

	"go.uber.org/zap"

	"seqmap/internal/runutil"
)

// DefaultTableCapacity bounds the per-file state kept by a Notifier.
const DefaultTableCapacity = 1 << 16

// fileState is the debounce state of one file name.
type fileState uint8

const (
	stateUnknown fileState = iota
	stateOpen              // created, not yet closed after writing
	stateClosed            // reported
)

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(n *Notifier) { n.log = l.Named("notify") }
}

// WithTableCapacity bounds the debounce table; the least recently touched
// names are forgotten first.
func WithTableCapacity(c int) Option {
	return func(n *Notifier) { n.capacity = c }
}

// WithOnEvent installs a hook called for every event received, before
// debouncing.
func WithOnEvent(fn func(Event)) Option {
	return func(n *Notifier) { n.onEvent = fn }
}

// Notifier turns raw directory events into completed-file notifications.
//
// A file is reported once after it was created and then closed after a
// write, or immediately when it is moved into the directory. Directories
// are never reported.
type Notifier struct {
	backend  Backend
	emit     func(name string)
	log      *zap.Logger
	capacity int
	onEvent  func(Event)

	table *runutil.LRUMap[string, fileState]
}

// New returns a Notifier reading from backend and calling emit for every
// completed file. emit runs on the Run goroutine.
func New(backend Backend, emit func(name string), opts ...Option) *Notifier {
	n := &Notifier{
		backend:  backend,
		emit:     emit,
		log:      zap.NewNop(),
		capacity: DefaultTableCapacity,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.table = runutil.NewLRUMap[string, fileState](n.capacity)
	return n
}

// Run processes events until Stop is called, then closes the backend.
// Read errors are logged and the loop continues.
func (n *Notifier) Run() error {
	defer func() {
		if err := n.backend.Close(); err != nil {
			n.log.Warn("closing watch backend", zap.Error(err))
		}
	}()
	for {
		events, err := n.backend.Next()
		if errors.Is(err, ErrClosed) {
			n.log.Debug("watcher stopped")
			return nil
		}
		if err != nil {
			n.log.Warn("reading directory events", zap.Error(err))
			continue
		}
		for ev := range events {
			n.handle(ev)
		}
	}
}

// Stop unblocks Run from any goroutine.
func (n *Notifier) Stop() { n.backend.Wake() }

func (n *Notifier) handle(ev Event) {
	if n.onEvent != nil {
		n.onEvent(ev)
	}
	if ev.IsDir && ev.Op != OpOverflow {
		return
	}
	switch ev.Op {
	case OpCreate:
		n.log.Debug("file created", zap.String("file", ev.Name))
		n.table.Put(ev.Name, stateOpen)
	case OpMovedTo:
		n.log.Info("file moved in", zap.String("file", ev.Name))
		n.table.Put(ev.Name, stateClosed)
		n.emit(ev.Name)
	case OpCloseWrite:
		if st, _ := n.table.Get(ev.Name); st == stateOpen {
			n.log.Info("file ready", zap.String("file", ev.Name))
			n.emit(ev.Name)
		}
		n.table.Put(ev.Name, stateClosed)
	case OpOverflow:
		n.log.Warn("event queue overflowed; some files may be missed")
	}
}
