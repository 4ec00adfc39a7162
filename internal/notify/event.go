// Package notify watches a directory and reports files that finished
// arriving, either by being written and closed or by being moved in.
package notify

import (
	"errors"
	"iter"
)

// ErrClosed is returned by Backend.Next after Wake or Close.
var ErrClosed = errors.New("notify: backend closed")

// Op is the kind of a directory change.
type Op uint8

const (
	OpCreate Op = iota + 1
	OpModify
	OpCloseWrite
	OpCloseNoWrite
	OpMovedTo
	OpOverflow
	OpIgnored
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpCloseWrite:
		return "close-write"
	case OpCloseNoWrite:
		return "close-nowrite"
	case OpMovedTo:
		return "moved-to"
	case OpOverflow:
		return "overflow"
	case OpIgnored:
		return "ignored"
	}
	return "unknown"
}

// Event is one change to an entry of the watched directory. Name is
// relative to the directory.
type Event struct {
	Name  string
	Op    Op
	IsDir bool
}

// Backend produces directory events.
//
// Next blocks for one read cycle and returns that cycle's events as a lazy,
// finite sequence. Wake may be called from any goroutine and makes the
// pending and every later Next return ErrClosed. Close releases OS
// resources and is called by the goroutine that owns the backend.
type Backend interface {
	Next() (iter.Seq[Event], error)
	Wake()
	Close() error
}
