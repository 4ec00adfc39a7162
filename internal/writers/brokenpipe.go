package writers

import (
	"errors"
	"io"
	"syscall"
)

// IsBrokenPipe reports whether err means the reader of our output went
// away: EPIPE or ECONNRESET from a pipe or socket (`seqmap ... | head`), or
// a write to an io.Pipe whose reader was closed.
func IsBrokenPipe(err error) bool {
	if err == nil {
		return false
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return errors.Is(err, io.ErrClosedPipe)
}
