//go:build linux

package notify

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

const watchMask = unix.IN_CREATE | unix.IN_MODIFY | unix.IN_CLOSE | unix.IN_MOVE

type inotifyBackend struct {
	fd     int
	wakeFd int
	buf    []byte
	woken  atomic.Bool

	mu     sync.Mutex // guards the fds against Wake after Close
	closed bool
}

// NewInotify watches dir with Linux inotify. Event reads are multiplexed
// with an eventfd so Wake can interrupt a blocked Next.
func NewInotify(dir string) (Backend, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("inotify init: %w", err)
	}
	if _, err := unix.InotifyAddWatch(fd, dir, watchMask); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("inotify watch %s: %w", dir, err)
	}
	wfd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	return &inotifyBackend{
		fd:     fd,
		wakeFd: wfd,
		buf:    make([]byte, 64*(unix.SizeofInotifyEvent+unix.NAME_MAX+1)),
	}, nil
}

func (b *inotifyBackend) Next() (iter.Seq[Event], error) {
	for {
		if b.woken.Load() {
			return nil, ErrClosed
		}
		fds := []unix.PollFd{
			{Fd: int32(b.fd), Events: unix.POLLIN},
			{Fd: int32(b.wakeFd), Events: unix.POLLIN},
		}
		if _, err := unix.Poll(fds, -1); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return nil, fmt.Errorf("poll: %w", err)
		}
		if fds[1].Revents&unix.POLLIN != 0 {
			return nil, ErrClosed
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			continue
		}
		raw, err := b.drain()
		if err != nil {
			return nil, err
		}
		return decodeEvents(raw), nil
	}
}

// drain reads every buffered event so one cycle covers all of them.
func (b *inotifyBackend) drain() ([]byte, error) {
	var raw []byte
	for {
		n, err := unix.Read(b.fd, b.buf)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return raw, nil
		case err != nil:
			return raw, fmt.Errorf("reading inotify: %w", err)
		case n <= 0:
			return raw, nil
		}
		raw = append(raw, b.buf[:n]...)
	}
}

// Wake is a no-op once Close has run; the fd numbers may belong to other
// files by then.
func (b *inotifyBackend) Wake() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.woken.Store(true)
	if b.closed {
		return
	}
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	_, _ = unix.Write(b.wakeFd, one[:])
}

func (b *inotifyBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.woken.Store(true)
	if b.closed {
		return nil
	}
	b.closed = true
	err := unix.Close(b.fd)
	if cerr := unix.Close(b.wakeFd); err == nil {
		err = cerr
	}
	return err
}

// decodeEvents walks packed inotify_event records lazily. Truncated
// trailing bytes are dropped.
func decodeEvents(raw []byte) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for off := 0; off+unix.SizeofInotifyEvent <= len(raw); {
			mask := binary.NativeEndian.Uint32(raw[off+4:])
			nameLen := int(binary.NativeEndian.Uint32(raw[off+12:]))
			start := off + unix.SizeofInotifyEvent
			end := start + nameLen
			if end > len(raw) {
				return
			}
			off = end

			name := raw[start:end]
			if i := bytes.IndexByte(name, 0); i >= 0 {
				name = name[:i]
			}
			op := opFromMask(mask)
			if op == 0 {
				continue
			}
			if len(name) == 0 && op != OpOverflow {
				continue
			}
			if !yield(Event{Name: string(name), Op: op, IsDir: mask&unix.IN_ISDIR != 0}) {
				return
			}
		}
	}
}

func opFromMask(mask uint32) Op {
	switch {
	case mask&unix.IN_Q_OVERFLOW != 0:
		return OpOverflow
	case mask&unix.IN_IGNORED != 0:
		return OpIgnored
	case mask&unix.IN_CREATE != 0:
		return OpCreate
	case mask&unix.IN_MOVED_TO != 0:
		return OpMovedTo
	case mask&unix.IN_CLOSE_WRITE != 0:
		return OpCloseWrite
	case mask&unix.IN_CLOSE_NOWRITE != 0:
		return OpCloseNoWrite
	case mask&unix.IN_MODIFY != 0:
		return OpModify
	case mask&unix.IN_MOVED_FROM != 0:
		return OpIgnored
	}
	return 0
}
