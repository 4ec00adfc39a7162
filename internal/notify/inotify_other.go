//go:build !linux

package notify

import "errors"

// NewInotify is only available on Linux.
func NewInotify(string) (Backend, error) {
	return nil, errors.New("notify: inotify backend requires linux")
}
