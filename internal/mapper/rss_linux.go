//go:build linux

package mapper

import "golang.org/x/sys/unix"

// peakRSS is the process's maximum resident set size in bytes.
func peakRSS() uint64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	return uint64(ru.Maxrss) * 1024
}
