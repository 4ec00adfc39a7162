//go:build !linux

package mapper

func peakRSS() uint64 { return 0 }
