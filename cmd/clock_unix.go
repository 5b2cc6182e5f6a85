//go:build linux || darwin || freebsd || openbsd || netbsd || dragonfly

package cmd

import (
	"syscall"
	"time"
)

// setSystemClockTime steps the system clock to t with microsecond precision
func setSystemClockTime(t time.Time) error {
	tv := syscall.NsecToTimeval(t.UnixNano())
	return syscall.Settimeofday(&tv)
}
