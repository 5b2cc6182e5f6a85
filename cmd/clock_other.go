//go:build !(linux || darwin || freebsd || openbsd || netbsd || dragonfly)

package cmd

import (
	"errors"
	"time"
)

var errClockUnsupported = errors.New("setting the system clock is not supported on this platform")

func setSystemClockTime(time.Time) error {
	return errClockUnsupported
}
