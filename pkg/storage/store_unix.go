//go:build !windows
// +build !windows

package storage

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isEphemeralError(err error) bool {
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.EAGAIN, unix.EBUSY, unix.EINTR:
			return true
		}
	}
	return false
}
