//go:build unix

package hostbuf

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isResourceLimit(err error) bool {
	return errors.Is(err, unix.ENOMEM) || errors.Is(err, unix.EPERM) || errors.Is(err, unix.EAGAIN)
}
