//go:build linux || darwin

package uidispatch

import (
	"golang.org/x/sys/unix"
)

// Raw descriptor operations shared by the command channel and the looper's
// wake descriptors. Descriptor lifetimes are managed by their owners
// (commandChannel, UILooper); these shims do no bookkeeping.

// closeFD closes fd.
func closeFD(fd int) error {
	return unix.Close(fd)
}

// readFD reads from fd into buf, returning the byte count.
func readFD(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

// writeFD writes buf to fd, returning the byte count.
func writeFD(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}
