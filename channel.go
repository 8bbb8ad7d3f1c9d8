package uidispatch

// fdUnset is the sentinel for a channel descriptor that is not open.
const fdUnset = -1

// commandChannel is the one-way signaling path between worker goroutines and
// the UI goroutine: a byte pipe carrying fixed-size command tags. Any
// goroutine may send; only the UI goroutine reads. The two ends close
// independently and idempotently.
type commandChannel struct {
	readFD  int
	writeFD int
}

// newCommandChannel opens the pipe pair.
func newCommandChannel() (commandChannel, error) {
	readFD, writeFD, err := newCommandPipe()
	if err != nil {
		return commandChannel{readFD: fdUnset, writeFD: fdUnset}, err
	}
	return commandChannel{readFD: readFD, writeFD: writeFD}, nil
}

// send writes one command tag. The write either transfers the whole tag or
// fails; it is never retried, and a short write is reported as an error with
// no other side effects (the command is lost).
func (c *commandChannel) send(cmd Command) error {
	if c.writeFD == fdUnset {
		return errChannelClosed
	}
	var buf [commandTagSize]byte
	encodeCommand(&buf, cmd)
	n, err := writeFD(c.writeFD, buf[:])
	if err != nil {
		return err
	}
	if n != commandTagSize {
		return errShortCommandWrite
	}
	return nil
}

// readCommand performs one blocking read of exactly one tag. The read is
// bounded because the write side only ever writes complete tags. A read of
// less than one tag returns errShortCommandRead, which callers treat as a
// transient, not an error condition.
func (c *commandChannel) readCommand() (Command, error) {
	if c.readFD == fdUnset {
		return 0, errChannelClosed
	}
	var buf [commandTagSize]byte
	n, err := readFD(c.readFD, buf[:])
	if err != nil {
		return 0, err
	}
	if n != commandTagSize {
		return 0, errShortCommandRead
	}
	return decodeCommand(&buf), nil
}

// closeRead closes the read end if open.
func (c *commandChannel) closeRead() {
	if c.readFD != fdUnset {
		_ = closeFD(c.readFD)
		c.readFD = fdUnset
	}
}

// closeWrite closes the write end if open.
func (c *commandChannel) closeWrite() {
	if c.writeFD != fdUnset {
		_ = closeFD(c.writeFD)
		c.writeFD = fdUnset
	}
}
