package uidispatch

import "encoding/binary"

// Command identifies a request sent to the UI goroutine over the command
// channel. Commands are transmitted as fixed-width binary tags; values are
// never combined.
type Command uint32

const (
	// CommandExecutePendingFunctions requests a full drain of the pending
	// function queue on the UI goroutine.
	CommandExecutePendingFunctions Command = iota
	// CommandDestroy requests destruction of the dispatcher from inside the
	// UI goroutine's callback invocation.
	CommandDestroy
)

// commandTagSize is the wire size of one command tag. Tag writes at or below
// PIPE_BUF are atomic on the supported platforms, so tags are never
// interleaved or split.
const commandTagSize = 4

// String returns a human-readable representation of the command.
func (c Command) String() string {
	switch c {
	case CommandExecutePendingFunctions:
		return "ExecutePendingFunctions"
	case CommandDestroy:
		return "Destroy"
	default:
		return "Unknown"
	}
}

// encodeCommand writes the tag for c into buf.
func encodeCommand(buf *[commandTagSize]byte, c Command) {
	binary.LittleEndian.PutUint32(buf[:], uint32(c))
}

// decodeCommand reads a tag from buf.
func decodeCommand(buf *[commandTagSize]byte) Command {
	return Command(binary.LittleEndian.Uint32(buf[:]))
}
