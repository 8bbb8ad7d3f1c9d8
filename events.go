package uidispatch

// IOEvents represents the readiness conditions reported for a registered file
// descriptor. Read and Write may be requested at registration time; Error,
// Hangup, and Invalid are delivered unsolicited when the underlying poll
// mechanism reports them.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the descriptor.
	EventHangup
	// EventInvalid indicates the descriptor is no longer usable (for example
	// it was closed while registered). Not all loopers report it.
	EventInvalid
)

// CallbackAction is a LooperCallback's verdict on its own registration.
//
// Returning CallbackRemove makes the loop's own bookkeeping remove the
// source: after that, no other code path may call Looper.RemoveFD for the
// same descriptor, as double removal is undefined behavior in foreign loops.
type CallbackAction int

const (
	// CallbackRemove unregisters the callback; it will not be invoked again.
	CallbackRemove CallbackAction = iota
	// CallbackKeep keeps the registration active.
	CallbackKeep
)

// LooperCallback is invoked by the loop, on the loop's own goroutine, when a
// registered file descriptor has pending events. A callback may be invoked
// one last time after RemoveFD if the descriptor was already signalled;
// callers must tolerate that, for example by removing the registration only
// via the callback's return value.
type LooperCallback func(fd int, events IOEvents) CallbackAction
