package uidispatch

import (
	"sync/atomic"
)

// LooperState represents the current state of a UILooper.
//
// State machine:
//
//	StateAwake → StateRunning          [Run]
//	StateRunning → StateSleeping       [poll, via CAS]
//	StateSleeping → StateRunning       [poll wake, via CAS]
//	StateRunning → StateTerminating    [Shutdown/Close]
//	StateSleeping → StateTerminating   [Shutdown/Close]
//	StateTerminating → StateTerminated [run loop exit]
//	StateTerminated → (terminal)
//
// Temporary states (Running, Sleeping) must only be entered via
// tryTransition; Terminated is stored unconditionally once reached.
type LooperState uint64

const (
	// StateAwake indicates the looper has been created but not started.
	StateAwake LooperState = iota
	// StateRunning indicates the looper is dispatching callbacks.
	StateRunning
	// StateSleeping indicates the looper is blocked in poll waiting for
	// descriptor activity or a wake.
	StateSleeping
	// StateTerminating indicates shutdown has been requested but not
	// completed.
	StateTerminating
	// StateTerminated indicates the looper is fully stopped.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s LooperState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// looperState is a lock-free state word with cache-line padding to avoid
// false sharing with adjacent hot fields.
type looperState struct { // betteralign:ignore
	_ [64]byte      //nolint:unused
	v atomic.Uint64 // State value
	_ [56]byte      //nolint:unused
}

func (s *looperState) load() LooperState {
	return LooperState(s.v.Load())
}

func (s *looperState) store(state LooperState) {
	s.v.Store(uint64(state))
}

// tryTransition attempts to atomically transition from one state to another.
func (s *looperState) tryTransition(from, to LooperState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}
