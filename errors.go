package uidispatch

import "errors"

// Standard errors.
var (
	// ErrCreatorNotFound is returned by InitializeApp when no creator is
	// registered for the requested identifier.
	ErrCreatorNotFound = errors.New("uidispatch: no app creator registered for identifier")

	// ErrAppAlreadyInitialized is returned by InitializeApp when the hosted
	// application slot is already occupied.
	ErrAppAlreadyInitialized = errors.New("uidispatch: app already initialized")

	// ErrNilLooper is returned by Initialize when no looper is supplied.
	ErrNilLooper = errors.New("uidispatch: looper is required")

	// ErrNilActivity is returned by Initialize when no activity is supplied.
	ErrNilActivity = errors.New("uidispatch: activity is required")

	// ErrNilAssetManager is returned by Initialize when no asset manager is
	// supplied.
	ErrNilAssetManager = errors.New("uidispatch: asset manager is required")

	// ErrInvalidConfiguration is returned when the configuration asset exists
	// but is not valid JSON.
	ErrInvalidConfiguration = errors.New("uidispatch: malformed configuration asset")

	// errChannelClosed is returned by channel operations after the relevant
	// pipe end has been closed.
	errChannelClosed = errors.New("uidispatch: command channel is closed")

	// errShortCommandWrite reports a write that transferred less than one
	// full command tag. The tag is considered lost.
	errShortCommandWrite = errors.New("uidispatch: short command write")

	// errShortCommandRead reports a read of less than one full command tag.
	// It is a tolerated transient, not an error condition: single-tag writes
	// are atomic on the supported platforms, so it should never occur.
	errShortCommandRead = errors.New("uidispatch: short command read")
)

// Looper errors.
var (
	// ErrLooperAlreadyRunning is returned when Run is called on a looper that
	// is already running.
	ErrLooperAlreadyRunning = errors.New("uidispatch: looper is already running")

	// ErrLooperTerminated is returned when operations are attempted on a
	// terminated looper.
	ErrLooperTerminated = errors.New("uidispatch: looper has been terminated")

	// ErrReentrantRun is returned when Run is called from within the looper
	// itself.
	ErrReentrantRun = errors.New("uidispatch: cannot call Run from within the looper")
)

// Poller errors.
var (
	ErrFDOutOfRange        = errors.New("uidispatch: fd out of range")
	ErrFDAlreadyRegistered = errors.New("uidispatch: fd already registered")
	ErrFDNotRegistered     = errors.New("uidispatch: fd not registered")
	ErrPollerClosed        = errors.New("uidispatch: poller closed")
)
