package uidispatch

import (
	"context"
	"encoding/binary"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// Looper is the contract of the foreign, readiness-based event loop the UI
// goroutine runs inside. The loop only wakes on descriptor activity or an
// explicit Wake call; it is never preempted.
//
// Acquire and Release refcount the loop handle so other goroutines may hold
// it for waking. AddFD and RemoveFD bind and unbind a watched source; a
// callback may also unbind itself by returning CallbackRemove, in which case
// calling RemoveFD for the same source afterwards is an error (double
// removal).
type Looper interface {
	// Acquire takes a reference to the looper for use by other goroutines.
	Acquire()
	// Release drops a reference taken by Acquire.
	Release()
	// AddFD registers fd as a watched source with the given callback.
	AddFD(fd int, events IOEvents, callback LooperCallback) error
	// RemoveFD unregisters fd. Must not be called for a source whose
	// callback already removed itself via its return value.
	RemoveFD(fd int) error
	// Wake forces the loop to re-evaluate readiness even if it is blocked
	// in a wait with no timeout. Safe to call from any goroutine.
	Wake()
}

// UILooper is a host-grade implementation of the Looper contract, built on
// platform-native readiness notification (epoll on Linux, kqueue on Darwin)
// with a dedicated wake descriptor (eventfd on Linux, self-pipe on Darwin).
//
// Run blocks on the calling goroutine, which becomes the UI goroutine; all
// registered callbacks execute there. AddFD, RemoveFD, and Wake are safe to
// call from any goroutine.
type UILooper struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	logger *logiface.Logger[logiface.Event]

	// State machine (cache-line padded internally)
	state looperState

	poller poller

	stopOnce sync.Once

	// Wake-up mechanism
	wakeReadFD  int
	wakeWriteFD int
	wakeBuf     [8]byte
	wakePending atomic.Uint32

	// Reference count held by Acquire/Release
	refs atomic.Int64

	loopGoroutineID atomic.Uint64

	// Loop termination signaling
	loopDone chan struct{}
}

var _ Looper = (*UILooper)(nil)

// NewUILooper creates a looper ready to Run.
func NewUILooper(opts ...LooperOption) (*UILooper, error) {
	cfg := resolveLooperOptions(opts)

	wakeReadFD, wakeWriteFD, err := createWakeFd()
	if err != nil {
		return nil, err
	}

	l := &UILooper{
		logger:      cfg.logger,
		wakeReadFD:  wakeReadFD,
		wakeWriteFD: wakeWriteFD,
		loopDone:    make(chan struct{}),
	}

	if err := l.poller.init(); err != nil {
		_ = closeFD(wakeReadFD)
		if wakeWriteFD != wakeReadFD {
			_ = closeFD(wakeWriteFD)
		}
		return nil, err
	}

	if err := l.poller.register(wakeReadFD, EventRead, func(int, IOEvents) CallbackAction {
		l.drainWakeUpPipe()
		return CallbackKeep
	}); err != nil {
		_ = l.poller.close()
		_ = closeFD(wakeReadFD)
		if wakeWriteFD != wakeReadFD {
			_ = closeFD(wakeWriteFD)
		}
		return nil, err
	}

	return l, nil
}

// Run runs the event loop and blocks until fully stopped, via Shutdown,
// Close, or ctx cancellation. The calling goroutine is locked to its OS
// thread and becomes the UI goroutine for the looper's lifetime.
func (l *UILooper) Run(ctx context.Context) error {
	if l.isLoopGoroutine() {
		return ErrReentrantRun
	}

	if !l.state.tryTransition(StateAwake, StateRunning) {
		if l.state.load() == StateTerminated {
			return ErrLooperTerminated
		}
		return ErrLooperAlreadyRunning
	}

	defer close(l.loopDone)

	return l.run(ctx)
}

func (l *UILooper) run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.loopGoroutineID.Store(goroutineID())
	defer l.loopGoroutineID.Store(0)

	// Watcher goroutine wakes the loop on context cancellation.
	ctxDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = l.submitWakeup()
		case <-ctxDone:
		}
	}()
	defer close(ctxDone)

	for {
		select {
		case <-ctx.Done():
			for {
				current := l.state.load()
				if current == StateTerminating || current == StateTerminated {
					break
				}
				if l.state.tryTransition(current, StateTerminating) {
					break
				}
			}
			l.finish()
			return ctx.Err()
		default:
		}

		if s := l.state.load(); s == StateTerminating || s == StateTerminated {
			l.finish()
			return nil
		}

		l.tick()
	}
}

// tick is a single iteration of the loop: transition to Sleeping, block in
// poll until a registered descriptor (including the wake descriptor) has
// pending events, dispatch, transition back to Running.
func (l *UILooper) tick() {
	if !l.state.tryTransition(StateRunning, StateSleeping) {
		return
	}

	if _, err := l.poller.poll(-1); err != nil {
		l.logger.Err().Err(err).Log("uidispatch: poll failed, terminating looper")
		l.state.tryTransition(StateSleeping, StateTerminating)
		return
	}

	l.state.tryTransition(StateSleeping, StateRunning)
}

// finish performs loop-goroutine teardown.
func (l *UILooper) finish() {
	l.state.store(StateTerminated)
	l.closeFDs()
}

// Shutdown gracefully shuts down the looper, blocking until termination
// completes or ctx expires. If termination was already initiated elsewhere
// (a prior Close or Shutdown, or a poll failure), Shutdown still waits for
// the loop goroutine to finish tearing down.
func (l *UILooper) Shutdown(ctx context.Context) error {
	var result error
	var ran bool
	l.stopOnce.Do(func() {
		ran = true
		result = l.shutdownImpl(ctx)
	})
	if ran {
		return result
	}

	select {
	case <-l.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *UILooper) shutdownImpl(ctx context.Context) error {
	for {
		current := l.state.load()
		if current == StateTerminated || current == StateTerminating {
			// Termination already initiated; wait for it below.
			break
		}

		if l.state.tryTransition(current, StateTerminating) {
			if current == StateAwake {
				// Never ran; no loop goroutine will perform teardown.
				l.state.store(StateTerminated)
				l.closeFDs()
				close(l.loopDone)
				return nil
			}
			if current == StateSleeping {
				_ = l.submitWakeup()
			}
			break
		}
	}

	select {
	case <-l.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close immediately requests termination without waiting for it to complete.
func (l *UILooper) Close() error {
	for {
		current := l.state.load()
		if current == StateTerminated {
			return ErrLooperTerminated
		}

		if l.state.tryTransition(current, StateTerminating) {
			if current == StateAwake {
				l.state.store(StateTerminated)
				l.closeFDs()
				close(l.loopDone)
			} else if current == StateSleeping {
				_ = l.submitWakeup()
			}
			return nil
		}
	}
}

// Acquire takes a reference to the looper.
func (l *UILooper) Acquire() {
	l.refs.Add(1)
}

// Release drops a reference taken by Acquire.
func (l *UILooper) Release() {
	l.refs.Add(-1)
}

// AddFD registers a file descriptor as a watched source.
func (l *UILooper) AddFD(fd int, events IOEvents, callback LooperCallback) error {
	return l.poller.register(fd, events, callback)
}

// RemoveFD unregisters a file descriptor.
func (l *UILooper) RemoveFD(fd int) error {
	return l.poller.unregister(fd)
}

// Wake forces the loop to re-evaluate readiness. Wake signals are
// deduplicated while one is pending; write errors (expected once the wake
// descriptor is closed during shutdown) reset the pending flag and are
// otherwise ignored.
func (l *UILooper) Wake() {
	if l.state.load() == StateTerminated {
		return
	}
	if l.wakePending.CompareAndSwap(0, 1) {
		if err := l.submitWakeup(); err != nil {
			l.wakePending.Store(0)
		}
	}
}

// submitWakeup writes to the wake descriptor.
func (l *UILooper) submitWakeup() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := writeFD(l.wakeWriteFD, buf[:])
	return err
}

// drainWakeUpPipe drains the wake descriptor. It is non-blocking on both
// platforms, so the loop terminates on EAGAIN.
func (l *UILooper) drainWakeUpPipe() {
	for {
		if _, err := readFD(l.wakeReadFD, l.wakeBuf[:]); err != nil {
			break
		}
	}
	l.wakePending.Store(0)
}

// closeFDs closes the poller and wake descriptors.
func (l *UILooper) closeFDs() {
	_ = l.poller.close()
	_ = closeFD(l.wakeReadFD)
	if l.wakeWriteFD != l.wakeReadFD {
		_ = closeFD(l.wakeWriteFD)
	}
}

// State returns the current looper state.
func (l *UILooper) State() LooperState {
	return l.state.load()
}

// isLoopGoroutine checks if we're on the loop goroutine.
func (l *UILooper) isLoopGoroutine() bool {
	loopID := l.loopGoroutineID.Load()
	if loopID == 0 {
		return false
	}
	return goroutineID() == loopID
}

// goroutineID returns the current goroutine's ID.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
