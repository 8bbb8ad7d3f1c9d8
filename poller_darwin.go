//go:build darwin

package uidispatch

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// initialFDCap is the initial size of the direct-indexed registration table.
const initialFDCap = 1024

// maxFDLimit is the maximum descriptor value supported by the table.
const maxFDLimit = 100000000

// fdInfo stores per-FD callback information.
type fdInfo struct {
	callback LooperCallback
	events   IOEvents
	active   bool
}

// poller manages readiness notification using kqueue (Darwin).
//
// Registration state lives in a direct-indexed slice guarded by an RWMutex;
// the blocking wait itself holds no locks. Callbacks run inline on the
// polling goroutine, outside the lock, and may remove their own registration
// by returning CallbackRemove.
type poller struct {
	kq       int32
	eventBuf [64]unix.Kevent_t
	fds      []fdInfo
	fdMu     sync.RWMutex
	closed   atomic.Bool
}

// init initializes the kqueue instance.
func (p *poller) init() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}

	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = int32(kq)
	p.fds = make([]fdInfo, initialFDCap)

	return nil
}

// close closes the kqueue instance. Idempotent.
func (p *poller) close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if p.kq > 0 {
		return unix.Close(int(p.kq))
	}
	return nil
}

// register adds a file descriptor to the kqueue set.
func (p *poller) register(fd int, events IOEvents, cb LooperCallback) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	if fd < 0 || fd >= maxFDLimit {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	if fd >= len(p.fds) {
		newSize := fd*2 + 1
		if newSize > maxFDLimit {
			newSize = maxFDLimit + 1
		}
		newFds := make([]fdInfo, newSize)
		copy(newFds, p.fds)
		p.fds = newFds
	}

	if p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDAlreadyRegistered
	}

	p.fds[fd] = fdInfo{callback: cb, events: events, active: true}

	// Hold the lock across Kevent to prevent a race with a concurrent
	// unregister of the same descriptor.
	kevents := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if len(kevents) > 0 {
		if _, err := unix.Kevent(int(p.kq), kevents, nil, nil); err != nil {
			p.fds[fd] = fdInfo{} // Rollback
			p.fdMu.Unlock()
			return err
		}
	}
	p.fdMu.Unlock()
	return nil
}

// unregister removes a file descriptor from the kqueue set.
func (p *poller) unregister(fd int) error {
	if fd < 0 {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}

	events := p.fds[fd].events
	kevents := eventsToKevents(fd, events, unix.EV_DELETE)
	if len(kevents) > 0 {
		_, _ = unix.Kevent(int(p.kq), kevents, nil, nil) // Ignore errors on delete
	}

	p.fds[fd] = fdInfo{}
	p.fdMu.Unlock()
	return nil
}

// poll blocks until at least one registered descriptor has pending events,
// then dispatches callbacks inline. A negative timeout blocks indefinitely.
// Returns the number of events dispatched.
func (p *poller) poll(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}

	n, err := unix.Kevent(int(p.kq), nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	p.dispatch(n)

	return n, nil
}

// dispatch executes callbacks inline. The callback is copied under RLock and
// invoked outside it; a CallbackRemove verdict clears the registration
// afterwards. Kevent delete errors are ignored on that path: the callback may
// have closed the descriptor, in which case the kernel already removed it.
func (p *poller) dispatch(n int) {
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Ident)
		if fd < 0 {
			continue
		}

		p.fdMu.RLock()
		var info fdInfo
		if fd < len(p.fds) {
			info = p.fds[fd]
		}
		p.fdMu.RUnlock()

		if !info.active || info.callback == nil {
			continue
		}

		if info.callback(fd, keventToEvents(&p.eventBuf[i])) == CallbackRemove {
			p.fdMu.Lock()
			stillActive := fd < len(p.fds) && p.fds[fd].active
			if stillActive {
				events := p.fds[fd].events
				kevents := eventsToKevents(fd, events, unix.EV_DELETE)
				if len(kevents) > 0 {
					_, _ = unix.Kevent(int(p.kq), kevents, nil, nil)
				}
				p.fds[fd] = fdInfo{}
			}
			p.fdMu.Unlock()
		}
	}
}

// eventsToKevents converts IOEvents to kqueue kevent structures.
func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t

	if events&EventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  flags,
		})
	}

	if events&EventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  flags,
		})
	}

	return kevents
}

// keventToEvents converts a kqueue event to IOEvents.
func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
