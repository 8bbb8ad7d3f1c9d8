//go:build linux

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

// poller manages readiness notification using epoll (Linux).
//
// Registration state lives in a direct-indexed slice guarded by an RWMutex;
// the blocking wait itself holds no locks. Callbacks run inline on the
// polling goroutine, outside the lock, and may remove their own registration
// by returning CallbackRemove.
type poller struct {
	epfd     int32
	eventBuf [64]unix.EpollEvent
	fds      []fdInfo
	fdMu     sync.RWMutex
	closed   atomic.Bool
}

// init initializes the epoll instance.
func (p *poller) init() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = int32(epfd)
	p.fds = make([]fdInfo, initialFDCap)

	return nil
}

// close closes the epoll instance. Idempotent.
func (p *poller) close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if p.epfd > 0 {
		return unix.Close(int(p.epfd))
	}
	return nil
}

// register adds a file descriptor to the epoll set.
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
	p.fdMu.Unlock()

	ev := &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		p.fdMu.Lock()
		p.fds[fd] = fdInfo{} // Rollback
		p.fdMu.Unlock()
		return err
	}
	return nil
}

// unregister removes a file descriptor from the epoll set.
func (p *poller) unregister(fd int) error {
	if fd < 0 {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}

	p.fds[fd] = fdInfo{}
	p.fdMu.Unlock()

	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_DEL, fd, nil)
}

// poll blocks until at least one registered descriptor has pending events,
// then dispatches callbacks inline. A negative timeout blocks indefinitely.
// Returns the number of events dispatched.
func (p *poller) poll(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	n, err := unix.EpollWait(int(p.epfd), p.eventBuf[:], timeoutMs)
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
// afterwards. The EPOLL_CTL_DEL error is ignored on that path: the callback
// may have closed the descriptor, in which case the kernel already removed
// it from the epoll set.
func (p *poller) dispatch(n int) {
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
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

		if info.callback(fd, epollToEvents(p.eventBuf[i].Events)) == CallbackRemove {
			p.fdMu.Lock()
			stillActive := fd < len(p.fds) && p.fds[fd].active
			if stillActive {
				p.fds[fd] = fdInfo{}
			}
			p.fdMu.Unlock()
			if stillActive {
				_ = unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_DEL, fd, nil)
			}
		}
	}
}

// eventsToEpoll converts IOEvents to epoll event flags. Error and hangup
// conditions are always reported by epoll and need not be requested.
func eventsToEpoll(events IOEvents) uint32 {
	var epollEvents uint32
	if events&EventRead != 0 {
		epollEvents |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		epollEvents |= unix.EPOLLOUT
	}
	return epollEvents
}

// epollToEvents converts epoll event flags to IOEvents.
func epollToEvents(epollEvents uint32) IOEvents {
	var events IOEvents
	if epollEvents&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if epollEvents&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
