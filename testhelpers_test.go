package uidispatch

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
)

// fakeLooper is an in-process Looper for exercising the dispatcher without a
// real event loop. Queued fd events are delivered by explicit dispatch calls
// from the test, standing in for the loop goroutine.
type fakeLooper struct {
	mu          sync.Mutex
	callbacks   map[int]LooperCallback
	refs        int
	wakes       int
	removeCalls int
	addErr      error
}

func newFakeLooper() *fakeLooper {
	return &fakeLooper{callbacks: make(map[int]LooperCallback)}
}

func (l *fakeLooper) Acquire() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refs++
}

func (l *fakeLooper) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refs--
}

func (l *fakeLooper) AddFD(fd int, events IOEvents, callback LooperCallback) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.addErr != nil {
		return l.addErr
	}
	if _, ok := l.callbacks[fd]; ok {
		return ErrFDAlreadyRegistered
	}
	l.callbacks[fd] = callback
	return nil
}

func (l *fakeLooper) RemoveFD(fd int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removeCalls++
	if _, ok := l.callbacks[fd]; !ok {
		return ErrFDNotRegistered
	}
	delete(l.callbacks, fd)
	return nil
}

func (l *fakeLooper) Wake() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wakes++
}

// dispatch invokes the callback registered for fd, honoring its return value
// the way a real loop would.
func (l *fakeLooper) dispatch(fd int, events IOEvents) bool {
	l.mu.Lock()
	callback, ok := l.callbacks[fd]
	l.mu.Unlock()
	if !ok {
		return false
	}
	if callback(fd, events) == CallbackRemove {
		l.mu.Lock()
		delete(l.callbacks, fd)
		l.mu.Unlock()
	}
	return true
}

func (l *fakeLooper) registeredCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.callbacks)
}

func (l *fakeLooper) refCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refs
}

func (l *fakeLooper) wakeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wakes
}

// deliverPending delivers readable events to every registered source until
// none remain, bounded to avoid spinning on a callback that always keeps its
// registration.
func (l *fakeLooper) deliverPending() {
	for i := 0; i < 16; i++ {
		l.mu.Lock()
		fd, found := 0, false
		for k := range l.callbacks {
			fd, found = k, true
			break
		}
		l.mu.Unlock()
		if !found {
			return
		}
		l.dispatch(fd, EventRead)
	}
}

func (l *fakeLooper) removeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.removeCalls
}

// testActivity counts Finish calls.
type testActivity struct {
	finishCount atomic.Int32
}

func (a *testActivity) Finish() {
	a.finishCount.Add(1)
}

// testApp records lifecycle hook invocations.
type testApp struct {
	dispatcher  *Dispatcher
	initErr     error
	initCount   atomic.Int32
	destroyCnt  atomic.Int32
	onInit      func()
	onDestroyed func()
}

func (a *testApp) OnInitialize() error {
	a.initCount.Add(1)
	if a.onInit != nil {
		a.onInit()
	}
	return a.initErr
}

func (a *testApp) OnDestroy() {
	a.destroyCnt.Add(1)
	if a.onDestroyed != nil {
		a.onDestroyed()
	}
}

var testAppSeq atomic.Int64

// registerTestApp registers create under a unique identifier and returns it.
// Registrations are process-global and cannot be undone; unique identifiers
// keep tests independent.
func registerTestApp(t *testing.T, create Creator) string {
	t.Helper()
	identifier := fmt.Sprintf("test-app-%d", testAppSeq.Add(1))
	RegisterApp(identifier, create)
	return identifier
}

// testAssets builds an asset filesystem with the given configuration
// document, or without one when config is empty.
func testAssets(config string) *AssetManager {
	fsys := fstest.MapFS{}
	if config != "" {
		fsys[configurationAsset] = &fstest.MapFile{Data: []byte(config)}
	}
	return NewAssetManager(fsys)
}

// initializedDispatcher builds a dispatcher wired to a fresh fakeLooper and
// activity, with Initialize already done.
func initializedDispatcher(t *testing.T) (*Dispatcher, *fakeLooper, *testActivity) {
	t.Helper()
	looper := newFakeLooper()
	activity := &testActivity{}
	d := NewDispatcher()
	if err := d.Initialize(looper, activity, testAssets(`{"api_version": 30}`)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() {
		if !d.Destroyed() {
			d.Shutdown()
		}
	})
	return d, looper, activity
}
