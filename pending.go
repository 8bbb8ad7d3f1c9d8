package uidispatch

import "sync"

// pendingQueue is the ordered buffer of deferred zero-argument calls awaiting
// UI-goroutine execution. Appends are safe from any goroutine, including
// concurrently with a drain; draining is exclusive to the UI goroutine.
//
// drain swaps the queue out under the lock and executes outside it, so user
// functions never run while the lock is held and concurrent appenders are
// never blocked by execution. Functions execute in append order; an appender
// racing a drain lands in either that drain or the next one.
type pendingQueue struct {
	mu    sync.Mutex
	queue []func()
	buf   []func()
}

// append adds fn to the end of the queue.
func (q *pendingQueue) append(fn func()) {
	q.mu.Lock()
	q.queue = append(q.queue, fn)
	q.mu.Unlock()
}

// drain executes all currently queued functions, in order. No isolation is
// enforced between calls: a panicking function propagates and abandons the
// rest of the batch.
func (q *pendingQueue) drain() {
	q.mu.Lock()
	if len(q.queue) == 0 {
		q.mu.Unlock()
		return
	}
	fns := q.queue
	q.queue = q.buf[:0]
	q.buf = fns[:0]
	q.mu.Unlock()

	for i, fn := range fns {
		fn()
		fns[i] = nil // Clear for GC
	}
}

// length reports the number of queued functions.
func (q *pendingQueue) length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}
