// Package uidispatch implements a cross-thread command dispatcher for a
// designated UI goroutine that runs a foreign, readiness-based event loop.
//
// The foreign loop (modelled by the [Looper] interface) only wakes on file
// descriptor activity or an explicit wake call, and cannot be interrupted
// directly. Worker goroutines get its attention by writing fixed-size command
// tags to a one-way pipe whose read end is registered in the loop.
//
// # Architecture
//
// The [Dispatcher] owns the command channel, the loop registration, and the
// hosted application's lifecycle. Worker goroutines append deferred calls via
// [Dispatcher.CallInUIThread]; the UI goroutine drains them when it reads an
// execute-pending-functions tag. [Dispatcher.RequestDestruction] tears the
// dispatcher down from any goroutine: synchronously when the loop
// registration is inactive, otherwise asynchronously from inside a later
// callback invocation processing a destroy tag, so the loop never touches a
// dead dispatcher and never removes an already self-removed descriptor.
//
// [UILooper] is a host-grade implementation of the foreign loop contract,
// using platform-native readiness notification:
//   - Linux: epoll, with an eventfd wake channel
//   - macOS: kqueue, with a self-pipe wake channel
//
// # Thread safety
//
// [Dispatcher.CallInUIThread] and [Dispatcher.RequestDestruction] are safe to
// call from any goroutine. [Dispatcher.Initialize], [Dispatcher.InitializeApp],
// [Dispatcher.Shutdown], and the host entry points [ActivityCreated] and
// [ActivityDestroyed] must be called on the UI goroutine. Command delivery is
// at-most-once: a failed pipe write is logged and the command dropped, which
// degrades liveness, never correctness.
//
// # Usage
//
//	uidispatch.RegisterApp("demo", func(d *uidispatch.Dispatcher) uidispatch.App {
//	    return &demoApp{dispatcher: d}
//	})
//
//	looper, err := uidispatch.NewUILooper()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	d, err := uidispatch.ActivityCreated("demo", looper, activity, assets)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go worker(d) // may call d.CallInUIThread from any goroutine
//
//	if err := looper.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package uidispatch
