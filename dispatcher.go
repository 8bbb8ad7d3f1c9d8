package uidispatch

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// Dispatcher routes work from arbitrary goroutines onto a UI loop, and owns
// the lifetime of the hosted App. One dispatcher serves one Activity.
//
// Dispatchers are created by the host via ActivityCreated and torn down via
// ActivityDestroyed or RequestDestruction. After Initialize succeeds the
// dispatcher holds a registered read-end fd in its looper; teardown always
// runs exactly one Shutdown, either synchronously or from within the loop
// callback that consumed the destroy command.
type Dispatcher struct {
	logger *logiface.Logger[logiface.Event]

	// mu guards the mutable handle fields below. They are written during
	// Initialize and Shutdown and read from command senders on arbitrary
	// goroutines.
	mu              sync.Mutex
	looper          Looper
	looperAcquired  bool
	channel         commandChannel
	app             App
	window          any
	activity        Activity
	assets          *AssetManager
	config          *Configuration
	baseInitialized bool

	// callbackRegistered is true while the channel read end is registered
	// with the looper and the dispatcher is responsible for removing it. It
	// is cleared before any path that lets the looper drop the registration
	// itself, so Shutdown never removes twice.
	callbackRegistered atomic.Bool

	// destroyed latches after the dispatcher has been shut down via a
	// destruction request. Mainly useful to tests and host glue.
	destroyed atomic.Bool

	pending pendingQueue
}

// NewDispatcher allocates an uninitialized dispatcher. Hosts normally use
// ActivityCreated instead.
func NewDispatcher(opts ...Option) *Dispatcher {
	cfg := resolveOptions(opts)
	d := &Dispatcher{logger: cfg.logger}
	d.channel.readFD = fdUnset
	d.channel.writeFD = fdUnset
	return d
}

// Initialize attaches the dispatcher to its host resources and registers the
// command channel with the looper. It must be called on the loop goroutine
// before the loop starts polling, or while the loop is not sleeping.
//
// On failure the dispatcher is fully unwound and may be discarded; partial
// initialization never leaks fds, looper references, or platform references.
func (d *Dispatcher) Initialize(looper Looper, activity Activity, assets *AssetManager) error {
	fail := func(err error) error {
		d.logErr(err, "dispatcher initialization failed")
		d.Shutdown()
		return err
	}

	if assets == nil {
		return fail(ErrNilAssetManager)
	}
	d.mu.Lock()
	d.assets = assets
	d.mu.Unlock()

	config, err := configurationFromAssets(assets)
	if err != nil {
		return fail(err)
	}
	d.mu.Lock()
	d.config = config
	d.mu.Unlock()

	if err := InitializeBase(config.APIVersion()); err != nil {
		return fail(err)
	}
	d.mu.Lock()
	d.baseInitialized = true
	d.mu.Unlock()

	if activity == nil {
		return fail(ErrNilActivity)
	}
	d.mu.Lock()
	d.activity = activity
	d.mu.Unlock()

	if looper == nil {
		return fail(ErrNilLooper)
	}
	looper.Acquire()
	d.mu.Lock()
	d.looper = looper
	d.looperAcquired = true
	d.mu.Unlock()

	channel, err := newCommandChannel()
	if err != nil {
		return fail(fmt.Errorf("uidispatch: create command channel: %w", err))
	}
	d.mu.Lock()
	d.channel = channel
	d.mu.Unlock()

	if err := looper.AddFD(channel.readFD, EventRead, d.looperCallback); err != nil {
		return fail(fmt.Errorf("uidispatch: register command channel: %w", err))
	}
	d.callbackRegistered.Store(true)

	return nil
}

// InitializeApp constructs and initializes the registered application. A
// failure leaves the dispatcher itself initialized; the caller decides
// whether to tear it down.
func (d *Dispatcher) InitializeApp(identifier string) error {
	create := appCreator(identifier)
	if create == nil {
		return fmt.Errorf("%w: %q", ErrCreatorNotFound, identifier)
	}

	d.mu.Lock()
	if d.app != nil {
		d.mu.Unlock()
		return ErrAppAlreadyInitialized
	}
	app := create(d)
	d.app = app
	d.mu.Unlock()

	if err := app.OnInitialize(); err != nil {
		app.OnDestroy()
		d.mu.Lock()
		d.app = nil
		d.mu.Unlock()
		return fmt.Errorf("uidispatch: initialize app %q: %w", identifier, err)
	}
	return nil
}

// Shutdown releases everything the dispatcher holds, in reverse order of
// acquisition. It is idempotent and tolerates any partially initialized
// state, so it doubles as the unwind path for a failed Initialize.
//
// Must be called on the loop goroutine (or before the loop runs, or after it
// has stopped).
func (d *Dispatcher) Shutdown() {
	// The destroy hook runs outside the lock so the app can still use the
	// dispatcher surface (for example to detach its window).
	d.mu.Lock()
	app := d.app
	d.app = nil
	d.mu.Unlock()
	if app != nil {
		app.OnDestroy()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// The app is responsible for dropping its window before OnDestroy
	// returns. A leftover window would keep receiving surface callbacks
	// into a dead dispatcher.
	if d.window != nil {
		d.logErrMsg("window still attached at shutdown")
		d.window = nil
	}

	if d.callbackRegistered.Swap(false) {
		if err := d.looper.RemoveFD(d.channel.readFD); err != nil {
			// The registration may already be gone if the looper dropped it.
			d.logErr(err, "failed to unregister command channel")
		}
	}

	d.channel.closeRead()
	d.channel.closeWrite()

	if d.looperAcquired {
		d.looper.Release()
		d.looperAcquired = false
	}
	d.looper = nil
	d.activity = nil

	if d.baseInitialized {
		ShutdownBase()
		d.baseInitialized = false
	}
	d.config = nil
	d.assets = nil
}

// destroy is the terminal teardown, invoked either synchronously by
// RequestDestruction or from the loop callback consuming a destroy command.
func (d *Dispatcher) destroy() {
	d.Shutdown()
	d.destroyed.Store(true)
}

// Destroyed reports whether the dispatcher has completed a requested
// destruction.
func (d *Dispatcher) Destroyed() bool {
	return d.destroyed.Load()
}

// RequestDestruction tears the dispatcher down. If the command channel is no
// longer registered with the looper, teardown happens synchronously on the
// calling goroutine. Otherwise a destroy command is sent and teardown runs
// inside the loop callback, after which the dispatcher must not be touched.
//
// If the command cannot be delivered, teardown falls back to running
// synchronously rather than leaking the dispatcher.
func (d *Dispatcher) RequestDestruction() {
	if !d.callbackRegistered.Load() {
		d.destroy()
		return
	}

	d.mu.Lock()
	err := d.channel.send(CommandDestroy)
	lp := d.looper
	d.mu.Unlock()
	if err != nil {
		d.logErr(err, "failed to send destroy command, destroying synchronously")
		d.destroy()
		return
	}
	if lp != nil {
		lp.Wake()
	}
}

// CallInUIThread queues fn for execution on the UI loop goroutine. Queued
// functions run in FIFO order. Panics are not isolated; a panicking function
// takes the loop down.
func (d *Dispatcher) CallInUIThread(fn func()) {
	d.pending.append(fn)
	d.notifyUILoopOfPendingFunctions()
}

// notifyUILoopOfPendingFunctions nudges the loop to drain the pending queue.
// No registration check here: a pending destroy command makes the final
// callback invocation drain leftovers anyway, and a lost notification after
// teardown is harmless.
func (d *Dispatcher) notifyUILoopOfPendingFunctions() {
	d.mu.Lock()
	err := d.channel.send(CommandExecutePendingFunctions)
	lp := d.looper
	d.mu.Unlock()
	if err != nil {
		d.logErr(err, "failed to notify UI loop of pending functions")
		return
	}
	if lp != nil {
		lp.Wake()
	}
}

// QuitFromUIThread drains any pending functions and asks the host activity
// to finish. Must be called on the loop goroutine.
func (d *Dispatcher) QuitFromUIThread() {
	d.pending.drain()
	d.platformQuitFromUIThread()
}

func (d *Dispatcher) platformQuitFromUIThread() {
	d.mu.Lock()
	activity := d.activity
	d.mu.Unlock()
	if activity != nil {
		activity.Finish()
	}
}

// looperCallback consumes command tags from the channel read end. It runs on
// the loop goroutine. Returning CallbackRemove drops the registration, so
// every Remove path clears callbackRegistered first; the dispatcher may not
// exist anymore by the time the looper processes the removal.
func (d *Dispatcher) looperCallback(fd int, events IOEvents) CallbackAction {
	if events&(EventError|EventHangup|EventInvalid) != 0 {
		d.callbackRegistered.Store(false)
		d.logErrMsg("command channel failed, quitting")
		d.QuitFromUIThread()
		return CallbackRemove
	}
	if events&EventRead == 0 {
		// Spurious wakeup.
		return CallbackKeep
	}

	cmd, err := d.channel.readCommand()
	if err != nil {
		if errors.Is(err, errShortCommandRead) {
			// Transient. The tag is lost but the channel is intact.
			return CallbackKeep
		}
		d.callbackRegistered.Store(false)
		d.logErr(err, "failed to read command, quitting")
		d.QuitFromUIThread()
		return CallbackRemove
	}

	switch cmd {
	case CommandDestroy:
		d.callbackRegistered.Store(false)
		d.destroy()
		return CallbackRemove
	case CommandExecutePendingFunctions:
		d.pending.drain()
		return CallbackKeep
	default:
		d.logErrMsg("unknown command tag " + cmd.String())
		return CallbackKeep
	}
}

// Activity returns the attached host activity, or nil after shutdown.
func (d *Dispatcher) Activity() Activity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activity
}

// Assets returns the attached asset manager, or nil after shutdown.
func (d *Dispatcher) Assets() *AssetManager {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.assets
}

// Config returns the configuration snapshot captured at initialization, or
// nil after shutdown.
func (d *Dispatcher) Config() *Configuration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

// App returns the hosted application, or nil before InitializeApp or after
// teardown.
func (d *Dispatcher) App() App {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.app
}

// SetWindow attaches or detaches the host window handle. The app owns the
// attachment lifecycle and must detach before OnDestroy returns.
func (d *Dispatcher) SetWindow(window any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window = window
}

// Window returns the attached host window handle, or nil.
func (d *Dispatcher) Window() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.window
}

func (d *Dispatcher) logErr(err error, msg string) {
	d.logger.Err().
		Err(err).
		Log(msg)
}

func (d *Dispatcher) logErrMsg(msg string) {
	d.logger.Err().
		Log(msg)
}
