package uidispatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherInitialize(t *testing.T) {
	d, looper, _ := initializedDispatcher(t)

	assert.Equal(t, 1, looper.refCount())
	assert.Equal(t, 1, looper.registeredCount())
	assert.True(t, d.callbackRegistered.Load())
	assert.NotEqual(t, fdUnset, d.channel.readFD)
	assert.NotEqual(t, fdUnset, d.channel.writeFD)
	assert.Equal(t, 30, d.Config().APIVersion())
	assert.Equal(t, 30, BaseAPIVersion())
}

func TestDispatcherInitializeNilActivity(t *testing.T) {
	looper := newFakeLooper()
	d := NewDispatcher()

	err := d.Initialize(looper, nil, testAssets(""))
	require.ErrorIs(t, err, ErrNilActivity)

	// The failed initialization must be fully unwound.
	assert.Equal(t, 0, looper.refCount())
	assert.Equal(t, fdUnset, d.channel.readFD)
	assert.Equal(t, fdUnset, d.channel.writeFD)
	assert.False(t, d.callbackRegistered.Load())
	assert.Equal(t, 0, BaseAPIVersion())
	assert.Nil(t, d.Config())
	assert.Nil(t, d.Assets())
}

func TestDispatcherInitializeNilLooper(t *testing.T) {
	d := NewDispatcher()
	err := d.Initialize(nil, &testActivity{}, testAssets(""))
	require.ErrorIs(t, err, ErrNilLooper)
	assert.Equal(t, 0, BaseAPIVersion())
}

func TestDispatcherInitializeNilAssets(t *testing.T) {
	d := NewDispatcher()
	err := d.Initialize(newFakeLooper(), &testActivity{}, nil)
	require.ErrorIs(t, err, ErrNilAssetManager)
}

func TestDispatcherInitializeInvalidConfiguration(t *testing.T) {
	looper := newFakeLooper()
	d := NewDispatcher()

	err := d.Initialize(looper, &testActivity{}, testAssets(`{"api_version":`))
	require.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Equal(t, 0, looper.refCount())
	assert.Equal(t, 0, BaseAPIVersion())
}

func TestDispatcherInitializeAddFDFailure(t *testing.T) {
	looper := newFakeLooper()
	looper.addErr = errors.New("loop rejected fd")
	d := NewDispatcher()

	err := d.Initialize(looper, &testActivity{}, testAssets(""))
	require.ErrorContains(t, err, "loop rejected fd")

	assert.Equal(t, 0, looper.refCount())
	assert.Equal(t, fdUnset, d.channel.readFD)
	assert.Equal(t, fdUnset, d.channel.writeFD)
	assert.False(t, d.callbackRegistered.Load())
	assert.Equal(t, 0, BaseAPIVersion())
}

func TestDispatcherInitializeApp(t *testing.T) {
	app := &testApp{}
	identifier := registerTestApp(t, func(d *Dispatcher) App {
		app.dispatcher = d
		return app
	})

	d, _, _ := initializedDispatcher(t)
	require.NoError(t, d.InitializeApp(identifier))

	assert.Same(t, d, app.dispatcher)
	assert.Equal(t, int32(1), app.initCount.Load())
	assert.Equal(t, App(app), d.App())
}

func TestDispatcherInitializeAppUnknownIdentifier(t *testing.T) {
	d, _, _ := initializedDispatcher(t)
	err := d.InitializeApp("no-such-app")
	require.ErrorIs(t, err, ErrCreatorNotFound)
	assert.Nil(t, d.App())
}

func TestDispatcherInitializeAppHookFailure(t *testing.T) {
	app := &testApp{initErr: errors.New("init failed")}
	identifier := registerTestApp(t, func(*Dispatcher) App { return app })

	d, looper, _ := initializedDispatcher(t)
	err := d.InitializeApp(identifier)
	require.ErrorContains(t, err, "init failed")

	// The failed app is destroyed and the slot cleared; the dispatcher
	// itself stays initialized.
	assert.Equal(t, int32(1), app.destroyCnt.Load())
	assert.Nil(t, d.App())
	assert.True(t, d.callbackRegistered.Load())
	assert.Equal(t, 1, looper.refCount())
}

func TestDispatcherInitializeAppTwice(t *testing.T) {
	identifier := registerTestApp(t, func(*Dispatcher) App { return &testApp{} })

	d, _, _ := initializedDispatcher(t)
	require.NoError(t, d.InitializeApp(identifier))
	assert.ErrorIs(t, d.InitializeApp(identifier), ErrAppAlreadyInitialized)
}

func TestDispatcherShutdownIdempotent(t *testing.T) {
	app := &testApp{}
	identifier := registerTestApp(t, func(*Dispatcher) App { return app })

	d, looper, _ := initializedDispatcher(t)
	require.NoError(t, d.InitializeApp(identifier))

	d.Shutdown()
	d.Shutdown()
	d.Shutdown()

	assert.Equal(t, int32(1), app.destroyCnt.Load())
	assert.Equal(t, 1, looper.removeCount())
	assert.Equal(t, 0, looper.refCount())
	assert.Equal(t, 0, looper.registeredCount())
	assert.Equal(t, fdUnset, d.channel.readFD)
	assert.Equal(t, fdUnset, d.channel.writeFD)
	assert.Equal(t, 0, BaseAPIVersion())
	assert.Nil(t, d.App())
	assert.Nil(t, d.Activity())
	assert.Nil(t, d.Config())
}

func TestDispatcherRequestDestructionSynchronous(t *testing.T) {
	d, looper, _ := initializedDispatcher(t)

	// With the callback no longer registered, destruction is immediate.
	d.Shutdown()
	require.False(t, d.callbackRegistered.Load())

	d.RequestDestruction()
	assert.True(t, d.Destroyed())
	assert.Equal(t, 1, looper.removeCount())
}

func TestDispatcherRequestDestructionAsynchronous(t *testing.T) {
	d, looper, _ := initializedDispatcher(t)
	fd := d.channel.readFD

	d.RequestDestruction()

	// Not destroyed yet; the command is sitting in the channel.
	assert.False(t, d.Destroyed())
	assert.Equal(t, 1, looper.wakeCount())

	// Delivering the readable event makes the callback consume the destroy
	// command, tear the dispatcher down, and remove its own registration.
	require.True(t, looper.dispatch(fd, EventRead))

	assert.True(t, d.Destroyed())
	assert.Equal(t, 0, looper.registeredCount())
	assert.Equal(t, 0, looper.refCount())
	// The callback removed itself; Shutdown must not have called RemoveFD.
	assert.Equal(t, 0, looper.removeCount())
}

func TestDispatcherRequestDestructionSendFailure(t *testing.T) {
	d, looper, _ := initializedDispatcher(t)

	// Closing the write end forces the destroy command send to fail, which
	// falls back to synchronous destruction.
	d.mu.Lock()
	d.channel.closeWrite()
	d.mu.Unlock()

	d.RequestDestruction()

	assert.True(t, d.Destroyed())
	assert.Equal(t, 0, looper.registeredCount())
	assert.Equal(t, 0, looper.refCount())
	assert.Equal(t, 0, looper.wakeCount())
	// Fallback destruction still owned the registration, so it removed it.
	assert.Equal(t, 1, looper.removeCount())
}

func TestDispatcherCallInUIThread(t *testing.T) {
	d, looper, _ := initializedDispatcher(t)
	fd := d.channel.readFD

	var got []int
	for i := 0; i < 3; i++ {
		i := i
		d.CallInUIThread(func() { got = append(got, i) })
	}
	assert.Equal(t, 3, looper.wakeCount())

	// Each queued notification delivers one command; the first drain runs
	// everything queued so far.
	require.True(t, looper.dispatch(fd, EventRead))
	assert.Equal(t, []int{0, 1, 2}, got)

	require.True(t, looper.dispatch(fd, EventRead))
	require.True(t, looper.dispatch(fd, EventRead))
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Equal(t, 1, looper.registeredCount())
}

func TestDispatcherPendingBeforeDestroy(t *testing.T) {
	d, looper, _ := initializedDispatcher(t)
	fd := d.channel.readFD

	ran := false
	d.CallInUIThread(func() { ran = true })
	d.RequestDestruction()

	// Commands are consumed in order: the pending drain first, then the
	// destroy.
	require.True(t, looper.dispatch(fd, EventRead))
	assert.True(t, ran)
	assert.False(t, d.Destroyed())

	require.True(t, looper.dispatch(fd, EventRead))
	assert.True(t, d.Destroyed())
}

func TestDispatcherChannelHangup(t *testing.T) {
	d, looper, activity := initializedDispatcher(t)
	fd := d.channel.readFD

	require.True(t, looper.dispatch(fd, EventHangup))

	// The callback gave up its registration and asked the activity to
	// finish; the dispatcher is not destroyed until the host says so.
	assert.False(t, d.callbackRegistered.Load())
	assert.Equal(t, int32(1), activity.finishCount.Load())
	assert.Equal(t, 0, looper.registeredCount())
	assert.False(t, d.Destroyed())

	// Host-driven teardown after the failure must not remove the
	// registration a second time.
	d.Shutdown()
	assert.Equal(t, 0, looper.removeCount())
}

func TestDispatcherSpuriousEvents(t *testing.T) {
	d, looper, _ := initializedDispatcher(t)
	fd := d.channel.readFD

	// Writable readiness with nothing to read is ignored.
	require.True(t, looper.dispatch(fd, EventWrite))
	assert.True(t, d.callbackRegistered.Load())
	assert.Equal(t, 1, looper.registeredCount())
	assert.False(t, d.Destroyed())
}

func TestDispatcherQuitDrainsPending(t *testing.T) {
	d, _, activity := initializedDispatcher(t)

	ran := false
	d.CallInUIThread(func() { ran = true })
	d.QuitFromUIThread()

	assert.True(t, ran)
	assert.Equal(t, int32(1), activity.finishCount.Load())
}

func TestDispatcherWindowAttachment(t *testing.T) {
	d, _, _ := initializedDispatcher(t)

	window := new(struct{ surface int })
	d.SetWindow(window)
	assert.Equal(t, any(window), d.Window())

	d.SetWindow(nil)
	assert.Nil(t, d.Window())
}

func TestDispatcherShutdownClearsLeftoverWindow(t *testing.T) {
	d, _, _ := initializedDispatcher(t)

	d.SetWindow(new(struct{}))
	d.Shutdown()

	assert.Nil(t, d.Window())
}

func TestDispatcherUnknownCommandTolerated(t *testing.T) {
	d, looper, _ := initializedDispatcher(t)
	fd := d.channel.readFD

	// Inject a tag no sender produces.
	var buf [commandTagSize]byte
	encodeCommand(&buf, Command(42))
	_, err := writeFD(d.channel.writeFD, buf[:])
	require.NoError(t, err)

	require.True(t, looper.dispatch(fd, EventRead))
	assert.True(t, d.callbackRegistered.Load())
	assert.False(t, d.Destroyed())
}
