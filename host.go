package uidispatch

import "fmt"

// ActivityCreated is the host entry point for bringing up a dispatcher and
// its application when a UI surface appears. It must be called on the loop
// goroutine, before the looper begins polling for this dispatcher's fds.
//
// On any failure the returned dispatcher is nil and no resources are
// retained.
func ActivityCreated(identifier string, looper Looper, activity Activity, assets *AssetManager, opts ...Option) (*Dispatcher, error) {
	// Resolve the creator before acquiring anything.
	if appCreator(identifier) == nil {
		return nil, fmt.Errorf("%w: %q", ErrCreatorNotFound, identifier)
	}

	d := NewDispatcher(opts...)

	if err := d.Initialize(looper, activity, assets); err != nil {
		// Initialize already unwound the dispatcher.
		return nil, err
	}

	if err := d.InitializeApp(identifier); err != nil {
		// The command channel is registered, so commands may already be in
		// flight. Tear down through the request path rather than directly.
		d.RequestDestruction()
		return nil, err
	}

	return d, nil
}

// ActivityDestroyed is the host entry point for tearing a dispatcher down
// when its UI surface goes away. It must be called on the loop goroutine.
// The dispatcher must not be used afterwards.
func ActivityDestroyed(d *Dispatcher) {
	if d == nil {
		return
	}

	// Destroy the app first so its teardown can still use the dispatcher.
	d.mu.Lock()
	app := d.app
	d.app = nil
	d.mu.Unlock()
	if app != nil {
		app.OnDestroy()
	}

	d.RequestDestruction()
}
