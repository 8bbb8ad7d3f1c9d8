package uidispatch

import (
	"fmt"
	"sync"
)

// App is the application hosted by a Dispatcher. Both hooks run on the UI
// loop goroutine.
type App interface {
	// OnInitialize is invoked once after the app instance is constructed and
	// attached to its dispatcher. Returning a non-nil error aborts
	// initialization; OnDestroy is then invoked and the instance discarded.
	OnInitialize() error

	// OnDestroy is invoked at most once, either after a failed OnInitialize
	// or during dispatcher teardown. It must not retain the dispatcher.
	OnDestroy()
}

// Creator constructs an App bound to the given dispatcher. It must not
// perform initialization work; that belongs in App.OnInitialize.
type Creator func(d *Dispatcher) App

var (
	appRegistryMu sync.RWMutex
	appRegistry   = make(map[string]Creator)
)

// RegisterApp makes an application constructor available by identifier.
// If RegisterApp is called twice with the same identifier, or if create is
// nil, it panics.
func RegisterApp(identifier string, create Creator) {
	appRegistryMu.Lock()
	defer appRegistryMu.Unlock()
	if identifier == "" {
		panic("uidispatch: RegisterApp identifier is empty")
	}
	if create == nil {
		panic("uidispatch: RegisterApp create is nil")
	}
	if _, dup := appRegistry[identifier]; dup {
		panic(fmt.Sprintf("uidispatch: RegisterApp called twice for app %q", identifier))
	}
	appRegistry[identifier] = create
}

// appCreator returns the registered constructor for identifier, or nil.
func appCreator(identifier string) Creator {
	appRegistryMu.RLock()
	defer appRegistryMu.RUnlock()
	return appRegistry[identifier]
}
