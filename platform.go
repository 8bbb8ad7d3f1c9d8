package uidispatch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/tidwall/gjson"
)

// Activity is the host UI surface a dispatcher is attached to. Finish asks
// the host to tear the surface down; the host is expected to respond by
// calling ActivityDestroyed.
type Activity interface {
	Finish()
}

// AssetManager provides read access to the host's bundled assets.
type AssetManager struct {
	fsys fs.FS
}

// NewAssetManager wraps an asset filesystem. A nil fsys yields a manager
// whose lookups all fail with fs.ErrNotExist.
func NewAssetManager(fsys fs.FS) *AssetManager {
	return &AssetManager{fsys: fsys}
}

// Open opens the named asset for reading.
func (m *AssetManager) Open(name string) (io.ReadCloser, error) {
	if m == nil || m.fsys == nil {
		return nil, fmt.Errorf("uidispatch: open asset %q: %w", name, fs.ErrNotExist)
	}
	return m.fsys.Open(name)
}

// ReadAsset reads the named asset in full.
func (m *AssetManager) ReadAsset(name string) ([]byte, error) {
	if m == nil || m.fsys == nil {
		return nil, fmt.Errorf("uidispatch: read asset %q: %w", name, fs.ErrNotExist)
	}
	return fs.ReadFile(m.fsys, name)
}

const (
	// configurationAsset is the well-known asset path holding the host
	// platform configuration document.
	configurationAsset = "platform/config.json"

	// DefaultAPIVersion is assumed when the configuration document is absent
	// or does not declare an api_version.
	DefaultAPIVersion = 1
)

// Configuration is an immutable snapshot of the host platform configuration,
// captured at dispatcher initialization.
type Configuration struct {
	raw []byte
}

// configurationFromAssets loads the platform configuration document. A
// missing document is not an error; defaults apply. A present but malformed
// document is rejected.
func configurationFromAssets(assets *AssetManager) (*Configuration, error) {
	raw, err := assets.ReadAsset(configurationAsset)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Configuration{}, nil
		}
		return nil, err
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", ErrInvalidConfiguration, configurationAsset)
	}
	return &Configuration{raw: raw}, nil
}

// APIVersion returns the host API version declared by the configuration, or
// DefaultAPIVersion when undeclared.
func (c *Configuration) APIVersion() int {
	if c == nil || c.raw == nil {
		return DefaultAPIVersion
	}
	v := gjson.GetBytes(c.raw, "api_version")
	if !v.Exists() {
		return DefaultAPIVersion
	}
	return int(v.Int())
}

// Get queries the configuration document by gjson path. The zero Result is
// returned when no document was loaded.
func (c *Configuration) Get(path string) gjson.Result {
	if c == nil || c.raw == nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(c.raw, path)
}

// platformBase tracks process-wide platform initialization. The subsystem is
// reference counted so that concurrent dispatchers share one initialization.
var platformBase struct {
	mu         sync.Mutex
	refs       int
	apiVersion int
}

// InitializeBase initializes the process-wide platform subsystem, or adds a
// reference if it is already initialized. The API version recorded by the
// first initialization wins.
func InitializeBase(apiVersion int) error {
	platformBase.mu.Lock()
	defer platformBase.mu.Unlock()
	if platformBase.refs == 0 {
		platformBase.apiVersion = apiVersion
	}
	platformBase.refs++
	return nil
}

// ShutdownBase drops a reference to the process-wide platform subsystem,
// tearing it down when the last reference is dropped. Unbalanced calls are
// ignored.
func ShutdownBase() {
	platformBase.mu.Lock()
	defer platformBase.mu.Unlock()
	if platformBase.refs == 0 {
		return
	}
	platformBase.refs--
	if platformBase.refs == 0 {
		platformBase.apiVersion = 0
	}
}

// BaseAPIVersion reports the API version the platform subsystem was
// initialized with, or zero when uninitialized.
func BaseAPIVersion() int {
	platformBase.mu.Lock()
	defer platformBase.mu.Unlock()
	return platformBase.apiVersion
}
