package identify

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/bigtracks/internal/config"
	"github.com/banshee-data/bigtracks/internal/imageio"
)

// ErrUnknownIdentifier is returned by Lookup for unregistered names.
var ErrUnknownIdentifier = errors.New("unknown identification function")

// Func identifies features in a frame whose particles are bright peaks.
// win may be nil for no cropping.
type Func func(im *imageio.Frame, p *config.TrackingParams, win *config.Window) ([]Feature, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Func{
		"basic":                Basic,
		"identify_frame_basic": Basic,
		"mixed_donuts":         MixedDonuts,
	}
)

// Register adds a named identifier. Names are unique.
func Register(name string, fn Func) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		return fmt.Errorf("identification function %q already registered", name)
	}
	registry[name] = fn
	return nil
}

// Lookup returns the identifier registered under name.
func Lookup(name string) (Func, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIdentifier, name)
	}
	return fn, nil
}

// Names lists the registered identifiers, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IdentifyFrame runs the identifier selected by p on im. Frames of dark
// particles on a light background (the default, bright = 0) are inverted
// first so the identifier always sees bright peaks.
func IdentifyFrame(im *imageio.Frame, p *config.TrackingParams, win *config.Window) ([]Feature, error) {
	fn, err := Lookup(p.GetIdentFunc())
	if err != nil {
		return nil, err
	}
	if !p.GetBright() {
		im = im.Invert()
	}
	return fn(im, p, win)
}
