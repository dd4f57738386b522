package memstore

import "sync"

// Factory constructs a fresh Backend instance by name.
type Factory func() Backend

// Registry holds named backend constructors and performs capability
// negotiation / backend selection (spec C8's "pluggable" contract).
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	active    string
	backend   Backend
}

// NewRegistry returns a Registry whose active backend is NullBackend until
// Select is called.
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}, backend: NullBackend{}}
	r.Register("null", func() Backend { return NullBackend{} })
	r.Register("memory", func() Backend { return NewInMemoryBackend() })
	return r
}

// Register adds a named backend constructor.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Select constructs and activates the named backend. The caller is still
// responsible for calling Initialize on the returned Backend.
func (r *Registry) Select(name string) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, notSupported("backend " + name + " is not registered")
	}
	r.backend = f()
	r.active = name
	return r.backend, nil
}

// Active returns the currently selected backend (NullBackend if none was
// ever selected).
func (r *Registry) Active() Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.backend
}

// ActiveName returns the name passed to the last successful Select call.
func (r *Registry) ActiveName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Supports reports whether the active backend advertises the named
// capability, letting the coordinator gate features without probing.
func (r *Registry) Supports(check func(Capabilities) bool) bool {
	return check(r.Active().Capabilities())
}
