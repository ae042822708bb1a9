package decoder

import (
	"sort"
	"sync"
)

// Factory creates a new decoder instance. Instances are expected to be
// cheap to construct; expensive state is deferred to first retrieval.
type Factory func() Decoder

// globalRegistry is the default registry.
var globalRegistry = NewRegistry()

// Registry maps decoder IDs to factories.
//
// The registry enables codec backends to register themselves without
// requiring changes to the core: a backend package's init calls Register,
// and footage items carry the ID that selects it.
//
// Example registration:
//
//	func init() {
//	    decoder.Register("ffmpeg", newFFmpegDecoder)
//	}
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Factory
}

// NewRegistry creates a new empty registry. Most code should use the global
// registry via Register and CreateFromID.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Factory)}
}

// Register adds a decoder factory to the global registry.
// Registering an ID that already exists replaces the previous entry.
func Register(id string, factory Factory) {
	globalRegistry.Register(id, factory)
}

// CreateFromID instantiates the decoder registered under id from the global
// registry. An unknown ID returns nil: no decoder is "nothing to render",
// not an error, and the caller renders nothing.
func CreateFromID(id string) Decoder {
	return globalRegistry.CreateFromID(id)
}

// List returns all registered decoder IDs from the global registry, sorted.
func List() []string {
	return globalRegistry.List()
}

// Register adds a decoder factory to the registry.
func (r *Registry) Register(id string, factory Factory) {
	if factory == nil {
		return
	}
	r.mu.Lock()
	r.entries[id] = factory
	r.mu.Unlock()
}

// Unregister removes a decoder factory from the registry.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// CreateFromID instantiates the decoder registered under id, or nil when
// the ID is unknown.
func (r *Registry) CreateFromID(id string) Decoder {
	r.mu.RLock()
	factory, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return factory()
}

// List returns all registered decoder IDs, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
