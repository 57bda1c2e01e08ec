package guardian

import (
	"sync"

	"github.com/bxcodec/dbresolver/v2"
)

// DefaultConnectionName is the registry slot used when no logical name is
// configured.
const DefaultConnectionName = "default"

// Registry maps logical connection names to resolved connection options and
// to connections established by code paths outside a guardian. It is an
// explicit, injected dependency rather than process-global state so guardians
// stay testable.
type Registry struct {
	mu          sync.RWMutex
	options     map[string]ConnectionOptions
	connections map[string]dbresolver.DB
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		options:     make(map[string]ConnectionOptions),
		connections: make(map[string]dbresolver.DB),
	}
}

// RegisterOptions stores connection options under name. An empty name uses
// the default slot.
func (r *Registry) RegisterOptions(name string, opts ConnectionOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.options[normalizeName(name)] = opts
}

// Options returns the connection options registered under name.
func (r *Registry) Options(name string) (ConnectionOptions, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	opts, ok := r.options[normalizeName(name)]

	return opts, ok
}

// RegisterConnection stores an externally established connection under name.
// An empty name uses the default slot.
func (r *Registry) RegisterConnection(name string, db dbresolver.DB) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[normalizeName(name)] = db
}

// Connection returns the connection registered under name.
func (r *Registry) Connection(name string) (dbresolver.DB, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	db, ok := r.connections[normalizeName(name)]

	return db, ok
}

// lookupConnection tries the named slot first and falls back to the default
// slot, mirroring the guardian's escape hatch for connections established by
// another code path.
func (r *Registry) lookupConnection(name string) (dbresolver.DB, bool) {
	if db, ok := r.Connection(name); ok {
		return db, true
	}

	if normalizeName(name) != DefaultConnectionName {
		return r.Connection("")
	}

	return nil, false
}

func normalizeName(name string) string {
	if name == "" {
		return DefaultConnectionName
	}

	return name
}
