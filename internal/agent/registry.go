package agent

import (
	"sort"
	"sync"
)

// Registry holds the discovered agent definitions.
//
// The snapshot is written only by Discover and Reload. Lookups return copies,
// so a Registry can be shared by reference across sessions.
type Registry struct {
	mu      sync.RWMutex
	agents  map[string]*Descriptor
	sources Sources
}

// NewRegistry creates an empty registry with no sources.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*Descriptor)}
}

// Discover builds a registry from src, user scope first then project scope.
// The registry is always usable. The error joins any *DiscoveryError raised
// by an unreadable scope.
func Discover(src Sources) (*Registry, error) {
	agents, err := load(src)
	return &Registry{agents: agents, sources: src}, err
}

// Reload re-runs discovery against the original sources and replaces the
// snapshot.
func (r *Registry) Reload() error {
	r.mu.RLock()
	src := r.sources
	r.mu.RUnlock()

	agents, err := load(src)

	r.mu.Lock()
	r.agents = agents
	r.mu.Unlock()

	return err
}

// Sources returns the directories the registry was discovered from.
func (r *Registry) Sources() Sources {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources
}

// Get returns the descriptor registered under exactly name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.agents[name]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// Exists reports whether name is registered.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[name]
	return ok
}

// Names returns all agent names in lexicographic order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns name and description pairs sorted by name.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Summary, 0, len(r.agents))
	for _, d := range r.agents {
		list = append(list, d.Summary())
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
