package imagepipe

import (
	"fmt"
	"sync"
)

// The host plugin system activates a pipe only when its identifier matches
// this exact literal; any mismatch prevents activation. The identifier is a
// registration contract with the host, not configurable.
const (
	// PipeID is the fixed identifier the host expects.
	PipeID = "final_correct_pipe"

	// PipeType tells the host this pipe exposes its own model listing.
	PipeType = "manifold"
)

// Registry maps pipe identifiers to pipes. Lookup is exact-match only.
// Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	pipes map[string]*Pipe
}

// NewRegistry creates an empty pipe registry.
func NewRegistry() *Registry {
	return &Registry{pipes: make(map[string]*Pipe)}
}

// Register adds a pipe under its identifier. Registering the same identifier
// twice is an error.
func (r *Registry) Register(p *Pipe) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := p.ID()
	if _, exists := r.pipes[id]; exists {
		return fmt.Errorf("imagepipe: pipe '%s' already registered", id)
	}
	r.pipes[id] = p
	return nil
}

// Lookup returns the pipe registered under id, if any.
func (r *Registry) Lookup(id string) (*Pipe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipes[id]
	return p, ok
}
