package step

import (
	"fmt"
	"sort"
	"sync"
)

// Config is the raw per-step configuration block from a pipeline definition.
// The engine never inspects it; each factory pulls out the settings it
// understands.
type Config map[string]any

// Factory builds a ready-to-run step from its configuration block.
type Factory func(Config) (Step, error)

// Registry maps step ids to factories. Registration happens during startup
// wiring; lookups afterwards are read-only and safe to share across
// goroutines.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with no steps installed.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register installs factory under id. Blank ids, nil factories, and ids that
// are already taken are rejected so wiring mistakes surface at startup rather
// than mid-run.
func (r *Registry) Register(id string, factory Factory) error {
	switch {
	case id == "":
		return fmt.Errorf("step: cannot register a step without an id")
	case factory == nil:
		return fmt.Errorf("step: nil factory for %s", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.factories[id]; taken {
		return fmt.Errorf("step: %s already registered", id)
	}
	r.factories[id] = factory
	return nil
}

// MustRegister is Register for wiring code with no error path; a failure
// means the binary is assembled wrong, so it panics.
func (r *Registry) MustRegister(id string, factory Factory) {
	if err := r.Register(id, factory); err != nil {
		panic(err)
	}
}

// Resolve builds the step registered under id and vets its Info, so a
// factory handing back a half-formed step is caught at resolution time
// instead of deep in a run.
func (r *Registry) Resolve(id string, cfg Config) (Step, error) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("step: no step registered under %q", id)
	}
	built, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("step: build %s: %w", id, err)
	}
	if err := built.Info().Validate(); err != nil {
		return nil, err
	}
	return built, nil
}

// IDs lists the registered step ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
