package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/videoforge/videoforge/internal/step"
)

// CyclicDependencyError reports a dependency cycle in a pipeline definition.
// Cycle lists the step ids along the cycle, ending where it started.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("workflow: dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// Node captures a pipeline step instance plus its dependency metadata.
type Node struct {
	ID           string
	Ref          StepRef
	Step         step.Step
	Dependencies []string
	Dependents   []string
}

// Resolver builds the pipeline dependency graph and computes a deterministic
// execution order.
type Resolver struct {
	definition Definition
	nodes      map[string]*Node
	order      []string
}

// NewResolver constructs a resolver for the provided definition. Steps are
// instantiated via the registry immediately so downstream code can run them,
// and step-declared dependencies are merged with the definition's graph.
func NewResolver(def Definition, registry *step.Registry) (*Resolver, error) {
	if registry == nil {
		return nil, fmt.Errorf("workflow: step registry is required")
	}
	normalized, err := def.Normalized()
	if err != nil {
		return nil, err
	}
	nodes := make(map[string]*Node, len(normalized.Steps))
	for _, ref := range normalized.Steps {
		st, err := registry.Resolve(ref.ID, step.Config(ref.Config))
		if err != nil {
			return nil, fmt.Errorf("workflow %s: %w", normalized.ID, err)
		}
		deps := mergeDependencies(normalized.Dependencies(ref.ID), st.Dependencies())
		nodes[ref.ID] = &Node{
			ID:           ref.ID,
			Ref:          ref,
			Step:         st,
			Dependencies: deps,
		}
	}
	for _, node := range nodes {
		for _, depID := range node.Dependencies {
			dep, ok := nodes[depID]
			if !ok {
				return nil, fmt.Errorf("workflow %s: dependency %s referenced by %s not declared", normalized.ID, depID, node.ID)
			}
			dep.Dependents = append(dep.Dependents, node.ID)
		}
	}
	for _, node := range nodes {
		if len(node.Dependents) > 1 {
			sort.Strings(node.Dependents)
		}
	}
	r := &Resolver{definition: normalized, nodes: nodes}
	order, err := r.topoOrder()
	if err != nil {
		return nil, err
	}
	r.order = order
	return r, nil
}

// Definition returns a clone of the resolver's pipeline definition.
func (r *Resolver) Definition() Definition {
	return r.definition.Clone()
}

// Node retrieves a step node by id.
func (r *Resolver) Node(id string) (*Node, bool) {
	node, ok := r.nodes[id]
	return node, ok
}

// Order returns the step ids in execution order. Dependencies always come
// before their dependents; ties follow declaration order, so the order is
// stable across runs of the same definition.
func (r *Resolver) Order() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Nodes returns the nodes in execution order.
func (r *Resolver) Nodes() []*Node {
	out := make([]*Node, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.nodes[id])
	}
	return out
}

const (
	colorWhite = iota // unvisited
	colorGray         // on the current DFS path
	colorBlack        // finished
)

// topoOrder is a depth-first topological sort. Visiting steps in declaration
// order and dependencies in their merged (sorted) order keeps the result
// deterministic. A gray node reached twice is a cycle.
func (r *Resolver) topoOrder() ([]string, error) {
	colors := make(map[string]int, len(r.nodes))
	path := make([]string, 0, len(r.nodes))
	order := make([]string, 0, len(r.nodes))

	var visit func(id string) error
	visit = func(id string) error {
		switch colors[id] {
		case colorBlack:
			return nil
		case colorGray:
			cycle := extractCycle(path, id)
			return &CyclicDependencyError{Cycle: cycle}
		}
		colors[id] = colorGray
		path = append(path, id)
		for _, dep := range r.nodes[id].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		colors[id] = colorBlack
		order = append(order, id)
		return nil
	}

	for _, ref := range r.definition.Steps {
		if err := visit(ref.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// extractCycle trims the DFS path down to the loop that re-entered start and
// closes it for readability.
func extractCycle(path []string, start string) []string {
	for i, id := range path {
		if id == start {
			cycle := append([]string{}, path[i:]...)
			return append(cycle, start)
		}
	}
	return []string{start, start}
}
