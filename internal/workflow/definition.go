// Package workflow turns a step registry plus a dependency graph into an
// executed pipeline run: it resolves the graph into a deterministic order,
// runs the steps sequentially with retries, and persists enough state for a
// later invocation to resume where the previous one stopped.
package workflow

import (
	"fmt"
	"sort"

	"github.com/videoforge/videoforge/internal/plan"
)

// DependencyGraph maps step identifiers to the step IDs they depend on.
type DependencyGraph map[string][]string

// Clone returns a deep copy of the graph.
func (g DependencyGraph) Clone() DependencyGraph {
	if len(g) == 0 {
		return nil
	}
	out := make(DependencyGraph, len(g))
	for key, deps := range g {
		if len(deps) == 0 {
			out[key] = nil
			continue
		}
		clone := make([]string, len(deps))
		copy(clone, deps)
		out[key] = clone
	}
	return out
}

// StepRef declares one step inside a pipeline definition.
type StepRef struct {
	ID        string         `json:"id" yaml:"id"`
	DependsOn []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Optional  bool           `json:"optional,omitempty" yaml:"optional,omitempty"`
	Config    map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Clone returns a deep copy of the step reference.
func (ref StepRef) Clone() StepRef {
	clone := StepRef{ID: ref.ID, Optional: ref.Optional}
	if len(ref.DependsOn) > 0 {
		clone.DependsOn = make([]string, len(ref.DependsOn))
		copy(clone.DependsOn, ref.DependsOn)
	}
	if len(ref.Config) > 0 {
		clone.Config = make(map[string]any, len(ref.Config))
		for key, value := range ref.Config {
			clone.Config[key] = value
		}
	}
	return clone
}

// Validate ensures the reference is usable.
func (ref StepRef) Validate() error {
	if ref.ID == "" {
		return fmt.Errorf("workflow: step id is required")
	}
	deps := append([]string{}, ref.DependsOn...)
	sort.Strings(deps)
	for i := 1; i < len(deps); i++ {
		if deps[i] == deps[i-1] {
			return fmt.Errorf("workflow: step %s has duplicate dependency on %s", ref.ID, deps[i])
		}
	}
	return nil
}

// Definition declares an executable pipeline graph.
type Definition struct {
	ID    string          `json:"id" yaml:"id"`
	Name  string          `json:"name,omitempty" yaml:"name,omitempty"`
	Steps []StepRef       `json:"steps" yaml:"steps"`
	Graph DependencyGraph `json:"graph,omitempty" yaml:"graph,omitempty"`
}

// Default returns the built-in five-step pipeline definition.
func Default() Definition {
	return Definition{
		ID:   "videoforge",
		Name: "Video Plan Pipeline",
		Steps: []StepRef{
			{ID: "cutting"},
			{ID: "narration"},
			{ID: "timeline", DependsOn: []string{"narration"}},
			{ID: "textvideo", DependsOn: []string{"timeline"}},
			{ID: "composition", DependsOn: []string{"cutting", "narration", "textvideo"}},
		},
	}
}

// FromPlan merges the plan document's processing_workflow declarations onto
// the built-in definition. Steps the plan names that the default does not
// know are appended; extra depends_on entries extend the built-in graph.
func FromPlan(doc *plan.Document) (Definition, error) {
	def := Default()
	if doc == nil || doc.Workflow == nil || len(doc.Workflow.Steps) == 0 {
		return def.Normalized()
	}
	index := make(map[string]int, len(def.Steps))
	for i, ref := range def.Steps {
		index[ref.ID] = i
	}
	for _, declared := range doc.Workflow.Steps {
		ref := StepRef{
			ID:        declared.ID,
			DependsOn: declared.DependsOn,
			Optional:  declared.Optional,
			Config:    declared.Config,
		}
		if i, ok := index[declared.ID]; ok {
			def.Steps[i].DependsOn = mergeDependencies(def.Steps[i].DependsOn, ref.DependsOn)
			def.Steps[i].Optional = ref.Optional
			if len(ref.Config) > 0 {
				def.Steps[i].Config = ref.Config
			}
			continue
		}
		def.Steps = append(def.Steps, ref)
	}
	return def.Normalized()
}

// Clone returns a deep copy of the definition.
func (def Definition) Clone() Definition {
	clone := Definition{
		ID:    def.ID,
		Name:  def.Name,
		Graph: def.Graph.Clone(),
	}
	if len(def.Steps) > 0 {
		clone.Steps = make([]StepRef, len(def.Steps))
		for i, ref := range def.Steps {
			clone.Steps[i] = ref.Clone()
		}
	}
	return clone
}

// Validate ensures the definition is self-consistent.
func (def Definition) Validate() error {
	if def.ID == "" {
		return fmt.Errorf("workflow: id is required")
	}
	if len(def.Steps) == 0 {
		return fmt.Errorf("workflow %s: at least one step is required", def.ID)
	}
	seen := map[string]struct{}{}
	for idx, ref := range def.Steps {
		if err := ref.Validate(); err != nil {
			return fmt.Errorf("workflow %s step[%d]: %w", def.ID, idx, err)
		}
		if _, exists := seen[ref.ID]; exists {
			return fmt.Errorf("workflow %s: duplicate step id %s", def.ID, ref.ID)
		}
		seen[ref.ID] = struct{}{}
	}
	for key, deps := range def.Graph {
		if _, ok := seen[key]; !ok {
			return fmt.Errorf("workflow %s: graph references unknown step %s", def.ID, key)
		}
		for _, dep := range deps {
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("workflow %s: graph dependency %s -> %s references unknown step", def.ID, key, dep)
			}
		}
	}
	return nil
}

// Normalized clones the definition, merges inline step dependencies into the
// graph, and validates the result.
func (def Definition) Normalized() (Definition, error) {
	clone := def.Clone()
	if clone.Graph == nil {
		clone.Graph = DependencyGraph{}
	}
	for _, ref := range clone.Steps {
		clone.Graph[ref.ID] = mergeDependencies(clone.Graph[ref.ID], ref.DependsOn)
	}
	if err := clone.Validate(); err != nil {
		return Definition{}, err
	}
	return clone, nil
}

// StepIDs returns the step identifiers in declaration order.
func (def Definition) StepIDs() []string {
	ids := make([]string, 0, len(def.Steps))
	for _, ref := range def.Steps {
		ids = append(ids, ref.ID)
	}
	return ids
}

// Dependencies returns the dependency list for a step.
func (def Definition) Dependencies(id string) []string {
	if def.Graph == nil {
		return nil
	}
	deps := def.Graph[id]
	if len(deps) == 0 {
		return nil
	}
	clone := make([]string, len(deps))
	copy(clone, deps)
	return clone
}

func mergeDependencies(existing, adds []string) []string {
	if len(adds) == 0 && len(existing) == 0 {
		return nil
	}
	set := map[string]struct{}{}
	for _, id := range existing {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	for _, id := range adds {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
