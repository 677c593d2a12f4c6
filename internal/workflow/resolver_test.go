package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/videoforge/videoforge/internal/plan"
	"github.com/videoforge/videoforge/internal/step"
)

type stubStep struct {
	id       string
	deps     []string
	valid    bool
	calls    *[]string
	execute  func(*plan.Document) (step.Result, error)
	attempts int
}

func newStubStep(id string, deps ...string) *stubStep {
	return &stubStep{id: id, deps: deps, valid: true}
}

func (s *stubStep) Info() step.Info {
	return step.Info{ID: s.id, Name: s.id}
}

func (s *stubStep) Dependencies() []string { return s.deps }

func (s *stubStep) ValidateInputs(doc *plan.Document) bool { return s.valid }

func (s *stubStep) Execute(ctx context.Context, doc *plan.Document, env *step.Environment) (step.Result, error) {
	s.attempts++
	if s.calls != nil {
		*s.calls = append(*s.calls, s.id)
	}
	if s.execute != nil {
		return s.execute(doc)
	}
	return step.Result{Message: s.id + " done"}, nil
}

func buildRegistry(t *testing.T, stubs ...*stubStep) *step.Registry {
	t.Helper()
	reg := step.NewRegistry()
	for _, s := range stubs {
		stub := s
		if err := reg.Register(stub.id, func(step.Config) (step.Step, error) {
			return stub, nil
		}); err != nil {
			t.Fatalf("register %s: %v", stub.id, err)
		}
	}
	return reg
}

func defFor(stubs ...*stubStep) Definition {
	def := Definition{ID: "test"}
	for _, s := range stubs {
		def.Steps = append(def.Steps, StepRef{ID: s.id})
	}
	return def
}

func TestResolverOrderIsDeterministicAndTopological(t *testing.T) {
	a := newStubStep("a")
	b := newStubStep("b")
	c := newStubStep("c", "a", "b")
	d := newStubStep("d", "c")
	reg := buildRegistry(t, a, b, c, d)

	want := []string{"a", "b", "c", "d"}
	for i := 0; i < 5; i++ {
		r, err := NewResolver(defFor(a, b, c, d), reg)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		got := r.Order()
		if len(got) != len(want) {
			t.Fatalf("order length %d, want %d", len(got), len(want))
		}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("iteration %d: order %v, want %v", i, got, want)
			}
		}
	}
}

func TestResolverDependenciesPrecedeDependents(t *testing.T) {
	cutting := newStubStep("cutting")
	narration := newStubStep("narration")
	timeline := newStubStep("timeline", "narration")
	textvideo := newStubStep("textvideo", "timeline")
	composition := newStubStep("composition", "cutting", "narration", "textvideo")
	reg := buildRegistry(t, cutting, narration, timeline, textvideo, composition)

	r, err := NewResolver(defFor(cutting, narration, timeline, textvideo, composition), reg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	position := map[string]int{}
	for i, id := range r.Order() {
		position[id] = i
	}
	for _, node := range r.Nodes() {
		for _, dep := range node.Dependencies {
			if position[dep] >= position[node.ID] {
				t.Fatalf("dependency %s does not precede %s in %v", dep, node.ID, r.Order())
			}
		}
	}
}

func TestResolverDetectsCycle(t *testing.T) {
	a := newStubStep("a", "c")
	b := newStubStep("b", "a")
	c := newStubStep("c", "b")
	reg := buildRegistry(t, a, b, c)

	_, err := NewResolver(defFor(a, b, c), reg)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	var cyc *CyclicDependencyError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CyclicDependencyError, got %T: %v", err, err)
	}
	if len(cyc.Cycle) < 3 {
		t.Fatalf("cycle too short: %v", cyc.Cycle)
	}
	if cyc.Cycle[0] != cyc.Cycle[len(cyc.Cycle)-1] {
		t.Fatalf("cycle is not closed: %v", cyc.Cycle)
	}
}

func TestResolverSelfDependencyIsACycle(t *testing.T) {
	a := newStubStep("a", "a")
	reg := buildRegistry(t, a)

	_, err := NewResolver(defFor(a), reg)
	var cyc *CyclicDependencyError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CyclicDependencyError, got %v", err)
	}
}

func TestResolverRejectsUnknownDependency(t *testing.T) {
	a := newStubStep("a", "ghost")
	reg := buildRegistry(t, a)

	if _, err := NewResolver(defFor(a), reg); err == nil {
		t.Fatal("expected unknown dependency error")
	}
}

func TestResolverRejectsUnregisteredStep(t *testing.T) {
	reg := step.NewRegistry()
	def := Definition{ID: "test", Steps: []StepRef{{ID: "missing"}}}
	if _, err := NewResolver(def, reg); err == nil {
		t.Fatal("expected unknown step error")
	}
}
