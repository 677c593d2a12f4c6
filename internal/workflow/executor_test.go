package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/videoforge/videoforge/internal/plan"
	"github.com/videoforge/videoforge/internal/services"
	"github.com/videoforge/videoforge/internal/step"
)

type memStore struct {
	last  RunState
	saves int
}

func (m *memStore) Load() (RunState, error) {
	if m.saves == 0 {
		return RunState{}, ErrStateNotFound
	}
	return m.last, nil
}

func (m *memStore) Save(state RunState) error {
	m.last = state
	m.saves++
	return nil
}

func newTestEnvironment(t *testing.T) *step.Environment {
	t.Helper()
	env, err := step.NewEnvironment("test-run", t.TempDir(), nil, nil, nil, services.Clients{})
	if err != nil {
		t.Fatalf("environment: %v", err)
	}
	return env
}

func newTestDoc() *plan.Document {
	return &plan.Document{
		MetaInfo: &plan.MetaInfo{
			PlanVersion:   "1.0",
			SourceImage:   "source.png",
			Title:         "test",
			TotalDuration: 10,
			Resolution:    plan.Resolution{Width: 1280, Height: 720},
		},
	}
}

func newTestExecutor(t *testing.T, reg *step.Registry, store StateStore, opts ...ExecutorOption) *Executor {
	t.Helper()
	opts = append([]ExecutorOption{
		WithSleep(func(context.Context, time.Duration) error { return nil }),
	}, opts...)
	exec, err := NewExecutor(reg, store, opts...)
	if err != nil {
		t.Fatalf("executor: %v", err)
	}
	return exec
}

func TestExecutorRunsStepsInOrder(t *testing.T) {
	var calls []string
	a := newStubStep("a")
	b := newStubStep("b", "a")
	c := newStubStep("c", "b")
	for _, s := range []*stubStep{a, b, c} {
		s.calls = &calls
	}
	reg := buildRegistry(t, a, b, c)
	store := &memStore{}
	exec := newTestExecutor(t, reg, store)

	state, err := exec.Run(context.Background(), RunRequest{
		Definition: defFor(a, b, c),
		Doc:        newTestDoc(),
		Env:        newTestEnvironment(t),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if state.Status != RunStatusCompleted {
		t.Fatalf("status %s, want completed", state.Status)
	}
	want := []string{"a", "b", "c"}
	if len(calls) != len(want) {
		t.Fatalf("calls %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls %v, want %v", calls, want)
		}
	}
	for _, id := range want {
		res, ok := state.StepResult(id)
		if !ok || res.Status != StatusCompleted {
			t.Fatalf("step %s result %+v", id, res)
		}
	}
}

func TestExecutorFailFastSkipsRemaining(t *testing.T) {
	var calls []string
	a := newStubStep("a")
	b := newStubStep("b", "a")
	c := newStubStep("c", "b")
	for _, s := range []*stubStep{a, b, c} {
		s.calls = &calls
	}
	b.execute = func(*plan.Document) (step.Result, error) {
		return step.Result{}, step.Failf("b", "boom")
	}
	reg := buildRegistry(t, a, b, c)
	exec := newTestExecutor(t, reg, &memStore{})

	state, err := exec.Run(context.Background(), RunRequest{
		Definition: defFor(a, b, c),
		Doc:        newTestDoc(),
		Env:        newTestEnvironment(t),
	})
	if err == nil {
		t.Fatal("expected run error")
	}
	var execErr *step.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %T", err)
	}
	if state.Status != RunStatusFailed {
		t.Fatalf("status %s, want failed", state.Status)
	}
	if state.Cause != "step b failed" {
		t.Fatalf("cause %q", state.Cause)
	}
	if res, _ := state.StepResult("b"); res.Status != StatusFailed {
		t.Fatalf("b status %s", res.Status)
	}
	if res, _ := state.StepResult("c"); res.Status != StatusSkipped {
		t.Fatalf("c status %s, want skipped", res.Status)
	}
	for _, id := range calls {
		if id == "c" {
			t.Fatal("c executed after failure")
		}
	}
}

func TestExecutorRetriesRetryableErrors(t *testing.T) {
	var delays []time.Duration
	failures := 2
	a := newStubStep("a")
	a.execute = func(*plan.Document) (step.Result, error) {
		if failures > 0 {
			failures--
			return step.Result{}, step.Retry("a", errors.New("rate limited"))
		}
		return step.Result{Message: "ok"}, nil
	}
	reg := buildRegistry(t, a)
	exec := newTestExecutor(t, reg, &memStore{},
		WithRetryPolicy(3, 100*time.Millisecond),
		WithSleep(func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}))

	state, err := exec.Run(context.Background(), RunRequest{
		Definition: defFor(a),
		Doc:        newTestDoc(),
		Env:        newTestEnvironment(t),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	res, _ := state.StepResult("a")
	if res.Attempts != 3 {
		t.Fatalf("attempts %d, want 3", res.Attempts)
	}
	if len(delays) != 2 || delays[0] != 100*time.Millisecond || delays[1] != 200*time.Millisecond {
		t.Fatalf("unexpected backoff delays %v", delays)
	}
}

func TestExecutorStopsAfterAttemptBudget(t *testing.T) {
	a := newStubStep("a")
	a.execute = func(*plan.Document) (step.Result, error) {
		return step.Result{}, step.Retry("a", errors.New("still flaky"))
	}
	reg := buildRegistry(t, a)
	exec := newTestExecutor(t, reg, &memStore{}, WithRetryPolicy(3, time.Millisecond))

	state, err := exec.Run(context.Background(), RunRequest{
		Definition: defFor(a),
		Doc:        newTestDoc(),
		Env:        newTestEnvironment(t),
	})
	if err == nil {
		t.Fatal("expected failure after retries")
	}
	if a.attempts != 3 {
		t.Fatalf("executed %d times, want 3", a.attempts)
	}
	if state.Status != RunStatusFailed {
		t.Fatalf("status %s", state.Status)
	}
}

func TestExecutorDoesNotRetryExecutionErrors(t *testing.T) {
	a := newStubStep("a")
	a.execute = func(*plan.Document) (step.Result, error) {
		return step.Result{}, step.Failf("a", "fatal")
	}
	reg := buildRegistry(t, a)
	exec := newTestExecutor(t, reg, &memStore{}, WithRetryPolicy(3, time.Millisecond))

	if _, err := exec.Run(context.Background(), RunRequest{
		Definition: defFor(a),
		Doc:        newTestDoc(),
		Env:        newTestEnvironment(t),
	}); err == nil {
		t.Fatal("expected failure")
	}
	if a.attempts != 1 {
		t.Fatalf("executed %d times, want 1", a.attempts)
	}
}

func TestExecutorCancellationSkipsRemainingSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := newStubStep("a")
	a.execute = func(*plan.Document) (step.Result, error) {
		cancel()
		return step.Result{}, nil
	}
	b := newStubStep("b", "a")
	reg := buildRegistry(t, a, b)
	exec := newTestExecutor(t, reg, &memStore{})

	state, err := exec.Run(ctx, RunRequest{
		Definition: defFor(a, b),
		Doc:        newTestDoc(),
		Env:        newTestEnvironment(t),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if state.Status != RunStatusFailed || state.Cause != CauseCancelled {
		t.Fatalf("status %s cause %q", state.Status, state.Cause)
	}
	if res, _ := state.StepResult("a"); res.Status != StatusCompleted {
		t.Fatalf("a status %s", res.Status)
	}
	if res, _ := state.StepResult("b"); res.Status != StatusSkipped {
		t.Fatalf("b status %s, want skipped", res.Status)
	}
	if b.attempts != 0 {
		t.Fatal("b executed after cancellation")
	}
}

func TestExecutorReusesCompletedStepsWithIntactOutputs(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "a.out")
	if err := os.WriteFile(outFile, []byte("artifact"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	a := newStubStep("a")
	b := newStubStep("b", "a")
	reg := buildRegistry(t, a, b)
	exec := newTestExecutor(t, reg, &memStore{})

	doc := newTestDoc()
	doc.EnsureWorkflow().SetStepStatus("a", plan.StepState{
		Status:      string(StatusCompleted),
		OutputFiles: []string{outFile},
		FinishedAt:  time.Now(),
	})

	state, err := exec.Run(context.Background(), RunRequest{
		Definition: defFor(a, b),
		Doc:        doc,
		Env:        newTestEnvironment(t),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if a.attempts != 0 {
		t.Fatal("a re-executed despite intact outputs")
	}
	res, _ := state.StepResult("a")
	if res.Status != StatusCompleted || !res.Reused {
		t.Fatalf("a result %+v", res)
	}
	if b.attempts != 1 {
		t.Fatalf("b executed %d times, want 1", b.attempts)
	}
}

func TestExecutorReExecutesWhenOutputsAreMissing(t *testing.T) {
	a := newStubStep("a")
	reg := buildRegistry(t, a)
	exec := newTestExecutor(t, reg, &memStore{})

	doc := newTestDoc()
	doc.EnsureWorkflow().SetStepStatus("a", plan.StepState{
		Status:      string(StatusCompleted),
		OutputFiles: []string{filepath.Join(t.TempDir(), "gone.out")},
	})

	state, err := exec.Run(context.Background(), RunRequest{
		Definition: defFor(a),
		Doc:        doc,
		Env:        newTestEnvironment(t),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if a.attempts != 1 {
		t.Fatalf("a executed %d times, want 1", a.attempts)
	}
	if res, _ := state.StepResult("a"); res.Reused {
		t.Fatal("a reported as reused")
	}
}

func TestExecutorValidationFailureFailsRun(t *testing.T) {
	a := newStubStep("a")
	b := newStubStep("b", "a")
	b.valid = false
	c := newStubStep("c", "b")
	reg := buildRegistry(t, a, b, c)
	exec := newTestExecutor(t, reg, &memStore{})

	state, err := exec.Run(context.Background(), RunRequest{
		Definition: defFor(a, b, c),
		Doc:        newTestDoc(),
		Env:        newTestEnvironment(t),
	})
	if err == nil {
		t.Fatal("expected validation failure to fail the run")
	}
	var valErr *step.ValidationError
	if !errors.As(err, &valErr) || valErr.Step != "b" {
		t.Fatalf("expected ValidationError for b, got %v", err)
	}
	if state.Status != RunStatusFailed {
		t.Fatalf("status %s, want failed", state.Status)
	}
	if res, _ := state.StepResult("b"); res.Status != StatusSkipped {
		t.Fatalf("b status %s", res.Status)
	}
	if res, _ := state.StepResult("c"); res.Status != StatusSkipped {
		t.Fatalf("c status %s, want skipped", res.Status)
	}
	if res, _ := state.StepResult("a"); res.Status != StatusCompleted {
		t.Fatalf("a status %s", res.Status)
	}
	if b.attempts != 0 || c.attempts != 0 {
		t.Fatal("skipped steps executed")
	}
}

func TestExecutorOptionalStepValidationFailureSkipsAndContinues(t *testing.T) {
	a := newStubStep("a")
	b := newStubStep("b")
	b.valid = false
	c := newStubStep("c", "a")
	reg := buildRegistry(t, a, b, c)
	exec := newTestExecutor(t, reg, &memStore{})

	def := defFor(a, b, c)
	for i := range def.Steps {
		if def.Steps[i].ID == "b" {
			def.Steps[i].Optional = true
		}
	}

	state, err := exec.Run(context.Background(), RunRequest{
		Definition: def,
		Doc:        newTestDoc(),
		Env:        newTestEnvironment(t),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if state.Status != RunStatusCompleted {
		t.Fatalf("status %s, want completed", state.Status)
	}
	if res, _ := state.StepResult("b"); res.Status != StatusSkipped {
		t.Fatalf("b status %s, want skipped", res.Status)
	}
	if res, _ := state.StepResult("c"); res.Status != StatusCompleted {
		t.Fatalf("c status %s, want completed", res.Status)
	}
}

func TestExecutorFailsWhenRequiredStepLosesItsDependency(t *testing.T) {
	b := newStubStep("b")
	b.valid = false
	c := newStubStep("c", "b")
	reg := buildRegistry(t, b, c)
	exec := newTestExecutor(t, reg, &memStore{})

	def := defFor(b, c)
	for i := range def.Steps {
		if def.Steps[i].ID == "b" {
			def.Steps[i].Optional = true
		}
	}

	state, err := exec.Run(context.Background(), RunRequest{
		Definition: def,
		Doc:        newTestDoc(),
		Env:        newTestEnvironment(t),
	})
	if err == nil {
		t.Fatal("expected run error when a required step cannot run")
	}
	if state.Status != RunStatusFailed {
		t.Fatalf("status %s, want failed", state.Status)
	}
	res, _ := state.StepResult("c")
	if res.Status != StatusSkipped {
		t.Fatalf("c status %s, want skipped", res.Status)
	}
	if !strings.Contains(res.Message, "dependency b not satisfied") {
		t.Fatalf("c message %q, want unmet dependency", res.Message)
	}
	if !strings.Contains(state.Cause, "step c skipped") {
		t.Fatalf("cause %q, want it to name the skipped step", state.Cause)
	}
	if c.attempts != 0 {
		t.Fatalf("c ran %d times despite its dependency being skipped", c.attempts)
	}
}

func TestExecutorRunStepPullsDependenciesOnly(t *testing.T) {
	a := newStubStep("a")
	b := newStubStep("b")
	c := newStubStep("c", "a")
	reg := buildRegistry(t, a, b, c)
	exec := newTestExecutor(t, reg, &memStore{})

	state, err := exec.RunStep(context.Background(), RunRequest{
		Definition: defFor(a, b, c),
		Doc:        newTestDoc(),
		Env:        newTestEnvironment(t),
	}, "c")
	if err != nil {
		t.Fatalf("run step: %v", err)
	}
	if a.attempts != 1 || c.attempts != 1 {
		t.Fatalf("a ran %d, c ran %d, want 1 each", a.attempts, c.attempts)
	}
	if b.attempts != 0 {
		t.Fatal("unrelated step b executed")
	}
	if len(state.Order) != 2 {
		t.Fatalf("order %v, want a then c", state.Order)
	}
}

func TestExecutorWritesStatusesBackToPlan(t *testing.T) {
	planPath := filepath.Join(t.TempDir(), "plan.json")
	doc := newTestDoc()
	if err := doc.Save(planPath); err != nil {
		t.Fatalf("save plan: %v", err)
	}
	a := newStubStep("a")
	a.execute = func(*plan.Document) (step.Result, error) {
		return step.Result{OutputFiles: []string{"a.out"}}, nil
	}
	reg := buildRegistry(t, a)
	exec := newTestExecutor(t, reg, &memStore{})

	if _, err := exec.Run(context.Background(), RunRequest{
		Definition: defFor(a),
		Doc:        doc,
		PlanPath:   planPath,
		Env:        newTestEnvironment(t),
	}); err != nil {
		t.Fatalf("run: %v", err)
	}

	reloaded, err := plan.Load(planPath)
	if err != nil {
		t.Fatalf("reload plan: %v", err)
	}
	status, ok := reloaded.Workflow.StepStatus("a")
	if !ok || status.Status != string(StatusCompleted) {
		t.Fatalf("persisted status %+v", status)
	}
	if len(status.OutputFiles) != 1 || status.OutputFiles[0] != "a.out" {
		t.Fatalf("persisted outputs %v", status.OutputFiles)
	}
}
