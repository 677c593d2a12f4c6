package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/videoforge/videoforge/internal/plan"
	"github.com/videoforge/videoforge/internal/step"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// NewRunID generates a short unique run identifier.
func NewRunID() string {
	return uuid.NewString()[:8]
}

// Executor runs a resolved pipeline sequentially, persisting run state after
// every step so an interrupted run can be resumed.
type Executor struct {
	registry    *step.Registry
	repo        StateStore
	maxAttempts int
	baseDelay   time.Duration
	clock       func() time.Time
	sleep       func(context.Context, time.Duration) error
}

// ExecutorOption customizes the executor instance.
type ExecutorOption func(*Executor)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRetryPolicy overrides how often and how patiently transient step
// failures are retried. The delay doubles after every failed attempt.
func WithRetryPolicy(maxAttempts int, baseDelay time.Duration) ExecutorOption {
	return func(e *Executor) {
		if maxAttempts > 0 {
			e.maxAttempts = maxAttempts
		}
		if baseDelay > 0 {
			e.baseDelay = baseDelay
		}
	}
}

// WithSleep overrides the backoff sleeper (primarily for tests).
func WithSleep(sleep func(context.Context, time.Duration) error) ExecutorOption {
	return func(e *Executor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// NewExecutor wires an executor to the step registry and persistence store.
func NewExecutor(registry *step.Registry, repo StateStore, opts ...ExecutorOption) (*Executor, error) {
	if registry == nil {
		return nil, fmt.Errorf("workflow: step registry is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("workflow: state store is required")
	}
	e := &Executor{
		registry:    registry,
		repo:        repo,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		clock:       time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RunRequest describes one pipeline run.
type RunRequest struct {
	Definition Definition
	Doc        *plan.Document
	// PlanPath is where step statuses are written back after every step.
	PlanPath string
	Env      *step.Environment
	// RunID is generated when empty.
	RunID string
	// Targets optionally narrows the run to the named steps plus their
	// unsatisfied dependencies. Empty means the whole pipeline.
	Targets []string
}

// Run executes the pipeline sequentially in resolved order. Steps whose
// persisted status is completed and whose output files are still on disk are
// reused instead of re-executed. The first execution failure stops the run;
// the remaining steps are recorded as skipped. Cancellation is honoured
// between steps and during retry backoff.
func (e *Executor) Run(ctx context.Context, req RunRequest) (RunState, error) {
	if req.Doc == nil {
		return RunState{}, fmt.Errorf("workflow: plan document is required")
	}
	if req.Env == nil {
		return RunState{}, fmt.Errorf("workflow: run environment is required")
	}
	resolver, err := NewResolver(req.Definition, e.registry)
	if err != nil {
		return RunState{}, err
	}
	order, err := e.selectOrder(resolver, req.Targets)
	if err != nil {
		return RunState{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = NewRunID()
	}
	now := e.clock()
	state := RunState{
		RunID:      runID,
		WorkflowID: resolver.Definition().ID,
		PlanPath:   req.PlanPath,
		Status:     RunStatusRunning,
		Order:      order,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	for _, id := range order {
		state.Steps = append(state.Steps, StepResult{StepID: id, Status: StatusPending})
	}
	if err := e.repo.Save(state); err != nil {
		return state, err
	}

	wf := req.Doc.EnsureWorkflow()
	satisfied := map[string]bool{}

	for i, id := range order {
		node, _ := resolver.Node(id)

		if ctx.Err() != nil {
			e.skipRemaining(&state, order[i:], "run cancelled")
			state.Status = RunStatusFailed
			state.Cause = CauseCancelled
			e.finish(&state)
			return state, ctx.Err()
		}

		if unmet := unmetDependencies(node, satisfied); len(unmet) > 0 {
			reason := fmt.Sprintf("dependency %s not satisfied", unmet[0])
			e.recordSkip(&state, id, reason)
			if node.Ref.Optional {
				req.Env.Logf("workflow: optional step %s skipped, %s", id, reason)
				continue
			}
			e.skipRemaining(&state, order[i+1:], fmt.Sprintf("step %s skipped", id))
			state.Status = RunStatusFailed
			state.Cause = fmt.Sprintf("step %s skipped: %s", id, reason)
			e.finish(&state)
			req.Env.Logf("workflow: step %s skipped (%s), run halted", id, reason)
			return state, fmt.Errorf("workflow: step %s skipped: %s", id, reason)
		}

		if prev, ok := wf.StepStatus(id); ok && prev.Status == string(StatusCompleted) && outputsIntact(prev.OutputFiles) {
			satisfied[id] = true
			state.setStepResult(StepResult{
				StepID:      id,
				Status:      StatusCompleted,
				OutputFiles: prev.OutputFiles,
				FinishedAt:  prev.FinishedAt,
				Message:     "reused outputs from previous run",
				Reused:      true,
			})
			state.UpdatedAt = e.clock()
			_ = e.repo.Save(state)
			req.Env.Logf("workflow: step %s already complete, reusing outputs", id)
			continue
		}

		if !node.Step.ValidateInputs(req.Doc) {
			e.recordSkip(&state, id, "input validation failed")
			wf.SetStepStatus(id, plan.StepState{Status: string(StatusSkipped), Error: "input validation failed"})
			e.savePlan(req)
			if node.Ref.Optional {
				req.Env.Logf("workflow: optional step %s skipped, input validation failed", id)
				continue
			}
			valErr := &step.ValidationError{Step: id}
			e.skipRemaining(&state, order[i+1:], fmt.Sprintf("step %s failed validation", id))
			state.Status = RunStatusFailed
			state.Cause = valErr.Error()
			e.finish(&state)
			req.Env.Logf("workflow: step %s failed input validation, run halted", id)
			return state, valErr
		}

		started := e.clock()
		state.setStepResult(StepResult{StepID: id, Status: StatusRunning, StartedAt: started})
		state.UpdatedAt = started
		_ = e.repo.Save(state)
		req.Env.Logf("workflow: step %s started", id)

		result, attempts, execErr := e.executeWithRetry(ctx, node, req)
		finished := e.clock()
		if execErr != nil {
			state.setStepResult(StepResult{
				StepID:     id,
				Status:     StatusFailed,
				Attempts:   attempts,
				StartedAt:  started,
				FinishedAt: finished,
				Error:      execErr.Error(),
			})
			wf.SetStepStatus(id, plan.StepState{
				Status:     string(StatusFailed),
				FinishedAt: finished,
				Error:      execErr.Error(),
			})
			e.savePlan(req)
			e.skipRemaining(&state, order[i+1:], fmt.Sprintf("step %s failed", id))
			state.Status = RunStatusFailed
			if ctx.Err() != nil {
				state.Cause = CauseCancelled
			} else {
				state.Cause = fmt.Sprintf("step %s failed", id)
			}
			e.finish(&state)
			req.Env.Logf("workflow: step %s failed after %d attempt(s): %v", id, attempts, execErr)
			return state, execErr
		}

		satisfied[id] = true
		state.setStepResult(StepResult{
			StepID:      id,
			Status:      StatusCompleted,
			Attempts:    attempts,
			StartedAt:   started,
			FinishedAt:  finished,
			OutputFiles: result.OutputFiles,
			Message:     result.Message,
		})
		wf.SetStepStatus(id, plan.StepState{
			Status:      string(StatusCompleted),
			FinishedAt:  finished,
			OutputFiles: result.OutputFiles,
		})
		e.savePlan(req)
		state.UpdatedAt = finished
		_ = e.repo.Save(state)
		req.Env.Logf("workflow: step %s completed in %s", id, finished.Sub(started).Round(time.Millisecond))
	}

	state.Status = RunStatusCompleted
	e.finish(&state)
	return state, nil
}

// RunStep executes one step (plus any of its dependencies that are not yet
// satisfied by persisted statuses).
func (e *Executor) RunStep(ctx context.Context, req RunRequest, stepID string) (RunState, error) {
	req.Targets = []string{stepID}
	return e.Run(ctx, req)
}

// executeWithRetry runs the step, retrying transient failures with doubling
// backoff until the attempt budget is spent.
func (e *Executor) executeWithRetry(ctx context.Context, node *Node, req RunRequest) (step.Result, int, error) {
	var retryable *step.RetryableError
	for attempt := 1; ; attempt++ {
		result, err := node.Step.Execute(ctx, req.Doc, req.Env)
		if err == nil {
			return result, attempt, nil
		}
		if !errors.As(err, &retryable) || attempt >= e.maxAttempts {
			return step.Result{}, attempt, err
		}
		delay := e.baseDelay << (attempt - 1)
		req.Env.Logf("workflow: step %s attempt %d failed, retrying in %s: %v", node.ID, attempt, delay, err)
		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return step.Result{}, attempt, err
		}
	}
}

// selectOrder narrows the resolved order to the targets plus their transitive
// dependencies, preserving execution order.
func (e *Executor) selectOrder(r *Resolver, targets []string) ([]string, error) {
	full := r.Order()
	if len(targets) == 0 {
		return full, nil
	}
	wanted := map[string]bool{}
	var include func(id string) error
	include = func(id string) error {
		if wanted[id] {
			return nil
		}
		node, ok := r.Node(id)
		if !ok {
			return fmt.Errorf("workflow: unknown step %s", id)
		}
		wanted[id] = true
		for _, dep := range node.Dependencies {
			if err := include(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range targets {
		if err := include(id); err != nil {
			return nil, err
		}
	}
	order := make([]string, 0, len(wanted))
	for _, id := range full {
		if wanted[id] {
			order = append(order, id)
		}
	}
	return order, nil
}

func (e *Executor) recordSkip(state *RunState, id, reason string) {
	state.setStepResult(StepResult{StepID: id, Status: StatusSkipped, Message: reason})
	state.UpdatedAt = e.clock()
	_ = e.repo.Save(*state)
}

func (e *Executor) skipRemaining(state *RunState, ids []string, reason string) {
	for _, id := range ids {
		if res, ok := state.StepResult(id); ok && res.Status != StatusPending && res.Status != StatusRunning {
			continue
		}
		state.setStepResult(StepResult{StepID: id, Status: StatusSkipped, Message: reason})
	}
}

func (e *Executor) finish(state *RunState) {
	state.UpdatedAt = e.clock()
	_ = e.repo.Save(*state)
}

// savePlan writes step statuses back into the plan document. Persistence is
// best effort here; the run record remains the source of truth for the run.
func (e *Executor) savePlan(req RunRequest) {
	if req.PlanPath == "" {
		return
	}
	if err := req.Doc.Save(req.PlanPath); err != nil {
		req.Env.Logf("workflow: persist plan: %v", err)
	}
}

func unmetDependencies(node *Node, satisfied map[string]bool) []string {
	var unmet []string
	for _, dep := range node.Dependencies {
		if !satisfied[dep] {
			unmet = append(unmet, dep)
		}
	}
	return unmet
}

// outputsIntact reports whether every recorded output file still exists.
func outputsIntact(files []string) bool {
	if len(files) == 0 {
		return false
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return false
		}
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
