package workflow

import (
	"time"
)

// Status enumerates per-step run outcomes.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// RunStatus enumerates coarse run phases.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// CauseCancelled marks a run that stopped because its context was cancelled.
const CauseCancelled = "cancelled"

// StepResult is the per-step run record.
type StepResult struct {
	StepID      string    `json:"step_id"`
	Status      Status    `json:"status"`
	Attempts    int       `json:"attempts,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	OutputFiles []string  `json:"output_files,omitempty"`
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
	// Reused is true when the step was satisfied by a previous run's intact
	// outputs instead of executing again.
	Reused bool `json:"reused,omitempty"`
}

// RunState captures the persisted snapshot of one pipeline run.
type RunState struct {
	RunID      string       `json:"run_id"`
	WorkflowID string       `json:"workflow_id"`
	PlanPath   string       `json:"plan_path,omitempty"`
	Status     RunStatus    `json:"status"`
	// Cause explains non-completed terminal states (failed step id, cancelled).
	Cause     string       `json:"cause,omitempty"`
	Order     []string     `json:"order"`
	Steps     []StepResult `json:"steps"`
	StartedAt time.Time    `json:"started_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// StepResult returns the record for a step id.
func (s *RunState) StepResult(id string) (StepResult, bool) {
	for _, res := range s.Steps {
		if res.StepID == id {
			return res, true
		}
	}
	return StepResult{}, false
}

// setStepResult replaces (or appends) the record for res.StepID.
func (s *RunState) setStepResult(res StepResult) {
	for i := range s.Steps {
		if s.Steps[i].StepID == res.StepID {
			s.Steps[i] = res
			return
		}
	}
	s.Steps = append(s.Steps, res)
}

// Completed reports whether every step finished or was legitimately skipped.
func (s *RunState) Completed() bool {
	return s.Status == RunStatusCompleted
}
