package plan

import "time"

// StepRef declares one pipeline step inside the processing_workflow section.
// DependsOn may extend the built-in dependency table; unknown ids are
// rejected when the executor builds its graph.
type StepRef struct {
	ID        string         `json:"id"`
	DependsOn []string       `json:"depends_on,omitempty"`
	Optional  bool           `json:"optional,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
}

// StepState is the per-step status the executor writes back into the plan so
// a later run can resume where the previous one stopped.
type StepState struct {
	Status      string    `json:"status"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	OutputFiles []string  `json:"output_files,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// ProcessingWorkflow couples the declared step list with persisted statuses.
type ProcessingWorkflow struct {
	Steps    []StepRef            `json:"steps,omitempty"`
	Statuses map[string]StepState `json:"statuses,omitempty"`
}

// StepStatus returns the persisted state for a step id.
func (w *ProcessingWorkflow) StepStatus(id string) (StepState, bool) {
	if w == nil || w.Statuses == nil {
		return StepState{}, false
	}
	state, ok := w.Statuses[id]
	return state, ok
}

// SetStepStatus records the state for a step id.
func (w *ProcessingWorkflow) SetStepStatus(id string, state StepState) {
	if w.Statuses == nil {
		w.Statuses = map[string]StepState{}
	}
	w.Statuses[id] = state
}
