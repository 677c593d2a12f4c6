// Package step defines the unit-of-work contract implemented by every
// pipeline stage, plus the run environment the executor threads through
// them. The executor depends only on this contract, never on any concrete
// step or external API shape.
package step

import (
	"context"
	"fmt"

	"github.com/videoforge/videoforge/internal/plan"
)

// Info describes a step's identity.
type Info struct {
	ID          string
	Name        string
	Description string
}

// Validate ensures the info block is well-formed.
func (i Info) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("step: id is required")
	}
	if i.Name == "" {
		return fmt.Errorf("step: name is required for %s", i.ID)
	}
	return nil
}

// Result carries what a step produced. Status, timestamps, and error detail
// are stamped by the executor; a step never mutates its own run record.
type Result struct {
	OutputFiles []string
	Metadata    map[string]any
	Message     string
}

// Step is implemented by every pipeline stage.
//
// ValidateInputs reports whether the plan carries everything this step needs;
// it returns false rather than failing, and the executor treats false as a
// validation failure distinct from an execution failure. Dependencies is a
// static declaration and must be acyclic across the registered steps.
// Execute performs the work against the shared plan document; it signals
// transient conditions with *RetryableError and everything else with
// *ExecutionError.
type Step interface {
	Info() Info
	Dependencies() []string
	ValidateInputs(doc *plan.Document) bool
	Execute(ctx context.Context, doc *plan.Document, env *Environment) (Result, error)
}
