package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrStateNotFound is returned when no persisted run state exists yet.
var ErrStateNotFound = errors.New("workflow: run state not found")

// StateStore persists run state snapshots.
type StateStore interface {
	Load() (RunState, error)
	Save(RunState) error
}

// ReportFileName is the run record written inside every run directory.
const ReportFileName = "execution_report.json"

// Repository stores run state as JSON inside the run directory.
type Repository struct {
	path string
}

// NewRepository creates a repository rooted at the given run directory.
func NewRepository(runDir string) *Repository {
	return &Repository{path: filepath.Join(runDir, ReportFileName)}
}

// Path returns the on-disk location of the run record.
func (r *Repository) Path() string { return r.path }

// Load reads the persisted run state if present.
func (r *Repository) Load() (RunState, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return RunState{}, ErrStateNotFound
		}
		return RunState{}, fmt.Errorf("workflow: read run state: %w", err)
	}
	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return RunState{}, fmt.Errorf("workflow: decode run state: %w", err)
	}
	return state, nil
}

// Save writes the run state to disk.
func (r *Repository) Save(state RunState) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("workflow: encode run state: %w", err)
	}
	return os.WriteFile(r.path, append(encoded, '\n'), 0o644)
}
