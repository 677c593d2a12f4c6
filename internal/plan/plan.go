// Package plan holds the in-memory representation of a video plan document.
// The document is produced by the plan loader, then mutated in place by the
// pipeline steps; there is a single owner and no concurrent writers.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Document is the root aggregate of a video plan. Section pointers are nil
// until the corresponding planning stage has produced them.
type Document struct {
	MetaInfo         *MetaInfo           `json:"meta_info"`
	CuttingPlan      *CuttingPlan        `json:"cutting_plan,omitempty"`
	NarrationScript  *NarrationScript    `json:"narration_script,omitempty"`
	TextToVideoPlan  *TextToVideoPlan    `json:"text_to_video_plan,omitempty"`
	VideoComposition *VideoComposition   `json:"video_composition,omitempty"`
	Workflow         *ProcessingWorkflow `json:"processing_workflow,omitempty"`
}

// Load reads and decodes a plan document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: read %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("plan: decode %s: %w", path, err)
	}
	if doc.MetaInfo == nil {
		return nil, fmt.Errorf("plan: %s is missing the meta_info section", path)
	}
	return &doc, nil
}

// Save writes the document back to disk so step status and produced artifact
// paths survive between runs.
func (d *Document) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("plan: encode document: %w", err)
	}
	return os.WriteFile(path, append(encoded, '\n'), 0o644)
}

// Validate checks every populated section for internal consistency.
func (d *Document) Validate() error {
	if d.MetaInfo == nil {
		return fmt.Errorf("plan: meta_info section is required")
	}
	if err := d.MetaInfo.Validate(); err != nil {
		return err
	}
	if d.CuttingPlan != nil {
		if err := d.CuttingPlan.Validate(); err != nil {
			return err
		}
	}
	if d.NarrationScript != nil {
		if err := d.NarrationScript.Validate(); err != nil {
			return err
		}
	}
	if d.TextToVideoPlan != nil {
		if err := d.TextToVideoPlan.Validate(); err != nil {
			return err
		}
	}
	if d.VideoComposition != nil {
		if err := d.VideoComposition.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EnsureWorkflow returns the processing_workflow section, creating an empty
// one if the plan was authored without it.
func (d *Document) EnsureWorkflow() *ProcessingWorkflow {
	if d.Workflow == nil {
		d.Workflow = &ProcessingWorkflow{}
	}
	return d.Workflow
}
