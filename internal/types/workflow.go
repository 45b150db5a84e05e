// Package types defines the workflow data model shared by the engine packages.
package types

import (
	"fmt"
	"time"
)

// Workflow is a stored, executable task definition.
// A workflow is immutable once stored; edits operate on a Clone until the
// caller explicitly saves the copy under the same ID.
type Workflow struct {
	// Identity
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Category    string   `yaml:"category,omitempty" json:"category,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// Steps is the ordered top-level step sequence. Composite steps nest
	// further steps, forming the step tree.
	Steps []WorkflowStep `yaml:"steps" json:"steps"`

	IsBuiltIn bool      `yaml:"builtin,omitempty" json:"builtin,omitempty"`
	CreatedAt time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// NewWorkflow creates a workflow with creation timestamps set.
func NewWorkflow(id, name string, steps []WorkflowStep) *Workflow {
	now := time.Now()
	return &Workflow{
		ID:        id,
		Name:      name,
		Steps:     steps,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the workflow. Mutating the copy never
// affects the stored original.
func (w *Workflow) Clone() *Workflow {
	c := *w
	c.Tags = append([]string(nil), w.Tags...)
	c.Steps = cloneSteps(w.Steps)
	return &c
}

func cloneSteps(steps []WorkflowStep) []WorkflowStep {
	if steps == nil {
		return nil
	}
	out := make([]WorkflowStep, len(steps))
	for i := range steps {
		out[i] = *steps[i].clone()
	}
	return out
}

// Validate checks the workflow and its whole step tree.
func (w *Workflow) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("workflow ID is required")
	}
	if w.Name == "" {
		return fmt.Errorf("workflow %s: name is required", w.ID)
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow %s: at least one step is required", w.ID)
	}
	for i := range w.Steps {
		if err := w.Steps[i].Validate(); err != nil {
			return fmt.Errorf("workflow %s: step %d: %w", w.ID, i, err)
		}
	}
	return nil
}
