package types

import (
	"fmt"
)

// StepKind identifies the variant of a WorkflowStep.
type StepKind string

const (
	StepCommand     StepKind = "command"     // Run one shell command in a sandbox
	StepPrompt      StepKind = "prompt"      // Emit a rendered prompt as a result
	StepParallel    StepKind = "parallel"    // Fan child steps out concurrently
	StepConditional StepKind = "conditional" // Evaluate a condition, run one branch
	StepSubworkflow StepKind = "subworkflow" // Inline another stored workflow
)

// Valid returns true if this is a recognized step kind.
func (k StepKind) Valid() bool {
	switch k {
	case StepCommand, StepPrompt, StepParallel, StepConditional, StepSubworkflow:
		return true
	}
	return false
}

// OnErrorFail and OnErrorContinue are the recognized command failure policies.
const (
	OnErrorFail     = "fail"
	OnErrorContinue = "continue"
)

// PermissionKind names a capability a command may require.
type PermissionKind string

const (
	PermissionFilesystem    PermissionKind = "filesystem"
	PermissionSystemCommand PermissionKind = "system_command"
	PermissionNetwork       PermissionKind = "network"
)

// Valid returns true if this is a recognized permission kind.
func (p PermissionKind) Valid() bool {
	switch p {
	case PermissionFilesystem, PermissionSystemCommand, PermissionNetwork:
		return true
	}
	return false
}

// Command configures a command step.
type Command struct {
	Script      string `yaml:"script" json:"script"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// RequiresPermission forces a capability check even when the script
	// matches no permission-requiring pattern.
	RequiresPermission bool           `yaml:"requires_permission,omitempty" json:"requires_permission,omitempty"`
	PermissionKind     PermissionKind `yaml:"permission_kind,omitempty" json:"permission_kind,omitempty"`

	// TimeoutSeconds bounds the process runtime. Zero means the configured
	// default timeout.
	TimeoutSeconds int `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// OnError selects the failure policy after recovery is exhausted:
	// "fail" (default) or "continue".
	OnError string `yaml:"on_error,omitempty" json:"on_error,omitempty"`

	// Fallback is an optional substitute script the recovery engine runs
	// when retries of the primary script are exhausted.
	Fallback string `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

// Prompt configures a prompt step. The message is rendered with ${var}
// substitution from the execution context and emitted as the step's stdout.
type Prompt struct {
	Message string `yaml:"message" json:"message"`
}

// Condition is a boolean expression with a variable mapping.
// ${name} tokens are substituted before the expression is evaluated.
type Condition struct {
	Expression string            `yaml:"expression" json:"expression"`
	Variables  map[string]string `yaml:"variables,omitempty" json:"variables,omitempty"`
}

// Conditional configures a conditional step. Exactly one branch runs per
// evaluation; a nil branch contributes no results.
type Conditional struct {
	Condition Condition     `yaml:"condition" json:"condition"`
	True      *WorkflowStep `yaml:"true,omitempty" json:"true,omitempty"`
	False     *WorkflowStep `yaml:"false,omitempty" json:"false,omitempty"`
}

// WorkflowStep is the single node type of the step tree. Exactly one
// variant config is populated, matching Kind.
type WorkflowStep struct {
	Kind StepKind `yaml:"kind" json:"kind"`

	Command     *Command       `yaml:"command,omitempty" json:"command,omitempty"`
	Prompt      *Prompt        `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Parallel    []WorkflowStep `yaml:"parallel,omitempty" json:"parallel,omitempty"`
	Conditional *Conditional   `yaml:"conditional,omitempty" json:"conditional,omitempty"`
	Subworkflow string         `yaml:"subworkflow,omitempty" json:"subworkflow,omitempty"`
}

// CommandStep builds a command step.
func CommandStep(cmd Command) WorkflowStep {
	return WorkflowStep{Kind: StepCommand, Command: &cmd}
}

// PromptStep builds a prompt step.
func PromptStep(message string) WorkflowStep {
	return WorkflowStep{Kind: StepPrompt, Prompt: &Prompt{Message: message}}
}

// ParallelStep builds a parallel step over the given children.
func ParallelStep(children ...WorkflowStep) WorkflowStep {
	return WorkflowStep{Kind: StepParallel, Parallel: children}
}

// ConditionalStep builds a conditional step.
func ConditionalStep(cond Condition, onTrue, onFalse *WorkflowStep) WorkflowStep {
	return WorkflowStep{Kind: StepConditional, Conditional: &Conditional{
		Condition: cond,
		True:      onTrue,
		False:     onFalse,
	}}
}

// SubworkflowStep builds a sub-workflow reference step.
func SubworkflowStep(workflowID string) WorkflowStep {
	return WorkflowStep{Kind: StepSubworkflow, Subworkflow: workflowID}
}

// Validate checks the step and its subtree are well-formed.
func (s *WorkflowStep) Validate() error {
	if !s.Kind.Valid() {
		return fmt.Errorf("invalid step kind: %q", s.Kind)
	}
	if err := s.validateConfig(); err != nil {
		return err
	}

	switch s.Kind {
	case StepCommand:
		if s.Command.Script == "" {
			return fmt.Errorf("command step: script is required")
		}
		if s.Command.OnError != "" && s.Command.OnError != OnErrorFail && s.Command.OnError != OnErrorContinue {
			return fmt.Errorf("command step: invalid on_error %q", s.Command.OnError)
		}
		if s.Command.PermissionKind != "" && !s.Command.PermissionKind.Valid() {
			return fmt.Errorf("command step: invalid permission_kind %q", s.Command.PermissionKind)
		}
	case StepPrompt:
		if s.Prompt.Message == "" {
			return fmt.Errorf("prompt step: message is required")
		}
	case StepParallel:
		if len(s.Parallel) == 0 {
			return fmt.Errorf("parallel step: at least one child is required")
		}
		for i := range s.Parallel {
			if err := s.Parallel[i].Validate(); err != nil {
				return fmt.Errorf("parallel child %d: %w", i, err)
			}
		}
	case StepConditional:
		c := s.Conditional
		if c.Condition.Expression == "" {
			return fmt.Errorf("conditional step: condition expression is required")
		}
		if c.True == nil && c.False == nil {
			return fmt.Errorf("conditional step: at least one branch is required")
		}
		if c.True != nil {
			if err := c.True.Validate(); err != nil {
				return fmt.Errorf("true branch: %w", err)
			}
		}
		if c.False != nil {
			if err := c.False.Validate(); err != nil {
				return fmt.Errorf("false branch: %w", err)
			}
		}
	case StepSubworkflow:
		if s.Subworkflow == "" {
			return fmt.Errorf("subworkflow step: workflow id is required")
		}
	}
	return nil
}

// validateConfig ensures exactly one variant config is set matching the kind.
func (s *WorkflowStep) validateConfig() error {
	configs := map[StepKind]bool{
		StepCommand:     s.Command != nil,
		StepPrompt:      s.Prompt != nil,
		StepParallel:    len(s.Parallel) > 0,
		StepConditional: s.Conditional != nil,
		StepSubworkflow: s.Subworkflow != "",
	}

	if !configs[s.Kind] {
		return fmt.Errorf("missing config for step kind %s", s.Kind)
	}
	for kind, has := range configs {
		if has && kind != s.Kind {
			return fmt.Errorf("has config for %s but kind is %s", kind, s.Kind)
		}
	}
	return nil
}

func (s *WorkflowStep) clone() *WorkflowStep {
	c := *s
	if s.Command != nil {
		cmd := *s.Command
		c.Command = &cmd
	}
	if s.Prompt != nil {
		p := *s.Prompt
		c.Prompt = &p
	}
	if s.Parallel != nil {
		c.Parallel = cloneSteps(s.Parallel)
	}
	if s.Conditional != nil {
		cond := Conditional{Condition: s.Conditional.Condition}
		cond.Condition.Variables = cloneVars(s.Conditional.Condition.Variables)
		if s.Conditional.True != nil {
			cond.True = s.Conditional.True.clone()
		}
		if s.Conditional.False != nil {
			cond.False = s.Conditional.False.clone()
		}
		c.Conditional = &cond
	}
	return &c
}

func cloneVars(vars map[string]string) map[string]string {
	if vars == nil {
		return nil
	}
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}
