package api

import (
	"errors"
	"fmt"
	"slices"
)

// StepType selects how the engine simulates a step.
type StepType string

const (
	StepAutomated      StepType = "automated"
	StepHumanApproval  StepType = "human_approval"
	StepDataCollection StepType = "data_collection"
	StepNotification   StepType = "notification"
)

// StepConfig is the per-step simulation configuration. It is a closed set
// of variants; the zero value (nil) means "defaults for the step type".
type StepConfig interface {
	// StepType reports which step type the variant configures.
	StepType() StepType
	cloneConfig() StepConfig
}

// AutomatedConfig configures an automated step.
type AutomatedConfig struct {
	// Action names the simulated operation (e.g. "generate_message").
	Action string `json:"action,omitempty" yaml:"action,omitempty"`
	// Result is the human readable result recorded on success.
	Result string `json:"result,omitempty" yaml:"result,omitempty"`
}

// ApprovalConfig configures a human approval step.
type ApprovalConfig struct {
	Title       string           `json:"title,omitempty" yaml:"title,omitempty"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Options     []ApprovalOption `json:"options,omitempty" yaml:"options,omitempty"`
}

// DataCollectionConfig configures a data collection step.
type DataCollectionConfig struct {
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`
	Fields  []string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// NotificationConfig configures a notification step. Template may use the
// placeholders {{contributor}}, {{repository}} and {{workflow}}.
type NotificationConfig struct {
	Channels   []string `json:"channels,omitempty" yaml:"channels,omitempty"`
	Recipients []string `json:"recipients,omitempty" yaml:"recipients,omitempty"`
	Template   string   `json:"template,omitempty" yaml:"template,omitempty"`
}

func (AutomatedConfig) StepType() StepType      { return StepAutomated }
func (ApprovalConfig) StepType() StepType       { return StepHumanApproval }
func (DataCollectionConfig) StepType() StepType { return StepDataCollection }
func (NotificationConfig) StepType() StepType   { return StepNotification }

func (c AutomatedConfig) cloneConfig() StepConfig { return c }

func (c ApprovalConfig) cloneConfig() StepConfig {
	c.Options = slices.Clone(c.Options)
	return c
}

func (c DataCollectionConfig) cloneConfig() StepConfig {
	c.Sources = slices.Clone(c.Sources)
	c.Fields = slices.Clone(c.Fields)
	return c
}

func (c NotificationConfig) cloneConfig() StepConfig {
	c.Channels = slices.Clone(c.Channels)
	c.Recipients = slices.Clone(c.Recipients)
	return c
}

// WorkflowStep is one declared step of a workflow template.
type WorkflowStep struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Type        StepType `json:"type"`

	// Dependencies lists step IDs that must be completed before this step
	// may run.
	Dependencies []string `json:"dependencies,omitempty"`

	Config StepConfig `json:"config,omitempty"`
}

// Clone returns a deep copy of the step.
func (s WorkflowStep) Clone() WorkflowStep {
	s.Dependencies = slices.Clone(s.Dependencies)
	if s.Config != nil {
		s.Config = s.Config.cloneConfig()
	}
	return s
}

// Workflow is an immutable, declaratively defined template.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	AgentType   AgentType      `json:"agentType,omitempty"`
	Steps       []WorkflowStep `json:"steps"`
}

// Clone returns a deep copy of the workflow.
func (w Workflow) Clone() Workflow {
	steps := make([]WorkflowStep, len(w.Steps))
	for i, s := range w.Steps {
		steps[i] = s.Clone()
	}
	w.Steps = steps
	return w
}

// Validate checks the structural soundness of the workflow.
//
// The engine itself accepts any workflow with an ID. Validate is used by
// loaders that want to reject definitions up front, most importantly
// definitions where a step depends on a step declared after it: the
// single-pass scheduler never revisits such a step, so the execution would
// stall in the running state.
func (w Workflow) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("%w: workflow id is required", ErrInvalidWorkflow)
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("%w: workflow %q has no steps", ErrInvalidWorkflow, w.ID)
	}

	declared := make(map[string]int, len(w.Steps))
	for i, s := range w.Steps {
		if s.ID == "" {
			return fmt.Errorf("%w: workflow %q step %d has no id", ErrInvalidWorkflow, w.ID, i)
		}
		if _, dup := declared[s.ID]; dup {
			return fmt.Errorf("%w: workflow %q has duplicate step id %q", ErrInvalidWorkflow, w.ID, s.ID)
		}
		declared[s.ID] = i
	}

	var errs []error
	for i, s := range w.Steps {
		switch s.Type {
		case StepAutomated, StepHumanApproval, StepDataCollection, StepNotification:
		default:
			errs = append(errs, fmt.Errorf("%w: step %q has unknown type %q", ErrInvalidWorkflow, s.ID, s.Type))
		}
		if s.Config != nil && s.Config.StepType() != s.Type {
			errs = append(errs, fmt.Errorf("%w: step %q of type %q has %q config",
				ErrInvalidWorkflow, s.ID, s.Type, s.Config.StepType()))
		}
		for _, dep := range s.Dependencies {
			at, ok := declared[dep]
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("%w: step %q depends on unknown step %q", ErrInvalidWorkflow, s.ID, dep))
			case at >= i:
				errs = append(errs, fmt.Errorf("%w: step %q depends on %q declared after it", ErrForwardDependency, s.ID, dep))
			}
		}
	}
	return errors.Join(errs...)
}
