package api

import (
	"maps"
	"slices"
	"time"
)

// ExecutionStatus is the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// StepStatus is the runtime state of one execution step.
type StepStatus string

const (
	StepPending         StepStatus = "pending"
	StepRunning         StepStatus = "running"
	StepCompleted       StepStatus = "completed"
	StepFailed          StepStatus = "failed"
	StepWaitingApproval StepStatus = "waiting_approval"
)

// StepOutput is the simulated result of a step. Like StepConfig it is a
// closed set of variants.
type StepOutput interface {
	isStepOutput()
	cloneOutput() StepOutput
}

// AutomatedOutput is produced by automated steps.
type AutomatedOutput struct {
	Action  string `json:"action"`
	Result  string `json:"result"`
	Success bool   `json:"success"`
}

// DataCollectionOutput is produced by data collection steps.
type DataCollectionOutput struct {
	Sources []string          `json:"sources"`
	Facts   map[string]string `json:"facts"`
}

// NotificationOutput is produced by notification steps.
type NotificationOutput struct {
	Sent       bool     `json:"sent"`
	Channels   []string `json:"channels"`
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
}

// ApprovalOutput records the human response on an approval step.
type ApprovalOutput struct {
	Response    ApprovalAction `json:"response"`
	Responder   string         `json:"responder"`
	Comments    string         `json:"comments,omitempty"`
	RespondedAt time.Time      `json:"respondedAt"`
}

func (AutomatedOutput) isStepOutput()      {}
func (DataCollectionOutput) isStepOutput() {}
func (NotificationOutput) isStepOutput()   {}
func (ApprovalOutput) isStepOutput()       {}

func (o AutomatedOutput) cloneOutput() StepOutput { return o }
func (o ApprovalOutput) cloneOutput() StepOutput  { return o }

func (o DataCollectionOutput) cloneOutput() StepOutput {
	o.Sources = slices.Clone(o.Sources)
	o.Facts = maps.Clone(o.Facts)
	return o
}

func (o NotificationOutput) cloneOutput() StepOutput {
	o.Channels = slices.Clone(o.Channels)
	o.Recipients = slices.Clone(o.Recipients)
	return o
}

// ExecutionStep is a workflow step plus its runtime state.
type ExecutionStep struct {
	WorkflowStep

	Status    StepStatus       `json:"status"`
	StartedAt time.Time        `json:"startedAt,omitempty"`
	EndedAt   time.Time        `json:"endedAt,omitempty"`
	Output    StepOutput       `json:"output,omitempty"`
	Error     string           `json:"error,omitempty"`
	Approval  *ApprovalRequest `json:"approval,omitempty"`
}

// Clone returns a deep copy of the step.
func (s ExecutionStep) Clone() ExecutionStep {
	s.WorkflowStep = s.WorkflowStep.Clone()
	if s.Output != nil {
		s.Output = s.Output.cloneOutput()
	}
	if s.Approval != nil {
		a := s.Approval.Clone()
		s.Approval = &a
	}
	return s
}

// WorkflowExecution is a live run of a workflow.
type WorkflowExecution struct {
	ID           string          `json:"id"`
	WorkflowID   string          `json:"workflowId"`
	WorkflowName string          `json:"workflowName"`
	AgentID      string          `json:"agentId"`
	Status       ExecutionStatus `json:"status"`
	Steps        []ExecutionStep `json:"steps"`

	// CurrentStepIndex points at the step being evaluated or most
	// recently evaluated.
	CurrentStepIndex int `json:"currentStepIndex"`

	Context   ExecutionContext `json:"context"`
	StartedAt time.Time        `json:"startedAt"`
	EndedAt   time.Time        `json:"endedAt,omitempty"`

	// FailureReason is set when Status is ExecutionFailed.
	FailureReason string `json:"failureReason,omitempty"`
}

// Clone returns a deep copy of the execution.
func (e *WorkflowExecution) Clone() *WorkflowExecution {
	if e == nil {
		return nil
	}
	out := *e
	out.Steps = make([]ExecutionStep, len(e.Steps))
	for i, s := range e.Steps {
		out.Steps[i] = s.Clone()
	}
	out.Context = e.Context.Clone()
	return &out
}

// IsTerminal reports whether the execution has completed or failed.
func (e *WorkflowExecution) IsTerminal() bool {
	return e.Status == ExecutionCompleted || e.Status == ExecutionFailed
}

// Step returns the step with the given ID and its index.
func (e *WorkflowExecution) Step(id string) (*ExecutionStep, int) {
	for i := range e.Steps {
		if e.Steps[i].ID == id {
			return &e.Steps[i], i
		}
	}
	return nil, -1
}

// CurrentStep returns the step at CurrentStepIndex, or nil.
func (e *WorkflowExecution) CurrentStep() *ExecutionStep {
	if e.CurrentStepIndex < 0 || e.CurrentStepIndex >= len(e.Steps) {
		return nil
	}
	return &e.Steps[e.CurrentStepIndex]
}

// WaitingStep returns the step parked on an approval, or nil.
func (e *WorkflowExecution) WaitingStep() *ExecutionStep {
	for i := range e.Steps {
		if e.Steps[i].Status == StepWaitingApproval {
			return &e.Steps[i]
		}
	}
	return nil
}

// ExecuteRequest asks the engine to run a workflow for an agent.
// Nil Contributor or Repository are synthesized by the data generator.
type ExecuteRequest struct {
	AgentID     string           `json:"agentId"`
	WorkflowID  string           `json:"workflowId"`
	Contributor *ContributorInfo `json:"contributor,omitempty"`
	Repository  *RepositoryInfo  `json:"repository,omitempty"`
}
