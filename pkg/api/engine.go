package api

import (
	"context"
	"errors"
)

var (
	// ErrNotRunning is returned by execution APIs before Start, after
	// Reset, and (for new executions) while paused.
	ErrNotRunning = errors.New("simulation is not running")

	ErrAgentNotFound     = errors.New("agent not found")
	ErrWorkflowNotFound  = errors.New("workflow not found")
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrApprovalNotFound is returned when responding to an approval that is
	// not pending, including a second response to the same approval.
	ErrApprovalNotFound = errors.New("approval not found")

	// ErrInvalidResponse is returned for responses other than approve or
	// reject. The approval stays pending.
	ErrInvalidResponse = errors.New("invalid approval response")

	// ErrAgentBusy is returned when exclusive agents are enabled and the
	// agent already has a non-terminal execution.
	ErrAgentBusy = errors.New("agent is busy")

	// ErrApprovalRejected is the failure reason recorded on executions that
	// ended because a human rejected an approval. It is never returned by
	// RespondToApproval.
	ErrApprovalRejected = errors.New("approval rejected")

	ErrInvalidWorkflow   = errors.New("invalid workflow")
	ErrForwardDependency = errors.New("step depends on a later step")
)

// SimulationStatus summarizes the engine's run state.
type SimulationStatus struct {
	Running          bool    `json:"isRunning"`
	Paused           bool    `json:"isPaused"`
	Speed            float64 `json:"speed"`
	Agents           int     `json:"agents"`
	Workflows        int     `json:"workflows"`
	ActiveExecutions int     `json:"activeExecutions"`
	PendingApprovals int     `json:"pendingApprovals"`
	TotalEvents      int     `json:"totalEvents"`
}

// Engine is the simulation engine API.
//
// All returned values are snapshots; see the package documentation.
type Engine interface {
	Subscriber

	// RegisterAgent upserts an agent keyed by ID.
	RegisterAgent(agent Agent) error

	// RegisterWorkflow upserts a workflow keyed by ID.
	RegisterWorkflow(wf Workflow) error

	// Start marks the simulation running with the given speed multiplier.
	// Step delays are divided by speed; speed <= 0 means 1.
	Start(speed float64)

	// Pause stops executions at their next step boundary and rejects new
	// executions until Resume.
	Pause()

	// Resume lets paused executions continue.
	Resume()

	// Reset discards all runtime state: executions, pending approvals and
	// events. Registered agents and workflows are kept.
	Reset()

	// ExecuteWorkflow creates an execution and drives it until it finishes
	// or parks on a human approval.
	ExecuteWorkflow(ctx context.Context, req ExecuteRequest) (*WorkflowExecution, error)

	// RespondToApproval records a response to a pending approval. Approve
	// resumes the execution; reject fails it.
	RespondToApproval(ctx context.Context, approvalID string, resp ApprovalResponse) error

	ListAgents() []Agent
	GetAgent(id string) (Agent, error)
	ListWorkflows() []Workflow

	// ListActiveExecutions returns non-terminal executions.
	ListActiveExecutions() []*WorkflowExecution

	// ListExecutions returns every execution known since the last Reset.
	ListExecutions() []*WorkflowExecution

	GetExecution(id string) (*WorkflowExecution, error)
	ListPendingApprovals() []ApprovalRequest

	// RecentEvents returns up to limit of the newest events, oldest first.
	// limit <= 0 returns every retained event.
	RecentEvents(limit int) []SimulationEvent

	Status() SimulationStatus
}
