package persistence

import (
	"errors"

	"github.com/petrijr/agentsim/pkg/api"
)

var (
	// ErrAgentNotFound is returned when an agent is not found.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrWorkflowNotFound is returned when a workflow definition is not found.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound is returned when an execution is not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrApprovalNotFound is returned when an approval is not pending.
	ErrApprovalNotFound = errors.New("approval not found")
)

// AgentStore holds the agent registry.
type AgentStore interface {
	SaveAgent(agent api.Agent) error
	GetAgent(id string) (api.Agent, error)
	ListAgents() ([]api.Agent, error)
}

// WorkflowStore holds workflow templates.
type WorkflowStore interface {
	SaveWorkflow(wf api.Workflow) error
	GetWorkflow(id string) (api.Workflow, error)
	ListWorkflows() ([]api.Workflow, error)
}

// ExecutionFilter selects executions. Zero values mean "no filter" for that
// field.
type ExecutionFilter struct {
	AgentID    string
	WorkflowID string
	Status     api.ExecutionStatus

	// ActiveOnly limits results to non-terminal executions.
	ActiveOnly bool
}

// Changeset is applied atomically by ExecutionStore.Commit, so readers never
// observe a waiting step without its pending approval (or the reverse).
type Changeset struct {
	// Execution, if non-nil, replaces the stored execution snapshot.
	Execution *api.WorkflowExecution

	// AgentID and UpdateAgent, if set, modify the agent inside the same
	// transaction.
	AgentID     string
	UpdateAgent func(*api.Agent)

	// AddApproval inserts a pending approval.
	AddApproval *api.ApprovalRequest

	// RemoveApproval deletes a pending approval by ID.
	RemoveApproval string
}

// ExecutionStore holds execution snapshots and the pending approval set.
type ExecutionStore interface {
	Commit(c Changeset) error
	GetExecution(id string) (*api.WorkflowExecution, error)
	ListExecutions(filter ExecutionFilter) ([]*api.WorkflowExecution, error)
	GetApproval(id string) (api.ApprovalRequest, error)
	ListApprovals() ([]api.ApprovalRequest, error)

	// ClearRuntime deletes every execution and approval and applies
	// resetAgent (if non-nil) to every agent, in one transaction.
	ClearRuntime(resetAgent func(*api.Agent)) error
}
