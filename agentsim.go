package agentsim

import (
	"context"
	"io"

	"github.com/petrijr/agentsim/internal/engine"
	"github.com/petrijr/agentsim/pkg/api"
	"github.com/petrijr/agentsim/pkg/catalog"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine               = api.Engine
	EngineConfig         = engine.Config
	Agent                = api.Agent
	AgentConfig          = api.AgentConfig
	Workflow             = api.Workflow
	WorkflowStep         = api.WorkflowStep
	WorkflowExecution    = api.WorkflowExecution
	ExecuteRequest       = api.ExecuteRequest
	ApprovalRequest      = api.ApprovalRequest
	ApprovalResponse     = api.ApprovalResponse
	SimulationEvent      = api.SimulationEvent
	SimulationStatus     = api.SimulationStatus
	Listener             = api.Listener
	ChannelListener      = api.ChannelListener
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
	NewChannelListener   = api.NewChannelListener
)

// Re-export status values for convenience.

const (
	ExecutionPending   = api.ExecutionPending
	ExecutionRunning   = api.ExecutionRunning
	ExecutionCompleted = api.ExecutionCompleted
	ExecutionFailed    = api.ExecutionFailed

	ActionApprove = api.ActionApprove
	ActionReject  = api.ActionReject
)

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryEngine returns an Engine with default step delays.
func NewInMemoryEngine() Engine {
	return engine.NewInMemoryEngine()
}

// NewInMemoryEngineWithObserver returns an in-memory Engine with the given Observer.
func NewInMemoryEngineWithObserver(obs Observer) Engine {
	return engine.NewInMemoryEngineWithObserver(obs)
}

// NewEngineWithConfig returns an Engine configured by cfg. A zero
// EngineConfig gives an engine without step delays, which is what tests
// usually want.
func NewEngineWithConfig(cfg EngineConfig) Engine {
	return engine.NewEngineWithConfig(cfg)
}

// Catalog helpers.

// DefaultAgents returns the built-in welcome, contribution and triage
// agents.
func DefaultAgents() []Agent {
	return catalog.DefaultAgents()
}

// DefaultWorkflows returns the built-in workflows, one per agent type.
func DefaultWorkflows() []Workflow {
	return catalog.DefaultWorkflows()
}

// LoadWorkflows decodes and validates YAML workflow documents from r.
func LoadWorkflows(r io.Reader) ([]Workflow, error) {
	return catalog.Load(r)
}

// RegisterDefaults registers the built-in agents and workflows on eng.
func RegisterDefaults(eng Engine) error {
	for _, a := range catalog.DefaultAgents() {
		if err := eng.RegisterAgent(a); err != nil {
			return err
		}
	}
	for _, wf := range catalog.DefaultWorkflows() {
		if err := eng.RegisterWorkflow(wf); err != nil {
			return err
		}
	}
	return nil
}

// Convenience helpers that just forward to the underlying Engine.

// Execute runs workflowID for agentID with generated context. It returns
// once the execution finishes or parks on an approval.
func Execute(ctx context.Context, eng Engine, agentID, workflowID string) (*WorkflowExecution, error) {
	return eng.ExecuteWorkflow(ctx, ExecuteRequest{AgentID: agentID, WorkflowID: workflowID})
}

// Approve approves a pending approval.
func Approve(ctx context.Context, eng Engine, approvalID, comments string) error {
	return eng.RespondToApproval(ctx, approvalID, ApprovalResponse{Action: ActionApprove, Comments: comments})
}

// Reject rejects a pending approval, failing its execution.
func Reject(ctx context.Context, eng Engine, approvalID, comments string) error {
	return eng.RespondToApproval(ctx, approvalID, ApprovalResponse{Action: ActionReject, Comments: comments})
}
