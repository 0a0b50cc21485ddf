package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the simulation engine for logging and
// metrics.
//
// Implementations should be fast and non-blocking; they are invoked while
// the execution is locked.
type Observer interface {
	// OnWorkflowStart is called once per execution, before the first step.
	OnWorkflowStart(ctx context.Context, exec *WorkflowExecution)

	// OnWorkflowCompleted is called when an execution reaches
	// ExecutionCompleted.
	OnWorkflowCompleted(ctx context.Context, exec *WorkflowExecution)

	// OnWorkflowFailed is called when an execution transitions to
	// ExecutionFailed.
	OnWorkflowFailed(ctx context.Context, exec *WorkflowExecution, err error)

	// OnStepStart is called before the simulated delay of a step.
	OnStepStart(ctx context.Context, exec *WorkflowExecution, step *ExecutionStep)

	// OnStepCompleted is called when a step reaches a terminal state or
	// parks on an approval. err is non-nil for failed steps.
	OnStepCompleted(ctx context.Context, exec *WorkflowExecution, step *ExecutionStep, err error, duration time.Duration)

	// OnApprovalRequested is called when an approval request is raised.
	OnApprovalRequested(ctx context.Context, exec *WorkflowExecution, approval *ApprovalRequest)

	// OnApprovalResponded is called after a response has been recorded.
	OnApprovalResponded(ctx context.Context, exec *WorkflowExecution, approval *ApprovalRequest)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnWorkflowStart(ctx context.Context, exec *WorkflowExecution)     {}
func (NoopObserver) OnWorkflowCompleted(ctx context.Context, exec *WorkflowExecution) {}
func (NoopObserver) OnWorkflowFailed(ctx context.Context, exec *WorkflowExecution, err error) {
}
func (NoopObserver) OnStepStart(ctx context.Context, exec *WorkflowExecution, step *ExecutionStep) {
}
func (NoopObserver) OnStepCompleted(ctx context.Context, exec *WorkflowExecution, step *ExecutionStep, err error, d time.Duration) {
}
func (NoopObserver) OnApprovalRequested(ctx context.Context, exec *WorkflowExecution, a *ApprovalRequest) {
}
func (NoopObserver) OnApprovalResponded(ctx context.Context, exec *WorkflowExecution, a *ApprovalRequest) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnWorkflowStart(ctx context.Context, exec *WorkflowExecution) {
	for _, o := range c.observers {
		o.OnWorkflowStart(ctx, exec)
	}
}

func (c *CompositeObserver) OnWorkflowCompleted(ctx context.Context, exec *WorkflowExecution) {
	for _, o := range c.observers {
		o.OnWorkflowCompleted(ctx, exec)
	}
}

func (c *CompositeObserver) OnWorkflowFailed(ctx context.Context, exec *WorkflowExecution, err error) {
	for _, o := range c.observers {
		o.OnWorkflowFailed(ctx, exec, err)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, exec *WorkflowExecution, step *ExecutionStep) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, exec, step)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, exec *WorkflowExecution, step *ExecutionStep, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, exec, step, err, d)
	}
}

func (c *CompositeObserver) OnApprovalRequested(ctx context.Context, exec *WorkflowExecution, a *ApprovalRequest) {
	for _, o := range c.observers {
		o.OnApprovalRequested(ctx, exec, a)
	}
}

func (c *CompositeObserver) OnApprovalResponded(ctx context.Context, exec *WorkflowExecution, a *ApprovalRequest) {
	for _, o := range c.observers {
		o.OnApprovalResponded(ctx, exec, a)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs execution, step and
// approval lifecycle events using the provided slog.Logger. If logger is
// nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnWorkflowStart(ctx context.Context, exec *WorkflowExecution) {
	o.Logger.InfoContext(ctx, "workflow_start",
		slog.String("workflow", exec.WorkflowID),
		slog.String("execution_id", exec.ID),
		slog.String("agent", exec.AgentID),
	)
}

func (o *LoggingObserver) OnWorkflowCompleted(ctx context.Context, exec *WorkflowExecution) {
	o.Logger.InfoContext(ctx, "workflow_completed",
		slog.String("workflow", exec.WorkflowID),
		slog.String("execution_id", exec.ID),
		slog.Duration("duration", exec.EndedAt.Sub(exec.StartedAt)),
	)
}

func (o *LoggingObserver) OnWorkflowFailed(ctx context.Context, exec *WorkflowExecution, err error) {
	o.Logger.WarnContext(ctx, "workflow_failed",
		slog.String("workflow", exec.WorkflowID),
		slog.String("execution_id", exec.ID),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, exec *WorkflowExecution, step *ExecutionStep) {
	o.Logger.DebugContext(ctx, "step_start",
		slog.String("workflow", exec.WorkflowID),
		slog.String("execution_id", exec.ID),
		slog.String("step", step.ID),
		slog.String("step_type", string(step.Type)),
	)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, exec *WorkflowExecution, step *ExecutionStep, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "step_completed",
		slog.String("workflow", exec.WorkflowID),
		slog.String("execution_id", exec.ID),
		slog.String("step", step.ID),
		slog.String("status", string(step.Status)),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnApprovalRequested(ctx context.Context, exec *WorkflowExecution, a *ApprovalRequest) {
	o.Logger.InfoContext(ctx, "approval_requested",
		slog.String("execution_id", exec.ID),
		slog.String("approval_id", a.ID),
		slog.String("step", a.StepID),
	)
}

func (o *LoggingObserver) OnApprovalResponded(ctx context.Context, exec *WorkflowExecution, a *ApprovalRequest) {
	o.Logger.InfoContext(ctx, "approval_responded",
		slog.String("execution_id", exec.ID),
		slog.String("approval_id", a.ID),
		slog.String("status", string(a.Status)),
		slog.String("responder", a.RespondedBy),
	)
}

// BasicMetrics collects simple counters and aggregate step durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	workflowsStarted   atomic.Int64
	workflowsCompleted atomic.Int64
	workflowsFailed    atomic.Int64
	stepsCompleted     atomic.Int64
	totalStepDuration  atomic.Int64 // nanoseconds
	approvalsRequested atomic.Int64
	approvalsResolved  atomic.Int64
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	WorkflowsStarted   int64
	WorkflowsCompleted int64
	WorkflowsFailed    int64
	ActiveWorkflows    int64

	StepsCompleted  int64
	AvgStepDuration time.Duration

	ApprovalsRequested int64
	PendingApprovals   int64
}

func (m *BasicMetrics) OnWorkflowStart(ctx context.Context, exec *WorkflowExecution) {
	m.workflowsStarted.Add(1)
}

func (m *BasicMetrics) OnWorkflowCompleted(ctx context.Context, exec *WorkflowExecution) {
	m.workflowsCompleted.Add(1)
}

func (m *BasicMetrics) OnWorkflowFailed(ctx context.Context, exec *WorkflowExecution, err error) {
	m.workflowsFailed.Add(1)
}

func (m *BasicMetrics) OnStepCompleted(ctx context.Context, exec *WorkflowExecution, step *ExecutionStep, err error, d time.Duration) {
	// Only count completed steps for average duration.
	if err == nil && step.Status == StepCompleted {
		m.stepsCompleted.Add(1)
		m.totalStepDuration.Add(d.Nanoseconds())
	}
}

func (m *BasicMetrics) OnApprovalRequested(ctx context.Context, exec *WorkflowExecution, a *ApprovalRequest) {
	m.approvalsRequested.Add(1)
}

func (m *BasicMetrics) OnApprovalResponded(ctx context.Context, exec *WorkflowExecution, a *ApprovalRequest) {
	m.approvalsResolved.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.workflowsStarted.Load()
	completed := m.workflowsCompleted.Load()
	failed := m.workflowsFailed.Load()
	steps := m.stepsCompleted.Load()
	totalNs := m.totalStepDuration.Load()
	requested := m.approvalsRequested.Load()

	var avg time.Duration
	if steps > 0 {
		avg = time.Duration(totalNs / steps)
	}

	return BasicMetricsSnapshot{
		WorkflowsStarted:   started,
		WorkflowsCompleted: completed,
		WorkflowsFailed:    failed,
		ActiveWorkflows:    started - completed - failed,
		StepsCompleted:     steps,
		AvgStepDuration:    avg,
		ApprovalsRequested: requested,
		PendingApprovals:   requested - m.approvalsResolved.Load(),
	}
}
