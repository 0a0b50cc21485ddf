package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/agentsim/internal/persistence"
	"github.com/petrijr/agentsim/pkg/api"
)

// drive makes one pass over the execution's steps in declaration order.
// Steps that are not pending are skipped, as are steps whose dependencies
// have not completed; a skipped step is not revisited in the same pass.
// The pass stops when a step parks on a human approval. The caller holds
// h.mu.
func (e *engineImpl) drive(ctx context.Context, h *executionHandle) error {
	exec := h.exec
	for i := range exec.Steps {
		step := &exec.Steps[i]
		if step.Status != api.StepPending || !dependenciesMet(exec, step) {
			continue
		}

		if err := e.awaitGate(ctx); err != nil {
			return e.failStep(ctx, h, step, err)
		}

		stop, err := e.runStep(ctx, h, i)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}

	if allCompleted(exec) {
		return e.completeWorkflow(ctx, h, nil)
	}
	return nil
}

func dependenciesMet(exec *api.WorkflowExecution, step *api.ExecutionStep) bool {
	for _, dep := range step.Dependencies {
		s, _ := exec.Step(dep)
		if s == nil || s.Status != api.StepCompleted {
			return false
		}
	}
	return true
}

func allCompleted(exec *api.WorkflowExecution) bool {
	for _, s := range exec.Steps {
		if s.Status != api.StepCompleted {
			return false
		}
	}
	return true
}

// runStep starts step i, waits out the simulated delay and dispatches on
// the step type. stop reports that the pass must end: the step parked on
// an approval or the execution reached a terminal state.
func (e *engineImpl) runStep(ctx context.Context, h *executionHandle, i int) (stop bool, err error) {
	exec := h.exec
	step := &exec.Steps[i]

	agent, err := e.agents.GetAgent(exec.AgentID)
	if err != nil {
		e.logger.Warn("agent lookup failed; using defaults",
			slog.String("agent_id", exec.AgentID), slog.Any("error", err))
	}
	delay := e.stepDelay(agent)

	if err := transitionStep(step, triggerStart); err != nil {
		e.logger.Error("illegal step transition", slog.Any("error", err))
		return true, err
	}
	exec.CurrentStepIndex = i
	step.StartedAt = e.now()
	if err := e.persist(h, persistence.Changeset{}); err != nil {
		return true, err
	}

	e.emit(h, step.ID, api.StepStartData{
		StepName:  step.Name,
		StepType:  step.Type,
		StepIndex: i,
		Delay:     delay,
	}, fmt.Sprintf("Starting %s", step.Name))
	e.observer.OnStepStart(ctx, exec.Clone(), cloneStep(step))
	e.logger.Debug("step started",
		slog.String("execution_id", exec.ID),
		slog.String("step_id", step.ID),
		slog.Duration("delay", delay),
	)

	if err := e.sleep(ctx, delay); err != nil {
		if e.stale(h) {
			return true, errReset
		}
		return true, e.failStep(ctx, h, step, err)
	}

	var out api.StepOutput
	switch step.Type {
	case api.StepAutomated:
		out = automatedOutput(step)
	case api.StepDataCollection:
		out = collectData(exec, step)
	case api.StepNotification:
		out = notify(exec, step, agent)
	case api.StepHumanApproval:
		return e.requestApproval(ctx, h, step, agent)
	default:
		if err := e.failStep(ctx, h, step, fmt.Errorf("unknown step type %q", step.Type)); err != nil {
			return true, err
		}
		return true, nil
	}

	return false, e.finishStep(ctx, h, step, out)
}

func (e *engineImpl) finishStep(ctx context.Context, h *executionHandle, step *api.ExecutionStep, out api.StepOutput) error {
	if err := transitionStep(step, triggerComplete); err != nil {
		e.logger.Error("illegal step transition", slog.Any("error", err))
		return err
	}
	step.Output = out
	step.EndedAt = e.now()
	if err := e.persist(h, persistence.Changeset{}); err != nil {
		return err
	}

	d := step.EndedAt.Sub(step.StartedAt)
	e.emit(h, step.ID, api.StepCompleteData{
		StepName: step.Name,
		StepType: step.Type,
		Status:   step.Status,
		Output:   out,
		Duration: d,
	}, fmt.Sprintf("Completed %s", step.Name))
	e.observer.OnStepCompleted(ctx, h.exec.Clone(), cloneStep(step), nil, d)
	return nil
}

// failStep marks the step failed and fails the execution with cause.
func (e *engineImpl) failStep(ctx context.Context, h *executionHandle, step *api.ExecutionStep, cause error) error {
	if e.stale(h) {
		return errReset
	}
	if err := transitionStep(step, triggerFail); err != nil {
		e.logger.Error("illegal step transition", slog.Any("error", err))
		return err
	}
	step.Error = cause.Error()
	step.EndedAt = e.now()
	if step.StartedAt.IsZero() {
		step.StartedAt = step.EndedAt
	}
	if err := e.persist(h, persistence.Changeset{}); err != nil {
		return err
	}

	e.emit(h, step.ID, api.StepErrorData{
		StepName: step.Name,
		StepType: step.Type,
		Error:    step.Error,
	}, fmt.Sprintf("%s failed: %s", step.Name, step.Error))
	e.observer.OnStepCompleted(ctx, h.exec.Clone(), cloneStep(step), cause, step.EndedAt.Sub(step.StartedAt))

	if err := e.completeWorkflow(ctx, h, cause); err != nil {
		return err
	}
	// Cancellation is reported to the caller; other step failures are
	// recorded on the execution only.
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}
	return nil
}

// requestApproval parks the step on a new approval request. Agents with
// AutoApprove get an immediate "approve" and the pass continues.
func (e *engineImpl) requestApproval(ctx context.Context, h *executionHandle, step *api.ExecutionStep, agent api.Agent) (bool, error) {
	exec := h.exec
	cfg, _ := step.Config.(api.ApprovalConfig)

	req := &api.ApprovalRequest{
		ID:          uuid.NewString(),
		StepID:      step.ID,
		ExecutionID: exec.ID,
		AgentID:     exec.AgentID,
		Title:       cmp.Or(cfg.Title, step.Name),
		Description: cmp.Or(cfg.Description, step.Description),
		Options:     cfg.Options,
		Status:      api.ApprovalPending,
		RequestedAt: e.now(),
	}
	if len(req.Options) == 0 {
		req.Options = api.DefaultApprovalOptions()
	}

	if err := transitionStep(step, triggerAwait); err != nil {
		e.logger.Error("illegal step transition", slog.Any("error", err))
		return true, err
	}
	step.Approval = req

	err := e.persist(h, persistence.Changeset{
		AgentID:     exec.AgentID,
		UpdateAgent: updateCurrentAgent(exec.ID, api.AgentWaitingApproval),
		AddApproval: req,
	})
	if err != nil {
		return true, err
	}

	e.emit(h, step.ID, api.ApprovalRequestedData{
		ApprovalID: req.ID,
		Title:      req.Title,
		Options:    req.Clone().Options,
	}, fmt.Sprintf("Approval requested: %s", req.Title))
	snap := req.Clone()
	e.observer.OnApprovalRequested(ctx, exec.Clone(), &snap)

	if !agent.Config.AutoApprove {
		return true, nil
	}
	if err := e.resolveApproval(ctx, h, step, api.ApprovalResponse{
		Action:    api.ActionApprove,
		Responder: autoApprover,
	}); err != nil {
		return true, err
	}
	return false, nil
}

// resolveApproval applies a validated response to a waiting step. The
// approval leaves the pending table in the same transaction that resolves
// the step.
func (e *engineImpl) resolveApproval(ctx context.Context, h *executionHandle, step *api.ExecutionStep, resp api.ApprovalResponse) error {
	exec := h.exec
	req := step.Approval
	now := e.now()

	t, agentStatus := triggerApprove, api.AgentRunning
	req.Status = api.ApprovalApproved
	if resp.Action == api.ActionReject {
		t, agentStatus = triggerReject, api.AgentError
		req.Status = api.ApprovalRejected
	}
	if err := transitionStep(step, t); err != nil {
		e.logger.Error("illegal step transition", slog.Any("error", err))
		return err
	}

	req.RespondedBy = resp.Responder
	req.RespondedAt = now
	req.Comments = resp.Comments
	out := api.ApprovalOutput{
		Response:    resp.Action,
		Responder:   resp.Responder,
		Comments:    resp.Comments,
		RespondedAt: now,
	}
	step.Output = out
	step.EndedAt = now
	var stepErr error
	if resp.Action == api.ActionReject {
		stepErr = api.ErrApprovalRejected
		step.Error = stepErr.Error()
	}

	err := e.persist(h, persistence.Changeset{
		AgentID:        exec.AgentID,
		UpdateAgent:    updateCurrentAgent(exec.ID, agentStatus),
		RemoveApproval: req.ID,
	})
	if err != nil {
		return err
	}

	e.emit(h, step.ID, api.ApprovalRespondedData{
		ApprovalID: req.ID,
		Response:   resp.Action,
		Responder:  resp.Responder,
		Comments:   resp.Comments,
	}, fmt.Sprintf("%s %sd by %s", req.Title, resp.Action, resp.Responder))
	snap := req.Clone()
	e.observer.OnApprovalResponded(ctx, exec.Clone(), &snap)

	d := step.EndedAt.Sub(step.StartedAt)
	e.emit(h, step.ID, api.StepCompleteData{
		StepName: step.Name,
		StepType: step.Type,
		Status:   step.Status,
		Output:   out,
		Duration: d,
	}, fmt.Sprintf("Completed %s", step.Name))
	e.observer.OnStepCompleted(ctx, exec.Clone(), cloneStep(step), stepErr, d)

	if stepErr != nil {
		return e.completeWorkflow(ctx, h, stepErr)
	}
	return nil
}

// completeWorkflow moves the execution to its terminal state, releases the
// agent and folds the run into the agent's metrics. A nil cause means
// success.
func (e *engineImpl) completeWorkflow(ctx context.Context, h *executionHandle, cause error) error {
	exec := h.exec
	now := e.now()

	t := triggerComplete
	if cause != nil {
		t = triggerFail
		exec.FailureReason = cause.Error()
	}
	if err := transitionExecution(exec, t); err != nil {
		e.logger.Error("illegal execution transition", slog.Any("error", err))
		return err
	}
	exec.EndedAt = now
	duration := now.Sub(exec.StartedAt)
	success := cause == nil

	err := e.persist(h, persistence.Changeset{
		AgentID: exec.AgentID,
		UpdateAgent: func(a *api.Agent) {
			if a.CurrentWorkflow == exec.ID {
				a.Status = api.AgentIdle
				a.CurrentWorkflow = ""
			}
			recordRun(&a.Metrics, success, duration, now)
		},
	})
	if err != nil {
		return err
	}
	e.release(h)

	msg := fmt.Sprintf("%s completed", exec.WorkflowName)
	if !success {
		msg = fmt.Sprintf("%s failed: %s", exec.WorkflowName, exec.FailureReason)
	}
	e.emit(h, "", api.WorkflowCompleteData{
		WorkflowID: exec.WorkflowID,
		Status:     exec.Status,
		Duration:   duration,
		Reason:     exec.FailureReason,
	}, msg)

	if success {
		e.observer.OnWorkflowCompleted(ctx, exec.Clone())
	} else {
		e.observer.OnWorkflowFailed(ctx, exec.Clone(), cause)
	}
	return nil
}

// recordRun folds one finished run into m. AverageCompletionTime is the
// mean over successful runs only.
func recordRun(m *api.AgentMetrics, success bool, d time.Duration, now time.Time) {
	m.TotalWorkflows++
	if success {
		m.CompletedWorkflows++
		n := time.Duration(m.CompletedWorkflows)
		m.AverageCompletionTime = (m.AverageCompletionTime*(n-1) + d) / n
	}
	m.SuccessRate = float64(m.CompletedWorkflows) / float64(m.TotalWorkflows)
	m.LastActivity = now
}

func cloneStep(s *api.ExecutionStep) *api.ExecutionStep {
	c := s.Clone()
	return &c
}
