package engine

import (
	"context"
	"fmt"

	"github.com/qmuntal/stateless"

	"github.com/petrijr/agentsim/pkg/api"
)

type trigger string

const (
	triggerStart    trigger = "start"
	triggerComplete trigger = "complete"
	triggerFail     trigger = "fail"
	triggerAwait    trigger = "await"
	triggerApprove  trigger = "approve"
	triggerReject   trigger = "reject"
)

// stepMachine binds a state machine to step.Status.
//
//	pending ──start──▶ running ──complete──▶ completed
//	                      │  └─────fail────▶ failed
//	                      └──await──▶ waiting_approval ──approve──▶ completed
//	                                          └──reject/fail──▶ failed
func stepMachine(step *api.ExecutionStep) *stateless.StateMachine {
	sm := stateless.NewStateMachineWithExternalStorage(
		func(context.Context) (stateless.State, error) { return step.Status, nil },
		func(_ context.Context, s stateless.State) error {
			step.Status = s.(api.StepStatus)
			return nil
		},
		stateless.FiringImmediate,
	)

	sm.Configure(api.StepPending).
		Permit(triggerStart, api.StepRunning).
		Permit(triggerFail, api.StepFailed)

	sm.Configure(api.StepRunning).
		Permit(triggerComplete, api.StepCompleted).
		Permit(triggerFail, api.StepFailed).
		Permit(triggerAwait, api.StepWaitingApproval)

	sm.Configure(api.StepWaitingApproval).
		Permit(triggerApprove, api.StepCompleted).
		Permit(triggerReject, api.StepFailed).
		Permit(triggerFail, api.StepFailed)

	sm.Configure(api.StepCompleted)
	sm.Configure(api.StepFailed)
	return sm
}

// executionMachine binds a state machine to exec.Status.
func executionMachine(exec *api.WorkflowExecution) *stateless.StateMachine {
	sm := stateless.NewStateMachineWithExternalStorage(
		func(context.Context) (stateless.State, error) { return exec.Status, nil },
		func(_ context.Context, s stateless.State) error {
			exec.Status = s.(api.ExecutionStatus)
			return nil
		},
		stateless.FiringImmediate,
	)

	sm.Configure(api.ExecutionPending).
		Permit(triggerStart, api.ExecutionRunning)

	sm.Configure(api.ExecutionRunning).
		Permit(triggerComplete, api.ExecutionCompleted).
		Permit(triggerFail, api.ExecutionFailed)

	sm.Configure(api.ExecutionCompleted)
	sm.Configure(api.ExecutionFailed)
	return sm
}

func transitionStep(step *api.ExecutionStep, t trigger) error {
	if err := stepMachine(step).Fire(t); err != nil {
		return fmt.Errorf("step %q: %w", step.ID, err)
	}
	return nil
}

func transitionExecution(exec *api.WorkflowExecution, t trigger) error {
	if err := executionMachine(exec).Fire(t); err != nil {
		return fmt.Errorf("execution %q: %w", exec.ID, err)
	}
	return nil
}
