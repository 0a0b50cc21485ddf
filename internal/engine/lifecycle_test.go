package engine

import (
	"testing"

	"github.com/petrijr/agentsim/pkg/api"
)

func TestStepMachine_Transitions(t *testing.T) {
	cases := []struct {
		name     string
		from     api.StepStatus
		triggers []trigger
		want     api.StepStatus
	}{
		{"complete", api.StepPending, []trigger{triggerStart, triggerComplete}, api.StepCompleted},
		{"fail while running", api.StepPending, []trigger{triggerStart, triggerFail}, api.StepFailed},
		{"fail before start", api.StepPending, []trigger{triggerFail}, api.StepFailed},
		{"approve", api.StepPending, []trigger{triggerStart, triggerAwait, triggerApprove}, api.StepCompleted},
		{"reject", api.StepPending, []trigger{triggerStart, triggerAwait, triggerReject}, api.StepFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			step := &api.ExecutionStep{WorkflowStep: api.WorkflowStep{ID: "s"}, Status: tc.from}
			for _, tr := range tc.triggers {
				if err := transitionStep(step, tr); err != nil {
					t.Fatalf("trigger %s failed: %v", tr, err)
				}
			}
			if step.Status != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, step.Status)
			}
		})
	}
}

func TestStepMachine_IllegalTransitions(t *testing.T) {
	step := &api.ExecutionStep{WorkflowStep: api.WorkflowStep{ID: "s"}, Status: api.StepCompleted}
	if err := transitionStep(step, triggerStart); err == nil {
		t.Fatalf("expected error restarting a completed step")
	}
	if step.Status != api.StepCompleted {
		t.Fatalf("illegal transition changed status to %q", step.Status)
	}

	step.Status = api.StepPending
	if err := transitionStep(step, triggerApprove); err == nil {
		t.Fatalf("expected error approving a pending step")
	}
}

func TestExecutionMachine_Transitions(t *testing.T) {
	exec := &api.WorkflowExecution{ID: "e", Status: api.ExecutionPending}
	if err := transitionExecution(exec, triggerComplete); err == nil {
		t.Fatalf("pending execution must not complete directly")
	}
	if err := transitionExecution(exec, triggerStart); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := transitionExecution(exec, triggerFail); err != nil {
		t.Fatalf("fail failed: %v", err)
	}
	if exec.Status != api.ExecutionFailed {
		t.Fatalf("expected failed, got %q", exec.Status)
	}
	if err := transitionExecution(exec, triggerComplete); err == nil {
		t.Fatalf("terminal execution must not transition")
	}
}
