package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/petrijr/agentsim/internal/datagen"
	"github.com/petrijr/agentsim/internal/engine"
	"github.com/petrijr/agentsim/pkg/api"
)

func TestPrometheusObserver_RecordsEngineLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewPrometheusObserver("", reg)
	if err != nil {
		t.Fatalf("NewPrometheusObserver failed: %v", err)
	}

	eng := engine.NewEngineWithConfig(engine.Config{Observer: obs, Generator: datagen.New(1)})
	if err := eng.RegisterAgent(api.Agent{ID: "a", Name: "A", Type: api.AgentWelcome}); err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}
	if err := eng.RegisterWorkflow(api.Workflow{ID: "wf", Name: "WF", Steps: []api.WorkflowStep{
		{ID: "work", Type: api.StepAutomated},
		{ID: "review", Type: api.StepHumanApproval, Dependencies: []string{"work"}},
	}}); err != nil {
		t.Fatalf("RegisterWorkflow failed: %v", err)
	}
	eng.Start(1)

	ctx := context.Background()
	for range 2 {
		if _, err := eng.ExecuteWorkflow(ctx, api.ExecuteRequest{AgentID: "a", WorkflowID: "wf"}); err != nil {
			t.Fatalf("ExecuteWorkflow failed: %v", err)
		}
	}

	if got := testutil.ToFloat64(obs.workflowsStarted.WithLabelValues("wf")); got != 2 {
		t.Fatalf("workflows started = %v, want 2", got)
	}
	if got := testutil.ToFloat64(obs.pendingApprovals); got != 2 {
		t.Fatalf("pending approvals = %v, want 2", got)
	}

	pending := eng.ListPendingApprovals()
	if err := eng.RespondToApproval(ctx, pending[0].ID, api.ApprovalResponse{Action: api.ActionApprove}); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := eng.RespondToApproval(ctx, pending[1].ID, api.ApprovalResponse{Action: api.ActionReject}); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	if got := testutil.ToFloat64(obs.pendingApprovals); got != 0 {
		t.Fatalf("pending approvals = %v, want 0", got)
	}
	if got := testutil.ToFloat64(obs.workflowsCompleted.WithLabelValues("wf")); got != 1 {
		t.Fatalf("workflows completed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(obs.workflowsFailed.WithLabelValues("wf")); got != 1 {
		t.Fatalf("workflows failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(obs.approvalResponses.WithLabelValues("approved")); got != 1 {
		t.Fatalf("approved responses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(obs.approvalResponses.WithLabelValues("rejected")); got != 1 {
		t.Fatalf("rejected responses = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(obs.stepDuration); n == 0 {
		t.Fatalf("expected step duration series")
	}
}

func TestNewPrometheusObserver_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheusObserver("sim", reg)
	if err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	second, err := NewPrometheusObserver("sim", reg)
	if err != nil {
		t.Fatalf("second registration failed: %v", err)
	}
	if first.workflowsStarted != second.workflowsStarted || first.pendingApprovals != second.pendingApprovals {
		t.Fatalf("expected collectors to be shared")
	}
}
