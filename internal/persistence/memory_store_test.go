package persistence

import (
	"errors"
	"testing"
	"time"

	"github.com/petrijr/agentsim/pkg/api"
)

func TestInMemoryStore_SaveAndGetWorkflow(t *testing.T) {
	store := NewInMemoryStore()

	wf := api.Workflow{
		ID:   "test-wf",
		Name: "Test",
		Steps: []api.WorkflowStep{
			{ID: "step-1", Type: api.StepAutomated, Config: api.AutomatedConfig{Action: "run"}},
		},
	}

	if err := store.SaveWorkflow(wf); err != nil {
		t.Fatalf("SaveWorkflow failed: %v", err)
	}

	got, err := store.GetWorkflow("test-wf")
	if err != nil {
		t.Fatalf("GetWorkflow failed: %v", err)
	}
	if got.Name != wf.Name {
		t.Fatalf("expected workflow name %q, got %q", wf.Name, got.Name)
	}
	if len(got.Steps) != 1 || got.Steps[0].ID != "step-1" {
		t.Fatalf("unexpected workflow steps: %+v", got.Steps)
	}

	// Upsert: last write wins.
	wf.Name = "Renamed"
	if err := store.SaveWorkflow(wf); err != nil {
		t.Fatalf("second SaveWorkflow failed: %v", err)
	}
	all, err := store.ListWorkflows()
	if err != nil {
		t.Fatalf("ListWorkflows failed: %v", err)
	}
	if len(all) != 1 || all[0].Name != "Renamed" {
		t.Fatalf("expected one renamed workflow, got %+v", all)
	}
}

func TestInMemoryStore_GetWorkflowNotFound(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.GetWorkflow("does-not-exist")
	if !errors.Is(err, ErrWorkflowNotFound) {
		t.Fatalf("expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestInMemoryStore_AgentCopiesAreIsolated(t *testing.T) {
	store := NewInMemoryStore()

	agent := api.Agent{
		ID:     "a1",
		Type:   api.AgentWelcome,
		Status: api.AgentIdle,
		Config: api.AgentConfig{Notifications: api.NotificationPreferences{Channels: []string{"slack"}}},
	}
	if err := store.SaveAgent(agent); err != nil {
		t.Fatalf("SaveAgent failed: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	agent.Config.Notifications.Channels[0] = "email"

	got, err := store.GetAgent("a1")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if got.Config.Notifications.Channels[0] != "slack" {
		t.Fatalf("stored agent was mutated through caller copy: %+v", got.Config)
	}

	got.Status = api.AgentRunning
	again, _ := store.GetAgent("a1")
	if again.Status != api.AgentIdle {
		t.Fatalf("stored agent was mutated through returned copy")
	}
}

func TestInMemoryStore_CommitIsAtomic(t *testing.T) {
	store := NewInMemoryStore()
	if err := store.SaveAgent(api.Agent{ID: "a1", Status: api.AgentIdle}); err != nil {
		t.Fatalf("SaveAgent failed: %v", err)
	}

	exec := &api.WorkflowExecution{
		ID:        "e1",
		AgentID:   "a1",
		Status:    api.ExecutionRunning,
		StartedAt: time.Now(),
		Steps:     []api.ExecutionStep{{WorkflowStep: api.WorkflowStep{ID: "s1"}, Status: api.StepWaitingApproval}},
	}
	approval := &api.ApprovalRequest{ID: "ap1", ExecutionID: "e1", StepID: "s1", Status: api.ApprovalPending}

	err := store.Commit(Changeset{
		Execution:   exec,
		AgentID:     "a1",
		UpdateAgent: func(a *api.Agent) { a.Status = api.AgentWaitingApproval },
		AddApproval: approval,
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if _, err := store.GetApproval("ap1"); err != nil {
		t.Fatalf("GetApproval failed: %v", err)
	}
	agent, _ := store.GetAgent("a1")
	if agent.Status != api.AgentWaitingApproval {
		t.Fatalf("expected agent waiting_approval, got %q", agent.Status)
	}

	// A changeset touching an unknown agent must roll back completely.
	exec.Status = api.ExecutionCompleted
	err = store.Commit(Changeset{
		Execution:      exec,
		AgentID:        "missing",
		UpdateAgent:    func(a *api.Agent) {},
		RemoveApproval: "ap1",
	})
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
	got, _ := store.GetExecution("e1")
	if got.Status != api.ExecutionRunning {
		t.Fatalf("execution update leaked from aborted commit: %q", got.Status)
	}
	if _, err := store.GetApproval("ap1"); err != nil {
		t.Fatalf("approval removal leaked from aborted commit: %v", err)
	}
}

func TestInMemoryStore_RemoveMissingApprovalFails(t *testing.T) {
	store := NewInMemoryStore()
	err := store.Commit(Changeset{RemoveApproval: "nope"})
	if !errors.Is(err, ErrApprovalNotFound) {
		t.Fatalf("expected ErrApprovalNotFound, got %v", err)
	}
}

func TestInMemoryStore_ListExecutionsFilters(t *testing.T) {
	store := NewInMemoryStore()
	base := time.Now()

	execs := []*api.WorkflowExecution{
		{ID: "e3", AgentID: "a1", WorkflowID: "w1", Status: api.ExecutionRunning, StartedAt: base.Add(2 * time.Second)},
		{ID: "e1", AgentID: "a1", WorkflowID: "w1", Status: api.ExecutionCompleted, StartedAt: base},
		{ID: "e2", AgentID: "a2", WorkflowID: "w2", Status: api.ExecutionFailed, StartedAt: base.Add(time.Second)},
	}
	for _, e := range execs {
		if err := store.Commit(Changeset{Execution: e}); err != nil {
			t.Fatalf("Commit %s failed: %v", e.ID, err)
		}
	}

	all, err := store.ListExecutions(ExecutionFilter{})
	if err != nil {
		t.Fatalf("ListExecutions failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "e1" || all[1].ID != "e2" || all[2].ID != "e3" {
		t.Fatalf("expected creation order e1,e2,e3, got %v", ids(all))
	}

	byAgent, _ := store.ListExecutions(ExecutionFilter{AgentID: "a1"})
	if len(byAgent) != 2 {
		t.Fatalf("expected 2 executions for a1, got %v", ids(byAgent))
	}

	active, _ := store.ListExecutions(ExecutionFilter{ActiveOnly: true})
	if len(active) != 1 || active[0].ID != "e3" {
		t.Fatalf("expected only e3 active, got %v", ids(active))
	}

	failed, _ := store.ListExecutions(ExecutionFilter{Status: api.ExecutionFailed})
	if len(failed) != 1 || failed[0].ID != "e2" {
		t.Fatalf("expected only e2 failed, got %v", ids(failed))
	}
}

func TestInMemoryStore_ClearRuntimeKeepsRegistries(t *testing.T) {
	store := NewInMemoryStore()
	_ = store.SaveAgent(api.Agent{ID: "a1", Status: api.AgentRunning, CurrentWorkflow: "e1"})
	_ = store.SaveWorkflow(api.Workflow{ID: "w1"})
	_ = store.Commit(Changeset{
		Execution:   &api.WorkflowExecution{ID: "e1", AgentID: "a1"},
		AddApproval: &api.ApprovalRequest{ID: "ap1", ExecutionID: "e1"},
	})

	err := store.ClearRuntime(func(a *api.Agent) {
		a.Status = api.AgentIdle
		a.CurrentWorkflow = ""
	})
	if err != nil {
		t.Fatalf("ClearRuntime failed: %v", err)
	}

	if execs, _ := store.ListExecutions(ExecutionFilter{}); len(execs) != 0 {
		t.Fatalf("expected no executions, got %d", len(execs))
	}
	if approvals, _ := store.ListApprovals(); len(approvals) != 0 {
		t.Fatalf("expected no approvals, got %d", len(approvals))
	}
	agent, err := store.GetAgent("a1")
	if err != nil {
		t.Fatalf("agent should survive ClearRuntime: %v", err)
	}
	if agent.Status != api.AgentIdle || agent.CurrentWorkflow != "" {
		t.Fatalf("agent not reset: %+v", agent)
	}
	if _, err := store.GetWorkflow("w1"); err != nil {
		t.Fatalf("workflow should survive ClearRuntime: %v", err)
	}
}

func ids(execs []*api.WorkflowExecution) []string {
	out := make([]string, len(execs))
	for i, e := range execs {
		out[i] = e.ID
	}
	return out
}
