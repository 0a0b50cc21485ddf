package engine

import (
	"context"
	"testing"

	"github.com/petrijr/agentsim/internal/datagen"
	"github.com/petrijr/agentsim/pkg/api"
)

func testExecution() *api.WorkflowExecution {
	return &api.WorkflowExecution{
		ID:           "e1",
		WorkflowName: "Welcome",
		Context:      datagen.New(5).ExecutionContext(&api.ContributorInfo{Login: "mona", Contributions: 1, FirstContribution: true}, &api.RepositoryInfo{FullName: "acme/dash", Language: "Go"}),
	}
}

func TestCollectData_AllFacts(t *testing.T) {
	exec := testExecution()
	step := &api.ExecutionStep{WorkflowStep: api.WorkflowStep{ID: "collect", Type: api.StepDataCollection}}

	out, ok := collectData(exec, step).(api.DataCollectionOutput)
	if !ok {
		t.Fatalf("expected DataCollectionOutput")
	}
	if out.Facts["login"] != "mona" || out.Facts["repository"] != "acme/dash" || out.Facts["first_contribution"] != "true" {
		t.Fatalf("facts do not reference the subject: %+v", out.Facts)
	}
	if out.Facts["issues"] != "3" || out.Facts["pull_requests"] != "2" {
		t.Fatalf("unexpected activity counts: %+v", out.Facts)
	}
	if len(out.Sources) != 1 || out.Sources[0] != defaultSource {
		t.Fatalf("expected default source, got %v", out.Sources)
	}
}

func TestCollectData_SelectedFields(t *testing.T) {
	exec := testExecution()
	step := &api.ExecutionStep{WorkflowStep: api.WorkflowStep{
		ID:     "collect",
		Type:   api.StepDataCollection,
		Config: api.DataCollectionConfig{Sources: []string{"github", "npm"}, Fields: []string{"language", "nonexistent"}},
	}}

	out := collectData(exec, step).(api.DataCollectionOutput)
	if len(out.Facts) != 2 || out.Facts["language"] != "Go" {
		t.Fatalf("unexpected facts: %+v", out.Facts)
	}
	if v, ok := out.Facts["nonexistent"]; !ok || v != "" {
		t.Fatalf("unknown fields should map to empty, got %q, %v", v, ok)
	}
	if len(out.Sources) != 2 {
		t.Fatalf("expected configured sources, got %v", out.Sources)
	}
}

func TestNotify_TemplateAndFallbacks(t *testing.T) {
	exec := testExecution()
	step := &api.ExecutionStep{WorkflowStep: api.WorkflowStep{
		ID:   "notify",
		Type: api.StepNotification,
		Config: api.NotificationConfig{
			Recipients: []string{"{{contributor}}", "maintainers"},
			Template:   "Welcome {{contributor}} to {{repository}} ({{workflow}})",
		},
	}}

	agent := api.Agent{Config: api.AgentConfig{Notifications: api.NotificationPreferences{Channels: []string{"slack"}}}}
	out := notify(exec, step, agent).(api.NotificationOutput)
	if !out.Sent {
		t.Fatalf("expected Sent")
	}
	if out.Message != "Welcome mona to acme/dash (Welcome)" {
		t.Fatalf("unexpected message %q", out.Message)
	}
	if len(out.Channels) != 1 || out.Channels[0] != "slack" {
		t.Fatalf("expected agent channels, got %v", out.Channels)
	}
	if len(out.Recipients) != 2 || out.Recipients[0] != "mona" {
		t.Fatalf("unexpected recipients %v", out.Recipients)
	}

	out = notify(exec, &api.ExecutionStep{WorkflowStep: api.WorkflowStep{ID: "n"}}, api.Agent{}).(api.NotificationOutput)
	if len(out.Channels) != 1 || out.Channels[0] != defaultChannel {
		t.Fatalf("expected default channel, got %v", out.Channels)
	}
	if len(out.Recipients) != 1 || out.Recipients[0] != "mona" {
		t.Fatalf("expected contributor as default recipient, got %v", out.Recipients)
	}
	if out.Message == "" {
		t.Fatalf("expected default template to render")
	}
}

func TestExecuteWorkflow_MixedStepTypes(t *testing.T) {
	eng, _ := newTestEngine(t)
	registerAgent(t, eng, "agent-1", api.AgentConfig{})
	register(t, eng, api.Workflow{
		ID:   "mixed",
		Name: "Mixed",
		Steps: []api.WorkflowStep{
			{ID: "collect", Name: "Collect", Type: api.StepDataCollection, Config: api.DataCollectionConfig{Sources: []string{"github"}}},
			{ID: "notify", Name: "Notify", Type: api.StepNotification, Dependencies: []string{"collect"}, Config: api.NotificationConfig{Template: "Hi {{contributor}}"}},
		},
	})
	eng.Start(1)

	contributor := &api.ContributorInfo{Login: "grace-h"}
	exec, err := eng.ExecuteWorkflow(context.Background(), api.ExecuteRequest{AgentID: "agent-1", WorkflowID: "mixed", Contributor: contributor})
	if err != nil {
		t.Fatalf("ExecuteWorkflow failed: %v", err)
	}
	if exec.Status != api.ExecutionCompleted {
		t.Fatalf("expected completed, got %q", exec.Status)
	}
	if exec.Context.Contributor.Login != "grace-h" || exec.Context.Repository.FullName == "" {
		t.Fatalf("unexpected context: %+v", exec.Context)
	}
	n, ok := exec.Steps[1].Output.(api.NotificationOutput)
	if !ok || n.Message != "Hi grace-h" {
		t.Fatalf("unexpected notification output: %+v", exec.Steps[1].Output)
	}
}
